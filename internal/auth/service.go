// File: internal/auth/service.go
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/platform/metrics"
	"waste_portal_backend/internal/realtime"
	"waste_portal_backend/internal/registration"
	"waste_portal_backend/internal/shared"
	"waste_portal_backend/internal/user"

	"go.uber.org/zap"
)

// Service is the session context: sign-in, signup and token lifecycle.
type Service interface {
	Login(ctx context.Context, identifier, password string) (*Session, error)
	SignupWithEmail(ctx context.Context, req SignupEmailRequest) (*registration.PendingRegistration, error)
	SignupWithPhone(ctx context.Context, req SignupPhoneRequest) (*registration.PendingRegistration, error)
	VerifyEmail(ctx context.Context, email, code string) (*Session, error)
	VerifyPhone(ctx context.Context, phone, code string) (*Session, error)
	ResendCode(ctx context.Context, channel registration.Channel, identifier string) (*registration.PendingRegistration, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Logout(ctx context.Context, access *shared.Claims, refreshToken string) error
	CheckEmailExists(ctx context.Context, email string) (bool, error)
	CheckPhoneExists(ctx context.Context, phone string) (bool, error)
	IssueSession(ctx context.Context, profile *user.Profile) (*Session, error)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	profiles      user.Repository
	profileSvc    user.Service
	registrations registration.Service
	tokens        shared.TokenService
	blocklist     shared.TokenBlocklist
	publisher     realtime.Publisher
	cfg           *config.Config
	logger        *zap.Logger
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates the auth service.
func NewService(
	profiles user.Repository,
	profileSvc user.Service,
	registrations registration.Service,
	tokens shared.TokenService,
	blocklist shared.TokenBlocklist,
	publisher realtime.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceImplementation {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &ServiceImplementation{
		profiles:      profiles,
		profileSvc:    profileSvc,
		registrations: registrations,
		tokens:        tokens,
		blocklist:     blocklist,
		publisher:     publisher,
		cfg:           cfg,
		logger:        logger.Named("AuthService"),
	}
}

func loginFailure(reason string, err *common.APIError) error {
	metrics.LoginFailures.WithLabelValues(reason).Inc()
	return err
}

// Login authenticates with an email or phone identifier and a password.
func (s *ServiceImplementation) Login(ctx context.Context, identifier, password string) (*Session, error) {
	channel, normalized, ok := classifyIdentifier(identifier)
	if !ok {
		return nil, loginFailure("invalid_identifier", common.ErrInvalidCredentials)
	}

	var profile *user.Profile
	var err error
	if channel == registration.ChannelEmail {
		profile, err = s.profiles.FindByEmail(ctx, normalized)
	} else {
		profile, err = s.profiles.FindByPhone(ctx, normalized)
	}
	if errors.Is(err, common.ErrNotFound) {
		if _, openErr := s.registrations.FindOpen(ctx, channel, normalized); openErr == nil {
			if channel == registration.ChannelEmail {
				return nil, loginFailure("email_not_confirmed", common.ErrEmailNotConfirmed)
			}
			return nil, loginFailure("phone_not_confirmed", common.ErrPhoneNotConfirmed)
		}
		return nil, loginFailure("unknown_identifier", common.ErrInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}

	if profile.PasswordHash == nil || !common.CheckPasswordHash(password, *profile.PasswordHash) {
		return nil, loginFailure("wrong_password", common.ErrInvalidCredentials)
	}
	if !profile.IsActive {
		return nil, loginFailure("inactive", common.ErrAccountInactive)
	}

	now := time.Now().UTC()
	if err := s.profiles.TouchLastLogin(ctx, profile.ID, now); err != nil {
		s.logger.Warn("Failed to record last login", zap.Error(err), zap.String("profileID", profile.ID.String()))
	}
	profile.LastLoginAt = &now
	return s.IssueSession(ctx, profile)
}

func classifyIdentifier(identifier string) (registration.Channel, string, bool) {
	identifier = strings.TrimSpace(identifier)
	if common.LooksLikeEmail(identifier) {
		return registration.ChannelEmail, common.NormalizeEmail(identifier), true
	}
	phone, ok := common.NormalizePhone(identifier)
	return registration.ChannelPhone, phone, ok
}

func signupRole(role string) string {
	if role == "" {
		return common.RoleResident
	}
	return role
}

// SignupWithEmail opens a pending registration and sends an email code.
func (s *ServiceImplementation) SignupWithEmail(ctx context.Context, req SignupEmailRequest) (*registration.PendingRegistration, error) {
	email := common.NormalizeEmail(req.Email)
	if !common.LooksLikeEmail(email) {
		return nil, common.NewValidationAPIError(map[string]string{"email": "Must be a valid email address."})
	}
	return s.registrations.Start(ctx, registration.StartInput{
		Channel:    registration.ChannelEmail,
		Identifier: email,
		Name:       req.Name,
		Password:   req.Password,
		Role:       signupRole(req.Role),
		Area:       req.Area,
	})
}

// SignupWithPhone opens a pending registration and sends an SMS code.
func (s *ServiceImplementation) SignupWithPhone(ctx context.Context, req SignupPhoneRequest) (*registration.PendingRegistration, error) {
	phone, ok := common.NormalizePhone(req.Phone)
	if !ok {
		return nil, common.NewValidationAPIError(map[string]string{"phone": "Must be a valid E.164 phone number."})
	}
	return s.registrations.Start(ctx, registration.StartInput{
		Channel:    registration.ChannelPhone,
		Identifier: phone,
		Name:       req.Name,
		Password:   req.Password,
		Role:       signupRole(req.Role),
		Area:       req.Area,
	})
}

// VerifyEmail completes an email signup.
func (s *ServiceImplementation) VerifyEmail(ctx context.Context, email, code string) (*Session, error) {
	if !registration.ValidCodeFormat(code) {
		return nil, common.ErrInvalidCode.WithDetails("The code must be exactly 6 digits.")
	}
	return s.verify(ctx, registration.ChannelEmail, common.NormalizeEmail(email), code)
}

// VerifyPhone completes a phone signup.
func (s *ServiceImplementation) VerifyPhone(ctx context.Context, phone, code string) (*Session, error) {
	if !registration.ValidCodeFormat(code) {
		return nil, common.ErrInvalidCode.WithDetails("The code must be exactly 6 digits.")
	}
	normalized, ok := common.NormalizePhone(phone)
	if !ok {
		return nil, common.NewValidationAPIError(map[string]string{"phone": "Must be a valid E.164 phone number."})
	}
	return s.verify(ctx, registration.ChannelPhone, normalized, code)
}

func (s *ServiceImplementation) verify(ctx context.Context, channel registration.Channel, identifier, code string) (*Session, error) {
	profile, err := s.registrations.Verify(ctx, channel, identifier, code)
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		// Officials exist now but cannot sign in until an admin activates them.
		return &Session{Profile: profile}, nil
	}
	return s.IssueSession(ctx, profile)
}

// ResendCode sends a fresh code for an open registration.
func (s *ServiceImplementation) ResendCode(ctx context.Context, channel registration.Channel, identifier string) (*registration.PendingRegistration, error) {
	switch channel {
	case registration.ChannelEmail:
		identifier = common.NormalizeEmail(identifier)
	case registration.ChannelPhone:
		phone, ok := common.NormalizePhone(identifier)
		if !ok {
			return nil, common.NewValidationAPIError(map[string]string{"identifier": "Must be a valid E.164 phone number."})
		}
		identifier = phone
	default:
		return nil, common.ErrBadRequest.WithDetails("Unknown channel.")
	}
	return s.registrations.Resend(ctx, channel, identifier)
}

// Refresh rotates a refresh token into a new session.
func (s *ServiceImplementation) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, common.ErrUnauthorized.WithDetails("Invalid or expired refresh token.")
	}
	blocked, err := s.blocklist.IsBlocked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, common.ErrUnauthorized.WithDetails("Refresh token has been revoked.")
	}

	profile, err := s.profiles.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, common.ErrUnauthorized.WithDetails("Account no longer exists.")
	}
	if !profile.IsActive {
		return nil, common.ErrAccountInactive
	}
	if profile.TokenVersion != claims.Version {
		return nil, common.ErrUnauthorized.WithDetails("Session has been revoked. Please sign in again.")
	}

	if err := s.blocklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, err
	}
	return s.issue(profile)
}

// Logout revokes the presented access token and, when given, the refresh token.
func (s *ServiceImplementation) Logout(ctx context.Context, access *shared.Claims, refreshToken string) error {
	if access != nil && access.ExpiresAt != nil {
		if err := s.blocklist.Add(ctx, access.ID, access.ExpiresAt.Time); err != nil {
			return err
		}
	}
	if refreshToken != "" {
		claims, err := s.tokens.ParseRefreshToken(refreshToken)
		if err == nil && (access == nil || claims.UserID == access.UserID) {
			if err := s.blocklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
				return err
			}
		}
	}
	if access != nil {
		s.publishSession(ctx, access, "signed_out")
	}
	return nil
}

// CheckEmailExists is an advisory lookup for the signup form.
func (s *ServiceImplementation) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	return s.profileSvc.EmailExists(ctx, email)
}

// CheckPhoneExists is an advisory lookup for the signup form.
func (s *ServiceImplementation) CheckPhoneExists(ctx context.Context, phone string) (bool, error) {
	return s.profileSvc.PhoneExists(ctx, phone)
}

// IssueSession mints tokens for an active profile and announces the sign-in.
func (s *ServiceImplementation) IssueSession(ctx context.Context, profile *user.Profile) (*Session, error) {
	if !profile.IsActive {
		return nil, common.ErrAccountInactive
	}
	session, err := s.issue(profile)
	if err != nil {
		return nil, err
	}
	id := profile.ID
	ev := realtime.NewEvent(realtime.TableSession, realtime.EventInsert, id, &id)
	ev.Action = "signed_in"
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish session event", zap.Error(err))
	}
	return session, nil
}

func (s *ServiceImplementation) issue(profile *user.Profile) (*Session, error) {
	accessToken, accessExpiresAt, err := s.tokens.GenerateAccessToken(profile)
	if err != nil {
		return nil, common.ErrInternalServer.WithDetails("Could not generate access token.")
	}
	refreshToken, _, err := s.tokens.GenerateRefreshToken(profile)
	if err != nil {
		return nil, common.ErrInternalServer.WithDetails("Could not generate refresh token.")
	}
	return &Session{
		Profile: profile,
		Token: &shared.TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    accessExpiresAt,
			TokenType:    "Bearer",
		},
		LandingRoute: common.LandingRouteForRole(profile.Role),
	}, nil
}

func (s *ServiceImplementation) publishSession(ctx context.Context, claims *shared.Claims, action string) {
	id := claims.UserID
	ev := realtime.NewEvent(realtime.TableSession, realtime.EventUpdate, id, &id)
	ev.Action = action
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish session event", zap.Error(err))
	}
}
