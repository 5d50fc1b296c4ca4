// File: internal/registration/service.go
package registration

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/platform/metrics"
	"waste_portal_backend/internal/user"

	"go.uber.org/zap"
)

const (
	reconcileBatchSize = 100
	// Rows stuck in verifying or verified longer than this were abandoned mid-request.
	staleAfter = time.Minute
)

// StartInput is a validated signup request.
type StartInput struct {
	Channel    Channel
	Identifier string
	Name       string
	Password   string
	Role       string
	Area       string
}

// ReconcileResult counts what one reconciliation pass changed.
type ReconcileResult struct {
	Finalized int
	Failed    int
	Expired   int
	Reset     int
}

// Service drives the signup saga from first code to committed profile.
type Service interface {
	Start(ctx context.Context, in StartInput) (*PendingRegistration, error)
	Verify(ctx context.Context, channel Channel, identifier, code string) (*user.Profile, error)
	Resend(ctx context.Context, channel Channel, identifier string) (*PendingRegistration, error)
	FindOpen(ctx context.Context, channel Channel, identifier string) (*PendingRegistration, error)
	Reconcile(ctx context.Context) (ReconcileResult, error)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo     Repository
	profiles user.Repository
	sender   CodeSender
	cfg      *config.Config
	logger   *zap.Logger
	now      func() time.Time
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates the registration saga service.
func NewService(repo Repository, profiles user.Repository, sender CodeSender, cfg *config.Config, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:     repo,
		profiles: profiles,
		sender:   sender,
		cfg:      cfg,
		logger:   logger.Named("RegistrationService"),
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *ServiceImplementation) identifierTaken(ctx context.Context, channel Channel, identifier string) (bool, error) {
	if channel == ChannelPhone {
		return s.profiles.ExistsByPhone(ctx, identifier)
	}
	return s.profiles.ExistsByEmail(ctx, identifier)
}

// Start opens a registration and sends its first code. An older registration
// for the same identifier that is still waiting for a code is replaced.
func (s *ServiceImplementation) Start(ctx context.Context, in StartInput) (*PendingRegistration, error) {
	if in.Role != common.RoleResident && in.Role != common.RoleOfficial {
		return nil, common.ErrForbidden.WithDetails("This role cannot be chosen at signup.")
	}
	if in.Role == common.RoleResident && strings.TrimSpace(in.Area) == "" {
		return nil, common.NewValidationAPIError(map[string]string{"area": "Residents must provide an area."})
	}

	taken, err := s.identifierTaken(ctx, in.Channel, in.Identifier)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, common.ErrDuplicateIdentity
	}

	passwordHash, err := common.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, common.ErrInternalServer
	}
	code, codeHash, err := s.issueCode()
	if err != nil {
		return nil, err
	}

	if n, err := s.repo.ExpireOpen(ctx, in.Channel, in.Identifier, ReasonReplaced); err != nil {
		return nil, err
	} else if n > 0 {
		s.logger.Info("Replaced open registration", zap.String("channel", string(in.Channel)), zap.Int64("rows", n))
	}

	now := s.now()
	reg := &PendingRegistration{
		Channel:       in.Channel,
		Identifier:    in.Identifier,
		Name:          strings.TrimSpace(in.Name),
		Role:          in.Role,
		Area:          strings.TrimSpace(in.Area),
		PasswordHash:  passwordHash,
		CodeHash:      codeHash,
		State:         StateAwaitingCode,
		LastSentAt:    now,
		CodeExpiresAt: now.Add(s.cfg.OTPTTL),
		ExpiresAt:     now.Add(s.cfg.PendingRegistrationTTL),
	}
	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, err
	}

	if err := s.sender.SendCode(ctx, reg.Channel, reg.Identifier, code); err != nil {
		s.logger.Error("Code delivery failed", zap.Error(err), zap.String("registrationID", reg.ID.String()))
		_ = s.repo.Transition(ctx, reg, StateExpired, map[string]interface{}{"failure_reason": "delivery_failed"})
		return nil, common.ErrServiceUnavailable.WithDetails("Could not deliver the verification code.")
	}

	metrics.SignupsStarted.WithLabelValues(string(reg.Channel)).Inc()
	s.logger.Info("Registration started",
		zap.String("registrationID", reg.ID.String()), zap.String("channel", string(reg.Channel)), zap.String("role", reg.Role))
	return reg, nil
}

func (s *ServiceImplementation) issueCode() (string, string, error) {
	code, err := newCode()
	if err != nil {
		s.logger.Error("Failed to generate code", zap.Error(err))
		return "", "", common.ErrInternalServer
	}
	codeHash, err := common.HashPassword(code, s.cfg.BcryptCost)
	if err != nil {
		s.logger.Error("Failed to hash code", zap.Error(err))
		return "", "", common.ErrInternalServer
	}
	return code, codeHash, nil
}

// Verify checks a code and, on success, commits the profile.
func (s *ServiceImplementation) Verify(ctx context.Context, channel Channel, identifier, code string) (*user.Profile, error) {
	if !ValidCodeFormat(code) {
		return nil, common.ErrInvalidCode.WithDetails("The code must be exactly 6 digits.")
	}

	reg, err := s.repo.FindOpen(ctx, channel, identifier)
	if err != nil {
		return nil, err
	}
	now := s.now()

	switch reg.State {
	case StateVerified:
		// A previous attempt verified the code but never committed the profile.
		return s.finalize(ctx, reg)
	case StateVerifying:
		return nil, ErrStaleState
	}

	if now.After(reg.ExpiresAt) {
		_ = s.repo.Transition(ctx, reg, StateExpired, map[string]interface{}{"failure_reason": ReasonTimedOut})
		return nil, common.ErrCodeExpired.WithDetails("This signup has expired. Please sign up again.")
	}

	if err := s.repo.Transition(ctx, reg, StateVerifying, nil); err != nil {
		return nil, err
	}

	if now.After(reg.CodeExpiresAt) {
		if err := s.repo.Transition(ctx, reg, StateAwaitingCode, nil); err != nil {
			return nil, err
		}
		return nil, common.ErrCodeExpired
	}

	if !common.CheckPasswordHash(code, reg.CodeHash) {
		attempts := reg.Attempts + 1
		if attempts >= s.cfg.OTPMaxAttempts {
			if err := s.repo.Transition(ctx, reg, StateFailed, map[string]interface{}{
				"attempts": attempts, "failure_reason": ReasonTooManyAttempts,
			}); err != nil {
				return nil, err
			}
			s.logger.Info("Registration failed after too many attempts", zap.String("registrationID", reg.ID.String()))
			return nil, common.ErrTooManyAttempts
		}
		if err := s.repo.Transition(ctx, reg, StateAwaitingCode, map[string]interface{}{"attempts": attempts}); err != nil {
			return nil, err
		}
		return nil, common.ErrInvalidCode.WithDetails(map[string]int{"attempts_remaining": s.cfg.OTPMaxAttempts - attempts})
	}

	if err := s.repo.Transition(ctx, reg, StateVerified, nil); err != nil {
		return nil, err
	}
	return s.finalize(ctx, reg)
}

func (s *ServiceImplementation) profileFor(reg *PendingRegistration) *user.Profile {
	passwordHash := reg.PasswordHash
	identifier := reg.Identifier
	// Officials wait for an administrator to activate them.
	profile := &user.Profile{
		Name:         reg.Name,
		PasswordHash: &passwordHash,
		Role:         reg.Role,
		IsActive:     reg.Role == common.RoleResident,
		AuthProvider: user.ProviderLocal,
	}
	profile.SetArea(reg.Area)
	if reg.Channel == ChannelPhone {
		profile.PhoneNumber = &identifier
		profile.IsPhoneVerified = true
	} else {
		profile.Email = &identifier
		profile.IsEmailVerified = true
	}
	return profile
}

func (s *ServiceImplementation) finalize(ctx context.Context, reg *PendingRegistration) (*user.Profile, error) {
	profile := s.profileFor(reg)
	err := s.repo.Finalize(ctx, reg, profile)
	if err == nil {
		metrics.SignupsCompleted.WithLabelValues(string(reg.Channel)).Inc()
		s.logger.Info("Registration completed",
			zap.String("registrationID", reg.ID.String()), zap.String("profileID", profile.ID.String()))
		return profile, nil
	}
	if errors.Is(err, common.ErrDuplicateIdentity) {
		if terr := s.repo.Transition(ctx, reg, StateFailed, map[string]interface{}{"failure_reason": ReasonDuplicate}); terr != nil {
			s.logger.Warn("Could not mark duplicate registration failed", zap.Error(terr))
		}
		return nil, common.ErrDuplicateIdentity
	}
	return nil, err
}

// Resend issues a new code once the cooldown since the previous one has passed.
func (s *ServiceImplementation) Resend(ctx context.Context, channel Channel, identifier string) (*PendingRegistration, error) {
	reg, err := s.repo.FindOpen(ctx, channel, identifier)
	if err != nil {
		return nil, err
	}
	if reg.State != StateAwaitingCode {
		return nil, ErrStaleState
	}

	now := s.now()
	if now.After(reg.ExpiresAt) {
		_ = s.repo.Transition(ctx, reg, StateExpired, map[string]interface{}{"failure_reason": ReasonTimedOut})
		return nil, common.ErrCodeExpired.WithDetails("This signup has expired. Please sign up again.")
	}
	if wait := reg.ResendAvailableIn(now, s.cfg.OTPResendCooldown); wait > 0 {
		return nil, cooldownError(wait)
	}

	code, codeHash, err := s.issueCode()
	if err != nil {
		return nil, err
	}
	err = s.repo.UpdateCode(ctx, reg, codeHash, now, now.Add(s.cfg.OTPTTL), now.Add(-s.cfg.OTPResendCooldown))
	if errors.Is(err, ErrStaleState) {
		// A concurrent resend won the race and restarted the cooldown.
		return nil, cooldownError(s.cfg.OTPResendCooldown)
	}
	if err != nil {
		return nil, err
	}
	if err := s.sender.SendCode(ctx, reg.Channel, reg.Identifier, code); err != nil {
		s.logger.Error("Code delivery failed on resend", zap.Error(err), zap.String("registrationID", reg.ID.String()))
		return nil, common.ErrServiceUnavailable.WithDetails("Could not deliver the verification code.")
	}
	return reg, nil
}

func cooldownError(wait time.Duration) error {
	return common.ErrResendCooldown.WithDetails(map[string]int{
		"retry_after_seconds": int(math.Ceil(wait.Seconds())),
	})
}

// FindOpen exposes the open registration for login hints.
func (s *ServiceImplementation) FindOpen(ctx context.Context, channel Channel, identifier string) (*PendingRegistration, error) {
	return s.repo.FindOpen(ctx, channel, identifier)
}

// Reconcile repairs registrations left behind by crashes and timeouts.
func (s *ServiceImplementation) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	now := s.now()

	verified, err := s.repo.ListInState(ctx, StateVerified, now.Add(-staleAfter), reconcileBatchSize)
	if err != nil {
		return res, err
	}
	for i := range verified {
		reg := &verified[i]
		_, err := s.finalize(ctx, reg)
		switch {
		case err == nil:
			res.Finalized++
		case errors.Is(err, common.ErrDuplicateIdentity):
			res.Failed++
		default:
			s.logger.Warn("Could not finalize verified registration", zap.Error(err), zap.String("registrationID", reg.ID.String()))
		}
	}

	expired, err := s.repo.ListExpired(ctx, now, reconcileBatchSize)
	if err != nil {
		return res, err
	}
	for i := range expired {
		reg := &expired[i]
		if err := s.repo.Transition(ctx, reg, StateExpired, map[string]interface{}{"failure_reason": ReasonTimedOut}); err != nil {
			s.logger.Debug("Skipping registration expiry", zap.Error(err), zap.String("registrationID", reg.ID.String()))
			continue
		}
		res.Expired++
	}

	stuck, err := s.repo.ListInState(ctx, StateVerifying, now.Add(-staleAfter), reconcileBatchSize)
	if err != nil {
		return res, err
	}
	for i := range stuck {
		reg := &stuck[i]
		if err := s.repo.Transition(ctx, reg, StateAwaitingCode, nil); err != nil {
			s.logger.Debug("Skipping verifying reset", zap.Error(err), zap.String("registrationID", reg.ID.String()))
			continue
		}
		res.Reset++
	}

	return res, nil
}
