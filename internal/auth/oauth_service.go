// File: internal/auth/oauth_service.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/firebase"
	"waste_portal_backend/internal/shared"
	"waste_portal_backend/internal/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ProviderProfileResolver maps a provider identity onto a profile.
type ProviderProfileResolver interface {
	FindOrCreateProviderProfile(ctx context.Context, identity shared.OAuthUserProfile) (*user.Profile, bool, error)
}

// IDTokenVerifier checks Firebase ID tokens.
type IDTokenVerifier interface {
	Enabled() bool
	VerifyIDToken(ctx context.Context, idToken string) (*firebase.VerifiedIdentity, error)
}

// OAuthService defines the provider sign-in flows.
type OAuthService interface {
	GetGoogleLoginURL(c *gin.Context) (string, error)
	HandleGoogleCallback(c *gin.Context, code, state string) (*Session, error)
	SignInWithFirebase(ctx context.Context, idToken string) (*Session, error)
}

type oauthService struct {
	cfg      *config.Config
	resolver ProviderProfileResolver
	sessions Service
	verifier IDTokenVerifier
	logger   *zap.Logger
}

// NewOAuthService creates a new OAuth service.
func NewOAuthService(
	cfg *config.Config,
	resolver ProviderProfileResolver,
	sessions Service,
	verifier IDTokenVerifier,
	logger *zap.Logger,
) OAuthService {
	return &oauthService{
		cfg:      cfg,
		resolver: resolver,
		sessions: sessions,
		verifier: verifier,
		logger:   logger.Named("OAuthService"),
	}
}

// GetGoogleLoginURL generates the URL for Google OAuth login.
func (s *oauthService) GetGoogleLoginURL(c *gin.Context) (string, error) {
	if !s.cfg.GoogleOAuthEnabled() {
		return "", common.ErrServiceUnavailable.WithDetails("Google sign-in is not configured.")
	}
	state, err := generateAndSetOAuthState(c, s.cfg)
	if err != nil {
		s.logger.Error("Failed to generate OAuth state for Google", zap.Error(err))
		return "", common.ErrInternalServer.WithDetails("Could not initiate Google login.")
	}
	return getGoogleOAuthConfig(s.cfg).AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// HandleGoogleCallback exchanges the code, loads the Google profile and signs the user in.
func (s *oauthService) HandleGoogleCallback(c *gin.Context, code, state string) (*Session, error) {
	if !s.cfg.GoogleOAuthEnabled() {
		return nil, common.ErrServiceUnavailable.WithDetails("Google sign-in is not configured.")
	}
	storedState, err := getOAuthCookie(c, s.cfg, s.cfg.OAuthStateCookieName)
	if err != nil {
		s.logger.Warn("OAuth state cookie missing", zap.Error(err))
		return nil, common.ErrBadRequest.WithDetails("Invalid session or state mismatch.")
	}
	if state != storedState {
		s.logger.Warn("Google OAuth state mismatch")
		return nil, common.ErrBadRequest.WithDetails("OAuth state mismatch.")
	}

	ctx := c.Request.Context()
	googleCfg := getGoogleOAuthConfig(s.cfg)
	token, err := googleCfg.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("Failed to exchange Google auth code", zap.Error(err))
		return nil, common.ErrServiceUnavailable.WithDetails("Could not exchange Google auth code.")
	}

	resp, err := googleCfg.Client(ctx, token).Get(GoogleUserInfoURL)
	if err != nil {
		s.logger.Error("Failed to fetch user info from Google", zap.Error(err))
		return nil, common.ErrServiceUnavailable.WithDetails("Could not fetch user info from Google.")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.logger.Error("Google user info request failed", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, common.ErrServiceUnavailable.WithDetails(fmt.Sprintf("Google returned status %d for user info.", resp.StatusCode))
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		s.logger.Error("Failed to decode Google user info", zap.Error(err))
		return nil, common.ErrInternalServer.WithDetails("Could not process Google user information.")
	}
	if info.Sub == "" {
		return nil, common.ErrBadRequest.WithDetails("Missing user identifier from Google.")
	}

	return s.signIn(ctx, shared.OAuthUserProfile{
		Provider:      user.ProviderGoogle,
		ProviderID:    info.Sub,
		Email:         strings.ToLower(info.Email),
		Name:          info.Name,
		EmailVerified: info.EmailVerified,
	})
}

// SignInWithFirebase verifies a Firebase ID token and signs the user in.
func (s *oauthService) SignInWithFirebase(ctx context.Context, idToken string) (*Session, error) {
	if s.verifier == nil || !s.verifier.Enabled() {
		return nil, common.ErrServiceUnavailable.WithDetails("Firebase sign-in is not configured.")
	}
	identity, err := s.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, common.ErrUnauthorized.WithDetails("Invalid Firebase ID token.")
	}
	return s.signIn(ctx, shared.OAuthUserProfile{
		Provider:      user.ProviderFirebase,
		ProviderID:    identity.UID,
		Email:         strings.ToLower(identity.Email),
		Name:          identity.Name,
		PhoneNumber:   identity.PhoneNumber,
		EmailVerified: identity.EmailVerified,
	})
}

func (s *oauthService) signIn(ctx context.Context, identity shared.OAuthUserProfile) (*Session, error) {
	profile, created, err := s.resolver.FindOrCreateProviderProfile(ctx, identity)
	if err != nil {
		s.logger.Error("Failed to resolve provider profile", zap.Error(err), zap.String("provider", identity.Provider))
		if _, ok := common.IsAPIError(err); ok {
			return nil, err
		}
		return nil, common.ErrInternalServer.WithDetails("Failed to process user account after provider login.")
	}
	session, err := s.sessions.IssueSession(ctx, profile)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Provider sign-in successful",
		zap.String("provider", identity.Provider),
		zap.String("profileID", profile.ID.String()),
		zap.Bool("created", created))
	return session, nil
}
