package firebase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"waste_portal_backend/internal/config"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrDisabled is returned by every call when no service account is configured.
var ErrDisabled = errors.New("firebase is not configured")

// FirebaseService wraps the Admin SDK auth client. A nil *FirebaseService is valid
// and behaves as a disabled integration.
type FirebaseService struct {
	authClient *auth.Client
	logger     *zap.Logger
}

// NewFirebaseService initializes the Admin SDK. It returns (nil, nil) when
// FIREBASE_SERVICE_ACCOUNT_KEY_PATH is empty.
func NewFirebaseService(cfg *config.Config, logger *zap.Logger) (*FirebaseService, error) {
	logger = logger.Named("Firebase")
	if !cfg.FirebaseEnabled() {
		logger.Info("Firebase service account not configured; Firebase sign-in disabled.")
		return nil, nil
	}

	cleanPath := filepath.Clean(cfg.FirebaseServiceAccountKeyPath)
	opt := option.WithCredentialsFile(cleanPath)

	var conf *firebase.Config
	if cfg.FirebaseProjectID != "" {
		conf = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}

	ctx := context.Background()
	app, err := firebase.NewApp(ctx, conf, opt)
	if err != nil {
		logger.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err), zap.String("keyPath", cleanPath))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		logger.Error("Failed to get Firebase Auth client", zap.Error(err))
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}

	logger.Info("Firebase Admin SDK initialized successfully.")
	return &FirebaseService{authClient: authClient, logger: logger}, nil
}

// Enabled reports whether calls will reach Firebase.
func (s *FirebaseService) Enabled() bool {
	return s != nil && s.authClient != nil
}

// VerifiedIdentity is the part of a Firebase ID token the portal cares about.
type VerifiedIdentity struct {
	UID           string
	Email         string
	EmailVerified bool
	PhoneNumber   string
	Name          string
}

// VerifyIDToken verifies a Firebase ID token and extracts the identity claims.
func (s *FirebaseService) VerifyIDToken(ctx context.Context, idToken string) (*VerifiedIdentity, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if idToken == "" {
		return nil, fmt.Errorf("ID token must not be empty")
	}

	token, err := s.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Warn("Firebase ID token verification failed", zap.Error(err))
		return nil, fmt.Errorf("failed to verify Firebase ID token: %w", err)
	}

	s.logger.Debug("Firebase ID token verified", zap.String("uid", token.UID))
	return identityFromClaims(token.UID, token.Claims), nil
}

func identityFromClaims(uid string, claims map[string]interface{}) *VerifiedIdentity {
	id := &VerifiedIdentity{UID: uid}
	if v, ok := claims["email"].(string); ok {
		id.Email = v
	}
	if v, ok := claims["email_verified"].(bool); ok {
		id.EmailVerified = v
	}
	if v, ok := claims["phone_number"].(string); ok {
		id.PhoneNumber = v
	}
	if v, ok := claims["name"].(string); ok {
		id.Name = v
	}
	return id
}

// RevokeRefreshTokens revokes all refresh tokens for a given Firebase user.
// It is a no-op when Firebase is disabled.
func (s *FirebaseService) RevokeRefreshTokens(ctx context.Context, uid string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.authClient.RevokeRefreshTokens(ctx, uid); err != nil {
		s.logger.Error("Failed to revoke refresh tokens", zap.Error(err), zap.String("uid", uid))
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	s.logger.Info("Revoked Firebase refresh tokens", zap.String("uid", uid))
	return nil
}
