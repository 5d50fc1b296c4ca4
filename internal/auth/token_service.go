// File: internal/auth/token_service.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/shared"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrWrongTokenType is returned when a refresh token is used as an access token or vice versa.
var ErrWrongTokenType = errors.New("wrong token type")

// JWTService issues and validates HS256 tokens.
type JWTService struct {
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

var _ shared.TokenService = (*JWTService)(nil)

// NewJWTService creates a new JWT service.
func NewJWTService(cfg *config.Config, logger *zap.Logger) *JWTService {
	return &JWTService{cfg: cfg, logger: logger.Named("JWTService"), now: time.Now}
}

func (s *JWTService) generate(userData shared.UserDataForToken, typ string, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expirationTime := now.Add(ttl)

	claims := &shared.Claims{
		UserID:  userData.GetID(),
		Role:    userData.GetRole(),
		Version: userData.GetTokenVersion(),
		Type:    typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.cfg.JWTIssuer,
			Subject:   userData.GetID().String(),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecretKey))
	if err != nil {
		s.logger.Error("Failed to sign token", zap.String("type", typ), zap.Error(err))
		return "", time.Time{}, fmt.Errorf("could not sign %s token: %w", typ, err)
	}
	return tokenString, expirationTime, nil
}

func (s *JWTService) GenerateAccessToken(userData shared.UserDataForToken) (string, time.Time, error) {
	return s.generate(userData, shared.TokenTypeAccess, s.cfg.JWTAccessTokenExpiry)
}

func (s *JWTService) GenerateRefreshToken(userData shared.UserDataForToken) (string, time.Time, error) {
	return s.generate(userData, shared.TokenTypeRefresh, s.cfg.JWTRefreshTokenExpiry)
}

func (s *JWTService) parse(tokenString, wantType string) (*shared.Claims, error) {
	claims := &shared.Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(s.cfg.JWTSecretKey), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.JWTIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		s.logger.Debug("Token rejected", zap.Error(err))
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Type != wantType {
		return nil, ErrWrongTokenType
	}
	if claims.UserID == uuid.Nil || claims.ID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateToken validates an access token and returns its claims.
func (s *JWTService) ValidateToken(tokenString string) (*shared.Claims, error) {
	return s.parse(tokenString, shared.TokenTypeAccess)
}

// ParseRefreshToken validates a refresh token and returns its claims.
func (s *JWTService) ParseRefreshToken(refreshTokenString string) (*shared.Claims, error) {
	return s.parse(refreshTokenString, shared.TokenTypeRefresh)
}
