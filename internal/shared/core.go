package shared

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenResponse represents the response containing JWT tokens.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// OAuthUserProfile holds common profile data from OAuth providers.
type OAuthUserProfile struct {
	Provider      string
	ProviderID    string
	Email         string
	Name          string
	PhoneNumber   string
	EmailVerified bool
}

// UserDataForToken is the subset of a profile needed to mint a token.
type UserDataForToken interface {
	GetID() uuid.UUID
	GetRole() string
	GetTokenVersion() int
}

// TokenService defines the interface for JWT operations.
type TokenService interface {
	GenerateAccessToken(userData UserDataForToken) (string, time.Time, error)
	GenerateRefreshToken(userData UserDataForToken) (string, time.Time, error)
	ValidateToken(tokenString string) (*Claims, error)
	ParseRefreshToken(refreshTokenString string) (*Claims, error)
}

// Claims represents the JWT claims structure.
type Claims struct {
	UserID  uuid.UUID `json:"user_id"`
	Role    string    `json:"role"`
	Version int       `json:"ver"`
	Type    string    `json:"typ"`
	jwt.RegisteredClaims
}

// TokenBlocklist remembers revoked token ids until they would have expired anyway.
type TokenBlocklist interface {
	Add(ctx context.Context, jti string, expiresAt time.Time) error
	IsBlocked(ctx context.Context, jti string) (bool, error)
}
