// File: internal/auth/model.go
package auth

import (
	"waste_portal_backend/internal/registration"
	"waste_portal_backend/internal/shared"
	"waste_portal_backend/internal/user"
)

// LoginRequest accepts either an email address or a phone number as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required,max=255"`
	Password   string `json:"password" binding:"required"`
}

// SignupEmailRequest starts an email signup.
type SignupEmailRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=150"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Role     string `json:"role" binding:"omitempty,oneof=resident official admin"`
	Area     string `json:"area" binding:"max=150"`
}

// SignupPhoneRequest starts a phone signup.
type SignupPhoneRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=150"`
	Phone    string `json:"phone" binding:"required,max=32"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Role     string `json:"role" binding:"omitempty,oneof=resident official admin"`
	Area     string `json:"area" binding:"max=150"`
}

// VerifyEmailRequest confirms an email signup. Code format is checked by the service.
type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// VerifyPhoneRequest confirms a phone signup.
type VerifyPhoneRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// ResendCodeRequest asks for a new verification code.
type ResendCodeRequest struct {
	Channel    string `json:"channel" binding:"required,oneof=email phone"`
	Identifier string `json:"identifier" binding:"required"`
}

// RefreshTokenRequest defines the structure for refresh token requests.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest optionally revokes the refresh token too.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// FirebaseSignInRequest carries a Firebase ID token.
type FirebaseSignInRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// Session is the result of every successful sign-in path.
// Token is nil when the profile exists but is not yet active.
type Session struct {
	Profile      *user.Profile
	Token        *shared.TokenResponse
	LandingRoute string
}

// SessionResponse is the wire form of a Session.
type SessionResponse struct {
	Profile      user.ProfileResponse  `json:"profile"`
	Token        *shared.TokenResponse `json:"token,omitempty"`
	LandingRoute string                `json:"landing_route,omitempty"`
}

// ToSessionResponse converts a Session to its response DTO.
func ToSessionResponse(s *Session) SessionResponse {
	return SessionResponse{
		Profile:      user.ToProfileResponse(s.Profile),
		Token:        s.Token,
		LandingRoute: s.LandingRoute,
	}
}

// ExistsResponse answers the advisory identity checks.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

// PendingSignupResponse is returned by signup and resend.
type PendingSignupResponse = registration.PendingResponse
