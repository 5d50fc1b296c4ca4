// File: internal/user/model.go
package user

import (
	"strings"
	"time"

	"waste_portal_backend/internal/common"

	"github.com/google/uuid"
)

// Auth providers a profile can be linked to.
const (
	ProviderLocal    = "local"
	ProviderGoogle   = "google"
	ProviderFirebase = "firebase"
)

// Profile is the account record: identity, credentials and portal role in one row.
type Profile struct {
	common.BaseModel
	Name            string     `gorm:"type:varchar(150);not null" json:"name"`
	Email           *string    `gorm:"type:varchar(255);uniqueIndex" json:"email,omitempty"`
	PhoneNumber     *string    `gorm:"type:varchar(20);uniqueIndex" json:"phone_number,omitempty"`
	PasswordHash    *string    `gorm:"type:varchar(255)" json:"-"`
	Role            string     `gorm:"type:varchar(20);not null;index" json:"role"`
	Area            string     `gorm:"type:varchar(150)" json:"area"`
	AreaSlug        string     `gorm:"type:varchar(150);index" json:"-"`
	IsActive        bool       `gorm:"not null" json:"is_active"`
	IsEmailVerified bool       `gorm:"not null" json:"is_email_verified"`
	IsPhoneVerified bool       `gorm:"not null" json:"is_phone_verified"`
	AuthProvider    string     `gorm:"type:varchar(30);not null;index:idx_profiles_provider,unique,priority:1" json:"auth_provider"`
	ProviderID      *string    `gorm:"type:varchar(255);index:idx_profiles_provider,unique,priority:2" json:"-"`
	TokenVersion    int        `gorm:"not null" json:"-"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

// TableName specifies the table name for the Profile model.
func (Profile) TableName() string {
	return "profiles"
}

// SetArea keeps the matching slug in step with the display value.
func (p *Profile) SetArea(area string) {
	p.Area = strings.TrimSpace(area)
	p.AreaSlug = common.AreaSlug(p.Area)
}

// Actor returns the capability view of the profile used by services.
func (p *Profile) Actor() common.Actor {
	return common.Actor{ID: p.ID, Role: p.Role, Area: p.AreaSlug}
}

// ProfileIncomplete is true for residents who still need to pick an area.
func (p *Profile) ProfileIncomplete() bool {
	return p.Role == common.RoleResident && p.AreaSlug == ""
}

func (p *Profile) GetID() uuid.UUID    { return p.ID }
func (p *Profile) GetRole() string     { return p.Role }
func (p *Profile) GetTokenVersion() int { return p.TokenVersion }

// --- DTOs ---

// ProfileResponse is the public view of a profile.
type ProfileResponse struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Email             *string    `json:"email,omitempty"`
	PhoneNumber       *string    `json:"phone_number,omitempty"`
	Role              string     `json:"role"`
	Area              string     `json:"area"`
	IsActive          bool       `json:"is_active"`
	IsEmailVerified   bool       `json:"is_email_verified"`
	IsPhoneVerified   bool       `json:"is_phone_verified"`
	AuthProvider      string     `json:"auth_provider"`
	ProfileIncomplete bool       `json:"profile_incomplete"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
}

// ToProfileResponse converts a Profile model to its response DTO.
func ToProfileResponse(p *Profile) ProfileResponse {
	return ProfileResponse{
		ID:                p.ID,
		Name:              p.Name,
		Email:             p.Email,
		PhoneNumber:       p.PhoneNumber,
		Role:              p.Role,
		Area:              p.Area,
		IsActive:          p.IsActive,
		IsEmailVerified:   p.IsEmailVerified,
		IsPhoneVerified:   p.IsPhoneVerified,
		AuthProvider:      p.AuthProvider,
		ProfileIncomplete: p.ProfileIncomplete(),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		LastLoginAt:       p.LastLoginAt,
	}
}

// UpdateProfileRequest carries the fields an owner may edit.
type UpdateProfileRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=2,max=150"`
	Area        *string `json:"area" binding:"omitempty,max=150"`
	PhoneNumber *string `json:"phone_number" binding:"omitempty,e164"`
}

// ChangePasswordRequest is used by password-based accounts.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

// UpdateRoleRequest is the admin role edit.
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=resident official admin"`
}

// SetActiveRequest is the admin status edit.
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// ListFilter narrows the admin profile listing.
type ListFilter struct {
	Role     string `form:"role" binding:"omitempty,oneof=resident official admin"`
	IsActive *bool  `form:"is_active"`
	Area     string `form:"area"`
	Query    string `form:"q" binding:"omitempty,max=100"`
}
