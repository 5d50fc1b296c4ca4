// File: internal/common/roles.go
package common

import "github.com/google/uuid"

const (
	RoleResident = "resident"
	RoleOfficial = "official"
	RoleAdmin    = "admin"
)

// IsValidRole reports whether role is one of the known roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleResident, RoleOfficial, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether role may triage reports and schedules.
func IsStaff(role string) bool {
	return role == RoleOfficial || role == RoleAdmin
}

// LandingRouteForRole is the page the portal opens after sign-in.
func LandingRouteForRole(role string) string {
	switch role {
	case RoleAdmin:
		return "/manage-users"
	case RoleOfficial:
		return "/manage-reports"
	default:
		return "/dashboard"
	}
}

// Actor is the authenticated caller as seen by services.
// Services check capabilities against it instead of trusting the route.
type Actor struct {
	ID   uuid.UUID
	Role string
	Area string
}

func (a Actor) IsStaff() bool    { return IsStaff(a.Role) }
func (a Actor) IsAdmin() bool    { return a.Role == RoleAdmin }
func (a Actor) IsResident() bool { return a.Role == RoleResident }

// Can reports whether the actor holds one of roles.
func (a Actor) Can(roles ...string) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
