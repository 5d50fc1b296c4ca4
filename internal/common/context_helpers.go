// File: internal/common/context_helpers.go
package common

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetTokenFromContext retrieves the bearer token from the Authorization header.
// Returns an empty string if not found.
func GetTokenFromContext(c *gin.Context) string {
	authHeader := c.GetHeader(AuthorizationHeader)
	if authHeader == "" {
		return ""
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], AuthorizationTypeBearer) {
		return ""
	}
	return parts[1]
}

// GetUserIDFromContext retrieves the user ID from the Gin context.
// Returns uuid.Nil if not found or not a UUID.
func GetUserIDFromContext(c *gin.Context) uuid.UUID {
	val, exists := c.Get(UserIDKey)
	if !exists {
		return uuid.Nil
	}
	userID, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return userID
}

// GetUserRoleFromContext retrieves the user role from the Gin context.
func GetUserRoleFromContext(c *gin.Context) string {
	val, exists := c.Get(UserRoleKey)
	if !exists {
		return ""
	}
	role, ok := val.(string)
	if !ok {
		return ""
	}
	return role
}

// GetActorFromContext returns the authenticated actor, or false when the request is anonymous.
func GetActorFromContext(c *gin.Context) (Actor, bool) {
	val, exists := c.Get(ActorKey)
	if !exists {
		return Actor{}, false
	}
	actor, ok := val.(Actor)
	if !ok || actor.ID == uuid.Nil {
		return Actor{}, false
	}
	return actor, true
}

// MustActor writes a 401 and returns false when no actor is present.
func MustActor(c *gin.Context) (Actor, bool) {
	actor, ok := GetActorFromContext(c)
	if !ok {
		RespondWithError(c, ErrUnauthorized.WithDetails("User not found in token."))
		return Actor{}, false
	}
	return actor, true
}

// ParseUUIDParam reads a path parameter as a UUID, answering 400 on failure.
func ParseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondWithError(c, ErrBadRequest.WithDetails("Invalid "+strings.ReplaceAll(name, "_", " ")+" format."))
		return uuid.Nil, false
	}
	return id, true
}
