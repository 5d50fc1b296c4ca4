// File: internal/middleware/auth.go
package middleware

import (
	"context"

	"waste_portal_backend/internal/common"
	"waste_portal_backend/internal/shared"
	"waste_portal_backend/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// accessTokenQueryParam lets EventSource clients, which cannot set headers, authenticate.
const accessTokenQueryParam = "access_token"

// ProfileLoader loads the current profile for a token subject.
type ProfileLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.Profile, error)
}

// AuthMiddleware validates the bearer token and loads the caller's profile.
// The role comes from the profile row so role edits apply on the next request.
func AuthMiddleware(tokenService shared.TokenService, blocklist shared.TokenBlocklist, profiles ProfileLoader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := common.GetTokenFromContext(c)
		if tokenString == "" {
			tokenString = c.Query(accessTokenQueryParam)
		}
		if tokenString == "" {
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Authorization header is required."))
			return
		}

		claims, err := tokenService.ValidateToken(tokenString)
		if err != nil {
			logger.Debug("Token validation failed", zap.Error(err))
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Invalid or expired token."))
			return
		}

		ctx := c.Request.Context()
		blocked, err := blocklist.IsBlocked(ctx, claims.ID)
		if err != nil {
			logger.Error("Blocklist lookup failed", zap.Error(err))
			common.RespondWithError(c, common.ErrServiceUnavailable)
			return
		}
		if blocked {
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Token has been revoked."))
			return
		}

		profile, err := profiles.GetByID(ctx, claims.UserID)
		if err != nil {
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Account no longer exists."))
			return
		}
		if profile.TokenVersion != claims.Version {
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Session has been revoked. Please sign in again."))
			return
		}
		if !profile.IsActive {
			common.RespondWithError(c, common.ErrAccountInactive)
			return
		}

		c.Set(common.UserIDKey, profile.ID)
		c.Set(common.UserRoleKey, profile.Role)
		c.Set(common.ActorKey, profile.Actor())
		c.Set(common.TokenClaimsKey, claims)
		c.Next()
	}
}

// RoleAuthMiddleware lets the request through only for the listed roles.
func RoleAuthMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := common.GetActorFromContext(c)
		if !ok {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("User role not found in context."))
			return
		}
		if !actor.Can(allowedRoles...) {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("You do not have sufficient permissions for this resource."))
			return
		}
		c.Next()
	}
}
