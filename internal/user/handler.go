// File: internal/user/handler.go
package user

import (
	"waste_portal_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for profile handlers.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new profile handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.Named("ProfileHandler"),
	}
}

// RegisterRoutes sets up the owner routes and the admin directory.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW gin.HandlerFunc, adminMW gin.HandlerFunc) {
	profiles := router.Group("/profiles")
	profiles.Use(authMW)
	{
		profiles.GET("/me", h.getMe)
		profiles.PATCH("/me", h.updateMe)
		profiles.PUT("/me/password", h.changePassword)
		profiles.DELETE("/me", h.DeleteMe)
		profiles.GET("/:id", h.getProfile)
	}

	admin := router.Group("/admin/profiles")
	admin.Use(authMW, adminMW)
	{
		admin.GET("", h.listProfiles)
		admin.PATCH("/:id/role", h.updateRole)
		admin.PATCH("/:id/status", h.setActive)
		admin.POST("/:id/sign-out", h.signOutUser)
		admin.DELETE("/:id", h.deleteProfile)
	}
}

// GetMe is shared with the auth routes.
func (h *Handler) GetMe(c *gin.Context) { h.getMe(c) }

func (h *Handler) getMe(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(c.Request.Context(), actor, actor.ID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Profile retrieved successfully.", ToProfileResponse(profile))
}

func (h *Handler) getProfile(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Profile retrieved successfully.", ToProfileResponse(profile))
}

func (h *Handler) updateMe(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	profile, err := h.service.UpdateOwnProfile(c.Request.Context(), actor, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Profile updated successfully.", ToProfileResponse(profile))
}

func (h *Handler) changePassword(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	if err := h.service.ChangePassword(c.Request.Context(), actor, req); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Password changed. Please sign in again.", nil)
}

// DeleteMe is the delete_user operation; the auth routes alias it.
func (h *Handler) DeleteMe(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	if err := h.service.DeleteOwnAccount(c.Request.Context(), actor); err != nil {
		h.logger.Warn("Account deletion failed", zap.Error(err), zap.String("profileID", actor.ID.String()))
		common.RespondWithError(c, err)
		return
	}
	common.RespondNoContent(c)
}

func (h *Handler) listProfiles(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	page, pageSize := common.GetPaginationParams(c)

	profiles, pagination, err := h.service.ListProfiles(c.Request.Context(), actor, filter, page, pageSize)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	out := make([]ProfileResponse, 0, len(profiles))
	for i := range profiles {
		out = append(out, ToProfileResponse(&profiles[i]))
	}
	common.RespondPaginated(c, "Profiles retrieved successfully.", out, pagination)
}

func (h *Handler) updateRole(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	profile, err := h.service.UpdateRole(c.Request.Context(), actor, id, req.Role)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Role updated successfully.", ToProfileResponse(profile))
}

func (h *Handler) setActive(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	profile, err := h.service.SetActive(c.Request.Context(), actor, id, *req.IsActive)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Status updated successfully.", ToProfileResponse(profile))
}

func (h *Handler) signOutUser(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.SignOutUser(c.Request.Context(), actor, id); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User signed out from every device.", nil)
}

func (h *Handler) deleteProfile(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteProfile(c.Request.Context(), actor, id); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondNoContent(c)
}
