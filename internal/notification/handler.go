package notification

import (
	"net/http"

	"waste_portal_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.Named("NotificationHandler"),
	}
}

// RegisterRoutes sets up the routes for notification operations.
// All routes in this group are authenticated; staffMW guards creation and deletion.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW, staffMW gin.HandlerFunc) {
	group := router.Group("/notifications", authMW)
	{
		group.GET("", h.getNotifications)
		group.GET("/summary", h.getSummary)
		group.POST("/summary", h.getSummary)
		group.POST("/:notification_id/mark-read", h.markNotificationAsRead)
		group.POST("/mark-all-read", h.markAllNotificationsAsRead)
		group.POST("", staffMW, h.createNotification)
		group.DELETE("/:notification_id", staffMW, h.deleteNotification)
	}
}

func (h *Handler) getNotifications(c *gin.Context) {
	viewer, ok := common.MustActor(c)
	if !ok {
		return
	}
	page, pageSize := common.GetPaginationParams(c)
	unreadOnly := c.Query("unread") == "true"

	notifications, pagination, err := h.service.ListForUser(c.Request.Context(), viewer, unreadOnly, page, pageSize)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Notifications retrieved successfully.", notifications, pagination)
}

// getSummary accepts an optional body of locally read ids on POST.
func (h *Handler) getSummary(c *gin.Context) {
	viewer, ok := common.MustActor(c)
	if !ok {
		return
	}
	var req SummaryRequest
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.RespondWithError(c, common.BindingError(err))
			return
		}
	}
	summary, err := h.service.Summary(c.Request.Context(), viewer, req.LocalReadIDs)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", summary)
}

func (h *Handler) markNotificationAsRead(c *gin.Context) {
	viewer, ok := common.MustActor(c)
	if !ok {
		return
	}
	notificationID, ok := common.ParseUUIDParam(c, "notification_id")
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), viewer, notificationID); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "Notification marked as read successfully.", nil)
}

func (h *Handler) markAllNotificationsAsRead(c *gin.Context) {
	viewer, ok := common.MustActor(c)
	if !ok {
		return
	}
	count, err := h.service.MarkAllRead(c.Request.Context(), viewer)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "All notifications marked as read successfully.", gin.H{"updated": count})
}

func (h *Handler) createNotification(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	n, err := h.service.CreateByStaff(c.Request.Context(), actor, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Notification sent.", n)
}

func (h *Handler) deleteNotification(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "notification_id")
	if !ok {
		return
	}
	if err := h.service.DeleteNotification(c.Request.Context(), actor, id); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondNoContent(c)
}
