// File: internal/schedule/handler.go
package schedule

import (
	"context"

	"waste_portal_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger.Named("ScheduleHandler")}
}

// RegisterRoutes mounts /schedules. Reads are open to any signed-in user;
// staffMW guards writes, and the service checks the actor again.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW, staffMW gin.HandlerFunc) {
	group := router.Group("/schedules", authMW)
	{
		group.GET("", h.list)
		group.GET("/:id", h.get)
		group.POST("", staffMW, h.create)
		group.PATCH("/:id", staffMW, h.update)
		group.POST("/:id/complete", staffMW, h.complete)
		group.POST("/:id/cancel", staffMW, h.cancel)
		group.DELETE("/:id", staffMW, h.delete)
	}
}

func (h *Handler) list(c *gin.Context) {
	var filter ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	page, pageSize := common.GetPaginationParams(c)
	items, pagination, err := h.service.ListSchedules(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Pickup schedules retrieved successfully.", ToScheduleResponses(items), pagination)
}

func (h *Handler) get(c *gin.Context) {
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	sched, err := h.service.GetSchedule(c.Request.Context(), id)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "", ToScheduleResponse(sched))
}

func (h *Handler) create(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	sched, err := h.service.CreateSchedule(c.Request.Context(), actor, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Pickup scheduled.", ToScheduleResponse(sched))
}

func (h *Handler) update(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	sched, err := h.service.UpdateSchedule(c.Request.Context(), actor, id, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Pickup schedule updated.", ToScheduleResponse(sched))
}

func (h *Handler) complete(c *gin.Context) {
	h.changeStatus(c, h.service.CompleteSchedule, "Pickup marked as completed.")
}

func (h *Handler) cancel(c *gin.Context) {
	h.changeStatus(c, h.service.CancelSchedule, "Pickup canceled.")
}

type statusChange func(ctx context.Context, actor common.Actor, id uuid.UUID) (*PickupSchedule, error)

func (h *Handler) changeStatus(c *gin.Context, change statusChange, message string) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	sched, err := change(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, message, ToScheduleResponse(sched))
}

func (h *Handler) delete(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	id, ok := common.ParseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteSchedule(c.Request.Context(), actor, id); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondNoContent(c)
}
