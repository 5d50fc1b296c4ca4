// File: internal/analytics/handler.go
package analytics

import (
	"waste_portal_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger.Named("AnalyticsHandler")}
}

func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW, staffMW gin.HandlerFunc) {
	group := router.Group("/analytics", authMW, staffMW)
	{
		group.GET("/summary", h.summary)
	}
}

func (h *Handler) summary(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), actor)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Analytics summary retrieved successfully.", summary)
}
