// File: internal/realtime/handler.go
package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"waste_portal_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const keepAliveInterval = 15 * time.Second

var streamableTables = []string{TableNotifications, TableReports, TableSchedules, TableSession}

// Handler serves the change feed as Server-Sent Events.
type Handler struct {
	hub       *Hub
	logger    *zap.Logger
	keepAlive time.Duration
}

func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, logger: logger.Named("RealtimeHandler"), keepAlive: keepAliveInterval}
}

// RegisterRoutes sets up the stream under /realtime.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW gin.HandlerFunc) {
	rt := router.Group("/realtime", authMW)
	rt.GET("/stream", h.stream)
}

// ViewerFilter limits the feed to rows the actor may see.
func ViewerFilter(actor common.Actor, tables map[string]bool) Filter {
	return func(ev ChangeEvent) bool {
		if len(tables) > 0 && !tables[ev.Table] {
			return false
		}
		switch ev.Table {
		case TableNotifications:
			return ev.ForAll || (ev.UserID != nil && *ev.UserID == actor.ID)
		case TableReports:
			return actor.IsStaff() || (ev.UserID != nil && *ev.UserID == actor.ID)
		case TableSchedules:
			return true
		case TableSession:
			return ev.UserID != nil && *ev.UserID == actor.ID
		default:
			return false
		}
	}
}

func parseTables(raw string) (map[string]bool, error) {
	tables := map[string]bool{}
	if strings.TrimSpace(raw) == "" {
		return tables, nil
	}
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		known := false
		for _, s := range streamableTables {
			if s == t {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown table %q", t)
		}
		tables[t] = true
	}
	return tables, nil
}

func (h *Handler) stream(c *gin.Context) {
	actor, ok := common.MustActor(c)
	if !ok {
		return
	}
	tables, err := parseTables(c.Query("tables"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		common.RespondWithError(c, common.ErrInternalServer.WithDetails("Streaming unsupported."))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sub := h.hub.Subscribe(ViewerFilter(actor, tables))
	defer h.hub.Unsubscribe(sub)

	ready, _ := json.Marshal(gin.H{"user_id": actor.ID, "tables": keys(tables)})
	fmt.Fprintf(c.Writer, "event: ready\ndata: %s\n\n", ready)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("Failed to encode change event", zap.Error(err))
				continue
			}
			fmt.Fprintf(c.Writer, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func keys(m map[string]bool) []string {
	if len(m) == 0 {
		return streamableTables
	}
	out := make([]string, 0, len(m))
	for _, t := range streamableTables {
		if m[t] {
			out = append(out, t)
		}
	}
	return out
}
