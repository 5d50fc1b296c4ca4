package realtime

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"waste_portal_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var name string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "event: ") {
			name = strings.TrimPrefix(line, "event: ")
		}
		if line == "" && name != "" {
			return name
		}
	}
}

func TestHandler_StreamDeliversVisibleChanges(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop())
	h := NewHandler(hub, zap.NewNop())

	viewer := uuid.New()
	fakeAuth := func(c *gin.Context) {
		c.Set(common.ActorKey, common.Actor{ID: viewer, Role: common.RoleResident})
		c.Next()
	}
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"), fakeAuth)

	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/realtime/stream?tables=notifications", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, "ready", readEvent(t, reader))

	other := uuid.New()
	hub.Broadcast(NewEvent(TableNotifications, EventInsert, uuid.New(), &other))
	hub.Broadcast(NewEvent(TableNotifications, EventInsert, uuid.New(), &viewer))

	assert.Equal(t, "change", readEvent(t, reader))
}

func TestHandler_RejectsUnknownTable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewHub(zap.NewNop()), zap.NewNop())
	router := gin.New()
	h.RegisterRoutes(router.Group("/api/v1"), func(c *gin.Context) {
		c.Set(common.ActorKey, common.Actor{ID: uuid.New(), Role: common.RoleAdmin})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/realtime/stream?tables=profiles", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
