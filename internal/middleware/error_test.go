package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"waste_portal_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestErrorHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(zap.NewNop()))
	r.GET("/api", func(c *gin.Context) { _ = c.Error(common.ErrConflict) })
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("db down")) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	cases := map[string]int{"/api": http.StatusConflict, "/boom": http.StatusInternalServerError, "/missing": http.StatusNotFound}
	for path, want := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json", path)
	}
}
