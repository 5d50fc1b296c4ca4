// File: internal/webapp/spa.go
package webapp

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"waste_portal_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const indexFile = "index.html"

// apiPrefixes keep their JSON 404s instead of falling through to the SPA.
var apiPrefixes = []string{"/api/", "/uploads/", "/metrics", "/health"}

// SPA serves the built single-page app from root, falling back to index.html
// so client-side routes survive a reload.
type SPA struct {
	root   string
	logger *zap.Logger
}

func NewSPA(root string, logger *zap.Logger) *SPA {
	return &SPA{root: root, logger: logger.Named("SPA")}
}

// Register installs the SPA as the router's NoRoute handler.
func (s *SPA) Register(router *gin.Engine) {
	router.NoRoute(s.Handle)
}

func (s *SPA) Handle(c *gin.Context) {
	reqPath := c.Request.URL.Path
	if isAPIPath(reqPath) || (c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead) {
		common.RespondWithError(c, common.ErrNotFound.WithDetails("Route not found."))
		return
	}

	if file, ok := s.resolve(reqPath); ok {
		c.File(file)
		return
	}

	index := filepath.Join(s.root, indexFile)
	if !isFile(index) {
		s.logger.Debug("SPA entry point missing", zap.String("path", index))
		c.Data(http.StatusNotFound, "text/plain; charset=utf-8", []byte("404 page not found"))
		return
	}
	c.File(index)
}

// resolve maps a URL path onto a regular file under root. Cleaning against "/"
// first keeps ".." segments from escaping the root.
func (s *SPA) resolve(urlPath string) (string, bool) {
	cleaned := path.Clean("/" + urlPath)
	if cleaned == "/" {
		return "", false
	}
	full := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))
	if !isFile(full) {
		return "", false
	}
	return full, true
}

func isAPIPath(p string) bool {
	for _, prefix := range apiPrefixes {
		if strings.HasPrefix(p, prefix) || p == strings.TrimSuffix(prefix, "/") {
			return true
		}
	}
	return false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
