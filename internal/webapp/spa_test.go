package webapp

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRouter(root string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewSPA(root, zap.NewNop()).Register(router)
	return router
}

func get(router *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestSPA_ServesFilesAndFallsBackToIndex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), "<html>app</html>")
	writeFile(t, filepath.Join(root, "assets", "app.js"), "console.log(1)")
	router := newRouter(root)

	w := get(router, "/assets/app.js")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "console.log(1)", w.Body.String())

	for _, target := range []string{"/", "/reports/123", "/schedules?tab=upcoming"} {
		w = get(router, target)
		assert.Equal(t, http.StatusOK, w.Code, target)
		assert.Contains(t, w.Body.String(), "app", target)
	}
}

func TestSPA_MissingIndexIsPlainTextNotFound(t *testing.T) {
	router := newRouter(t.TempDir())

	w := get(router, "/dashboard")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestSPA_APIPathsKeepJSONNotFound(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), "<html>app</html>")
	router := newRouter(root)

	w := get(router, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.NotContains(t, w.Body.String(), "<html>")
}

func TestSPA_TraversalStaysInsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "dist")
	writeFile(t, filepath.Join(root, "index.html"), "<html>app</html>")
	writeFile(t, filepath.Join(parent, "secret.txt"), "secret")
	router := newRouter(root)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/../secret.txt"
	router.ServeHTTP(w, req)
	assert.NotContains(t, w.Body.String(), "secret")
}
