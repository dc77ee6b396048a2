package gateway

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStaticDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.Mkdir(filepath.Join(dir, "assets"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app-4f2a.css"), []byte("body { color: red; }"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "logo.svg"), []byte("<svg></svg>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "help.html"), []byte("<html>help</html>"), 0644))

	return dir
}

func TestServeStatic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := newStaticDir(t)

	tests := []struct {
		name          string
		path          string
		wantStatus    int
		wantBody      string
		wantCacheCtrl string
	}{
		{
			name:          "hashed asset cached long-term",
			path:          "/assets/app-4f2a.css",
			wantStatus:    http.StatusOK,
			wantBody:      "color: red",
			wantCacheCtrl: "public, max-age=31536000, immutable",
		},
		{
			name:          "html always revalidated",
			path:          "/help.html",
			wantStatus:    http.StatusOK,
			wantBody:      "help",
			wantCacheCtrl: "no-cache, must-revalidate",
		},
		{
			name:          "other files cached with revalidation",
			path:          "/logo.svg",
			wantStatus:    http.StatusOK,
			wantBody:      "<svg>",
			wantCacheCtrl: "public, max-age=3600, must-revalidate",
		},
		{
			name:       "missing file is a 404, not an index fallback",
			path:       "/missing.css",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.NoRoute(serveStatic(dir))

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
			if tt.wantCacheCtrl != "" {
				assert.Equal(t, tt.wantCacheCtrl, w.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestServeStaticAPIPathsGetJSONEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.NoRoute(serveStatic(newStaticDir(t)))

	for _, path := range []string{"/api", "/api/", "/api/unknown/thing"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.JSONEq(t, `{"error": "route not found", "code": "NOT_FOUND"}`, w.Body.String(), path)
	}
}

func TestServeStaticWithoutDirectory(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.NoRoute(serveStatic(""))

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeStaticDoesNotShadowAPIFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	// Even a static file placed under api/ must not leak past the JSON 404;
	// the /api namespace belongs to the controllers alone.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "api"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "api", "secrets.txt"), []byte("nope"), 0644))

	router := gin.New()
	router.NoRoute(serveStatic(dir))

	req := httptest.NewRequest(http.MethodGet, "/api/secrets.txt", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "nope")
}
