package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.POST("/api/v1/schedules", func(c *gin.Context) {
		c.Header("X-Schedule-Status", "OPTIMAL")
		c.Status(http.StatusOK)
	})
	return r
}

func preflight(r *gin.Engine, origin, method string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/schedules", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", method)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	r.ServeHTTP(w, req)
	return w
}

func TestPreflightIsShortCircuited(t *testing.T) {
	w := preflight(newRouter("https://planner.example/"), "https://planner.example", http.MethodPost)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://planner.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Request-ID")
}

func TestPreflightRefusesUnservedMethodsAndOrigins(t *testing.T) {
	r := newRouter("https://planner.example")

	assert.Equal(t, http.StatusForbidden, preflight(r, "https://planner.example", http.MethodDelete).Code)

	w := preflight(r, "https://evil.example", http.MethodPost)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestScheduleHeadersAreExposed(t *testing.T) {
	r := newRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules", nil)
	req.Header.Set("Origin", "https://any.example")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://any.example", w.Header().Get("Access-Control-Allow-Origin"))
	exposed := w.Header().Get("Access-Control-Expose-Headers")
	for _, header := range []string{"X-Schedule-Status", "X-Schedule-Run-Id", "Content-Disposition"} {
		assert.Contains(t, exposed, header)
	}
	assert.Equal(t, "OPTIMAL", w.Header().Get("X-Schedule-Status"))
}

func TestUnknownOriginIsNotAllowed(t *testing.T) {
	r := newRouter("https://planner.example")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/schedules", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
