package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Headers browsers may read from scheduling responses. Export downloads need
// Content-Disposition for the filename; the schedule headers carry the solve
// status and run id alongside bare legacy bodies.
var exposedHeaders = strings.Join([]string{
	"X-Request-ID",
	"X-Schedule-Status",
	"X-Schedule-Run-Id",
	"Content-Disposition",
}, ", ")

var allowedMethods = map[string]struct{}{
	http.MethodGet:  {},
	http.MethodPost: {},
}

// New returns CORS middleware for the scheduling API. An empty origin list
// allows every origin. Preflights from unlisted origins or for methods the
// API does not serve are refused with 403.
func New(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	originSet := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originSet[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := allowAll || hasOrigin(originSet, origin)
		h := c.Writer.Header()
		switch {
		case origin != "" && allowed:
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		case origin == "" && allowAll:
			h.Set("Access-Control-Allow-Origin", "*")
		}
		h.Set("Vary", "Origin")
		h.Set("Access-Control-Expose-Headers", exposedHeaders)

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}

		if _, ok := allowedMethods[c.GetHeader("Access-Control-Request-Method")]; origin != "" && (!allowed || !ok) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept, X-Requested-With, X-Request-ID")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Max-Age", "600")
		c.AbortWithStatus(http.StatusNoContent)
	}
}

func hasOrigin(originSet map[string]struct{}, origin string) bool {
	_, ok := originSet[strings.TrimRight(origin, "/")]
	return ok
}
