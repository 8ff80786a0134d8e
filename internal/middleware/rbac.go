package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/task-scheduler-api/pkg/errors"
	"github.com/noah-isme/task-scheduler-api/pkg/response"
)

// RequireScope enforces that the authenticated client holds at least one of
// the allowed scopes. It must run after JWT.
func RequireScope(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		for _, scope := range allowed {
			if claims.HasScope(scope) {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
