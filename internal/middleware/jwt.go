package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/task-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/task-scheduler-api/pkg/errors"
	"github.com/noah-isme/task-scheduler-api/pkg/response"
)

// ContextClientKey is the gin context key storing token claims.
const ContextClientKey = "currentClient"

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	ValidateToken(token string) (*models.TokenClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := verifier.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextClientKey, claims)
		c.Next()
	}
}

// ClaimsFromContext returns the claims attached by JWT, if any.
func ClaimsFromContext(c *gin.Context) *models.TokenClaims {
	value, exists := c.Get(ContextClientKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.TokenClaims)
	return claims
}
