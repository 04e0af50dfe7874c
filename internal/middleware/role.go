package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/trainhub/backend/pkg/response"
)

// RequireRole returns a middleware that rejects callers whose role is not in
// the allowed set. Must run after JWT.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if !allowed[UserRole(c)] {
			response.Forbidden(c, "insufficient role")
			c.Abort()
			return
		}
		c.Next()
	}
}
