package middlewares

import (
	"net/http"

	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireRole admits callers whose current role is one of roles. It must run
// after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := CurrentUser(c)
		if !ok {
			AbortWithError(c, http.StatusUnauthorized, "unauthorized", "Access denied. No token provided.")
			return
		}

		if !current.Role.In(roles...) {
			m.prom.AuthResult("authorize", "forbidden")
			AbortWithError(c, http.StatusForbidden, "forbidden", "Access denied. Insufficient permissions.")
			return
		}
		c.Next()
	}
}
