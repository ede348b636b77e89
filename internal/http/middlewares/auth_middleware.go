package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/userservice/internal/actorctx"
	"github.com/geocoder89/userservice/internal/auth"
	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/geocoder89/userservice/internal/observability"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// UserFinder re-reads the caller on every request so status changes apply
// before the token expires.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenVerifier
	users UserFinder
	prom  *observability.Prom
	log   *slog.Logger
}

func NewAuthMiddleware(jwt TokenVerifier, users UserFinder, prom *observability.Prom, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{jwt: jwt, users: users, prom: prom, log: log}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			m.prom.AuthResult("identify", "missing_token")
			AbortWithError(c, http.StatusUnauthorized, "unauthorized", "Access denied. No token provided.")
			return
		}

		claims, err := m.jwt.VerifyToken(raw)
		if err != nil {
			m.prom.AuthResult("identify", "invalid_token")
			AbortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid token.")
			return
		}

		current, err := m.users.FindByID(c.Request.Context(), claims.UserID)
		switch {
		case errors.Is(err, user.ErrNotFound):
			m.prom.AuthResult("identify", "unknown_user")
			AbortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid token or user is blocked.")
			return
		case err != nil:
			m.log.ErrorContext(c.Request.Context(), "identify user", "err", err, "user_id", claims.UserID)
			AbortWithError(c, http.StatusServiceUnavailable, "service_unavailable", "Service temporarily unavailable.")
			return
		}

		if !current.IsActive {
			m.prom.AuthResult("identify", "blocked")
			AbortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid token or user is blocked.")
			return
		}

		m.prom.AuthResult("identify", "ok")

		// role and status come from the directory, never from the token
		current.PasswordHash = ""
		c.Set(ctxUserKey, current)
		c.Request = c.Request.WithContext(actorctx.WithUser(c.Request.Context(), current))

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// CurrentUser returns the identity attached by RequireAuth.
func CurrentUser(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}
