package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET,POST,PATCH,OPTIONS"
	corsHeaders = "Authorization,Content-Type,X-Request-Id,If-None-Match"
	corsExpose  = "ETag,X-Request-Id"
)

// CORSMiddleware echoes allowed origins. "*" admits any origin but then
// credentials are not advertised.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	anyOrigin := false

	for _, origin := range allowedOrigins {
		if origin == "*" {
			anyOrigin = true
			continue
		}
		allowed[origin] = struct{}{}
	}

	return func(ctx *gin.Context) {
		origin := ctx.GetHeader("Origin")
		if origin != "" {
			ctx.Writer.Header().Add("Vary", "Origin")

			_, listed := allowed[origin]
			if listed || anyOrigin {
				ctx.Header("Access-Control-Allow-Origin", origin)
				if listed {
					ctx.Header("Access-Control-Allow-Credentials", "true")
				}
				ctx.Header("Access-Control-Allow-Methods", corsMethods)
				ctx.Header("Access-Control-Allow-Headers", corsHeaders)
				ctx.Header("Access-Control-Expose-Headers", corsExpose)
			}
		}

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}
