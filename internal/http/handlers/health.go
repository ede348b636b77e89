package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/userservice/internal/clock"
	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/gin-gonic/gin"
)

const serviceName = "User Service API"

type HealthHandler struct {
	ping  func(ctx context.Context) error
	clock clock.Clock
}

// NewHealthHandler builds the probes. A nil ping means there is no external
// dependency to check.
func NewHealthHandler(ping func(ctx context.Context) error, clk clock.Clock) *HealthHandler {
	if clk == nil {
		clk = clock.System()
	}
	return &HealthHandler{ping: ping, clock: clk}
}

// Health is the public status document.
func (h *HealthHandler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"success":   true,
		"status":    "OK",
		"timestamp": h.clock.Now().UTC().Format(user.TimestampLayout),
		"service":   serviceName,
	})
}

func (h *HealthHandler) Healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readyz(ctx *gin.Context) {
	if h.ping != nil {
		cctx, cancel := context.WithTimeout(ctx.Request.Context(), time.Second)
		defer cancel()

		if err := h.ping(cctx); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// NotFound answers every unmatched route.
func NotFound(ctx *gin.Context) {
	RespondNotFound(ctx, "Not found - "+ctx.Request.Method+" "+ctx.Request.URL.RequestURI())
}
