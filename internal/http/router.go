package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/userservice/internal/clock"
	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/geocoder89/userservice/internal/http/handlers"
	"github.com/geocoder89/userservice/internal/http/middlewares"
	"github.com/geocoder89/userservice/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const tracerService = "user-service"

type RouterDeps struct {
	Env    string
	Log    *slog.Logger
	Prom   *observability.Prom
	Clock  clock.Clock
	Gather prometheus.Gatherer

	Users    handlers.UserService
	Verifier middlewares.TokenVerifier
	Finder   middlewares.UserFinder
	Ping     func(ctx context.Context) error

	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSOrigins    []string
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(tracerService))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	if d.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))
	}
	r.Use(middlewares.Timeout(d.RequestTimeout))

	// health
	h := handlers.NewHealthHandler(d.Ping, d.Clock)
	r.GET("/health", h.Health)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gather != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gather, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Verifier, d.Finder, d.Prom, d.Log)
	usersHandler := handlers.NewUsersHandler(d.Users, d.Log)

	api := r.Group("/api/users")
	api.Use(middlewares.RequireJSON())

	api.POST("/register", usersHandler.Register)
	api.POST("/login", usersHandler.Login)

	authed := api.Group("")
	authed.Use(authMW.RequireAuth())
	{
		// static segments are matched before :id
		authed.GET("/profile", usersHandler.Profile)
		authed.GET("", authMW.RequireRole(user.RoleAdmin), usersHandler.List)
		authed.GET("/:id", usersHandler.GetUser)
		authed.PATCH("/:id/block", usersHandler.Block)
	}

	r.NoRoute(handlers.NotFound)

	return r
}
