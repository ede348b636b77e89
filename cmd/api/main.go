package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/userservice/internal/auth"
	"github.com/geocoder89/userservice/internal/bootstrap"
	"github.com/geocoder89/userservice/internal/clock"
	"github.com/geocoder89/userservice/internal/config"
	httpx "github.com/geocoder89/userservice/internal/http"
	"github.com/geocoder89/userservice/internal/observability"
	"github.com/geocoder89/userservice/internal/security"
	"github.com/geocoder89/userservice/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const bootstrapTimeout = 60 * time.Second

func main() {
	// Load the config set up
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("api exited", "err", err)
		os.Exit(1)
	}
}

// run owns every resource it opens, so each return path releases them.
func run(cfg config.Config, log *slog.Logger) error {
	shutdownTracer, err := observability.InitTracer(context.Background(), observability.TracerConfig{
		ServiceName: "user-service",
		Env:         cfg.Env,
		Endpoint:    cfg.OTELEndpoint,
	})
	if err != nil {
		return fmt.Errorf("tracer init: %w", err)
	}
	defer func() {
		ctx, cancel := config.WithTimeout(2 * time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)
	clk := clock.System()

	bootCtx, cancelBoot := config.WithTimeout(bootstrapTimeout)
	defer cancelBoot()

	st, err := openStore(bootCtx, cfg, prom, clk, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer st.Close()

	hasher := security.NewPasswordHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency)
	jwtManager := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL, clk)

	coord := bootstrap.NewCoordinator(bootstrap.Options{
		Provisioner:  st.provisioner,
		DatabaseName: cfg.DB.Name,
		Migrator:     st.migrator,
		Users:        st.users,
		Hasher:       hasher,
		Tokens:       jwtManager,
		Admin: bootstrap.Admin{
			Email:       cfg.Admin.Email,
			Password:    cfg.Admin.Password,
			FullName:    cfg.Admin.FullName,
			DateOfBirth: cfg.Admin.DateOfBirth,
			TokenFile:   cfg.Admin.TokenFile,
		},
		Log: log,
	})

	if _, err := coord.Run(bootCtx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	cancelBoot()

	users := service.NewUserService(st.users, hasher, jwtManager, prom, log)

	// set up routers with the log
	router := httpx.NewRouter(httpx.RouterDeps{
		Env:            cfg.Env,
		Log:            log,
		Prom:           prom,
		Clock:          clk,
		Gather:         reg,
		Users:          users,
		Verifier:       jwtManager,
		Finder:         st.users,
		Ping:           st.ping,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		CORSOrigins:    cfg.CORSOrigins,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var failed error
	select {
	case <-stop:
		log.Info("server shutting down")
	case failed = <-serveErr:
		log.Error("server failed", "err", failed)
	}

	ctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	} else {
		log.Info("shutdown complete")
	}

	return failed
}
