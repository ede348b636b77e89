package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/userservice/internal/bootstrap"
	"github.com/geocoder89/userservice/internal/clock"
	"github.com/geocoder89/userservice/internal/config"
	"github.com/geocoder89/userservice/internal/db"
	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/geocoder89/userservice/internal/observability"
	"github.com/geocoder89/userservice/internal/redisclient"
	"github.com/geocoder89/userservice/internal/repo/memory"
	"github.com/geocoder89/userservice/internal/repo/postgres"
	"github.com/geocoder89/userservice/internal/repo/redisstore"
)

// store is the directory backend chosen by STORE_DRIVER plus what bootstrap
// and the readiness probe need from it.
type store struct {
	users       user.Directory
	ping        func(ctx context.Context) error
	provisioner bootstrap.DatabaseProvisioner
	migrator    bootstrap.SchemaMigrator
	closers     []func()
}

func (s *store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom, clk clock.Clock, log *slog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		prov, err := db.OpenProvisioner(ctx, cfg.DB.AdminDSN())
		if err != nil {
			return nil, err
		}

		pool, err := db.OpenPool(cfg.DB.DSN(), cfg.DB.MaxConns)
		if err != nil {
			_ = prov.Close(context.Background())
			return nil, fmt.Errorf("open pool: %w", err)
		}

		repo := postgres.NewUsersRepo(pool, prom, clk)

		return &store{
			users:       repo,
			ping:        repo.Ping,
			provisioner: prov,
			migrator:    db.NewMigrator(pool, log),
			closers: []func(){
				pool.Close,
				func() { _ = prov.Close(context.Background()) },
			},
		}, nil

	case "redis":
		rc, err := redisclient.Open(ctx, redisclient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}

		repo := redisstore.NewUsersRepo(rc.Raw(), cfg.Redis.Prefix, prom, clk)

		return &store{
			users:   repo,
			ping:    repo.Ping,
			closers: []func(){func() { _ = rc.Close() }},
		}, nil

	case "memory":
		repo := memory.NewUsersRepo(clk)
		return &store{users: repo, ping: repo.Ping}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
