package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/userservice/internal/db/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"github.com/pressly/goose/v3/lock"
)

// Migrator applies the embedded goose migrations. A postgres advisory lock
// keeps concurrently starting instances from applying the same version twice.
type Migrator struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewMigrator(pool *pgxpool.Pool, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{pool: pool, log: log}
}

func (m *Migrator) RunMigrations(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(m.pool)
	defer sqlDB.Close()

	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return fmt.Errorf("migration locker: %w", err)
	}

	provider, err := goose.NewProvider(database.DialectPostgres, sqlDB, migrations.FS,
		goose.WithSessionLocker(locker),
	)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	for _, r := range results {
		m.log.InfoContext(ctx, "migration applied",
			"version", r.Source.Version,
			"path", r.Source.Path,
			"duration_ms", r.Duration.Milliseconds(),
		)
	}

	return nil
}
