// Command prepare creates the service database if needed and applies pending
// migrations, then exits.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/geocoder89/userservice/internal/bootstrap"
	"github.com/geocoder89/userservice/internal/config"
	"github.com/geocoder89/userservice/internal/db"
	"github.com/geocoder89/userservice/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	if err := run(cfg, log); err != nil {
		log.Error("prepare failed", "err", err)
		os.Exit(1)
	}

	log.Info("database ready", "database", cfg.DB.Name)
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, cancel := config.WithTimeout(2 * time.Minute)
	defer cancel()

	prov, err := db.OpenProvisioner(ctx, cfg.DB.AdminDSN())
	if err != nil {
		return err
	}
	defer prov.Close(ctx)

	coord := bootstrap.NewCoordinator(bootstrap.Options{
		Provisioner:  prov,
		DatabaseName: cfg.DB.Name,
		Log:          log,
	})
	if err := coord.EnsureDatabase(ctx); err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DB.DSN(), 2)
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.DB.Name, err)
	}
	defer pool.Close()

	return db.NewMigrator(pool, log).RunMigrations(ctx)
}
