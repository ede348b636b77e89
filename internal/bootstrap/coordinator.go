package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/geocoder89/userservice/internal/db"
	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/geocoder89/userservice/internal/observability"
)

// DatabaseProvisioner checks for and creates the service database through the
// server's maintenance database.
type DatabaseProvisioner interface {
	DatabaseExists(ctx context.Context, name string) (bool, error)
	CreateDatabase(ctx context.Context, name string) error
}

type SchemaMigrator interface {
	RunMigrations(ctx context.Context) error
}

type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
}

type TokenIssuer interface {
	IssueFor(u user.User) (string, error)
}

// Admin describes the seeded administrator and where its token is written.
type Admin struct {
	Email       string
	Password    string
	FullName    string
	DateOfBirth string
	TokenFile   string
}

type Options struct {
	// Provisioner and Migrator are optional; backends without a SQL
	// schema leave them nil.
	Provisioner  DatabaseProvisioner
	DatabaseName string
	Migrator     SchemaMigrator

	Users  user.Directory
	Hasher PasswordHasher
	Tokens TokenIssuer
	Admin  Admin
	Log    *slog.Logger
}

// Coordinator prepares storage and the admin account before the server takes
// traffic. Every step is safe to repeat and to run from several processes.
type Coordinator struct {
	opts Options
	log  *slog.Logger
}

func NewCoordinator(opts Options) *Coordinator {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{opts: opts, log: log}
}

// Run executes every step in order and stops at the first failure.
func (c *Coordinator) Run(ctx context.Context) (user.User, error) {
	ctx, span := observability.StartSpan(ctx, "bootstrap.Run")
	defer span.End()

	if err := c.Prepare(ctx); err != nil {
		return user.User{}, err
	}

	admin, err := c.EnsureAdmin(ctx)
	if err != nil {
		return user.User{}, err
	}

	if err := c.WriteAdminToken(admin); err != nil {
		return user.User{}, err
	}

	return admin, nil
}

// Prepare makes sure the database exists and its schema is current.
func (c *Coordinator) Prepare(ctx context.Context) error {
	if err := c.EnsureDatabase(ctx); err != nil {
		return err
	}

	if c.opts.Migrator == nil {
		return nil
	}

	if err := c.opts.Migrator.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (c *Coordinator) EnsureDatabase(ctx context.Context) error {
	p := c.opts.Provisioner
	if p == nil {
		return nil
	}

	name := c.opts.DatabaseName

	exists, err := p.DatabaseExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check database %q: %w", name, err)
	}
	if exists {
		return nil
	}

	err = p.CreateDatabase(ctx, name)
	switch {
	case err == nil:
		c.log.InfoContext(ctx, "database created", "database", name)
	case errors.Is(err, db.ErrDatabaseExists):
		// another instance created it between the check and the create
		c.log.InfoContext(ctx, "database created concurrently", "database", name)
	default:
		return fmt.Errorf("create database %q: %w", name, err)
	}

	return nil
}

// EnsureAdmin returns the admin account, creating it when absent. A uniqueness
// conflict on insert means a concurrent bootstrap won and the stored record is
// reused.
func (c *Coordinator) EnsureAdmin(ctx context.Context) (user.User, error) {
	a := c.opts.Admin

	existing, err := c.opts.Users.FindByEmail(ctx, a.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, fmt.Errorf("find admin: %w", err)
	}

	dob, err := user.ParseDateOfBirth(a.DateOfBirth)
	if err != nil {
		return user.User{}, fmt.Errorf("admin date of birth %q: %w", a.DateOfBirth, err)
	}

	hash, err := c.opts.Hasher.Hash(ctx, a.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash admin password: %w", err)
	}

	created, err := c.opts.Users.Insert(ctx, user.User{
		FullName:     a.FullName,
		DateOfBirth:  dob,
		Email:        a.Email,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		IsActive:     true,
	})
	switch {
	case err == nil:
		c.log.InfoContext(ctx, "admin user created", "user_id", created.ID, "email", created.Email)
		return created, nil
	case errors.Is(err, user.ErrDuplicateEmail):
		existing, err := c.opts.Users.FindByEmail(ctx, a.Email)
		if err != nil {
			return user.User{}, fmt.Errorf("reload admin: %w", err)
		}
		return existing, nil
	default:
		return user.User{}, fmt.Errorf("insert admin: %w", err)
	}
}

// WriteAdminToken issues a fresh token for admin and overwrites the token
// file with it.
func (c *Coordinator) WriteAdminToken(admin user.User) error {
	token, err := c.opts.Tokens.IssueFor(admin)
	if err != nil {
		return fmt.Errorf("issue admin token: %w", err)
	}

	path := c.opts.Admin.TokenFile
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write admin token: %w", err)
	}

	c.log.Info("admin token written", "path", path)

	return nil
}
