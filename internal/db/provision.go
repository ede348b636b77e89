package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDatabaseExists is returned by CreateDatabase when another creator got
// there first.
var ErrDatabaseExists = errors.New("database already exists")

const duplicateDatabase = "42P04"

// Provisioner talks to the server's administrative database, never the
// target one, so it works before the target exists.
type Provisioner struct {
	conn *pgx.Conn
}

func OpenProvisioner(ctx context.Context, adminDSN string) (*Provisioner, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		return nil, fmt.Errorf("connect admin database: %w", err)
	}

	return &Provisioner{conn: conn}, nil
}

func (p *Provisioner) Close(ctx context.Context) error {
	return p.conn.Close(ctx)
}

func (p *Provisioner) DatabaseExists(ctx context.Context, name string) (bool, error) {
	var exists bool

	err := p.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, name,
	).Scan(&exists)

	return exists, err
}

func (p *Provisioner) CreateDatabase(ctx context.Context, name string) error {
	// CREATE DATABASE takes no bind parameters
	_, err := p.conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize())

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == duplicateDatabase {
		return ErrDatabaseExists
	}

	return err
}
