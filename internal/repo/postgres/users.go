package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/userservice/internal/clock"
	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/geocoder89/userservice/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const usersEmailConstraint = "users_email_key"

const userColumns = `id, full_name, date_of_birth, email, password_hash, role, is_active, created_at, updated_at`

type UsersRepo struct {
	pool  *pgxpool.Pool
	prom  *observability.Prom
	clock clock.Clock
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom, clk clock.Clock) *UsersRepo {
	if clk == nil {
		clk = clock.System()
	}
	return &UsersRepo{pool: pool, prom: prom, clock: clk}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	// ids are uuids; anything else can never match
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}

	var u user.User
	err := r.observe("users.find_by_id", func() error {
		row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
		return scanUser(row, &u)
	})

	return u, mapNoRows(err)
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.find_by_email", func() error {
		row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
		return scanUser(row, &u)
	})

	return u, mapNoRows(err)
}

func (r *UsersRepo) FindAll(ctx context.Context) ([]user.User, error) {
	var out []user.User

	err := r.observe("users.find_all", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var u user.User
			if err := scanUser(rows, &u); err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	if out == nil {
		out = []user.User{}
	}
	return out, nil
}

func (r *UsersRepo) Insert(ctx context.Context, u user.User) (user.User, error) {
	now := r.clock.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = now
	u.UpdatedAt = now

	var saved user.User
	err := r.observe("users.insert", func() error {
		row := r.pool.QueryRow(ctx, `
			INSERT INTO users (id, full_name, date_of_birth, email, password_hash, role, is_active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING `+userColumns,
			u.ID, u.FullName, u.DateOfBirth, u.Email, u.PasswordHash, string(u.Role), u.IsActive, u.CreatedAt, u.UpdatedAt,
		)
		return duplicateEmail(scanUser(row, &saved))
	})
	if err != nil {
		return user.User{}, err
	}

	return saved, nil
}

// Update writes every mutable column of u. Email and created_at are left alone.
func (r *UsersRepo) Update(ctx context.Context, u user.User) (user.User, error) {
	if _, err := uuid.Parse(u.ID); err != nil {
		return user.User{}, user.ErrNotFound
	}

	u.UpdatedAt = r.clock.Now().UTC()

	var saved user.User
	err := r.observe("users.update", func() error {
		row := r.pool.QueryRow(ctx, `
			UPDATE users
			SET full_name = $2,
				date_of_birth = $3,
				password_hash = $4,
				role = $5,
				is_active = $6,
				updated_at = $7
			WHERE id = $1
			RETURNING `+userColumns,
			u.ID, u.FullName, u.DateOfBirth, u.PasswordHash, string(u.Role), u.IsActive, u.UpdatedAt,
		)
		return scanUser(row, &saved)
	})

	return saved, mapNoRows(err)
}

func scanUser(row pgx.Row, u *user.User) error {
	var role string

	err := row.Scan(
		&u.ID,
		&u.FullName,
		&u.DateOfBirth,
		&u.Email,
		&u.PasswordHash,
		&role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return err
	}

	r, ok := user.ParseRole(role)
	if !ok {
		return fmt.Errorf("user %s has unknown role %q", u.ID, role)
	}
	u.Role = r
	return nil
}

func duplicateEmail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == usersEmailConstraint {
		return user.ErrDuplicateEmail
	}
	return err
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return user.ErrNotFound
	}
	return err
}
