package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

// ObserveDB times fn under the logical op name. Safe on a nil receiver.
func (p *Prom) ObserveDB(op string, fn func() error) error {
	if p == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	status := "ok"

	switch {
	case err == nil:
	case isMiss(err):
		status = "miss"
	default:
		status = "error"
		p.DbErrorsTotal.WithLabelValues(op, ClassifyDBErr(err)).Inc()
	}
	p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	return err
}

// isMiss reports lookups that found nothing and inserts that hit the email
// constraint. Both are normal answers, not storage failures.
func isMiss(err error) bool {
	return errors.Is(err, user.ErrNotFound) ||
		errors.Is(err, user.ErrDuplicateEmail) ||
		errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, redis.Nil)
}

// ClassifyDBErr maps a storage error onto a low-cardinality label.
func ClassifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "42P04":
			return "duplicate_database"
		case "3D000":
			return "invalid_catalog"
		case "40001":
			return "serialization_failure"
		case "40P01":
			return "deadlock"
		case "57014":
			return "query_canceled"
		default:
			return "pg_" + pgErr.Code
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, redis.TxFailedErr):
		return "tx_conflict"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection"):
		return "connection"
	default:
		return "unknown"
	}
}
