// Package redisstore keeps user records in redis.
//
// Layout, all under a configurable prefix:
//
//	<prefix>:user:<id>       JSON record
//	<prefix>:email:<email>   id owning that email, written with the record in one MULTI
//	<prefix>:index           sorted set of ids scored by creation time
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/geocoder89/userservice/internal/clock"
	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/geocoder89/userservice/internal/observability"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const maxUpdateAttempts = 5

// record is the stored shape. It differs from user.User because the hash must
// round-trip through JSON here.
type record struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	DateOfBirth  time.Time `json:"dateOfBirth"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Role         user.Role `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func toRecord(u user.User) record {
	return record(u)
}

func (r record) user() user.User {
	return user.User(r)
}

// getter is satisfied by both *redis.Client and the *redis.Tx handed to Watch.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type UsersRepo struct {
	rdb    *redis.Client
	prefix string
	prom   *observability.Prom
	clock  clock.Clock
}

func NewUsersRepo(rdb *redis.Client, prefix string, prom *observability.Prom, clk clock.Clock) *UsersRepo {
	if prefix == "" {
		prefix = "users"
	}
	if clk == nil {
		clk = clock.System()
	}
	return &UsersRepo{rdb: rdb, prefix: prefix, prom: prom, clock: clk}
}

func (r *UsersRepo) userKey(id string) string     { return r.prefix + ":user:" + id }
func (r *UsersRepo) emailKey(email string) string { return r.prefix + ":email:" + email }
func (r *UsersRepo) indexKey() string             { return r.prefix + ":index" }

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.find_by_id", func() error {
		var err error
		u, err = r.get(ctx, r.rdb, id)
		return err
	})

	return u, notFound(err)
}

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.find_by_email", func() error {
		id, err := r.rdb.Get(ctx, r.emailKey(email)).Result()
		if err != nil {
			return err
		}
		u, err = r.get(ctx, r.rdb, id)
		return err
	})

	return u, notFound(err)
}

func (r *UsersRepo) FindAll(ctx context.Context) ([]user.User, error) {
	out := []user.User{}

	err := r.prom.ObserveDB("users.find_all", func() error {
		ids, err := r.rdb.ZRange(ctx, r.indexKey(), 0, -1).Result()
		if err != nil || len(ids) == 0 {
			return err
		}

		keys := make([]string, len(ids))
		for i, id := range ids {
			keys[i] = r.userKey(id)
		}

		vals, err := r.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return err
		}

		for _, v := range vals {
			s, ok := v.(string)
			if !ok {
				// index entry without a record: half-written insert
				continue
			}
			var rec record
			if err := json.Unmarshal([]byte(s), &rec); err != nil {
				return err
			}
			out = append(out, rec.user())
		}
		return nil
	})
	if err != nil {
		return nil, err
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

	err := r.prom.ObserveDB("users.insert", func() error {
		b, err := json.Marshal(toRecord(u))
		if err != nil {
			return err
		}

		emailKey := r.emailKey(u.Email)

		for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
			err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
				owner, err := tx.Get(ctx, emailKey).Result()
				switch {
				case err == nil:
					// a claim without a record is stale and can be taken over
					n, err := tx.Exists(ctx, r.userKey(owner)).Result()
					if err != nil {
						return err
					}
					if n > 0 {
						return user.ErrDuplicateEmail
					}
				case !errors.Is(err, redis.Nil):
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					if owner != "" {
						pipe.ZRem(ctx, r.indexKey(), owner)
					}
					pipe.Set(ctx, emailKey, u.ID, 0)
					pipe.Set(ctx, r.userKey(u.ID), b, 0)
					pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: u.ID})
					return nil
				})
				return err
			}, emailKey)

			if errors.Is(err, redis.TxFailedErr) {
				continue
			}
			return err
		}
		return redis.TxFailedErr
	})
	if err != nil {
		return user.User{}, err
	}

	return u, nil
}

// Update replaces the mutable fields of the stored record under WATCH so a
// concurrent writer to the same key forces a retry instead of a torn write.
func (r *UsersRepo) Update(ctx context.Context, u user.User) (user.User, error) {
	var saved user.User

	err := r.prom.ObserveDB("users.update", func() error {
		key := r.userKey(u.ID)

		for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
			err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
				cur, err := r.get(ctx, tx, u.ID)
				if err != nil {
					return err
				}

				next := u
				next.Email = cur.Email
				next.CreatedAt = cur.CreatedAt
				next.UpdatedAt = r.clock.Now().UTC()

				b, err := json.Marshal(toRecord(next))
				if err != nil {
					return err
				}

				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, b, 0)
					return nil
				})
				if err == nil {
					saved = next
				}
				return err
			}, key)

			if errors.Is(err, redis.TxFailedErr) {
				continue
			}
			return err
		}
		return redis.TxFailedErr
	})

	return saved, notFound(err)
}

func (r *UsersRepo) get(ctx context.Context, c getter, id string) (user.User, error) {
	s, err := c.Get(ctx, r.userKey(id)).Result()
	if err != nil {
		return user.User{}, err
	}

	var rec record
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return user.User{}, err
	}
	return rec.user(), nil
}

func notFound(err error) error {
	if errors.Is(err, redis.Nil) {
		return user.ErrNotFound
	}
	return err
}
