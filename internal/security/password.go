package security

import (
	"context"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost is the bcrypt work factor for stored credentials.
const DefaultCost = 12

// CheckPassword compares a bcrypt hash with a plaintext password. It only
// reports true for a well-formed hash that matches; malformed hashes are a
// mismatch.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

func hashWithCost(plain string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// PasswordHasher runs bcrypt with a bounded number of concurrent operations so
// a burst of logins cannot occupy every CPU.
type PasswordHasher struct {
	cost int
	sem  *semaphore.Weighted
}

func NewPasswordHasher(cost, concurrency int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	return &PasswordHasher{
		cost: cost,
		sem:  semaphore.NewWeighted(int64(concurrency)),
	}
}

// Cost returns the configured work factor.
func (h *PasswordHasher) Cost() int { return h.cost }

// Hash derives a salted bcrypt credential. The error is non-nil only when ctx
// ends before a slot frees up or bcrypt rejects the input.
func (h *PasswordHasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	return hashWithCost(plain, h.cost)
}

// Verify reports whether plain matches hash. A malformed hash yields false with
// a nil error; only context failures produce an error.
func (h *PasswordHasher) Verify(ctx context.Context, hash, plain string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	return CheckPassword(hash, plain), nil
}
