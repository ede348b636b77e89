package user

import "errors"

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

var (
	ErrDuplicateEmail     = errors.New("user with this email already exists")
	ErrInvalidDate        = errors.New("invalid date of birth")
	ErrPasswordTooLong    = errors.New("password exceeds 72 bytes")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountBlocked     = errors.New("account is blocked")
	ErrNotFound           = errors.New("user not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")

	// ErrUnavailable marks storage failures and timeouts. It is never an
	// authentication or authorization verdict.
	ErrUnavailable = errors.New("user directory unavailable")
)

// Unavailable wraps a storage error so errors.Is(err, ErrUnavailable) holds
// while the cause stays available for logs.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrUnavailable, err)
}
