package actorctx

import (
	"context"

	"github.com/geocoder89/userservice/internal/domain/user"
)

type ctxKey struct{}

// WithUser attaches the authenticated caller to ctx. The stored copy never
// carries a password hash.
func WithUser(ctx context.Context, u user.User) context.Context {
	u.PasswordHash = ""
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFrom(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(user.User)

	return u, ok && u.ID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	u, ok := UserFrom(ctx)
	if !ok {
		return "", false
	}
	return u.ID, true
}
