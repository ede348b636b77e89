package actorctx

import (
	"context"
	"testing"

	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/stretchr/testify/require"
)

func TestWithUser_StripsHash(t *testing.T) {
	ctx := WithUser(context.Background(), user.User{ID: "u1", PasswordHash: "$2a$secret", Role: user.RoleUser})

	got, ok := UserFrom(ctx)
	require.True(t, ok)
	require.Equal(t, "u1", got.ID)
	require.Empty(t, got.PasswordHash)

	id, ok := UserIDFrom(ctx)
	require.True(t, ok)
	require.Equal(t, "u1", id)
}

func TestUserFrom_Missing(t *testing.T) {
	_, ok := UserFrom(context.Background())
	require.False(t, ok)

	_, ok = UserIDFrom(WithUser(context.Background(), user.User{}))
	require.False(t, ok)
}
