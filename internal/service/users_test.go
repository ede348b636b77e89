package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/geocoder89/userservice/internal/auth"
	"github.com/geocoder89/userservice/internal/clock"
	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/geocoder89/userservice/internal/repo/memory"
	"github.com/geocoder89/userservice/internal/security"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type brokenDirectory struct{ user.Directory }

func (brokenDirectory) FindByEmail(context.Context, string) (user.User, error) {
	return user.User{}, errors.New("dial tcp: connection refused")
}

func (brokenDirectory) FindByID(context.Context, string) (user.User, error) {
	return user.User{}, errors.New("dial tcp: connection refused")
}

func (brokenDirectory) FindAll(context.Context) ([]user.User, error) {
	return nil, errors.New("dial tcp: connection refused")
}

type fixture struct {
	svc   *UserService
	users *memory.UsersRepo
	jwt   *auth.Manager
	clk   *clock.Manual
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	clk := clock.NewManual(time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC))
	users := memory.NewUsersRepo(clk)
	jwt := auth.NewManager("test-secret", auth.DefaultTTL, clk)
	hasher := security.NewPasswordHasher(bcrypt.MinCost, 4)

	return fixture{
		svc:   NewUserService(users, hasher, jwt, nil, nil),
		users: users,
		jwt:   jwt,
		clk:   clk,
	}
}

func registerReq(email string) user.CreateUserRequest {
	return user.CreateUserRequest{
		FullName:    "Jane Doe",
		DateOfBirth: "1995-05-20",
		Email:       email,
		Password:    "pass123",
	}
}

func TestRegister_CreatesActiveUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerReq("jane@example.com"))
	require.NoError(t, err)

	require.NotEmpty(t, view.ID)
	require.Equal(t, "Jane Doe", view.FullName)
	require.Equal(t, "jane@example.com", view.Email)
	require.Equal(t, user.RoleUser, view.Role)
	require.True(t, view.IsActive)
	require.Equal(t, "1995-05-20", view.DateOfBirth)

	stored, err := f.users.FindByID(ctx, view.ID)
	require.NoError(t, err)
	require.NotEqual(t, "pass123", stored.PasswordHash)
	require.True(t, security.CheckPassword(stored.PasswordHash, "pass123"))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, registerReq("jane@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, registerReq("jane@example.com"))
	require.ErrorIs(t, err, user.ErrDuplicateEmail)

	all, err := f.users.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestRegister_ConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dupes   int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Register(ctx, registerReq("race@example.com"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, user.ErrDuplicateEmail):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, created)
	require.Equal(t, n-1, dupes)
}

func TestRegister_InvalidDate(t *testing.T) {
	f := newFixture(t)

	req := registerReq("jane@example.com")
	req.DateOfBirth = "not-a-date"

	_, err := f.svc.Register(context.Background(), req)
	require.ErrorIs(t, err, user.ErrInvalidDate)

	_, err = f.users.FindByEmail(context.Background(), "jane@example.com")
	require.ErrorIs(t, err, user.ErrNotFound)
}

func TestRegister_PasswordOverBcryptLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := registerReq("long@example.com")
	req.Password = strings.Repeat("é€", 15)
	require.LessOrEqual(t, utf8.RuneCountInString(req.Password), user.MaxPasswordBytes)

	_, err := f.svc.Register(ctx, req)
	require.ErrorIs(t, err, user.ErrPasswordTooLong)

	_, err = f.users.FindByEmail(ctx, "long@example.com")
	require.ErrorIs(t, err, user.ErrNotFound)

	req.Password = strings.Repeat("é", 36)
	_, err = f.svc.Register(ctx, req)
	require.NoError(t, err)
}

func TestRegister_DirectoryFailureIsUnavailable(t *testing.T) {
	hasher := security.NewPasswordHasher(bcrypt.MinCost, 1)
	svc := NewUserService(brokenDirectory{}, hasher, auth.NewManager("s", time.Hour, nil), nil, nil)

	_, err := svc.Register(context.Background(), registerReq("jane@example.com"))
	require.ErrorIs(t, err, user.ErrUnavailable)

	_, err = svc.Login(context.Background(), user.LoginRequest{Email: "jane@example.com", Password: "x"})
	require.ErrorIs(t, err, user.ErrUnavailable)
	require.NotErrorIs(t, err, user.ErrInvalidCredentials)

	_, err = svc.GetAll(context.Background())
	require.ErrorIs(t, err, user.ErrUnavailable)

	_, err = svc.GetByID(context.Background(), "u1")
	require.ErrorIs(t, err, user.ErrUnavailable)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerReq("jane@example.com"))
	require.NoError(t, err)

	t.Run("success issues verifiable token", func(t *testing.T) {
		resp, err := f.svc.Login(ctx, user.LoginRequest{Email: "jane@example.com", Password: "pass123"})
		require.NoError(t, err)
		require.Equal(t, view.ID, resp.User.ID)
		require.NotEmpty(t, resp.Token)

		claims, err := f.jwt.VerifyToken(resp.Token)
		require.NoError(t, err)
		require.Equal(t, view.ID, claims.UserID)
		require.Equal(t, "jane@example.com", claims.Email)
		require.Equal(t, user.RoleUser, claims.Role)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		_, errPass := f.svc.Login(ctx, user.LoginRequest{Email: "jane@example.com", Password: "wrong"})
		_, errUser := f.svc.Login(ctx, user.LoginRequest{Email: "nobody@example.com", Password: "pass123"})

		require.ErrorIs(t, errPass, user.ErrInvalidCredentials)
		require.ErrorIs(t, errUser, user.ErrInvalidCredentials)
		require.Equal(t, errPass.Error(), errUser.Error())
	})

	t.Run("email match is exact", func(t *testing.T) {
		_, err := f.svc.Login(ctx, user.LoginRequest{Email: "Jane@Example.com", Password: "pass123"})
		require.ErrorIs(t, err, user.ErrInvalidCredentials)
	})
}

func TestLogin_BlockedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerReq("jane@example.com"))
	require.NoError(t, err)

	blocked, err := f.svc.SetActive(ctx, view.ID, false)
	require.NoError(t, err)
	require.False(t, blocked.IsActive)

	_, err = f.svc.Login(ctx, user.LoginRequest{Email: "jane@example.com", Password: "pass123"})
	require.ErrorIs(t, err, user.ErrAccountBlocked)

	// status is checked before the password
	_, err = f.svc.Login(ctx, user.LoginRequest{Email: "jane@example.com", Password: "wrong"})
	require.ErrorIs(t, err, user.ErrAccountBlocked)
}

func TestSetActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.svc.Register(ctx, registerReq("jane@example.com"))
	require.NoError(t, err)

	f.clk.Advance(time.Minute)

	first, err := f.svc.SetActive(ctx, view.ID, false)
	require.NoError(t, err)
	require.False(t, first.IsActive)
	require.NotEqual(t, view.UpdatedAt, first.UpdatedAt)
	require.Equal(t, view.CreatedAt, first.CreatedAt)

	f.clk.Advance(time.Minute)

	again, err := f.svc.SetActive(ctx, view.ID, false)
	require.NoError(t, err)
	require.False(t, again.IsActive)
	require.Equal(t, first.UpdatedAt, again.UpdatedAt)

	_, err = f.svc.SetActive(ctx, "missing", false)
	require.ErrorIs(t, err, user.ErrNotFound)
}

func TestGetByIDAndAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.GetAll(ctx)
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)

	a, err := f.svc.Register(ctx, registerReq("a@example.com"))
	require.NoError(t, err)
	f.clk.Advance(time.Second)
	b, err := f.svc.Register(ctx, registerReq("b@example.com"))
	require.NoError(t, err)

	got, err := f.svc.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, b, got)

	_, err = f.svc.GetByID(ctx, "missing")
	require.ErrorIs(t, err, user.ErrNotFound)

	all, err := f.svc.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, a.ID, all[0].ID)
	require.Equal(t, b.ID, all[1].ID)
}
