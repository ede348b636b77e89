package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/userservice/internal/domain/user"
	"github.com/geocoder89/userservice/internal/observability"
)

// PasswordCodec hashes and verifies credentials.
type PasswordCodec interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, hash, plain string) (bool, error)
}

type TokenIssuer interface {
	IssueFor(u user.User) (string, error)
}

// UserService runs registration, login and the directory pass-throughs.
// It performs no authorization; callers are expected to have passed the gate.
type UserService struct {
	users  user.Directory
	hasher PasswordCodec
	tokens TokenIssuer
	prom   *observability.Prom
	log    *slog.Logger

	// dummyHash is verified against when the email is unknown so both
	// login failure paths cost one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(users user.Directory, hasher PasswordCodec, tokens TokenIssuer, prom *observability.Prom, log *slog.Logger) *UserService {
	if log == nil {
		log = slog.Default()
	}
	return &UserService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		prom:   prom,
		log:    log,
	}
}

func (s *UserService) Register(ctx context.Context, req user.CreateUserRequest) (user.PublicView, error) {
	ctx, span := observability.StartSpan(ctx, "UserService.Register")
	defer span.End()

	if len(req.Password) > user.MaxPasswordBytes {
		s.prom.AuthResult("register", "password_too_long")
		return user.PublicView{}, user.ErrPasswordTooLong
	}

	_, err := s.users.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		s.prom.AuthResult("register", "duplicate_email")
		return user.PublicView{}, user.ErrDuplicateEmail
	case !errors.Is(err, user.ErrNotFound):
		return user.PublicView{}, user.Unavailable(fmt.Errorf("find user by email: %w", err))
	}

	dob, err := user.ParseDateOfBirth(req.DateOfBirth)
	if err != nil {
		s.prom.AuthResult("register", "invalid_date")
		return user.PublicView{}, user.ErrInvalidDate
	}

	hash, err := s.hash(ctx, req.Password)
	if err != nil {
		return user.PublicView{}, err
	}

	saved, err := s.users.Insert(ctx, user.User{
		FullName:     req.FullName,
		DateOfBirth:  dob,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         user.RoleUser,
		IsActive:     true,
	})
	if err != nil {
		// a concurrent registration can win between lookup and insert
		if errors.Is(err, user.ErrDuplicateEmail) {
			s.prom.AuthResult("register", "duplicate_email")
			return user.PublicView{}, user.ErrDuplicateEmail
		}
		return user.PublicView{}, user.Unavailable(fmt.Errorf("insert user: %w", err))
	}

	s.prom.AuthResult("register", "ok")
	s.log.InfoContext(ctx, "user registered", "user_id", saved.ID)

	return saved.View(), nil
}

func (s *UserService) Login(ctx context.Context, req user.LoginRequest) (user.AuthResponse, error) {
	ctx, span := observability.StartSpan(ctx, "UserService.Login")
	defer span.End()

	found, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return user.AuthResponse{}, user.Unavailable(fmt.Errorf("find user by email: %w", err))
		}

		if _, err := s.verify(ctx, s.placeholderHash(), req.Password); err != nil {
			return user.AuthResponse{}, err
		}
		s.prom.AuthResult("login", "invalid_credentials")
		return user.AuthResponse{}, user.ErrInvalidCredentials
	}

	if !found.IsActive {
		s.prom.AuthResult("login", "blocked")
		return user.AuthResponse{}, user.ErrAccountBlocked
	}

	ok, err := s.verify(ctx, found.PasswordHash, req.Password)
	if err != nil {
		return user.AuthResponse{}, err
	}
	if !ok {
		s.prom.AuthResult("login", "invalid_credentials")
		return user.AuthResponse{}, user.ErrInvalidCredentials
	}

	token, err := s.tokens.IssueFor(found)
	if err != nil {
		return user.AuthResponse{}, fmt.Errorf("issue token: %w", err)
	}

	s.prom.AuthResult("login", "ok")

	return user.AuthResponse{User: found.View(), Token: token}, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (user.PublicView, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return user.PublicView{}, directoryErr("find user by id", err)
	}
	return u.View(), nil
}

func (s *UserService) GetAll(ctx context.Context) ([]user.PublicView, error) {
	all, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, user.Unavailable(fmt.Errorf("list users: %w", err))
	}
	return user.Views(all), nil
}

// SetActive flips the isActive gate. Setting the current value again is a
// no-op that still returns the view.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) (user.PublicView, error) {
	ctx, span := observability.StartSpan(ctx, "UserService.SetActive")
	defer span.End()

	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return user.PublicView{}, directoryErr("find user by id", err)
	}

	if u.IsActive == active {
		return u.View(), nil
	}

	u.IsActive = active
	saved, err := s.users.Update(ctx, u)
	if err != nil {
		return user.PublicView{}, directoryErr("update user", err)
	}

	s.log.InfoContext(ctx, "user status changed", "user_id", saved.ID, "is_active", saved.IsActive)

	return saved.View(), nil
}

func (s *UserService) hash(ctx context.Context, plain string) (string, error) {
	defer s.prom.ObservePassword("hash", time.Now())

	hash, err := s.hasher.Hash(ctx, plain)
	if err != nil {
		if ctx.Err() != nil {
			return "", user.Unavailable(fmt.Errorf("hash password: %w", err))
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *UserService) verify(ctx context.Context, hash, plain string) (bool, error) {
	defer s.prom.ObservePassword("verify", time.Now())

	ok, err := s.hasher.Verify(ctx, hash, plain)
	if err != nil {
		return false, user.Unavailable(fmt.Errorf("verify password: %w", err))
	}
	return ok, nil
}

func (s *UserService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(context.Background(), "placeholder-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func directoryErr(op string, err error) error {
	if errors.Is(err, user.ErrNotFound) {
		return user.ErrNotFound
	}
	return user.Unavailable(fmt.Errorf("%s: %w", op, err))
}
