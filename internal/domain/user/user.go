package user

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}

// In reports whether r is one of roles.
func (r Role) In(roles ...Role) bool {
	for _, allowed := range roles {
		if r == allowed {
			return true
		}
	}
	return false
}

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	DateOfBirth  time.Time `json:"dateOfBirth"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicView is the only representation of a user handed to callers.
type PublicView struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	DateOfBirth string `json:"dateOfBirth"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	IsActive    bool   `json:"isActive"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func (u User) View() PublicView {
	return PublicView{
		ID:          u.ID,
		FullName:    u.FullName,
		DateOfBirth: u.DateOfBirth.UTC().Format(DateLayout),
		Email:       u.Email,
		Role:        u.Role,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt.UTC().Format(TimestampLayout),
		UpdatedAt:   u.UpdatedAt.UTC().Format(TimestampLayout),
	}
}

func Views(users []User) []PublicView {
	out := make([]PublicView, 0, len(users))
	for _, u := range users {
		out = append(out, u.View())
	}
	return out
}

// ParseDateOfBirth accepts a plain calendar date or a full RFC 3339 timestamp
// and returns midnight UTC of that calendar date.
func ParseDateOfBirth(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	if d, err := time.Parse(DateLayout, s); err == nil {
		return d, nil
	}

	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}

	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC), nil
}

type CreateUserRequest struct {
	FullName    string `json:"fullName" binding:"required,max=255"`
	DateOfBirth string `json:"dateOfBirth" binding:"required"`
	Email       string `json:"email" binding:"required,email,max=255"`
	Password    string `json:"password" binding:"required,min=6,maxbytes=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	User  PublicView `json:"user"`
	Token string     `json:"token"`
}
