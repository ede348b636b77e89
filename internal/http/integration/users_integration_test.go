package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/userservice/internal/auth"
	"github.com/geocoder89/userservice/internal/bootstrap"
	"github.com/geocoder89/userservice/internal/db"
	apphttp "github.com/geocoder89/userservice/internal/http"
	"github.com/geocoder89/userservice/internal/repo/postgres"
	"github.com/geocoder89/userservice/internal/security"
	"github.com/geocoder89/userservice/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code string `json:"code"`
	} `json:"error"`
}

type stack struct {
	router     *gin.Engine
	pool       *pgxpool.Pool
	adminToken string
}

func setupStack(t *testing.T) stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("Failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	migrator := db.NewMigrator(pool, logger)
	if err := migrator.RunMigrations(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE users`); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}

	users := postgres.NewUsersRepo(pool, nil, nil)
	hasher := security.NewPasswordHasher(bcrypt.MinCost, 4)
	jwt := auth.NewManager("integration-secret", time.Hour, nil)
	tokenFile := filepath.Join(t.TempDir(), ".admin.jwt")

	coord := bootstrap.NewCoordinator(bootstrap.Options{
		Migrator: migrator,
		Users:    users,
		Hasher:   hasher,
		Tokens:   jwt,
		Admin: bootstrap.Admin{
			Email:       "admin@example.com",
			Password:    "admin123",
			FullName:    "System Administrator",
			DateOfBirth: "1990-01-01",
			TokenFile:   tokenFile,
		},
		Log: logger,
	})
	if _, err := coord.Run(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		t.Fatalf("read admin token: %v", err)
	}

	router := apphttp.NewRouter(apphttp.RouterDeps{
		Env:            "test",
		Log:            logger,
		Users:          service.NewUserService(users, hasher, jwt, nil, logger),
		Verifier:       jwt,
		Finder:         users,
		Ping:           users.Ping,
		RequestTimeout: 5 * time.Second,
	})

	return stack{router: router, pool: pool, adminToken: strings.TrimSpace(string(raw))}
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

func TestIntegration_RegisterLoginBlock(t *testing.T) {
	s := setupStack(t)

	code, env := doJSON(t, s.router, http.MethodPost, "/api/users/register", "", map[string]string{
		"fullName": "Ann", "dateOfBirth": "1990-01-01", "email": "ann@x.com", "password": "secret1",
	})
	if code != http.StatusCreated {
		t.Fatalf("register: got %d", code)
	}
	var view struct {
		ID       string `json:"id"`
		IsActive bool   `json:"isActive"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil || view.ID == "" {
		t.Fatalf("register payload: %v", err)
	}

	code, env = doJSON(t, s.router, http.MethodPost, "/api/users/register", "", map[string]string{
		"fullName": "Ann Again", "dateOfBirth": "1991-02-02", "email": "ann@x.com", "password": "secret2",
	})
	if code != http.StatusBadRequest || env.Error.Code != "email_taken" {
		t.Fatalf("duplicate: got %d code=%q", code, env.Error.Code)
	}

	code, env = doJSON(t, s.router, http.MethodPost, "/api/users/login", "", map[string]string{"email": "ann@x.com", "password": "secret1"})
	if code != http.StatusOK {
		t.Fatalf("login: got %d", code)
	}
	var login struct {
		Token string `json:"token"`
	}
	_ = json.Unmarshal(env.Data, &login)

	if code, _ := doJSON(t, s.router, http.MethodPatch, "/api/users/"+view.ID+"/block", s.adminToken, nil); code != http.StatusOK {
		t.Fatalf("block: got %d", code)
	}

	if code, _ := doJSON(t, s.router, http.MethodGet, "/api/users/profile", login.Token, nil); code != http.StatusUnauthorized {
		t.Fatalf("profile after block: got %d want 401", code)
	}

	var count int
	if err := s.pool.QueryRow(context.Background(), `SELECT count(*) FROM users WHERE role = 'admin'`).Scan(&count); err != nil {
		t.Fatalf("count admins: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one admin, got %d", count)
	}
}
