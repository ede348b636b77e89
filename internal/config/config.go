package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const devJWTSecret = "your-secret-key"

type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port int    `env:"PORT"    envDefault:"3000"`

	DB    DBConfig
	Redis RedisConfig
	Auth  AuthConfig
	Admin AdminConfig

	// StoreDriver selects the user directory backend: postgres, redis or memory.
	StoreDriver    string        `env:"STORE_DRIVER"         envDefault:"postgres"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"      envDefault:"5s"`
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES"       envDefault:"1048576"`
	CORSOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	OTELEndpoint   string        `env:"OTEL_ENDPOINT"`
}

type DBConfig struct {
	Host          string `env:"DB_HOST"           envDefault:"localhost"`
	Port          int    `env:"DB_PORT"           envDefault:"5432"`
	User          string `env:"DB_USERNAME"       envDefault:"postgres"`
	Password      string `env:"DB_PASSWORD"`
	Name          string `env:"DB_NAME"           envDefault:"user_service"`
	SSLMode       string `env:"DB_SSLMODE"        envDefault:"disable"`
	AdminDatabase string `env:"DB_ADMIN_DATABASE" envDefault:"postgres"`
	MaxConns      int32  `env:"DB_MAX_CONNS"      envDefault:"10"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"     envDefault:"127.0.0.1:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"       envDefault:"0"`
	Prefix   string `env:"REDIS_PREFIX"   envDefault:"usersvc"`
}

type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET"`
	JWTTTL          time.Duration `env:"JWT_TTL"          envDefault:"168h"`
	BcryptCost      int           `env:"BCRYPT_COST"      envDefault:"12"`
	HashConcurrency int           `env:"HASH_CONCURRENCY"`
}

type AdminConfig struct {
	Email       string `env:"ADMIN_EMAIL"      envDefault:"admin@example.com"`
	Password    string `env:"ADMIN_PASSWORD"   envDefault:"admin123"`
	FullName    string `env:"ADMIN_FULL_NAME"  envDefault:"System Administrator"`
	DateOfBirth string `env:"ADMIN_DOB"        envDefault:"1990-01-01"`
	TokenFile   string `env:"ADMIN_TOKEN_FILE" envDefault:".admin.jwt"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Auth.HashConcurrency <= 0 {
		cfg.Auth.HashConcurrency = runtime.NumCPU()
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		if !c.IsDev() && c.Env != "test" {
			return errors.New("JWT_SECRET is required outside dev")
		}
		c.Auth.JWTSecret = devJWTSecret
	}

	switch c.StoreDriver {
	case "postgres", "redis", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}

	return nil
}

// IsDev reports whether the service runs with development defaults.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

// DSN is the connection string for the service database.
func (d DBConfig) DSN() string {
	return d.dsnFor(d.Name)
}

// AdminDSN points at the maintenance database used to create the service one.
func (d DBConfig) AdminDSN() string {
	return d.dsnFor(d.AdminDatabase)
}

func (d DBConfig) dsnFor(name string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + strings.TrimPrefix(name, "/"),
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
