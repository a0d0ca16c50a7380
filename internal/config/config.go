// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development; the token
// signing secret is the one value that must always be set.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// ClientURL is the origin of the SPA consuming the API. Used for CORS.
	ClientURL string

	// Store holds credential store settings.
	Store StoreConfig

	// Database holds MariaDB connection settings (used when Store.Driver is "mysql").
	Database DatabaseConfig

	// Redis holds Redis connection settings for the optional token denylist.
	Redis RedisConfig

	// Token holds session token settings.
	Token TokenConfig
}

// StoreConfig selects the credential store backend.
type StoreConfig struct {
	// Driver is "memory" (default, non-durable reference store) or "mysql".
	Driver string
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields are
// read from separate env vars so container orchestrators can manage each
// independently. If DATABASE_URL is set, it takes precedence.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	// User is the MariaDB username (default: "gatehouse").
	User string

	// Password is the MariaDB password (default: "gatehouse").
	Password string

	// Name is the database name (default: "gatehouse").
	Name string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	// MigrationsPath is the directory holding SQL migration files.
	MigrationsPath string

	// MaxOpenConns is the maximum number of open connections in the pool.
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime is how long a connection can be reused.
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// fields using the driver's Config.FormatDSN() to safely handle special
// characters in passwords.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters. An empty URL disables the
// token denylist entirely; sessions then stay fully stateless.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// TokenConfig holds session token settings.
type TokenConfig struct {
	// Secret signs session tokens. Required; startup fails without it.
	Secret string

	// TTL is how long a minted token (and its cookie) remains valid.
	TTL time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Env:       getEnv("ENV", "development"),
		Port:      getEnvInt("PORT", 8080),
		ClientURL: getEnv("CLIENT_URL", "http://localhost:5173"),

		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "memory"),
		},

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "gatehouse"),
			Password:        getEnv("DB_PASSWORD", "gatehouse"),
			Name:            getEnv("DB_NAME", "gatehouse"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},

		Token: TokenConfig{
			Secret: getEnv("TOKEN_SECRET", ""),
			TTL:    getEnvDuration("TOKEN_TTL", 7*24*time.Hour),
		},
	}

	// The signing secret is a hard startup requirement: a service that mints
	// unverifiable tokens is worse than one that refuses to start.
	if cfg.Token.Secret == "" {
		return nil, fmt.Errorf("TOKEN_SECRET is required")
	}
	if !cfg.IsDevelopment() && len(cfg.Token.Secret) < 32 {
		return nil, fmt.Errorf("TOKEN_SECRET must be at least 32 characters in production")
	}

	switch cfg.Store.Driver {
	case "memory", "mysql":
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (expected \"memory\" or \"mysql\")", cfg.Store.Driver)
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// --- Helper functions for reading environment variables ---

// getEnv reads a string env var or returns the default.
func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt reads an integer env var or returns the default.
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "168h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
