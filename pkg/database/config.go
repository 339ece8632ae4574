// Package database provides the PostgreSQL client, embedded schema
// migrations, and typed persistence operations for sessions, phases,
// reports, and error entries.
package database

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the resolved Postgres connection pool settings. Bounded per
// spec §5: max ~10 connections, 30s idle timeout, 10s connect timeout.
type Config struct {
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// managedHostSuffixes identify managed database providers for which TLS
// is mandatory regardless of what the connection string says.
var managedHostSuffixes = []string{
	".rds.amazonaws.com",
	".database.azure.com",
	".neon.tech",
	".supabase.co",
	".render.com",
}

// LoadConfigFromEnv builds a Config from DATABASE_URL, applying
// production-sized pool defaults and forcing TLS when the host is
// recognized as a managed database.
func LoadConfigFromEnv() (Config, error) {
	raw := os.Getenv("DATABASE_URL")
	if raw == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	dsn, err := withRequiredTLS(raw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "5"))

	cfg := Config{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Second,
		ConnectTimeout:  10 * time.Second,
	}

	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		return Config{}, fmt.Errorf("DB_MAX_IDLE_CONNS (%d) cannot exceed DB_MAX_OPEN_CONNS (%d)", cfg.MaxIdleConns, cfg.MaxOpenConns)
	}

	return cfg, nil
}

// withRequiredTLS parses dsn and, when its host matches a known managed
// database provider, forces sslmode=require so the service never talks
// to a hosted database in plaintext even if the operator forgot to set
// it explicitly.
func withRequiredTLS(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}

	if !isManagedHost(u.Hostname()) {
		return dsn, nil
	}

	q := u.Query()
	if mode := q.Get("sslmode"); mode == "" || mode == "disable" {
		q.Set("sslmode", "require")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func isManagedHost(host string) bool {
	for _, suffix := range managedHostSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
