package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// daemonConfig contains runtime configuration values.
type daemonConfig struct {
	Addr             string
	Store            string
	PostgresDSN      string
	RedisAddr        string
	RedisPrefix      string
	JWTSecret        string
	TokenTTL         time.Duration
	LockoutAttempts  int
	LockoutDuration  time.Duration
	RecoveryEnabled  bool
	AuditEnabled     bool
	MetricsEnabled   bool
	AdminToken       string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration
	NotifyQueueSize  int
	NotifyWorkers    int
	MigrateOnStartup bool
}

const (
	storeMemory   = "memory"
	storeRedis    = "redis"
	storePostgres = "postgres"
)

// loadConfig reads FLEETAUTH_* variables with development defaults.
func loadConfig() (daemonConfig, error) {
	cfg := daemonConfig{
		Addr:             getEnv("FLEETAUTH_ADDR", ":8080"),
		Store:            strings.ToLower(getEnv("FLEETAUTH_STORE", storeMemory)),
		PostgresDSN:      os.Getenv("FLEETAUTH_PG_DSN"),
		RedisAddr:        getEnv("FLEETAUTH_REDIS_ADDR", os.Getenv("REDIS_ADDR")),
		RedisPrefix:      getEnv("FLEETAUTH_REDIS_PREFIX", "fleetauth"),
		JWTSecret:        os.Getenv("FLEETAUTH_JWT_SECRET"),
		TokenTTL:         getDuration("FLEETAUTH_TOKEN_TTL", 24*time.Hour),
		LockoutAttempts:  getInt("FLEETAUTH_LOCKOUT_ATTEMPTS", 3),
		LockoutDuration:  getDuration("FLEETAUTH_LOCKOUT_DURATION", 15*time.Minute),
		RecoveryEnabled:  getBool("FLEETAUTH_RECOVERY_ENABLED", true),
		AuditEnabled:     getBool("FLEETAUTH_AUDIT_ENABLED", true),
		MetricsEnabled:   getBool("FLEETAUTH_METRICS_ENABLED", true),
		AdminToken:       os.Getenv("FLEETAUTH_ADMIN_TOKEN"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		ShutdownTimeout:  getDuration("FLEETAUTH_SHUTDOWN_TIMEOUT", 10*time.Second),
		NotifyQueueSize:  getInt("FLEETAUTH_NOTIFY_QUEUE_SIZE", 256),
		NotifyWorkers:    getInt("FLEETAUTH_NOTIFY_WORKERS", 2),
		MigrateOnStartup: getBool("FLEETAUTH_MIGRATE", false),
	}

	switch cfg.Store {
	case storeMemory, storeRedis:
	case storePostgres:
		if cfg.PostgresDSN == "" {
			return daemonConfig{}, fmt.Errorf("FLEETAUTH_PG_DSN is required for the postgres store")
		}
	default:
		return daemonConfig{}, fmt.Errorf("unknown FLEETAUTH_STORE %q", cfg.Store)
	}
	if len(cfg.JWTSecret) < 32 {
		return daemonConfig{}, fmt.Errorf("FLEETAUTH_JWT_SECRET must be at least 32 bytes")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}
