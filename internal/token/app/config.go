package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer        string // Issuer claim for all minted tokens
	AccessSecret  string // Required: HMAC secret for access tokens
	RefreshSecret string // Required: HMAC secret for refresh tokens, must differ

	AccessTTL   time.Duration // Access token lifetime (default: 15m)
	RefreshTTL  time.Duration // Refresh token lifetime (default: 168h)
	MaxSessions int           // Concurrent sessions per subject (default: 5)

	StoreBackend string // Store driver: memory, redis, sqlite (default: memory)
	RedisAddr    string // Redis address (required when StoreBackend=redis)
	DatabaseFile string // SQLite file path (default: ./tokend.db)

	DirectoryBackend  string        // Directory client: static, postgres (default: static)
	DirectoryDSN      string        // Postgres DSN (required when DirectoryBackend=postgres)
	DirectoryRelation string        // Relation holding subject status (default: auth_subjects)
	DirectoryTimeout  time.Duration // Per-lookup deadline (default: 2s)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Cleanup sweep interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:        getEnvOrDefault("TOKEND_ISSUER", "tokend"),
		AccessSecret:  os.Getenv("TOKEND_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("TOKEND_REFRESH_SECRET"),

		AccessTTL:   getEnvDurationOrDefault("TOKEND_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:  getEnvDurationOrDefault("TOKEND_REFRESH_TTL", 7*24*time.Hour),
		MaxSessions: getEnvIntOrDefault("TOKEND_MAX_SESSIONS", 5),

		StoreBackend: getEnvOrDefault("STORE_BACKEND", "memory"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		DatabaseFile: getEnvOrDefault("TOKEND_DATABASE_FILE", "tokend.db"),

		DirectoryBackend:  getEnvOrDefault("DIRECTORY_BACKEND", "static"),
		DirectoryDSN:      os.Getenv("DIRECTORY_DSN"),
		DirectoryRelation: getEnvOrDefault("DIRECTORY_RELATION", "auth_subjects"),
		DirectoryTimeout:  getEnvDurationOrDefault("DIRECTORY_TIMEOUT", 2*time.Second),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate catches misconfiguration before any listener opens. Secrets are
// never echoed back in errors or logs.
func (cfg Config) Validate() error {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return errors.New("TOKEND_ACCESS_SECRET and TOKEND_REFRESH_SECRET are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return errors.New("access and refresh secrets must differ")
	}
	switch cfg.StoreBackend {
	case "memory", "sqlite":
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when STORE_BACKEND=redis")
		}
	default:
		return errors.New("STORE_BACKEND must be one of: memory, redis, sqlite")
	}
	switch cfg.DirectoryBackend {
	case "static":
	case "postgres":
		if cfg.DirectoryDSN == "" {
			return errors.New("DIRECTORY_DSN is required when DIRECTORY_BACKEND=postgres")
		}
	default:
		return errors.New("DIRECTORY_BACKEND must be one of: static, postgres")
	}
	if cfg.MaxSessions <= 0 {
		return errors.New("TOKEND_MAX_SESSIONS must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
