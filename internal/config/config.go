// Package config loads the process-wide configuration once at startup.
// Nothing in the hot path reads environment variables; components receive
// the values they need through their constructors.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const minSecretLength = 32

type Config struct {
	Addr    string
	Env     string
	Release string

	DatabaseURL string
	RedisURL    string
	SentryDSN   string

	// AMQPURL is optional; when empty the post queue publisher is a noop.
	AMQPURL   string
	PostQueue string

	JWTSecret       []byte
	TokenIssuer     string
	TokenAudience   string
	TokenLeeway     time.Duration
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	LoginMaxAttempts int
	LoginLockWindow  time.Duration

	BcryptCost int

	CronSecret       string
	PostRetention    time.Duration
	CleanupBatchSize int

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
}

func Load() (*Config, error) {
	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	redisURL, err := mustEnv("REDIS_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr:    ":" + envOrDefault("PORT", "8080"),
		Env:     envOrDefault("APP_ENV", "development"),
		Release: envOrDefault("APP_RELEASE", "dev"),

		DatabaseURL: databaseURL,
		RedisURL:    redisURL,
		SentryDSN:   os.Getenv("SENTRY_DSN"),

		AMQPURL:   strings.TrimSpace(os.Getenv("AMQP_URL")),
		PostQueue: envOrDefault("POST_QUEUE_NAME", "post_publish"),

		JWTSecret:       []byte(jwtSecret),
		TokenIssuer:     envOrDefault("TOKEN_ISSUER", "socialqueue"),
		TokenAudience:   envOrDefault("TOKEN_AUDIENCE", "socialqueue:users"),
		TokenLeeway:     envSecondsOrDefault("JWT_LEEWAY_SECONDS", 10),
		AccessTokenTTL:  envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
		RefreshTokenTTL: envDaysOrDefault("REFRESH_TOKEN_TTL_DAYS", 7),

		LoginMaxAttempts: envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockWindow:  envSecondsOrDefault("LOGIN_LOCK_SECONDS", 300),

		BcryptCost: envIntOrDefault("BCRYPT_COST", 12),

		CronSecret:       strings.TrimSpace(os.Getenv("CRON_SECRET")),
		PostRetention:    envDaysOrDefault("POST_RETENTION_DAYS", 30),
		CleanupBatchSize: envIntOrDefault("POST_CLEANUP_BATCH_SIZE", 500),

		DBMaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters long", minSecretLength)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return fmt.Errorf("access token TTL must be shorter than refresh token TTL")
	}
	return nil
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}
