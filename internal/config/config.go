package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"pennywise/internal/core"
	"pennywise/internal/progress"
)

const (
	AuthModeJWT    = "jwt"
	AuthModeHeader = "header"
)

var validBackends = []string{"memory", "sqlite", "postgres"}

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Auth
	AuthMode      string
	AuthJWTSecret string

	// Aggregation
	BudgetMatchMode        string
	EmergencyFundMonths    int
	RecentActivityLimit    int
	CapAccrualAtTargetDate bool

	// Reads and caching
	ReadRetryAttempts  int
	CacheSize          int
	CacheTTL           time.Duration
	RateLimitPerMinute int

	// Worker
	SnapshotSchedule    string
	SnapshotConcurrency int

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/pennywise.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pennywise"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		AuthMode:      getEnv("AUTH_MODE", AuthModeJWT),
		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),

		BudgetMatchMode:        getEnv("BUDGET_MATCH_MODE", string(core.MatchCategory)),
		EmergencyFundMonths:    getEnvInt("EMERGENCY_FUND_MONTHS", progress.DefaultEmergencyMonths),
		RecentActivityLimit:    getEnvInt("RECENT_ACTIVITY_LIMIT", progress.DefaultRecentLimit),
		CapAccrualAtTargetDate: getEnvBool("CAP_ACCRUAL_AT_TARGET_DATE", false),

		ReadRetryAttempts:  getEnvInt("READ_RETRY_ATTEMPTS", 3),
		CacheSize:          getEnvInt("CACHE_SIZE", 500),
		CacheTTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		SnapshotSchedule:    getEnv("SNAPSHOT_SCHEDULE", "@every 30m"),
		SnapshotConcurrency: getEnvInt("SNAPSHOT_CONCURRENCY", 4),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// ProgressOptions maps the aggregation settings onto progress.Options.
func (c *Config) ProgressOptions() progress.Options {
	return progress.Options{
		MatchMode:              core.BudgetMatchMode(c.BudgetMatchMode),
		EmergencyMonths:        c.EmergencyFundMonths,
		RecentLimit:            c.RecentActivityLimit,
		CapAccrualAtTargetDate: c.CapAccrualAtTargetDate,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.DataBackend == "postgres" {
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// or postgresql:// URL")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch c.AuthMode {
	case AuthModeJWT:
		if len(c.AuthJWTSecret) < 32 {
			errors = append(errors, "AUTH_JWT_SECRET must be at least 32 characters in jwt mode")
		}
	case AuthModeHeader:
	default:
		errors = append(errors, fmt.Sprintf("invalid auth mode '%s': must be 'jwt' or 'header'", c.AuthMode))
	}

	if !core.BudgetMatchMode(c.BudgetMatchMode).IsValid() {
		errors = append(errors, fmt.Sprintf("invalid budget match mode '%s': must be '%s' or '%s'",
			c.BudgetMatchMode, core.MatchCategory, core.MatchCategoryAndTitle))
	}
	if c.EmergencyFundMonths < 1 || c.EmergencyFundMonths > 24 {
		errors = append(errors, fmt.Sprintf("invalid emergency fund months %d: must be between 1 and 24", c.EmergencyFundMonths))
	}
	if c.RecentActivityLimit < 1 || c.RecentActivityLimit > 100 {
		errors = append(errors, fmt.Sprintf("invalid recent activity limit %d: must be between 1 and 100", c.RecentActivityLimit))
	}

	if c.ReadRetryAttempts < 1 || c.ReadRetryAttempts > 10 {
		errors = append(errors, fmt.Sprintf("invalid read retry attempts %d: must be between 1 and 10", c.ReadRetryAttempts))
	}
	if c.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must not be negative", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if _, err := cron.ParseStandard(c.SnapshotSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid snapshot schedule '%s': %v", c.SnapshotSchedule, err))
	}
	if c.SnapshotConcurrency < 1 || c.SnapshotConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid snapshot concurrency %d: must be between 1 and 64", c.SnapshotConcurrency))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
