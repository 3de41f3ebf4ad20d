package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Escalation EscalationConfig
	Mail       MailConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines admin API token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// Scope values for owner resolution.
const (
	ScopeGlobal       = "global"
	ScopeOrganisation = "organisation"
)

// Owner policy values for owner resolution.
const (
	OwnerPolicyFirst  = "first"
	OwnerPolicyUnique = "unique"
)

// EscalationConfig drives the escalation engine and its triggers.
type EscalationConfig struct {
	DefaultTATHours      int
	TriggerSecret        string
	TriggerSecretHash    string
	SchedulerEnabled     bool
	SweepIntervalMinutes int
	SweepTimeoutSeconds  int
	TicketTimeoutSeconds int
	SweepBatchLimit      int
	Scope                string
	OwnerPolicy          string
	LockEnabled          bool
	LockTTLSeconds       int
}

// MailConfig holds SMTP settings for outbound notifications.
type MailConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	From               string
	SenderName         string
	InsecureSkipVerify bool
	RetryCount         int
	RetryBackoffMs     int
	QueueSize          int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	tatHours, err := strconv.Atoi(getEnv("DEFAULT_TAT_HOURS", "48"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TAT_HOURS: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "issue-escalation-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             os.Getenv("AUTH_JWT_SECRET"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Escalation: EscalationConfig{
			DefaultTATHours:      tatHours,
			TriggerSecret:        os.Getenv("ESCALATION_TRIGGER_SECRET"),
			TriggerSecretHash:    os.Getenv("ESCALATION_TRIGGER_SECRET_HASH"),
			SchedulerEnabled:     getEnvAsBool("ESCALATION_SCHEDULER_ENABLED", true),
			SweepIntervalMinutes: getEnvAsInt("ESCALATION_SWEEP_INTERVAL_MINUTES", 10),
			SweepTimeoutSeconds:  getEnvAsInt("ESCALATION_SWEEP_TIMEOUT_SECONDS", 120),
			TicketTimeoutSeconds: getEnvAsInt("ESCALATION_TICKET_TIMEOUT_SECONDS", 10),
			SweepBatchLimit:      getEnvAsInt("ESCALATION_SWEEP_BATCH_LIMIT", 500),
			Scope:                strings.ToLower(getEnv("ESCALATION_SCOPE", ScopeGlobal)),
			OwnerPolicy:          strings.ToLower(getEnv("ESCALATION_OWNER_POLICY", OwnerPolicyFirst)),
			LockEnabled:          getEnvAsBool("ESCALATION_LOCK_ENABLED", true),
			LockTTLSeconds:       getEnvAsInt("ESCALATION_LOCK_TTL_SECONDS", 300),
		},
		Mail: MailConfig{
			Host:               os.Getenv("MAIL_HOST"),
			Port:               getEnvAsInt("MAIL_PORT", 587),
			User:               os.Getenv("MAIL_USER"),
			Password:           os.Getenv("MAIL_PASSWORD"),
			From:               getEnv("MAIL_FROM", "noreply@example.com"),
			SenderName:         getEnv("MAIL_SENDER_NAME", "Issue Desk"),
			InsecureSkipVerify: getEnvAsBool("MAIL_INSECURE_SKIP_VERIFY", false),
			RetryCount:         getEnvAsInt("MAIL_RETRY_COUNT", 3),
			RetryBackoffMs:     getEnvAsInt("MAIL_RETRY_BACKOFF_MS", 500),
			QueueSize:          getEnvAsInt("MAIL_QUEUE_SIZE", 1000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that would make the service run with wrong semantics.
// A missing trigger secret is allowed: the trigger endpoint then refuses every call.
func (c *Config) Validate() error {
	var errs []error
	e := c.Escalation
	if e.DefaultTATHours <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_TAT_HOURS must be positive, got %d", e.DefaultTATHours))
	}
	if e.SweepIntervalMinutes <= 0 {
		errs = append(errs, fmt.Errorf("ESCALATION_SWEEP_INTERVAL_MINUTES must be positive, got %d", e.SweepIntervalMinutes))
	}
	if e.SweepBatchLimit <= 0 {
		errs = append(errs, fmt.Errorf("ESCALATION_SWEEP_BATCH_LIMIT must be positive, got %d", e.SweepBatchLimit))
	}
	switch e.Scope {
	case ScopeGlobal, ScopeOrganisation:
	default:
		errs = append(errs, fmt.Errorf("unknown ESCALATION_SCOPE %q", e.Scope))
	}
	switch e.OwnerPolicy {
	case OwnerPolicyFirst, OwnerPolicyUnique:
	default:
		errs = append(errs, fmt.Errorf("unknown ESCALATION_OWNER_POLICY %q", e.OwnerPolicy))
	}
	if c.Mail.Host != "" && c.Mail.Port <= 0 {
		errs = append(errs, fmt.Errorf("MAIL_PORT must be positive, got %d", c.Mail.Port))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TAT returns the turn-around time granted to each owner.
func (e EscalationConfig) TAT() time.Duration {
	return time.Duration(e.DefaultTATHours) * time.Hour
}

// SweepInterval returns the scheduler period.
func (e EscalationConfig) SweepInterval() time.Duration {
	return time.Duration(e.SweepIntervalMinutes) * time.Minute
}

// SweepTimeout bounds one sweep whatever triggered it; zero means unbounded.
func (e EscalationConfig) SweepTimeout() time.Duration {
	return secondsOrZero(e.SweepTimeoutSeconds)
}

// TicketTimeout bounds the store and resolver calls for one ticket.
func (e EscalationConfig) TicketTimeout() time.Duration {
	return secondsOrZero(e.TicketTimeoutSeconds)
}

// LockTTL returns how long a sweep lock is held before it expires on its own.
func (e EscalationConfig) LockTTL() time.Duration {
	return secondsOrZero(e.LockTTLSeconds)
}

// TriggerConfigured reports whether the HTTP trigger has a secret to check against.
func (e EscalationConfig) TriggerConfigured() bool {
	return strings.TrimSpace(e.TriggerSecret) != "" || strings.TrimSpace(e.TriggerSecretHash) != ""
}

// Enabled reports whether an SMTP host is configured.
func (m MailConfig) Enabled() bool {
	return strings.TrimSpace(m.Host) != ""
}

func secondsOrZero(v int) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
