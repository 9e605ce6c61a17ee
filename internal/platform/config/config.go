// Package config builds runtime configuration from the environment so main
// stays lean. Every knob has a development default; production deployments
// override via CONFORMA_* variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all runtime configuration.
type Config struct {
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Workflow WorkflowConfig
	Auth     AuthConfig
	Log      LogConfig
}

// HTTPConfig captures HTTP server level configuration.
type HTTPConfig struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// PostgresConfig configures the document store connection. An empty URL keeps
// the service on in-memory stores (development and tests).
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

// RedisConfig configures the notification fanout. An empty URL disables Redis
// and notifications fall back to log-only.
type RedisConfig struct {
	URL           string
	PoolSize      int
	MinIdleConns  int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	NotifyChannel string
}

// KafkaConfig configures the quality event stream. Empty Brokers disables the
// sink and trail events stay store-only.
type KafkaConfig struct {
	Brokers     []string
	EventsTopic string
	ClientID    string
}

// WorkflowConfig holds the tunable workflow rules.
type WorkflowConfig struct {
	// DispositionQuorum is how many distinct approvers close a disposition.
	DispositionQuorum int
	// CAPAReviewLead is how far out auto-generated corrective actions
	// schedule their effectiveness review.
	CAPAReviewLead time.Duration
}

// AuthConfig carries actor-identity and admin-surface credentials.
type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	Audience      string
	AdminToken    string
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            envOr("CONFORMA_ADDR", ":8080"),
			RequestTimeout:  envDuration("CONFORMA_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: envDuration("CONFORMA_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("CONFORMA_POSTGRES_URL"),
			MaxOpenConns:    envInt("CONFORMA_POSTGRES_MAX_OPEN", 25),
			MaxIdleConns:    envInt("CONFORMA_POSTGRES_MAX_IDLE", 5),
			ConnMaxLifetime: envDuration("CONFORMA_POSTGRES_CONN_LIFETIME", 30*time.Minute),
			Migrate:         envBool("CONFORMA_POSTGRES_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:           os.Getenv("CONFORMA_REDIS_URL"),
			PoolSize:      envInt("CONFORMA_REDIS_POOL_SIZE", 10),
			MinIdleConns:  envInt("CONFORMA_REDIS_MIN_IDLE", 2),
			DialTimeout:   envDuration("CONFORMA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:   envDuration("CONFORMA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout:  envDuration("CONFORMA_REDIS_WRITE_TIMEOUT", 3*time.Second),
			NotifyChannel: envOr("CONFORMA_REDIS_NOTIFY_CHANNEL", "conforma:notifications"),
		},
		Kafka: KafkaConfig{
			Brokers:     envList("CONFORMA_KAFKA_BROKERS"),
			EventsTopic: envOr("CONFORMA_KAFKA_EVENTS_TOPIC", "conforma.quality.events"),
			ClientID:    envOr("CONFORMA_KAFKA_CLIENT_ID", "conforma"),
		},
		Workflow: WorkflowConfig{
			DispositionQuorum: envInt("CONFORMA_DISPOSITION_QUORUM", 2),
			CAPAReviewLead:    envDuration("CONFORMA_CAPA_REVIEW_LEAD", 7*24*time.Hour),
		},
		Auth: AuthConfig{
			JWTSigningKey: envOr("CONFORMA_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        envOr("CONFORMA_JWT_ISSUER", "conforma"),
			Audience:      envOr("CONFORMA_JWT_AUDIENCE", "conforma-api"),
			AdminToken:    os.Getenv("CONFORMA_ADMIN_TOKEN"),
		},
		Log: LogConfig{
			Level:  envOr("CONFORMA_LOG_LEVEL", "info"),
			Format: envOr("CONFORMA_LOG_FORMAT", "text"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
