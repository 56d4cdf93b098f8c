package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"tiergate/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Auth          AuthConfig
	Sessions      SessionConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	AI            AIConfig
	Workers       WorkersConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"tiergate"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	Version  string `envconfig:"APP_VERSION" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"PORT" default:"8080"`
	AllowOrigins    []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`
}

type AuthConfig struct {
	JWTSecret  string        `envconfig:"JWT_SECRET" default:"change-me-in-production"`
	TokenTTL   time.Duration `envconfig:"JWT_TTL" default:"24h"`
	AdminToken string        `envconfig:"ADMIN_TOKEN"`

	// RequireToken puts run and session routes behind a /login token
	RequireToken bool `envconfig:"AUTH_REQUIRE_TOKEN" default:"true"`

	// MockDatabasePath is the profile source when Postgres is not configured
	MockDatabasePath string `envconfig:"MOCK_DATABASE_PATH" default:"mock_database.json"`
}

// SessionConfig selects where agent sessions live
type SessionConfig struct {
	Backend     string        `envconfig:"SESSION_BACKEND" default:"memory"` // memory | postgres
	LockTTL     time.Duration `envconfig:"SESSION_LOCK_TTL" default:"2m"`
	LockWait    time.Duration `envconfig:"SESSION_LOCK_WAIT" default:"30s"`
	TurnTimeout time.Duration `envconfig:"SESSION_TURN_TIMEOUT" default:"2m"`
}

func (c SessionConfig) UsePostgres() bool {
	return strings.EqualFold(c.Backend, "postgres")
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"postgres"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"tiergate"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) Enabled() bool { return c.Host != "" }

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"tiergate"`

	// tool usage rows are buffered and written in batches
	BatchSize     int           `envconfig:"CLICKHOUSE_BATCH_SIZE" default:"500"`
	FlushInterval time.Duration `envconfig:"CLICKHOUSE_FLUSH_INTERVAL" default:"5s"`
}

func (c ClickHouseConfig) Enabled() bool { return c.Host != "" }

func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	Debug    bool   `envconfig:"TELEGRAM_DEBUG" default:"false"`
}

func (c TelegramConfig) Enabled() bool { return c.BotToken != "" }

type AIConfig struct {
	Provider  string `envconfig:"AI_PROVIDER" default:"gemini"` // gemini | openai
	Model     string `envconfig:"AI_MODEL" default:"gemini-2.0-flash"`
	GeminiKey string `envconfig:"GEMINI_API_KEY"`
	OpenAIKey string `envconfig:"OPENAI_API_KEY"`

	// OpenAIBaseURL points the OpenAI provider at a compatible endpoint
	OpenAIBaseURL     string  `envconfig:"OPENAI_BASE_URL"`
	RequestsPerSecond float64 `envconfig:"AI_REQUESTS_PER_SECOND" default:"5"`
	RequestBurst      int     `envconfig:"AI_REQUEST_BURST" default:"10"`
	MaxOutputTokens   int     `envconfig:"AI_MAX_OUTPUT_TOKENS" default:"1024"`
}

// WorkersConfig controls background jobs
type WorkersConfig struct {
	UsageReportEnabled  bool          `envconfig:"USAGE_REPORT_ENABLED" default:"true"`
	UsageReportInterval time.Duration `envconfig:"USAGE_REPORT_INTERVAL" default:"5m"`
	UsageReportWindow   time.Duration `envconfig:"USAGE_REPORT_WINDOW" default:"24h"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Validate checks combinations envconfig tags cannot express
func (c *Config) Validate() error {
	if c.Sessions.UsePostgres() && !c.Postgres.Enabled() {
		return errors.NewValidationError("SESSION_BACKEND", "postgres backend requires POSTGRES_HOST", c.Sessions.Backend)
	}
	switch strings.ToLower(c.AI.Provider) {
	case "gemini", "openai":
	default:
		return errors.NewValidationError("AI_PROVIDER", "must be gemini or openai", c.AI.Provider)
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == "change-me-in-production" {
		return errors.NewValidationError("JWT_SECRET", "default secret is not allowed in production", "")
	}
	return nil
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
