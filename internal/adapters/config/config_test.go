package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tiergate", cfg.App.Name)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, []string{"*"}, cfg.HTTP.AllowOrigins)
	assert.Equal(t, "memory", cfg.Sessions.Backend)
	assert.Equal(t, "gemini-2.0-flash", cfg.AI.Model)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Auth.RequireToken)
	assert.Equal(t, 5*time.Minute, cfg.Workers.UsageReportInterval)
	assert.Equal(t, 24*time.Hour, cfg.Workers.UsageReportWindow)

	assert.False(t, cfg.Postgres.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.ClickHouse.Enabled())
	assert.False(t, cfg.Telegram.Enabled())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SESSION_BACKEND", "postgres")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Sessions.UsePostgres())
	assert.Equal(t, "host=db port=5432 user=postgres password=secret dbname=tiergate sslmode=disable", cfg.Postgres.DSN())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Config)
		field string
	}{
		{
			name:  "postgres backend without host",
			setup: func(c *Config) { c.Sessions.Backend = "postgres" },
			field: "SESSION_BACKEND",
		},
		{
			name:  "unknown provider",
			setup: func(c *Config) { c.AI.Provider = "claude" },
			field: "AI_PROVIDER",
		},
		{
			name: "default secret in production",
			setup: func(c *Config) {
				c.App.Env = "production"
				c.Auth.JWTSecret = "change-me-in-production"
			},
			field: "JWT_SECRET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AI: AIConfig{Provider: "gemini"}}
			tt.setup(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var vErr *errors.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
			assert.True(t, errors.Is(err, errors.ErrInvalidInput))
		})
	}
}
