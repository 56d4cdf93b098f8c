package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"tiergate/internal/adapters/config"
	"tiergate/pkg/errors"
)

// Client wraps sqlx.DB for PostgreSQL operations
type Client struct {
	db *sqlx.DB
}

// NewClient creates a new PostgreSQL client with connection pooling
func NewClient(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	return &Client{db: db}, nil
}

// DB returns the underlying sqlx.DB instance
func (c *Client) DB() *sqlx.DB {
	return c.db
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Health checks database connectivity
func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// EnsureSchema creates the tables this service owns
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply postgres schema")
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS adk_sessions (
		id          UUID PRIMARY KEY,
		app_name    TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		session_id  TEXT NOT NULL,
		state       JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (app_name, user_id, session_id)
	)`,
	`CREATE TABLE IF NOT EXISTS adk_session_events (
		id              UUID PRIMARY KEY,
		seq             BIGSERIAL,
		session_row_id  UUID NOT NULL REFERENCES adk_sessions(id) ON DELETE CASCADE,
		event_id        TEXT NOT NULL,
		invocation_id   TEXT NOT NULL DEFAULT '',
		author          TEXT NOT NULL,
		branch          TEXT NOT NULL DEFAULT '',
		content         JSONB,
		actions         JSONB NOT NULL DEFAULT '{}'::jsonb,
		usage_metadata  JSONB,
		turn_complete   BOOLEAN NOT NULL DEFAULT false,
		error_code      TEXT NOT NULL DEFAULT '',
		error_message   TEXT NOT NULL DEFAULT '',
		timestamp       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_adk_session_events_session
		ON adk_session_events (session_row_id, timestamp, seq)`,
	`CREATE TABLE IF NOT EXISTS adk_app_state (
		app_name   TEXT PRIMARY KEY,
		state      JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS adk_user_state (
		app_name   TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		state      JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (app_name, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id       TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		plan          SMALLINT NOT NULL DEFAULT 1,
		plan_name     TEXT NOT NULL DEFAULT 'Basic Plan',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}
