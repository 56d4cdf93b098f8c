package testsupport

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"tiergate/internal/adapters/postgres"
)

// PostgresTestHelper owns a test connection with the schema applied.
// Tables touched by a test are truncated on cleanup.
type PostgresTestHelper struct {
	client *postgres.Client
}

// NewPostgresTestHelper connects, applies the schema and registers cleanup
func NewPostgresTestHelper(t *testing.T) *PostgresTestHelper {
	t.Helper()

	ctx := context.Background()
	client, err := postgres.NewClient(ctx, PostgresConfigFromEnv(t))
	if err != nil {
		t.Fatalf("failed to create postgres client: %v", err)
	}
	if err := client.EnsureSchema(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	helper := &PostgresTestHelper{client: client}
	helper.truncate(t)
	t.Cleanup(func() {
		helper.truncate(t)
		_ = client.Close()
	})

	return helper
}

// DB returns the underlying database handle
func (h *PostgresTestHelper) DB() *sqlx.DB {
	return h.client.DB()
}

func (h *PostgresTestHelper) truncate(t *testing.T) {
	_, err := h.client.DB().Exec(`TRUNCATE adk_session_events, adk_sessions, adk_app_state, adk_user_state, user_profiles`)
	if err != nil {
		t.Logf("failed to truncate tables: %v", err)
	}
}
