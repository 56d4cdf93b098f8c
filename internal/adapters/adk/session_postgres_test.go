package adk_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/session"

	"tiergate/internal/adapters/adk"
	domainsession "tiergate/internal/domain/session"
	"tiergate/internal/repository/postgres"
	"tiergate/internal/testsupport"
	"tiergate/pkg/logger"
)

func TestSessionService_PostgresAppendEvent(t *testing.T) {
	db := testsupport.NewPostgresTestHelper(t)
	repo := postgres.NewSessionRepository(db.DB())
	svc := adk.NewSessionService(domainsession.NewService(repo, logger.Nop()), logger.Nop())
	ctx := context.Background()

	created, err := svc.Create(ctx, &session.CreateRequest{
		AppName: "basic_agent",
		UserID:  "u_123",
		State:   map[string]any{"plan": 1},
	})
	require.NoError(t, err)
	sess := created.Session

	for i := 0; i < 3; i++ {
		event := &session.Event{
			ID:        fmt.Sprintf("event_%d", i),
			Timestamp: time.Now().Add(time.Duration(i) * time.Second),
			Author:    "basic_agent",
		}
		event.TurnComplete = true
		if i == 2 {
			event.Actions.StateDelta = map[string]any{"plan": 2, "plan_name": "Pro Plan"}
		}
		require.NoError(t, svc.AppendEvent(ctx, sess, event))
	}

	got, err := svc.Get(ctx, &session.GetRequest{
		AppName:   sess.AppName(),
		UserID:    sess.UserID(),
		SessionID: sess.ID(),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Session.Events().Len())

	plan, err := got.Session.State().Get("plan")
	require.NoError(t, err)
	assert.Equal(t, float64(2), plan)
}
