package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/internal/domain/session"
	"tiergate/internal/repository/postgres"
	"tiergate/internal/testsupport"
	"tiergate/pkg/errors"
)

func newSession(sessionID string, state map[string]interface{}) *session.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &session.Session{
		ID:        uuid.New(),
		AppName:   "basic_agent",
		UserID:    "u_123",
		SessionID: sessionID,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestSessionRepository_CreateGetDelete(t *testing.T) {
	db := testsupport.NewPostgresTestHelper(t)
	repo := postgres.NewSessionRepository(db.DB())
	ctx := context.Background()

	sess := newSession("s_1", map[string]interface{}{"plan": 2, "plan_name": "Pro Plan"})
	require.NoError(t, repo.Create(ctx, sess))

	err := repo.Create(ctx, newSession("s_1", nil))
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)

	got, err := repo.Get(ctx, "basic_agent", "u_123", "s_1", nil)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	// JSONB numbers come back as float64
	assert.Equal(t, float64(2), got.State["plan"])
	assert.Equal(t, "Pro Plan", got.State["plan_name"])
	assert.Empty(t, got.Events)

	require.NoError(t, repo.Delete(ctx, "basic_agent", "u_123", "s_1"))
	_, err = repo.Get(ctx, "basic_agent", "u_123", "s_1", nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "basic_agent", "u_123", "s_1"), errors.ErrNotFound)
}

func TestSessionRepository_Events(t *testing.T) {
	db := testsupport.NewPostgresTestHelper(t)
	repo := postgres.NewSessionRepository(db.DB())
	ctx := context.Background()

	sess := newSession("s_events", nil)
	require.NoError(t, repo.Create(ctx, sess))

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, repo.AppendEvent(ctx, sess.ID, &session.Event{
			EventID:      id,
			InvocationID: "inv",
			Author:       "basic_agent",
			Content:      json.RawMessage(`{"role":"model","parts":[{"text":"hi"}]}`),
			Timestamp:    base.Add(time.Duration(i) * time.Second),
			TurnComplete: i == 2,
			Actions: session.EventActions{
				StateDelta: map[string]interface{}{"step": i},
			},
			UsageMetadata: &session.UsageMetadata{TotalTokenCount: int32(i)},
		}))
	}

	all, err := repo.GetEvents(ctx, sess.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"e1", "e2", "e3"}, []string{all[0].EventID, all[1].EventID, all[2].EventID})
	assert.True(t, all[2].TurnComplete)
	assert.Equal(t, int32(2), all[2].UsageMetadata.TotalTokenCount)
	assert.JSONEq(t, `{"role":"model","parts":[{"text":"hi"}]}`, string(all[0].Content))

	recent, err := repo.Get(ctx, "basic_agent", "u_123", "s_events", &session.GetOptions{NumRecentEvents: 2})
	require.NoError(t, err)
	require.Len(t, recent.Events, 2)
	assert.Equal(t, "e2", recent.Events[0].EventID)
	assert.Equal(t, "e3", recent.Events[1].EventID)

	after, err := repo.GetEvents(ctx, sess.ID, &session.GetEventsOptions{After: base.Add(time.Second)})
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestSessionRepository_StateScopes(t *testing.T) {
	db := testsupport.NewPostgresTestHelper(t)
	repo := postgres.NewSessionRepository(db.DB())
	ctx := context.Background()

	_, err := repo.GetAppState(ctx, "basic_agent")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, repo.SetAppState(ctx, "basic_agent", map[string]interface{}{"motd": "hello"}))
	require.NoError(t, repo.SetAppState(ctx, "basic_agent", map[string]interface{}{"motd": "bye"}))
	appState, err := repo.GetAppState(ctx, "basic_agent")
	require.NoError(t, err)
	assert.Equal(t, "bye", appState.State["motd"])

	require.NoError(t, repo.SetUserState(ctx, "basic_agent", "u_123", map[string]interface{}{"lang": "en"}))
	userState, err := repo.GetUserState(ctx, "basic_agent", "u_123")
	require.NoError(t, err)
	assert.Equal(t, "en", userState.State["lang"])

	sess := newSession("s_state", map[string]interface{}{"plan": 1})
	require.NoError(t, repo.Create(ctx, sess))
	require.NoError(t, repo.UpdateState(ctx, "basic_agent", "u_123", "s_state", map[string]interface{}{"plan": 3}))
	got, err := repo.Get(ctx, "basic_agent", "u_123", "s_state", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(3), got.State["plan"])

	err = repo.UpdateState(ctx, "basic_agent", "u_123", "missing", map[string]interface{}{})
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSessionRepository_List(t *testing.T) {
	db := testsupport.NewPostgresTestHelper(t)
	repo := postgres.NewSessionRepository(db.DB())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newSession("s_a", nil)))
	other := newSession("s_b", nil)
	other.UserID = "u_456"
	require.NoError(t, repo.Create(ctx, other))

	mine, err := repo.List(ctx, "basic_agent", "u_123")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := repo.List(ctx, "basic_agent", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
