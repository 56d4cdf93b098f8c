package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/internal/domain/session"
	"tiergate/internal/repository/memory"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

func newService() (*session.Service, *memory.SessionRepository) {
	repo := memory.NewSessionRepository()
	return session.NewService(repo, logger.Nop()), repo
}

func TestService_CreateSplitsPrefixedState(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "basic_agent", "u1", "s1", map[string]interface{}{
		"plan":          2,
		"app:greeting":  "hi",
		"user:language": "en",
		"temp:scratch":  true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, sess.State["plan"])
	assert.Equal(t, "hi", sess.State["app:greeting"])
	assert.Equal(t, "en", sess.State["user:language"])
	assert.NotContains(t, sess.State, "temp:scratch")

	appState, err := repo.GetAppState(ctx, "basic_agent")
	require.NoError(t, err)
	assert.Equal(t, "hi", appState.State["greeting"])

	userState, err := repo.GetUserState(ctx, "basic_agent", "u1")
	require.NoError(t, err)
	assert.Equal(t, "en", userState.State["language"])
}

func TestService_CreateRequiresIdentity(t *testing.T) {
	svc, _ := newService()

	_, err := svc.CreateSession(context.Background(), "", "u1", "s1", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = svc.CreateSession(context.Background(), "basic_agent", "", "s1", nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestService_CreateDuplicate(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.CreateSession(ctx, "basic_agent", "u1", "s1", nil)
	require.NoError(t, err)

	_, err = svc.CreateSession(ctx, "basic_agent", "u1", "s1", nil)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
}

func TestService_CreateGeneratesID(t *testing.T) {
	svc, _ := newService()

	sess, err := svc.CreateSession(context.Background(), "basic_agent", "u1", "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.SessionID)
}

func TestService_AppendEventAppliesDelta(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "basic_agent", "u1", "s1", map[string]interface{}{"plan": 1})
	require.NoError(t, err)

	err = svc.AppendEvent(ctx, sess, &session.Event{
		EventID:   "e1",
		Author:    "basic_agent",
		Timestamp: time.Now(),
		Actions: session.EventActions{StateDelta: map[string]interface{}{
			"plan":         2,
			"plan_name":    "Pro Plan",
			"temp:started": 123,
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, sess.State["plan"])
	assert.NotContains(t, sess.State, "temp:started")
	assert.Len(t, sess.Events, 1)

	reloaded, err := svc.GetSession(ctx, "basic_agent", "u1", "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.State["plan"])
	assert.Equal(t, "Pro Plan", reloaded.State["plan_name"])
	require.Len(t, reloaded.Events, 1)
	assert.Equal(t, "e1", reloaded.Events[0].EventID)
}

func TestService_AppendEventSkipsPartial(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "basic_agent", "u1", "s1", nil)
	require.NoError(t, err)

	err = svc.AppendEvent(ctx, sess, &session.Event{
		EventID: "p1",
		Partial: true,
		Actions: session.EventActions{StateDelta: map[string]interface{}{"plan": 3}},
	})
	require.NoError(t, err)

	reloaded, err := svc.GetSession(ctx, "basic_agent", "u1", "s1", nil)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Events)
	assert.NotContains(t, reloaded.State, "plan")
}

func TestService_UserStateSharedAcrossSessions(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	first, err := svc.CreateSession(ctx, "basic_agent", "u1", "s1", nil)
	require.NoError(t, err)
	require.NoError(t, svc.AppendEvent(ctx, first, &session.Event{
		EventID:   "e1",
		Timestamp: time.Now(),
		Actions:   session.EventActions{StateDelta: map[string]interface{}{"user:nickname": "ada"}},
	}))

	second, err := svc.CreateSession(ctx, "basic_agent", "u1", "s2", nil)
	require.NoError(t, err)
	assert.Equal(t, "ada", second.State["user:nickname"])

	other, err := svc.CreateSession(ctx, "basic_agent", "u2", "s3", nil)
	require.NoError(t, err)
	assert.NotContains(t, other.State, "user:nickname")
}

func TestService_ListAndDelete(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		_, err := svc.CreateSession(ctx, "basic_agent", "u1", id, nil)
		require.NoError(t, err)
	}
	_, err := svc.CreateSession(ctx, "basic_agent", "u2", "s3", nil)
	require.NoError(t, err)

	sessions, err := svc.ListSessions(ctx, "basic_agent", "u1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)

	all, err := svc.ListSessions(ctx, "basic_agent", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, svc.DeleteSession(ctx, "basic_agent", "u1", "s1"))
	err = svc.DeleteSession(ctx, "basic_agent", "u1", "s1")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = svc.GetSession(ctx, "basic_agent", "u1", "s1", nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
