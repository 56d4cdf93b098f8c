package telegram

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"tiergate/internal/agents"
	"tiergate/internal/domain/plan"
	"tiergate/internal/testsupport"
	"tiergate/internal/tools"
	"tiergate/internal/tools/general"
	"tiergate/internal/tools/shared"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
	"tiergate/pkg/telegram"
)

type recordingBot struct {
	mu     sync.Mutex
	sent   []string
	typing int
}

func (b *recordingBot) SendMessage(_ context.Context, _ int64, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, text)
	return nil
}

func (b *recordingBot) SendTyping(context.Context, int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typing++
	return nil
}

func (b *recordingBot) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sent) == 0 {
		return ""
	}
	return b.sent[len(b.sent)-1]
}

// fakeTurns keeps session states in memory and answers turns with reply
type fakeTurns struct {
	states  map[string]*testsupport.MapState
	reply   string
	turnErr error
	turns   []agents.TurnRequest
}

func newFakeTurns() *fakeTurns {
	return &fakeTurns{states: make(map[string]*testsupport.MapState)}
}

func (f *fakeTurns) Collect(_ context.Context, req agents.TurnRequest) ([]*session.Event, error) {
	f.turns = append(f.turns, req)
	if f.turnErr != nil {
		return nil, f.turnErr
	}
	ev := &session.Event{Author: agents.BasicAgentName}
	ev.Content = genai.NewContentFromText(f.reply, genai.RoleModel)
	return []*session.Event{ev}, nil
}

func (f *fakeTurns) EnsureSession(_ context.Context, _, _, sessionID string, _ map[string]interface{}) (session.Session, error) {
	if _, ok := f.states[sessionID]; !ok {
		f.states[sessionID] = testsupport.NewMapState(nil)
	}
	return nil, nil
}

func (f *fakeTurns) DeleteSession(_ context.Context, _, _, sessionID string) error {
	if _, ok := f.states[sessionID]; !ok {
		return errors.ErrNotFound
	}
	delete(f.states, sessionID)
	return nil
}

func (f *fakeTurns) ResolvedTools(_ context.Context, resolver *tools.Resolver, _, _, sessionID string) ([]tools.Capability, plan.Tier, error) {
	st, ok := f.states[sessionID]
	if !ok {
		return nil, plan.Default, errors.ErrNotFound
	}
	return resolver.Resolve(st), resolver.TierOf(st), nil
}

func newTestHandler(t *testing.T) (*Handler, *recordingBot, *fakeTurns) {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, general.Register(reg, shared.Deps{Log: logger.Nop()}))
	bot := &recordingBot{}
	turns := newFakeTurns()
	return NewHandler(bot, turns, tools.NewResolver(reg, logger.Nop()), agents.BasicAgentName, logger.Nop()), bot, turns
}

func message(from, chat int64, text string) telegram.Update {
	msg := &telegram.Message{From: &telegram.User{ID: from}, Chat: &telegram.Chat{ID: chat}, Text: text}
	msg.ParseCommand()
	return telegram.Update{Message: msg}
}

func TestHandler_TextRunsTurn(t *testing.T) {
	h, bot, turns := newTestHandler(t)
	turns.reply = "It is noon."

	h.HandleUpdate(context.Background(), message(42, 99, "what time is it?"))

	require.Len(t, turns.turns, 1)
	req := turns.turns[0]
	assert.Equal(t, "tg_42", req.UserID)
	assert.Equal(t, "tg_99", req.SessionID)
	assert.Equal(t, agents.BasicAgentName, req.AppName)
	assert.Equal(t, "what time is it?", req.Message.Parts[0].Text)
	assert.Equal(t, 1, bot.typing)
	assert.Equal(t, "It is noon.", bot.last())
}

func TestHandler_TurnErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"busy", errors.ErrLockNotAcquired, "Still working"},
		{"timeout", context.DeadlineExceeded, "too long"},
		{"other", errors.ErrInternal, "something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, bot, turns := newTestHandler(t)
			turns.turnErr = tt.err
			h.HandleUpdate(context.Background(), message(1, 2, "hello"))
			assert.Contains(t, bot.last(), tt.want)
		})
	}
}

func TestHandler_PlanAndTools(t *testing.T) {
	h, bot, turns := newTestHandler(t)
	ctx := context.Background()

	h.HandleUpdate(ctx, message(42, 99, "/plan"))
	assert.Contains(t, bot.last(), "Current plan: Basic Plan")
	assert.Contains(t, bot.last(), "The Pro Plan unlocks 1 more tool(s).")
	assert.NotContains(t, bot.last(), "get_weather")

	require.NoError(t, turns.states["tg_99"].Set(plan.StateKey, 2))

	h.HandleUpdate(ctx, message(42, 99, "/tools"))
	assert.Contains(t, bot.last(), "get_weather")

	h.HandleUpdate(ctx, message(42, 99, "/start"))
	assert.Contains(t, bot.last(), "You are on the Pro Plan.")
}

func TestHandler_Reset(t *testing.T) {
	h, bot, turns := newTestHandler(t)
	ctx := context.Background()

	h.HandleUpdate(ctx, message(42, 99, "/start"))
	require.Contains(t, turns.states, "tg_99")

	h.HandleUpdate(ctx, message(42, 99, "/reset"))
	assert.NotContains(t, turns.states, "tg_99")
	assert.Contains(t, bot.last(), "Conversation cleared")

	h.HandleUpdate(ctx, message(42, 99, "/new"))
	assert.Contains(t, bot.last(), "Conversation cleared")
}

func TestHandler_IgnoresBotsAndHelp(t *testing.T) {
	h, bot, turns := newTestHandler(t)
	ctx := context.Background()

	update := message(1, 2, "hello")
	update.Message.From.IsBot = true
	h.HandleUpdate(ctx, update)
	assert.Empty(t, turns.turns)
	assert.Empty(t, bot.sent)

	h.HandleUpdate(ctx, message(1, 2, "/help"))
	for _, cmd := range []string{"/start", "/plan", "/tools", "/reset", "/help"} {
		assert.Contains(t, bot.last(), cmd)
	}
}
