package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/pkg/logger"
	"tiergate/pkg/telegram"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func TestConvertUpdate(t *testing.T) {
	raw := tgbotapi.Update{
		UpdateID: 7,
		Message: &tgbotapi.Message{
			MessageID: 3,
			From:      &tgbotapi.User{ID: 42, FirstName: "Ann", UserName: "ann"},
			Chat:      &tgbotapi.Chat{ID: 99, Type: "private"},
			Text:      "/plan@TierGateBot",
		},
	}

	update, ok := ConvertUpdate(raw)
	require.True(t, ok)
	assert.Equal(t, 7, update.UpdateID)
	assert.Equal(t, int64(42), update.Message.From.ID)
	assert.Equal(t, int64(99), update.Message.Chat.ID)
	assert.True(t, update.Message.IsCommand)
	assert.Equal(t, "plan", update.Message.Command)

	_, ok = ConvertUpdate(tgbotapi.Update{UpdateID: 8})
	assert.False(t, ok)
	_, ok = ConvertUpdate(tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}})
	assert.False(t, ok)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"(empty response)"}, SplitMessage("", 10))
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))

	chunks := SplitMessage("aaaa\nbbbbbbbb", 8)
	assert.Equal(t, []string{"aaaa\n", "bbbbbbbb"}, chunks)

	long := strings.Repeat("é", 25)
	chunks = SplitMessage(long, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, long, strings.Join(chunks, ""))
}

func TestBot_SendAndTyping(t *testing.T) {
	api := &fakeAPI{}
	bot := newBot(api, Config{}, logger.Nop())
	ctx := context.Background()

	require.NoError(t, bot.SendMessage(ctx, 5, strings.Repeat("x", MaxMessageLength+1)))
	require.NoError(t, bot.SendTyping(ctx, 5))

	require.Len(t, api.sent, 2)
	first := api.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(5), first.ChatID)
	assert.Empty(t, first.ParseMode)
	require.Len(t, api.requests, 1)
}

func TestBot_StartDispatchesUntilCancelled(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 2)}
	bot := newBot(api, Config{}, logger.Nop())

	got := make(chan telegram.Update, 2)
	bot.SetHandler(func(_ context.Context, u telegram.Update) { got <- u })

	api.updates <- tgbotapi.Update{UpdateID: 1, Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hi"}}
	api.updates <- tgbotapi.Update{UpdateID: 2}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Start(ctx) }()

	select {
	case u := <-got:
		assert.Equal(t, "hi", u.Message.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("update not dispatched")
	}

	cancel()
	require.NoError(t, <-done)
	api.mu.Lock()
	assert.True(t, api.stopped)
	api.mu.Unlock()
}
