package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

type sentMessage struct {
	chatID int64
	text   string
}

type recordingBot struct {
	sent []sentMessage
}

func (b *recordingBot) SendMessage(_ context.Context, chatID int64, text string) error {
	b.sent = append(b.sent, sentMessage{chatID, text})
	return nil
}

func (b *recordingBot) SendTyping(context.Context, int64) error { return nil }

func TestCommandRegistry_Handle(t *testing.T) {
	bot := &recordingBot{}
	reg := NewCommandRegistry(bot, logger.Nop())

	var gotArgs string
	reg.MustRegister(CommandConfig{
		Name:    "plan",
		Aliases: []string{"p"},
		Handler: func(c *CommandContext) error {
			gotArgs = c.Args
			return c.Reply("plan for " + c.Command)
		},
	})
	reg.MustRegister(CommandConfig{
		Name:    "broken",
		Handler: func(*CommandContext) error { return errors.ErrInternal },
	})

	ctx := context.Background()
	require.NoError(t, reg.Handle(ctx, 1, 10, "p", "x"))
	require.NoError(t, reg.Handle(ctx, 1, 10, "broken", ""))
	require.NoError(t, reg.Handle(ctx, 1, 10, "nope", ""))

	assert.Equal(t, "x", gotArgs)
	require.Len(t, bot.sent, 3)
	assert.Equal(t, sentMessage{10, "plan for plan"}, bot.sent[0])
	assert.Contains(t, bot.sent[1].text, "Something went wrong")
	assert.Contains(t, bot.sent[2].text, "Unknown command: /nope")

	assert.True(t, reg.Has("p"))
	names := []string{}
	for _, c := range reg.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"broken", "plan"}, names)
}

func TestCommandRegistry_RegisterErrors(t *testing.T) {
	reg := NewCommandRegistry(&recordingBot{}, logger.Nop())
	noop := func(*CommandContext) error { return nil }

	assert.ErrorIs(t, reg.Register(CommandConfig{Name: "x"}), errors.ErrInvalidInput)
	require.NoError(t, reg.Register(CommandConfig{Name: "start", Handler: noop}))
	assert.ErrorIs(t, reg.Register(CommandConfig{Name: "begin", Aliases: []string{"start"}, Handler: noop}), errors.ErrAlreadyExists)
}
