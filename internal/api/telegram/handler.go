// Package telegram drives agent turns from Telegram chats.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"tiergate/internal/agents"
	"tiergate/internal/domain/plan"
	"tiergate/internal/tools"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
	"tiergate/pkg/telegram"
)

// Turns is the part of agents.TurnRunner the front-end drives
type Turns interface {
	Collect(ctx context.Context, req agents.TurnRequest) ([]*session.Event, error)
	EnsureSession(ctx context.Context, appName, userID, sessionID string, initial map[string]interface{}) (session.Session, error)
	DeleteSession(ctx context.Context, appName, userID, sessionID string) error
	ResolvedTools(ctx context.Context, resolver *tools.Resolver, appName, userID, sessionID string) ([]tools.Capability, plan.Tier, error)
}

// Handler turns chat messages into agent turns. A Telegram user maps to
// user id tg_<telegram id> and a chat to session id tg_<chat id>.
type Handler struct {
	bot      telegram.Bot
	turns    Turns
	resolver *tools.Resolver
	appName  string
	commands *telegram.CommandRegistry
	log      *logger.Logger
}

// NewHandler creates a handler with /start, /plan, /tools, /reset and /help
func NewHandler(bot telegram.Bot, turns Turns, resolver *tools.Resolver, appName string, log *logger.Logger) *Handler {
	h := &Handler{
		bot:      bot,
		turns:    turns,
		resolver: resolver,
		appName:  appName,
		log:      log.With("component", "telegram_handler"),
	}

	h.commands = telegram.NewCommandRegistry(bot, log)
	h.commands.MustRegister(telegram.CommandConfig{Name: "start", Description: "Greeting and available tools", Handler: h.handleStart})
	h.commands.MustRegister(telegram.CommandConfig{Name: "plan", Description: "Current plan and its tools", Handler: h.handlePlan})
	h.commands.MustRegister(telegram.CommandConfig{Name: "tools", Description: "Tools available right now", Handler: h.handleTools})
	h.commands.MustRegister(telegram.CommandConfig{Name: "reset", Aliases: []string{"new"}, Description: "Start a fresh conversation", Handler: h.handleReset})
	h.commands.MustRegister(telegram.CommandConfig{Name: "help", Description: "List commands", Handler: h.handleHelp})
	return h
}

// UserID maps a Telegram account to an agent user id
func UserID(telegramID int64) string {
	return "tg_" + strconv.FormatInt(telegramID, 10)
}

// SessionID maps a Telegram chat to an agent session id
func SessionID(chatID int64) string {
	return "tg_" + strconv.FormatInt(chatID, 10)
}

// HandleUpdate processes one update
func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) {
	if !update.HasMessage() {
		return
	}
	msg := update.Message
	if msg.From == nil || msg.Chat == nil || msg.From.IsBot {
		return
	}

	var err error
	if msg.IsCommand {
		err = h.commands.Handle(ctx, msg.From.ID, msg.Chat.ID, msg.Command, msg.Arguments)
	} else {
		err = h.handleText(ctx, msg)
	}
	if err != nil {
		h.log.Errorw("Failed to handle message", "chat_id", msg.Chat.ID, "message_id", msg.MessageID, "error", err)
	}
}

func (h *Handler) handleText(ctx context.Context, msg *telegram.Message) error {
	chatID := msg.Chat.ID
	if err := h.bot.SendTyping(ctx, chatID); err != nil {
		h.log.Debugw("Failed to send typing action", "chat_id", chatID, "error", err)
	}

	events, err := h.turns.Collect(ctx, agents.TurnRequest{
		AppName:   h.appName,
		UserID:    UserID(msg.From.ID),
		SessionID: SessionID(chatID),
		Message:   genai.NewContentFromText(msg.Text, genai.RoleUser),
	})
	if err != nil {
		_ = h.bot.SendMessage(ctx, chatID, turnErrorText(err))
		return errors.Wrap(err, "agent turn")
	}

	return h.bot.SendMessage(ctx, chatID, agents.FinalText(events))
}

func turnErrorText(err error) string {
	switch {
	case errors.Is(err, errors.ErrLockNotAcquired):
		return "Still working on your previous message. Please wait a moment."
	case errors.Is(err, context.DeadlineExceeded):
		return "That took too long. Please try again."
	default:
		return "Sorry, something went wrong while answering. Please try again."
	}
}

func (h *Handler) handleStart(c *telegram.CommandContext) error {
	caps, tier, err := h.sessionTools(c)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("Hi! I can tell the time, share the support link, look up your plan and upgrade it.\n\n")
	fmt.Fprintf(&b, "You are on the %s.\n", tier.Label())
	writeTools(&b, caps)
	b.WriteString("\nJust send a message to start.")
	return c.Reply(b.String())
}

func (h *Handler) handlePlan(c *telegram.CommandContext) error {
	caps, tier, err := h.sessionTools(c)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current plan: %s\n", tier.Label())
	if next := tier + 1; next.Valid() {
		if extra := len(h.resolver.ForTier(next)) - len(caps); extra > 0 {
			fmt.Fprintf(&b, "The %s unlocks %d more tool(s).\n", next.Label(), extra)
		}
	}
	writeTools(&b, caps)
	return c.Reply(b.String())
}

func (h *Handler) handleTools(c *telegram.CommandContext) error {
	caps, _, err := h.sessionTools(c)
	if err != nil {
		return err
	}
	var b strings.Builder
	writeTools(&b, caps)
	return c.Reply(b.String())
}

func (h *Handler) handleReset(c *telegram.CommandContext) error {
	err := h.turns.DeleteSession(c.Ctx, h.appName, UserID(c.TelegramID), SessionID(c.ChatID))
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}
	return c.Reply("Conversation cleared. Your next message starts a new session.")
}

func (h *Handler) handleHelp(c *telegram.CommandContext) error {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, cmd := range h.commands.Commands() {
		fmt.Fprintf(&b, "/%s - %s\n", cmd.Name, cmd.Description)
	}
	return c.Reply(b.String())
}

// sessionTools resolves tools of the chat's session, creating it first so a
// brand new chat reports its profile plan
func (h *Handler) sessionTools(c *telegram.CommandContext) ([]tools.Capability, plan.Tier, error) {
	userID, sessionID := UserID(c.TelegramID), SessionID(c.ChatID)
	if _, err := h.turns.EnsureSession(c.Ctx, h.appName, userID, sessionID, nil); err != nil {
		return nil, plan.Default, err
	}
	return h.turns.ResolvedTools(c.Ctx, h.resolver, h.appName, userID, sessionID)
}

func writeTools(b *strings.Builder, caps []tools.Capability) {
	b.WriteString("Available tools:\n")
	for _, d := range tools.Describe(caps) {
		fmt.Fprintf(b, "- %s: %s\n", d.Name, d.Description)
	}
}
