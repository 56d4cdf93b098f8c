package telegram

import (
	"context"
	"fmt"
	"sort"

	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// CommandContext is what a command handler receives
type CommandContext struct {
	Ctx        context.Context
	TelegramID int64
	ChatID     int64
	Command    string
	Args       string
	Bot        Bot
}

// Reply sends text to the command's chat
func (c *CommandContext) Reply(text string) error {
	return c.Bot.SendMessage(c.Ctx, c.ChatID, text)
}

// CommandHandler handles one command
type CommandHandler func(ctx *CommandContext) error

// CommandConfig registers a command
type CommandConfig struct {
	Name        string
	Aliases     []string
	Description string
	Handler     CommandHandler
}

// CommandRegistry routes commands to handlers
type CommandRegistry struct {
	commands map[string]*CommandConfig
	bot      Bot
	log      *logger.Logger
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry(bot Bot, log *logger.Logger) *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*CommandConfig),
		bot:      bot,
		log:      log.With("component", "command_registry"),
	}
}

// Register adds a command and its aliases
func (cr *CommandRegistry) Register(config CommandConfig) error {
	if config.Name == "" || config.Handler == nil {
		return errors.Wrap(errors.ErrInvalidInput, "command needs a name and a handler")
	}
	for _, name := range append([]string{config.Name}, config.Aliases...) {
		if _, exists := cr.commands[name]; exists {
			return errors.Wrapf(errors.ErrAlreadyExists, "command /%s", name)
		}
	}

	cfg := config
	cr.commands[config.Name] = &cfg
	for _, alias := range config.Aliases {
		cr.commands[alias] = &cfg
	}
	cr.log.Debugw("Registered command", "name", config.Name, "aliases", config.Aliases)
	return nil
}

// MustRegister registers a command and panics on error
func (cr *CommandRegistry) MustRegister(config CommandConfig) {
	if err := cr.Register(config); err != nil {
		panic(err)
	}
}

// Has reports whether command is registered
func (cr *CommandRegistry) Has(command string) bool {
	_, ok := cr.commands[command]
	return ok
}

// Handle runs the handler of command. Unknown commands and handler errors
// are answered in the chat.
func (cr *CommandRegistry) Handle(ctx context.Context, telegramID, chatID int64, command, args string) error {
	config, ok := cr.commands[command]
	if !ok {
		cr.log.Debugw("Unknown command", "command", command, "telegram_id", telegramID)
		return cr.bot.SendMessage(ctx, chatID, fmt.Sprintf("Unknown command: /%s\nUse /help to see available commands.", command))
	}

	cmdCtx := &CommandContext{
		Ctx:        ctx,
		TelegramID: telegramID,
		ChatID:     chatID,
		Command:    config.Name,
		Args:       args,
		Bot:        cr.bot,
	}

	if err := config.Handler(cmdCtx); err != nil {
		cr.log.Errorw("Command failed", "command", config.Name, "telegram_id", telegramID, "error", err)
		return cr.bot.SendMessage(ctx, chatID, "Something went wrong. Please try again.")
	}
	return nil
}

// Commands returns the primary registrations sorted by name
func (cr *CommandRegistry) Commands() []*CommandConfig {
	var out []*CommandConfig
	for name, cfg := range cr.commands {
		if name == cfg.Name {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
