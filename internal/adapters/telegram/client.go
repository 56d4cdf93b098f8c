package telegram

import (
	"context"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
	"tiergate/pkg/telegram"
)

// MaxMessageLength is Telegram's limit for one text message, in characters
const MaxMessageLength = 4096

// botAPI is the part of tgbotapi.BotAPI the bot uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is a long-polling Telegram bot with a rate limited sender
type Bot struct {
	api         botAPI
	log         *logger.Logger
	rateLimiter *rate.Limiter
	timeout     int

	mu      sync.RWMutex
	running bool
	handler func(context.Context, telegram.Update)
}

// Config contains Telegram bot configuration
type Config struct {
	Token          string
	Debug          bool
	Timeout        int // long polling timeout in seconds
	HTTPTimeout    time.Duration
	RateLimitRate  int // messages per second
	RateLimitBurst int
}

// NewBot authorizes the token and returns a bot ready to Start
func NewBot(cfg Config, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "telegram bot token is required")
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 90 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}
	api.Debug = cfg.Debug

	log.Infow("Authorized on Telegram", "account", api.Self.UserName)
	return newBot(api, cfg, log), nil
}

func newBot(api botAPI, cfg Config, log *logger.Logger) *Bot {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60
	}
	if cfg.RateLimitRate == 0 {
		cfg.RateLimitRate = 20 // Telegram allows about 30/s per bot
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 30
	}
	return &Bot{
		api:         api,
		log:         log.With("component", "telegram_bot"),
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRate), cfg.RateLimitBurst),
		timeout:     cfg.Timeout,
	}
}

// SetHandler registers the update handler. Each update runs in its own goroutine.
func (b *Bot) SetHandler(handler func(context.Context, telegram.Update)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
}

// Start polls for updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.mu.Unlock()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)

	b.log.Infow("✓ Telegram bot started, waiting for updates")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.Stop()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.Stop()
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.dispatch(ctx, update)
			}()
		}
	}
}

// Stop stops receiving updates
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.api.StopReceivingUpdates()
	b.running = false
	b.log.Infow("✓ Telegram bot stopped")
}

func (b *Bot) dispatch(ctx context.Context, raw tgbotapi.Update) {
	b.mu.RLock()
	handler := b.handler
	b.mu.RUnlock()

	update, ok := ConvertUpdate(raw)
	if !ok {
		b.log.Debugw("Ignoring non-text update", "update_id", raw.UpdateID)
		return
	}
	if handler == nil {
		b.log.Debugw("No handler registered", "update_id", raw.UpdateID)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("Update handler panicked", "update_id", raw.UpdateID, "panic", r)
		}
	}()
	handler(ctx, update)
}

// ConvertUpdate maps a text message update onto the library-free type.
// Updates without a text message are reported as not ok.
func ConvertUpdate(raw tgbotapi.Update) (telegram.Update, bool) {
	m := raw.Message
	if m == nil || m.Text == "" || m.Chat == nil {
		return telegram.Update{}, false
	}

	msg := &telegram.Message{
		MessageID: m.MessageID,
		Chat:      &telegram.Chat{ID: m.Chat.ID, Type: m.Chat.Type},
		Text:      m.Text,
	}
	if m.From != nil {
		msg.From = &telegram.User{
			ID:        m.From.ID,
			FirstName: m.From.FirstName,
			Username:  m.From.UserName,
			IsBot:     m.From.IsBot,
		}
	}
	msg.ParseCommand()

	return telegram.Update{UpdateID: raw.UpdateID, Message: msg}, true
}

// SendMessage sends text as plain text, split into chunks Telegram accepts
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range SplitMessage(text, MaxMessageLength) {
		if err := b.rateLimiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter wait failed")
		}

		start := time.Now()
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			b.log.Errorw("Failed to send message", "chat_id", chatID, "error", err)
			return errors.Wrap(err, "failed to send message")
		}
		b.log.Debugw("Message sent", "chat_id", chatID, "length", len(chunk), "duration_ms", time.Since(start).Milliseconds())
	}
	return nil
}

// SendTyping shows the typing indicator
func (b *Bot) SendTyping(ctx context.Context, chatID int64) error {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait failed")
	}
	// chat actions answer with true, not a message, so Send cannot decode them
	_, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

// SplitMessage cuts text into pieces of at most limit runes, preferring
// line breaks. Empty text yields one placeholder chunk.
func SplitMessage(text string, limit int) []string {
	if text == "" {
		return []string{"(empty response)"}
	}

	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		text = string(runes[cut:])
	}
	return append(chunks, text)
}

var _ telegram.Bot = (*Bot)(nil)
