package telegram

import "context"

// Bot sends messages on behalf of handlers
type Bot interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
}
