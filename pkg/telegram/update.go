package telegram

import "strings"

// Update is an incoming Telegram update, decoupled from the bot library
type Update struct {
	UpdateID int      `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is a Telegram text message
type Message struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat"`
	Text      string `json:"text,omitempty"`
	IsCommand bool   `json:"-"`
	Command   string `json:"-"` // without the leading slash
	Arguments string `json:"-"`
}

// User is a Telegram account
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
	IsBot     bool   `json:"is_bot,omitempty"`
}

// Chat is a Telegram chat
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"` // private, group, supergroup, channel
}

// HasMessage reports whether the update carries a message
func (u *Update) HasMessage() bool {
	return u.Message != nil
}

// ParseCommand fills IsCommand, Command and Arguments from Text.
// Accepts "/cmd args" and "/cmd@botname args".
func (m *Message) ParseCommand() {
	if m == nil {
		return
	}
	m.IsCommand, m.Command, m.Arguments = false, "", ""

	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return
	}

	m.IsCommand = true
	command, _, _ := strings.Cut(fields[0], "@")
	m.Command = strings.ToLower(command)
	m.Arguments = strings.Join(fields[1:], " ")
}
