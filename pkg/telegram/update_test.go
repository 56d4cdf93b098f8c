package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_ParseCommand(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantIsCommand bool
		wantCommand   string
		wantArgs      string
	}{
		{"simple command", "/start", true, "start", ""},
		{"command with args", "/plan show  all", true, "plan", "show all"},
		{"command with botname", "/tools@TierGateBot", true, "tools", ""},
		{"botname and args", "/reset@TierGateBot now", true, "reset", "now"},
		{"upper case", "/RESET", true, "reset", ""},
		{"plain text", "what time is it?", false, "", ""},
		{"slash only", "/", false, "", ""},
		{"empty", "", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &Message{Text: tt.text}
			msg.ParseCommand()

			assert.Equal(t, tt.wantIsCommand, msg.IsCommand)
			assert.Equal(t, tt.wantCommand, msg.Command)
			assert.Equal(t, tt.wantArgs, msg.Arguments)
		})
	}
}
