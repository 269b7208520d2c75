package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantCmd  string
		wantArgs string
	}{
		{name: "plain", text: "/start", wantCmd: "/start"},
		{name: "bot suffix", text: "/Stats@SavosBot", wantCmd: "/stats"},
		{name: "arguments", text: "/start ref_42 now", wantCmd: "/start", wantArgs: "ref_42 now"},
		{name: "surrounding space", text: "  /help  ", wantCmd: "/help"},
		{name: "free text", text: "+7 999 000 11 22", wantArgs: "+7 999 000 11 22"},
		{name: "empty", text: ""},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cmd, args := ParseCommand(tc.text)
			assert.Equal(t, tc.wantCmd, cmd)
			assert.Equal(t, tc.wantArgs, args)
		})
	}
}
