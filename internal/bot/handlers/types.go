package handlers

import (
	"strings"

	telebot "gopkg.in/telebot.v3"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// ParseCommand splits "/cmd@BotName args" into "/cmd" and "args".
// Text without a leading slash yields an empty command.
func ParseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	cmd, args, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}

	return strings.ToLower(cmd), strings.TrimSpace(args)
}

// Action names the update for logs and metrics without leaking free text.
func Action(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil {
		if data := strings.TrimSpace(cb.Data); data != "" {
			return data
		}
		return "callback"
	}

	if msg := c.Message(); msg != nil && msg.Contact != nil {
		return "contact"
	}

	if cmd, _ := ParseCommand(c.Text()); cmd != "" {
		return cmd
	}

	if c.Text() != "" {
		return "text"
	}

	return "unknown"
}
