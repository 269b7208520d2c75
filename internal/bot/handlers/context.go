package handlers

import (
	"context"

	telebot "gopkg.in/telebot.v3"
)

const contextKey = "request_ctx"

// StoreContext attaches ctx to the update so later handlers share its values.
func StoreContext(c telebot.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// Context returns the context stored by StoreContext, or context.Background.
func Context(c telebot.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if ctx, ok := c.Get(contextKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}
