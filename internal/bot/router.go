package bot

import (
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/bot/handlers"
	"github.com/Proton-105/savos-bot/internal/bot/keyboard"
)

// Router dispatches commands, callbacks, and state-aware updates.
// Every update, matched or not, runs through the middleware chain.
type Router struct {
	mu          sync.RWMutex
	commands    map[string]handlers.Handler
	callbacks   map[string]handlers.CallbackHandler
	fallback    handlers.Handler
	middlewares []handlers.Middleware
	// chain is resolve wrapped by middlewares; rebuilt by Use
	chain handlers.Handler

	dispatcher *Dispatcher
	log        *slog.Logger
}

// NewRouter builds a Router with empty registries.
func NewRouter(dispatcher *Dispatcher, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	r := &Router{
		commands:   make(map[string]handlers.Handler),
		callbacks:  make(map[string]handlers.CallbackHandler),
		dispatcher: dispatcher,
		log:        log,
	}
	r.chain = r.resolve
	return r
}

// RegisterCommand registers a handler for a bot command such as "/start".
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	r.commands[cmd] = h
	r.mu.Unlock()
}

// RegisterCallback registers a handler for the unique part of callback data.
func (r *Router) RegisterCallback(unique string, h handlers.CallbackHandler) {
	r.mu.Lock()
	r.callbacks[unique] = h
	r.mu.Unlock()
}

// Use appends a middleware. The first registered middleware runs outermost.
func (r *Router) Use(mw handlers.Middleware) {
	if mw == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.middlewares = append(r.middlewares, mw)
	chain := handlers.Handler(r.resolve)
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		chain = r.middlewares[i](chain)
	}
	r.chain = chain
}

// SetDefault sets the handler for unknown commands.
func (r *Router) SetDefault(h handlers.Handler) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// Route directs the incoming update to the appropriate handler.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	r.mu.RLock()
	chain := r.chain
	r.mu.RUnlock()

	return chain(c)
}

func (r *Router) resolve(c telebot.Context) error {
	if callback := c.Callback(); callback != nil {
		return r.handleCallback(c, callback.Data)
	}
	return r.handleMessage(c)
}

func (r *Router) handleCallback(c telebot.Context, data string) error {
	unique, _, err := keyboard.DecodeCallback(data)
	if err != nil {
		r.log.Debug("ignoring callback without data")
		return c.Respond()
	}

	r.mu.RLock()
	handler := r.callbacks[unique]
	r.mu.RUnlock()

	if handler == nil {
		r.log.Info("no callback handler found", slog.String("data", data))
		return c.Respond()
	}
	return handler(c)
}

// handleMessage routes commands by name. Contacts and plain text go to the state dispatcher.
func (r *Router) handleMessage(c telebot.Context) error {
	if msg := c.Message(); msg == nil || msg.Contact == nil {
		if cmd, _ := handlers.ParseCommand(c.Text()); cmd != "" {
			if handler := r.command(cmd); handler != nil {
				return handler(c)
			}
			return nil
		}
	}

	if r.dispatcher == nil {
		return nil
	}

	handler, err := r.dispatcher.Resolve(c)
	if err != nil || handler == nil {
		return err
	}
	return handler(c)
}

// command returns the handler for cmd, falling back to the default handler.
func (r *Router) command(cmd string) handlers.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if handler, ok := r.commands[cmd]; ok && handler != nil {
		return handler
	}
	return r.fallback
}
