package bot

import (
	"context"
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/bot/handlers"
	"github.com/Proton-105/savos-bot/internal/state"
)

// StateResolver returns the conversation state of a user.
type StateResolver interface {
	State(ctx context.Context, userID int64) (state.State, error)
}

// Dispatcher routes incoming updates to state-specific handlers.
type Dispatcher struct {
	states        StateResolver
	stateHandlers map[state.State]handlers.Handler
	log           *slog.Logger
	mu            sync.RWMutex
}

// NewDispatcher creates a Dispatcher with an empty handlers registry.
func NewDispatcher(states StateResolver, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		states:        states,
		stateHandlers: make(map[state.State]handlers.Handler),
		log:           log,
	}
}

// RegisterStateHandler registers a handler for the provided state.
func (d *Dispatcher) RegisterStateHandler(s state.State, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateHandlers[s] = h
}

// Resolve returns the handler for the sender's current state, or nil when none is registered.
func (d *Dispatcher) Resolve(c telebot.Context) (handlers.Handler, error) {
	if c == nil || c.Sender() == nil {
		d.log.Warn("cannot dispatch without sender information")
		return nil, nil
	}

	userID := c.Sender().ID

	current, err := d.states.State(handlers.Context(c), userID)
	if err != nil {
		return nil, err
	}

	handler := d.getHandler(current)
	if handler == nil {
		d.log.Info("no handler registered for state", slog.String("state", current.String()), slog.Int64("user_id", userID))
	}

	return handler, nil
}

func (d *Dispatcher) getHandler(s state.State) handlers.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stateHandlers[s]
}
