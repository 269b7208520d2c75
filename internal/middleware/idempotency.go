package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/bot/handlers"
	"github.com/Proton-105/savos-bot/internal/idempotency"
)

const defaultIdempotencyTTL = 24 * time.Hour

// Idempotency ensures handlers execute at most once per Telegram update, so a
// webhook redelivery does not register a phone or send a reply twice.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := updateKey(c)
			if key == "" {
				return next(c)
			}

			result, err := manager.Execute(handlers.Context(c), key, ttl, func(context.Context) (interface{}, error) {
				return nil, next(c)
			})
			if err != nil {
				if errors.Is(err, idempotency.ErrRequestInProgress) {
					log.Debug("duplicate update skipped while in progress", slog.String("key", key))
					return nil
				}
				return err
			}

			if result != nil && result.FromCache {
				log.Debug("duplicate update skipped", slog.String("key", key))
			}

			return nil
		}
	}
}

func updateKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return idempotency.CallbackKey(cb.ID)
	}

	if msg := c.Message(); msg != nil && msg.ID != 0 && msg.Chat != nil {
		return idempotency.MessageKey(msg.Chat.ID, msg.ID)
	}

	return ""
}
