package bot

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/bot/handlers"
	errors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/internal/i18n"
	"github.com/Proton-105/savos-bot/internal/settings"
	"github.com/Proton-105/savos-bot/internal/user"
	"github.com/Proton-105/savos-bot/pkg/logger"
)

// RecoveryMiddleware turns a handler panic into a logged error and a generic reply.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler, translations *i18n.Manager) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
				reply := failureReply(c, errHandler, translations, fmt.Errorf("panic recovered: %v", r))
				if sendErr := c.Send(reply); sendErr != nil {
					log.Error("failed to notify user about panic", slog.Any("error", sendErr))
				}
				err = nil
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware reports handler failures once and answers the user.
// The error is absorbed here, so anything that must observe failures sits inside it.
func ErrorHandlingMiddleware(errHandler *errors.Handler, translations *i18n.Manager) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			_ = c.Send(failureReply(c, errHandler, translations, err))
			return nil
		}
	}
}

func failureReply(c telebot.Context, errHandler *errors.Handler, translations *i18n.Manager, err error) string {
	attrs := []slog.Attr{slog.String("action", handlers.Action(c))}
	lang := ""
	if sender := c.Sender(); sender != nil {
		lang = sender.LanguageCode
		attrs = append(attrs, slog.Int64("user_id", sender.ID))
	}

	if errHandler != nil {
		if outcome := errHandler.Handle(handlers.Context(c), err, attrs...); outcome.UserMessage != "" {
			return outcome.UserMessage
		}
	}
	return translations.Translator(lang).T("common.error")
}

// LoggingMiddleware attaches a correlation id to the update and logs basic telemetry about it.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			correlationID := uuid.NewString()
			handlers.StoreContext(c, logger.WithCorrelationID(handlers.Context(c), correlationID))

			userID := int64(0)
			if c.Sender() != nil {
				userID = c.Sender().ID
			}
			action := handlers.Action(c)

			log.Debug("handling update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.String("correlation_id", correlationID),
			)

			err := next(c)

			log.Info("handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.String("correlation_id", correlationID),
				slog.Any("error", err),
			)

			return err
		}
	}
}

// MaintenanceMiddleware answers non-admin updates with the maintenance notice while maintenance mode is on.
func MaintenanceMiddleware(settingsService *settings.Service, isAdmin func(int64) bool, translations *i18n.Manager) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if settingsService == nil || c.Sender() == nil || isAdmin(c.Sender().ID) {
				return next(c)
			}

			if !settingsService.MaintenanceMode(handlers.Context(c)) {
				return next(c)
			}

			text := translations.Translator(c.Sender().LanguageCode).T("common.maintenance")
			if c.Callback() != nil {
				return c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: true})
			}
			return c.Send(text)
		}
	}
}

// TouchMiddleware refreshes the stored names of known users when they changed in Telegram.
func TouchMiddleware(userService *user.Service, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			if userService != nil && c.Sender() != nil {
				if err := userService.Touch(handlers.Context(c), handlers.ProfileOf(c.Sender())); err != nil {
					log.Warn("failed to refresh user profile", slog.Int64("user_id", c.Sender().ID), slog.Any("error", err))
				}
			}

			return next(c)
		}
	}
}
