package middleware

import (
	"errors"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/pkg/metrics"
)

// Metrics times every routed update. The action label is the command, callback or "text"/"contact",
// and the status label is "ok", the AppError type, or "error".
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)
		metrics.RecordCommand(handlers.Action(c), outcomeStatus(err), time.Since(start))
		return err
	}
}

func outcomeStatus(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Type()
	}
	return "error"
}
