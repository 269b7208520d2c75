package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/savos-bot/pkg/logger"
	"github.com/Proton-105/savos-bot/pkg/metrics"
)

const unknownType = "unknown"

// Outcome is what the conversation layer needs to know about a handled error.
type Outcome struct {
	// UserMessage is empty when the error carries no text for the user;
	// callers then show their own localized fallback.
	UserMessage string
	Severity    Severity
	Retryable   bool
}

// Handler logs application errors, counts them and reports severe ones to Sentry.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, sentryEnabled: sentryEnabled}
}

// Handle records err once. attrs describe the update that failed, e.g. user_id and action.
func (h *Handler) Handle(ctx context.Context, err error, attrs ...slog.Attr) Outcome {
	if err == nil {
		return Outcome{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}

	var appErr *AppError
	if !errors.As(err, &appErr) || appErr == nil {
		attrs = append(attrs, slog.String("severity", string(SeverityHigh)), slog.Any("error", err))
		h.log.LogAttrs(ctx, slog.LevelError, "unhandled error", attrs...)
		metrics.RecordError(unknownType, string(SeverityHigh))
		h.report(err, attrs)
		return Outcome{Severity: SeverityHigh}
	}

	attrs = append(attrs,
		slog.String("code", appErr.Code),
		slog.String("type", appErr.Type()),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
		slog.String("message", appErr.Message),
	)
	if cause := appErr.Unwrap(); cause != nil {
		attrs = append(attrs, slog.Any("cause", cause))
	}

	h.log.LogAttrs(ctx, levelFor(appErr.Severity), "application error", attrs...)
	metrics.RecordError(appErr.Type(), string(appErr.Severity))

	if appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh {
		h.report(err, attrs)
	}

	return Outcome{
		UserMessage: appErr.UserMessage,
		Severity:    appErr.Severity,
		Retryable:   appErr.Retryable,
	}
}

// low covers validation, rate limit and capacity errors
func levelFor(s Severity) slog.Level {
	switch s {
	case SeverityLow:
		return slog.LevelInfo
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func (h *Handler) report(err error, attrs []slog.Attr) {
	if !h.sentryEnabled {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for _, attr := range attrs {
			switch attr.Key {
			case "code", "severity", "type", "action":
				scope.SetTag(attr.Key, attr.Value.String())
			case "user_id":
				scope.SetUser(sentry.User{ID: attr.Value.String()})
			}
		}
		sentry.CaptureException(err)
	})
}
