package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/internal/i18n"
	"github.com/Proton-105/savos-bot/internal/ratelimit"
)

// RateLimitMiddleware enforces per-user and per-command rate limits for incoming Telegram updates.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	i18n    *i18n.Manager
	now     func() time.Time
	log     *slog.Logger
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, translations *i18n.Manager, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		i18n:    translations,
		now:     time.Now,
		log:     log,
	}
}

// Handle returns a telebot middleware. Limiter failures let the update through.
func (m *RateLimitMiddleware) Handle(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if m.limiter == nil || !m.rules.Enabled() {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil || m.rules.IsWhitelisted(sender.ID) {
			return next(c)
		}

		if limit, window, err := m.rules.GetPerUserLimit(); err == nil {
			if blocked := m.check(c, fmt.Sprintf("user:%d", sender.ID), limit, window); blocked != nil {
				return m.reject(c, blocked)
			}
		}

		cmd, _ := handlers.ParseCommand(c.Text())
		if cmd == "" || c.Callback() != nil {
			return next(c)
		}

		limit, window, err := m.rules.GetCommandLimit(cmd)
		if err != nil {
			if !errors.Is(err, ratelimit.ErrNoRule) {
				m.log.Warn("invalid command rate limit", slog.String("command", cmd), slog.Any("error", err))
			}
			return next(c)
		}

		if blocked := m.check(c, fmt.Sprintf("cmd:%s:%d", cmd, sender.ID), limit, window); blocked != nil {
			return m.reject(c, blocked)
		}

		return next(c)
	}
}

// check returns the limiter result when the request must be rejected.
func (m *RateLimitMiddleware) check(c telebot.Context, key string, limit int, window time.Duration) *ratelimit.Result {
	result, err := m.limiter.Check(handlers.Context(c), key, limit, window)
	switch {
	case err == nil:
		if result != nil && !result.Allowed {
			return result
		}
		return nil
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		if result == nil {
			result = &ratelimit.Result{ResetAt: m.now().Add(window)}
		}
		return result
	default:
		m.log.Warn("rate limiter error", slog.String("key", key), slog.Any("error", err))
		return nil
	}
}

func (m *RateLimitMiddleware) reject(c telebot.Context, result *ratelimit.Result) error {
	retryAfter := result.RetryAfter(m.now())

	var userID int64
	lang := ""
	if sender := c.Sender(); sender != nil {
		userID = sender.ID
		lang = sender.LanguageCode
	}
	m.log.Warn("rate limit exceeded",
		slog.Int64("user_id", userID),
		slog.Int("retry_after", retryAfter),
		slog.Any("error", apperrors.NewRateLimitError(retryAfter)),
	)

	text := m.i18n.Translator(lang).Tf("common.rate_limited", retryAfter)
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: true})
	}
	return c.Send(text)
}
