package bot

import (
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/bot/handlers"
	"github.com/Proton-105/savos-bot/internal/bot/keyboard"
	errors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/internal/idempotency"
	"github.com/Proton-105/savos-bot/internal/middleware"
	"github.com/Proton-105/savos-bot/internal/state"
	"github.com/Proton-105/savos-bot/internal/usercache"
	"github.com/Proton-105/savos-bot/pkg/config"
)

// Options carries the optional infrastructure of the bot.
type Options struct {
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration
	RateLimit      *middleware.RateLimitMiddleware
	PhotoCache     usercache.Cache
	SentryEnabled  bool
}

// Bot wraps telebot.Bot with application dependencies required for handling updates.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	deps       handlers.Deps
	opts       Options
	router     *Router
	dispatcher *Dispatcher
	errHandler *errors.Handler
}

// New builds a telegram bot instance configured according to the application settings.
func New(cfg config.BotConfig, log *slog.Logger, deps handlers.Deps, opts Options) (*Bot, error) {
	if log == nil {
		log = slog.Default()
	}

	settings := telebot.Settings{
		Token: cfg.Token,
		OnError: func(err error, c telebot.Context) {
			log.Error("telegram update failed", slog.Any("error", err))
		},
	}

	if cfg.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen:   cfg.WebhookListen,
			Endpoint: &telebot.WebhookEndpoint{PublicURL: cfg.WebhookURL},
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Timeout,
		}
	}

	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	if len(deps.AdminIDs) == 0 {
		deps.AdminIDs = cfg.AdminIDs
	}

	return NewWithTelebot(tb, log, deps, opts), nil
}

// NewWithTelebot wires handlers onto an existing telebot instance.
func NewWithTelebot(tb *telebot.Bot, log *slog.Logger, deps handlers.Deps, opts Options) *Bot {
	if log == nil {
		log = slog.Default()
	}
	if deps.Log == nil {
		deps.Log = log
	}
	if deps.Keyboard == nil {
		deps.Keyboard = keyboard.NewBuilder(log)
	}
	if deps.Photos == nil {
		deps.Photos = NewPhotoResolver(tb, opts.PhotoCache, log)
	}

	dispatcher := NewDispatcher(deps.Users, log)

	b := &Bot{
		telebot:    tb,
		log:        log,
		deps:       deps,
		opts:       opts,
		router:     NewRouter(dispatcher, log),
		dispatcher: dispatcher,
		errHandler: errors.NewHandler(log, opts.SentryEnabled),
	}

	b.setupRouter()

	if opts.RateLimit != nil {
		b.telebot.Use(opts.RateLimit.Handle)
	}

	b.registerTelebotHandlers()

	return b
}

// Start runs the telegram bot event loop. It blocks until Stop is called.
func (b *Bot) Start() {
	if b.telebot == nil {
		return
	}

	if err := b.telebot.SetCommands(b.commandList()); err != nil {
		b.log.Warn("failed to publish bot commands", slog.Any("error", err))
	}

	b.telebot.Start()
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations such as health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) setupRouter() {
	d := b.deps

	b.router.Use(RecoveryMiddleware(b.log, b.errHandler, d.I18n))
	b.router.Use(LoggingMiddleware(b.log))
	// a failed update must reach Idempotency as an error so its record is dropped and a redelivery runs again
	b.router.Use(ErrorHandlingMiddleware(b.errHandler, d.I18n))
	b.router.Use(middleware.Idempotency(b.opts.Idempotency, b.opts.IdempotencyTTL, b.log))
	b.router.Use(MaintenanceMiddleware(d.Settings, d.IsAdmin, d.I18n))
	b.router.Use(TouchMiddleware(d.Users, b.log))
	b.router.Use(middleware.Metrics)

	help := handlers.NewHelpHandler(d)
	stats := handlers.NewStatsHandler(d)
	profile := handlers.NewProfileHandler(d)

	b.router.RegisterCommand(CommandStart, handlers.NewStartHandler(d))
	b.router.RegisterCommand(CommandHelp, help)
	b.router.RegisterCommand(CommandStats, stats)
	b.router.RegisterCommand(CommandSync, handlers.NewSyncHandler(d))
	b.router.RegisterCommand(CommandProfile, profile)
	b.router.RegisterCommand(CommandSettings, handlers.NewSettingsHandler(d))
	b.router.SetDefault(help)

	b.router.RegisterCallback(keyboard.CallbackStats, handlers.CallbackHandler(stats))
	b.router.RegisterCallback(keyboard.CallbackProfile, handlers.CallbackHandler(profile))
	b.router.RegisterCallback(keyboard.CallbackToggleMaintenance, handlers.HandleToggleMaintenance(d))

	b.dispatcher.RegisterStateHandler(state.StateUnknown, handlers.NewUnknownStateHandler(d))
	b.dispatcher.RegisterStateHandler(state.StateAwaitingPhone, handlers.NewAwaitingPhoneHandler(d))
	b.dispatcher.RegisterStateHandler(state.StateRegistered, handlers.NewRegisteredStateHandler(d))
}

func (b *Bot) registerTelebotHandlers() {
	b.telebot.Handle(telebot.OnText, b.router.Route)
	b.telebot.Handle(telebot.OnContact, b.router.Route)
	b.telebot.Handle(telebot.OnCallback, b.router.Route)
}

func (b *Bot) commandList() []telebot.Command {
	return []telebot.Command{
		{Text: "start", Description: "Начать работу"},
		{Text: "help", Description: "Показать помощь"},
		{Text: "stats", Description: "Показать статистику"},
		{Text: "profile", Description: "Мой профиль"},
	}
}
