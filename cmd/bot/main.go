package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/savos-bot/internal/bot"
	"github.com/Proton-105/savos-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/internal/health"
	"github.com/Proton-105/savos-bot/internal/i18n"
	"github.com/Proton-105/savos-bot/internal/idempotency"
	"github.com/Proton-105/savos-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/savos-bot/internal/jobs/handlers"
	"github.com/Proton-105/savos-bot/internal/lifecycle"
	"github.com/Proton-105/savos-bot/internal/middleware"
	"github.com/Proton-105/savos-bot/internal/outbox"
	"github.com/Proton-105/savos-bot/internal/ratelimit"
	"github.com/Proton-105/savos-bot/internal/repository"
	"github.com/Proton-105/savos-bot/internal/settings"
	"github.com/Proton-105/savos-bot/internal/user"
	"github.com/Proton-105/savos-bot/internal/usercache"
	"github.com/Proton-105/savos-bot/internal/website"
	"github.com/Proton-105/savos-bot/pkg/config"
	"github.com/Proton-105/savos-bot/pkg/graceful"
	"github.com/Proton-105/savos-bot/pkg/logger"
	"github.com/Proton-105/savos-bot/pkg/metrics"
	appredis "github.com/Proton-105/savos-bot/pkg/redis"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	rateLimitSweepInterval = time.Minute
	// longer than the widest configured window
	rateLimitRetention = 10 * time.Minute
	sentryFlushTimeout = 2 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, v, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "savos-bot: %v\n", err)
		return 1
	}

	flushSentry, err := logger.InitSentry(cfg.Sentry, version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "savos-bot: %v\n", err)
		return 1
	}

	appLog := logger.New(cfg.Logger, cfg.Sentry.Enabled)
	log := appLog.Logger
	slog.SetDefault(log)
	config.Watch(v, log, appLog.SetLevel)

	log.Info("starting savos bot",
		slog.String("version", version),
		slog.String("env", cfg.AppEnv),
		slog.String("mode", cfg.Bot.Mode),
		slog.String("sync_backend", cfg.Sync.Backend),
		slog.Bool("redis", cfg.Redis.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := lifecycle.NewShutdown(log)
	if code := start(ctx, cfg, log, shutdown); code != 0 {
		flushSentry(sentryFlushTimeout)
		_ = appLog.Close()
		return code
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	code := 0
	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("graceful shutdown finished with errors", slog.Any("error", err))
		code = 1
	}

	log.Info("savos bot stopped")
	flushSentry(sentryFlushTimeout)
	_ = appLog.Close()
	return code
}

// start wires every component, starts the background loops and registers their shutdown hooks.
// Hooks are registered in the order they must run.
func start(ctx context.Context, cfg *config.Config, log *slog.Logger, shutdown *lifecycle.Shutdown) int {
	translations, err := i18n.Load(cfg.I18n.DefaultLanguage)
	if err != nil {
		log.Error("failed to load translations", slog.Any("error", err))
		return 1
	}
	for _, lang := range translations.Languages() {
		if missing := translations.Missing(lang); len(missing) > 0 {
			log.Warn("translation keys fall back to the default language", slog.String("lang", lang), slog.Any("keys", missing))
		}
	}

	userRepo := repository.NewUserRepository(cfg.Storage.DataDir, log)
	if err := userRepo.Init(ctx); err != nil {
		log.Error("failed to prepare user storage", slog.String("data_dir", cfg.Storage.DataDir), slog.Any("error", err))
		return 1
	}
	settingsRepo := repository.NewSettingsRepository(cfg.Storage.DataDir, log)

	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		rdb, err = appredis.New(ctx, cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", slog.Any("error", err))
			return 1
		}
	}

	websiteClient := website.NewClient(cfg.Website, log)
	websiteClient.CheckConnection(ctx)
	deliverer := outbox.NewWebsiteDeliverer(websiteClient)

	var (
		ob        outbox.Outbox
		worker    jobs.Worker
		scheduler jobs.Scheduler
	)
	switch cfg.Sync.Backend {
	case "asynq":
		if rdb == nil {
			log.Error("sync.backend asynq requires redis.enabled")
			return 1
		}
		redisOpt := jobs.RedisOpt(cfg.Redis)
		ob = outbox.NewAsynqOutbox(jobs.NewManager(redisOpt, log), cfg.Sync.MaxAttempts, log)
		worker = jobs.NewWorker(redisOpt, cfg.Sync.Workers, log)
		scheduler = jobs.NewScheduler(redisOpt, cfg.Sync.StatsInterval, log)
	default:
		policy := apperrors.DefaultRetryPolicy()
		policy.MaxAttempts = cfg.Sync.MaxAttempts
		ob = outbox.NewMemoryOutbox(deliverer, cfg.Sync.Workers, cfg.Sync.QueueSize, policy, log)
	}

	settingsService := settings.NewService(settingsRepo, ob, log)
	if err := settingsService.Init(ctx, settings.Defaults(cfg.Website)); err != nil {
		log.Error("failed to initialize settings", slog.Any("error", err))
		return 1
	}
	userService := user.NewService(userRepo, settingsService, ob, log)

	if worker != nil {
		worker.RegisterHandler(jobs.TaskTypeDeliver, jobhandlers.NewDeliverHandler(deliverer, log))
		worker.RegisterHandler(jobs.TaskTypeStatsPush, jobhandlers.NewStatsPushHandler(userService, deliverer, log))
		if err := worker.Run(); err != nil {
			log.Error("failed to start jobs worker", slog.Any("error", err))
			return 1
		}
		if err := scheduler.RegisterTasks(); err != nil {
			log.Error("failed to register scheduled jobs", slog.Any("error", err))
			return 1
		}
		scheduler.Run()
	} else {
		go outbox.RunPeriodicStats(ctx, cfg.Sync.StatsInterval, userService, ob, log)
	}

	var photoCache usercache.Cache
	if rdb != nil {
		photoCache = usercache.NewRedisCache(rdb, cfg.PhotoCache.TTL)
	} else {
		photoCache = usercache.NewMemoryCache(cfg.PhotoCache.SizeMB, cfg.PhotoCache.TTL)
	}

	opts := bot.Options{
		PhotoCache:    photoCache,
		SentryEnabled: cfg.Sentry.Enabled,
	}

	rules := ratelimit.NewRules(cfg.RateLimit)
	if rules.Enabled() {
		memoryLimiter := ratelimit.NewMemoryLimiter(log)
		go memoryLimiter.Run(ctx, rateLimitSweepInterval, rateLimitRetention)

		var limiter ratelimit.Limiter = memoryLimiter
		if rdb != nil {
			limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb, log), memoryLimiter, log)
		}
		opts.RateLimit = middleware.NewRateLimitMiddleware(limiter, rules, translations, log)
	}

	if cfg.Idempotency.Enabled {
		if rdb != nil {
			opts.Idempotency = idempotency.NewManager(idempotency.NewRedisStore(rdb, log), log)
			opts.IdempotencyTTL = cfg.Idempotency.TTL
		} else {
			log.Info("update de-duplication needs redis, skipping")
		}
	}

	deps := handlers.Deps{
		Users:    userService,
		Settings: settingsService,
		Website:  websiteClient,
		I18n:     translations,
		Log:      log,
	}

	b, err := bot.New(cfg.Bot, log, deps, opts)
	if err != nil {
		log.Error("failed to create telegram bot", slog.Any("error", err))
		return 1
	}

	checker := health.NewChecker(log)
	checker.AddCheck("storage", userRepo)
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))
	if rdb != nil {
		checker.AddCheck("redis", health.NewRedisChecker(rdb))
	}
	checker.AddOptionalCheck("website", websiteClient)

	probes := lifecycle.NewProbes(checker, log)
	opsServer := graceful.NewServer(log, cfg.Server.Port, lifecycle.NewOpsRouter(probes, log), cfg.Server.ShutdownTimeout)

	opsCtx, stopOps := context.WithCancel(context.Background())
	opsDone := make(chan struct{})
	go func() {
		defer close(opsDone)
		if err := opsServer.ListenAndServe(opsCtx); err != nil {
			log.Error("ops server stopped", slog.Any("error", err))
		}
	}()

	go metrics.NewUsersCollector(userRepo).Run(ctx)
	go b.Start()

	log.Info("savos bot is running", slog.String("ops_addr", cfg.Server.Port))

	shutdown.Register("readiness", probes.Drain)
	shutdown.Register("telegram", func(context.Context) error {
		b.Stop()
		return nil
	})
	if scheduler != nil {
		shutdown.Register("jobs scheduler", func(context.Context) error {
			scheduler.Shutdown()
			return nil
		})
	}
	shutdown.Register("outbox", ob.Close)
	if worker != nil {
		shutdown.Register("jobs worker", func(context.Context) error {
			worker.Shutdown()
			return nil
		})
	}
	shutdown.Register("ops server", func(ctx context.Context) error {
		stopOps()
		select {
		case <-opsDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if rdb != nil {
		shutdown.Register("redis", func(context.Context) error {
			return rdb.Close()
		})
	}

	return 0
}
