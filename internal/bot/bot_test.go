package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/bot/handlers"
	"github.com/Proton-105/savos-bot/internal/domain"
	"github.com/Proton-105/savos-bot/internal/i18n"
	"github.com/Proton-105/savos-bot/internal/idempotency"
	"github.com/Proton-105/savos-bot/internal/middleware"
	"github.com/Proton-105/savos-bot/internal/outbox"
	"github.com/Proton-105/savos-bot/internal/ratelimit"
	"github.com/Proton-105/savos-bot/internal/repository"
	"github.com/Proton-105/savos-bot/internal/settings"
	"github.com/Proton-105/savos-bot/internal/testutil"
	"github.com/Proton-105/savos-bot/internal/user"
	"github.com/Proton-105/savos-bot/internal/website"
	"github.com/Proton-105/savos-bot/pkg/config"
)

const adminID int64 = 777

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingOutbox struct {
	mu      sync.Mutex
	changes []outbox.Change
}

func (o *recordingOutbox) Enqueue(_ context.Context, change outbox.Change) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, change)
	return nil
}

func (o *recordingOutbox) Close(context.Context) error { return nil }

func (o *recordingOutbox) kinds() []outbox.Kind {
	o.mu.Lock()
	defer o.mu.Unlock()
	kinds := make([]outbox.Kind, 0, len(o.changes))
	for _, c := range o.changes {
		kinds = append(kinds, c.Kind)
	}
	return kinds
}

type fakeWebsite struct {
	connected bool
	health    website.HealthStatus
}

func (f *fakeWebsite) Connected() bool { return f.connected }

func (f *fakeWebsite) Health(context.Context) website.HealthStatus { return f.health }

type noPhotos struct{}

func (noPhotos) PhotoPath(context.Context, *telebot.User) string { return "" }

type harness struct {
	api      *testutil.TelegramServer
	tb       *telebot.Bot
	bot      *Bot
	users    repository.UserRepository
	settings *settings.Service
	outbox   *recordingOutbox
	website  *fakeWebsite
	nextID   int
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	api, tb := testutil.NewTelegramServer(t)
	ctx := context.Background()
	dir := t.TempDir()

	users := repository.NewUserRepository(dir, testLogger())
	require.NoError(t, users.Init(ctx))

	ob := &recordingOutbox{}
	settingsService := settings.NewService(repository.NewSettingsRepository(dir, testLogger()), ob, testLogger())
	require.NoError(t, settingsService.Init(ctx, settings.Defaults(config.WebsiteConfig{BaseURL: "https://savos.example"})))

	translations, err := i18n.Load("ru")
	require.NoError(t, err)

	site := &fakeWebsite{connected: true, health: website.HealthStatus{Status: "ok"}}

	deps := handlers.Deps{
		Users:    user.NewService(users, settingsService, ob, testLogger()),
		Settings: settingsService,
		Website:  site,
		Photos:   noPhotos{},
		I18n:     translations,
		AdminIDs: []int64{adminID},
	}

	return &harness{
		api:      api,
		tb:       tb,
		bot:      NewWithTelebot(tb, testLogger(), deps, opts),
		users:    users,
		settings: settingsService,
		outbox:   ob,
		website:  site,
	}
}

func (h *harness) text(from *telebot.User, text string) string {
	h.nextID++
	h.api.Reset()
	h.tb.ProcessUpdate(testutil.TextUpdate(h.nextID, from, text))
	return h.api.LastText()
}

func (h *harness) contact(from *telebot.User, ownerID int64, phone string) string {
	h.nextID++
	h.api.Reset()
	h.tb.ProcessUpdate(testutil.ContactUpdate(h.nextID, from, ownerID, phone))
	return h.api.LastText()
}

func (h *harness) callback(from *telebot.User, data string) string {
	h.nextID++
	h.api.Reset()
	h.tb.ProcessUpdate(testutil.CallbackUpdate(h.nextID, from, data))
	return h.api.LastText()
}

func TestBot_RegistrationFlow(t *testing.T) {
	h := newHarness(t, Options{})
	ivan := testutil.TestUser(42)
	ctx := context.Background()

	assert.Equal(t, "Пожалуйста, начните с команды /start", h.text(ivan, "hello"))

	reply := h.text(ivan, "/start")
	assert.Contains(t, reply, "Добро пожаловать в SavosBot Club, Ivan")
	sent := h.api.CallsTo("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text("reply_markup"), "request_contact")
	assert.Empty(t, h.outbox.kinds(), "a bare record is not pushed")

	stored, err := h.users.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, stored.HasPhone())
	assert.True(t, stored.Active())

	assert.Contains(t, h.text(ivan, "abc"), "Номер телефона введен некорректно")
	assert.Contains(t, h.text(ivan, "12345"), "Номер телефона введен некорректно")

	h.text(ivan, "+1 (555) 123-4567")
	texts := h.api.Texts()
	require.NotEmpty(t, texts)
	assert.Contains(t, texts[0], "Регистрация завершена")
	assert.Contains(t, texts[0], "+15551234567")
	assert.Contains(t, texts[0], "ID в системе: 1")
	assert.Equal(t, []outbox.Kind{outbox.KindUser, outbox.KindNotification}, h.outbox.kinds())

	stored, err = h.users.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "15551234567", *stored.Phone)
	assert.Equal(t, 1, *stored.InternalID)

	assert.Contains(t, h.text(ivan, "+7 999 000 11 22"), "Вы уже зарегистрированы")
	assert.Contains(t, h.text(ivan, "/start"), "С возвращением, Ivan")
	assert.Len(t, h.outbox.kinds(), 2, "returning users are not pushed again")
}

func TestBot_ContactRegistration(t *testing.T) {
	h := newHarness(t, Options{})
	ivan := testutil.TestUser(42)

	h.text(ivan, "/start")

	assert.Contains(t, h.contact(ivan, 99, "+79990001122"), "свой собственный номер")

	h.contact(ivan, 42, "+7 999 000-11-22")
	assert.Contains(t, h.api.Texts()[0], "+79990001122")

	stored, err := h.users.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "79990001122", *stored.Phone)
}

func TestBot_StatsCommandAndCallback(t *testing.T) {
	h := newHarness(t, Options{})
	ivan := testutil.TestUser(42)
	h.text(ivan, "/start")

	reply := h.text(ivan, "/stats")
	assert.Contains(t, reply, "Всего: 1")
	assert.Contains(t, reply, "Активных: 1")
	assert.Contains(t, reply, "Подключено")

	h.website.connected = false
	reply = h.callback(ivan, "stats")
	assert.Contains(t, reply, "Отключено")
	assert.Len(t, h.api.CallsTo("editMessageText"), 1)
	assert.Len(t, h.api.CallsTo("answerCallbackQuery"), 1)
}

func TestBot_Profile(t *testing.T) {
	h := newHarness(t, Options{})
	ivan := testutil.TestUser(42)

	assert.Contains(t, h.text(ivan, "/profile"), "/start")

	h.text(ivan, "/start")
	assert.Contains(t, h.text(ivan, "/profile"), "не завершили регистрацию")

	h.text(ivan, "+7 999 000 11 22")
	reply := h.callback(ivan, "profile")
	assert.Contains(t, reply, "Ivan Petrov")
	assert.Contains(t, reply, "+79990001122")
	assert.Contains(t, reply, "https://t.me/ivan")
}

func TestBot_Sync(t *testing.T) {
	h := newHarness(t, Options{})
	ivan := testutil.TestUser(42)
	admin := testutil.TestUser(adminID)

	h.text(ivan, "/start")
	h.text(ivan, "+7 999 000 11 22")
	before := len(h.outbox.kinds())

	assert.Contains(t, h.text(ivan, "/sync"), "только администраторам")

	h.website.health = website.HealthStatus{Status: "error", Detail: "HTTP 503"}
	assert.Contains(t, h.text(admin, "/sync"), "Сайт недоступен")
	assert.Len(t, h.outbox.kinds(), before)

	h.website.health = website.HealthStatus{Status: "ok"}
	assert.Contains(t, h.text(admin, "/sync"), "1 из 1")
	assert.Equal(t,
		[]outbox.Kind{outbox.KindUser, outbox.KindStats, outbox.KindSettings},
		h.outbox.kinds()[before:],
	)
}

func TestBot_SettingsAndMaintenance(t *testing.T) {
	h := newHarness(t, Options{})
	ivan := testutil.TestUser(42)
	admin := testutil.TestUser(adminID)
	ctx := context.Background()

	assert.Contains(t, h.text(ivan, "/settings"), "только администраторам")

	reply := h.text(admin, "/settings")
	assert.Contains(t, reply, "SavosBot Club")
	assert.Contains(t, reply, "выключен")

	h.callback(admin, "settings_toggle_maintenance")
	assert.True(t, h.settings.MaintenanceMode(ctx))
	assert.Contains(t, h.api.LastText(), "включен")

	assert.Contains(t, h.text(ivan, "/help"), "техническом обслуживании")
	assert.Contains(t, h.text(admin, "/help"), "/sync", "admins bypass maintenance")

	h.callback(admin, "settings_toggle_maintenance")
	assert.False(t, h.settings.MaintenanceMode(ctx))
	assert.Contains(t, h.text(ivan, "/help"), "/profile")
}

func TestBot_UnknownCommandShowsHelp(t *testing.T) {
	h := newHarness(t, Options{})

	assert.Contains(t, h.text(testutil.TestUser(42), "/nope"), "Команды:")
}

func TestBot_CapacityReached(t *testing.T) {
	h := newHarness(t, Options{})
	_, _, err := h.settings.Update(context.Background(), domain.SettingsPatch{MaxUsers: domain.Ptr(1)})
	require.NoError(t, err)

	h.text(testutil.TestUser(1), "/start")
	assert.Contains(t, h.text(testutil.TestUser(2), "/start"), "лимит")
}

func TestBot_RateLimit(t *testing.T) {
	rules := ratelimit.NewRules(config.RateLimitConfig{
		Enabled: true,
		PerUser: config.RateLimitRule{Limit: 10, Window: "1m"},
		Commands: config.CommandRateLimits{
			Stats: config.RateLimitRule{Limit: 2, Window: "1m"},
		},
	})
	translations, err := i18n.Load("ru")
	require.NoError(t, err)

	limiter := middleware.NewRateLimitMiddleware(ratelimit.NewMemoryLimiter(testLogger()), rules, translations, testLogger())
	h := newHarness(t, Options{RateLimit: limiter})
	ivan := testutil.TestUser(42)

	assert.Contains(t, h.text(ivan, "/stats"), "Статистика")
	assert.Contains(t, h.text(ivan, "/stats"), "Статистика")
	assert.Contains(t, h.text(ivan, "/stats"), "Слишком много запросов")
	assert.Contains(t, h.text(ivan, "/help"), "Команды:", "other commands use the per-user budget")
}

func TestBot_DuplicateUpdatesAreHandledOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := idempotency.NewManager(idempotency.NewRedisStore(client, testLogger()), testLogger())
	h := newHarness(t, Options{Idempotency: manager, IdempotencyTTL: time.Hour})
	ivan := testutil.TestUser(42)

	update := testutil.TextUpdate(1, ivan, "/help")
	h.tb.ProcessUpdate(update)
	h.tb.ProcessUpdate(update)

	assert.Len(t, h.api.CallsTo("sendMessage"), 1)
}

func TestBot_FailedUpdateRunsAgainOnRedelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	manager := idempotency.NewManager(idempotency.NewRedisStore(client, testLogger()), testLogger())
	h := newHarness(t, Options{Idempotency: manager, IdempotencyTTL: time.Hour})

	runs := 0
	h.bot.router.RegisterCommand("/flaky", func(c telebot.Context) error {
		runs++
		if runs == 1 {
			return errors.New("users.json: device busy")
		}
		return c.Send("done")
	})

	update := testutil.TextUpdate(1, testutil.TestUser(42), "/flaky")
	h.tb.ProcessUpdate(update)
	require.Equal(t, 1, runs)
	assert.Contains(t, h.api.LastText(), "Произошла ошибка")

	h.tb.ProcessUpdate(update)
	assert.Equal(t, 2, runs, "a failed update is not remembered as handled")
	assert.Equal(t, "done", h.api.LastText())

	h.tb.ProcessUpdate(update)
	assert.Equal(t, 2, runs, "a successful update is handled once")
}

func TestRecoveryMiddleware(t *testing.T) {
	h := newHarness(t, Options{})
	h.bot.router.RegisterCommand("/panic", func(telebot.Context) error {
		panic("boom")
	})

	reply := h.text(testutil.TestUser(42), "/panic")
	assert.Contains(t, reply, "Произошла ошибка")
}
