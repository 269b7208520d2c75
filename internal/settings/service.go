// Package settings manages the bot-wide settings object.
package settings

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Proton-105/savos-bot/internal/domain"
	"github.com/Proton-105/savos-bot/internal/outbox"
	"github.com/Proton-105/savos-bot/internal/repository"
	"github.com/Proton-105/savos-bot/pkg/config"
)

const (
	defaultBotName        = "SavosBot Club"
	defaultWelcomeMessage = "Добро пожаловать в SavosBot Club!"
	defaultMaxUsers       = 1000
)

// Defaults returns the settings written on first start.
func Defaults(cfg config.WebsiteConfig) domain.Settings {
	base := strings.TrimRight(cfg.BaseURL, "/")

	return domain.Settings{
		BotName:        defaultBotName,
		WelcomeMessage: defaultWelcomeMessage,
		WebsiteURL:     base,
		AdminPanelURL:  base + "/admin-panel",
		MiniAppURL:     base + "/mini-app",
		MaxUsers:       defaultMaxUsers,
	}
}

// Service wraps the settings repository and mirrors successful updates to the website.
type Service struct {
	repo   repository.SettingsRepository
	outbox outbox.Outbox
	log    *slog.Logger
}

func NewService(repo repository.SettingsRepository, ob outbox.Outbox, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{repo: repo, outbox: ob, log: log}
}

// Init stores defaults when no settings exist yet.
func (s *Service) Init(ctx context.Context, defaults domain.Settings) error {
	return s.repo.Init(ctx, defaults)
}

func (s *Service) Get(ctx context.Context) (*domain.Settings, error) {
	return s.repo.Get(ctx)
}

// Update applies patch. It reports false when there are no stored settings to update.
func (s *Service) Update(ctx context.Context, patch domain.SettingsPatch) (*domain.Settings, bool, error) {
	if patch.Empty() {
		current, err := s.repo.Get(ctx)
		if err != nil {
			return nil, false, nil
		}
		return current, true, nil
	}

	updated, ok, err := s.repo.Update(ctx, patch)
	if err != nil || !ok {
		return updated, ok, err
	}

	s.log.Info("settings updated", slog.Bool("maintenance_mode", updated.MaintenanceMode), slog.Int("max_users", updated.MaxUsers))

	if s.outbox != nil {
		if err := s.outbox.Enqueue(ctx, outbox.SettingsChange(updated)); err != nil {
			s.log.Warn("failed to enqueue settings push", slog.Any("error", err))
		}
	}

	return updated, true, nil
}

// ToggleMaintenance flips maintenance_mode and returns the new settings.
func (s *Service) ToggleMaintenance(ctx context.Context) (*domain.Settings, bool, error) {
	current, err := s.repo.Get(ctx)
	if err != nil {
		return nil, false, nil
	}

	return s.Update(ctx, domain.SettingsPatch{MaintenanceMode: domain.Ptr(!current.MaintenanceMode)})
}

// MaintenanceMode reports whether maintenance is on. Missing settings mean it is off.
func (s *Service) MaintenanceMode(ctx context.Context) bool {
	current, err := s.repo.Get(ctx)
	if err != nil {
		return false
	}
	return current.MaintenanceMode
}
