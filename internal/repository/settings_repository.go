package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/Proton-105/savos-bot/internal/domain"
	apperrors "github.com/Proton-105/savos-bot/internal/errors"
)

// ErrSettingsNotFound is returned when settings.json does not exist.
var ErrSettingsNotFound = errors.New("settings not found")

// SettingsRepository persists the bot-wide settings object.
type SettingsRepository interface {
	Get(ctx context.Context) (*domain.Settings, error)
	// Update applies patch to the stored settings. It reports false, and creates nothing,
	// when no settings have been stored yet.
	Update(ctx context.Context, patch domain.SettingsPatch) (*domain.Settings, bool, error)
	Init(ctx context.Context, defaults domain.Settings) error
}

type settingsRepository struct {
	mu       sync.Mutex
	path     string
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewSettingsRepository creates a repository over <dir>/settings.json.
func NewSettingsRepository(dir string, log *slog.Logger) SettingsRepository {
	if log == nil {
		log = slog.Default()
	}

	return &settingsRepository{
		path:     filepath.Join(dir, settingsFileName),
		log:      log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// Get returns the stored settings. An unreadable file is logged and reported as absent.
func (r *settingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	settings, err := r.load()
	if err != nil {
		if !errors.Is(err, ErrSettingsNotFound) {
			r.log.Error("failed to read settings file", slog.String("path", r.path), slog.Any("error", err))
		}
		return nil, ErrSettingsNotFound
	}

	return settings, nil
}

func (r *settingsRepository) Update(ctx context.Context, patch domain.SettingsPatch) (*domain.Settings, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	settings, err := r.load()
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return nil, false, nil
		}
		r.log.Error("failed to read settings file", slog.String("path", r.path), slog.Any("error", err))
		return nil, false, apperrors.NewStorageError("read settings", err)
	}

	patch.Apply(settings)
	if err := r.validate.Struct(settings); err != nil {
		return nil, false, apperrors.NewValidationError(fmt.Sprintf("settings: %v", err))
	}
	settings.UpdatedAt = domain.NewTimestamp(r.now())

	if err := writeJSON(ctx, r.path, settings); err != nil {
		r.log.Error("failed to write settings file", slog.String("path", r.path), slog.Any("error", err))
		return nil, false, apperrors.NewStorageError("write settings", err)
	}

	return settings, true, nil
}

// Init writes defaults when no settings file exists yet.
func (r *settingsRepository) Init(ctx context.Context, defaults domain.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exists, err := fileExists(r.path)
	if err != nil {
		return apperrors.NewStorageError("stat settings", err)
	}
	if exists {
		return nil
	}

	if err := r.validate.Struct(defaults); err != nil {
		return apperrors.NewValidationError(fmt.Sprintf("default settings: %v", err))
	}

	now := domain.NewTimestamp(r.now())
	if defaults.CreatedAt.IsZero() {
		defaults.CreatedAt = now
	}
	defaults.UpdatedAt = now

	if err := writeJSON(ctx, r.path, defaults); err != nil {
		return apperrors.NewStorageError("init settings", err)
	}

	r.log.Info("created settings file", slog.String("path", r.path))
	return nil
}

func (r *settingsRepository) load() (*domain.Settings, error) {
	var settings domain.Settings
	if err := readJSON(r.path, &settings); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}

	return &settings, nil
}
