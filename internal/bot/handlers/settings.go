package handlers

import (
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/domain"
	"github.com/Proton-105/savos-bot/internal/i18n"
	"github.com/Proton-105/savos-bot/internal/repository"
)

// NewSettingsHandler returns the admin-only /settings command handler.
func NewSettingsHandler(d Deps) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		t := d.Translator(c)
		if !d.IsAdmin(sender.ID) {
			return c.Send(t.T("common.admin_only"))
		}

		current, err := d.Settings.Get(Context(c))
		if err != nil {
			if errors.Is(err, repository.ErrSettingsNotFound) {
				return c.Send(t.T("settings.unavailable"))
			}
			return err
		}

		return c.Send(settingsText(t, current), withMarkup(d.Keyboard.MaintenanceToggle(t, current.MaintenanceMode))...)
	}
}

// HandleToggleMaintenance flips maintenance mode and redraws the settings message.
func HandleToggleMaintenance(d Deps) CallbackHandler {
	log := d.logger()

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		t := d.Translator(c)
		if !d.IsAdmin(sender.ID) {
			return respondCallback(c, t.T("common.admin_only"), true)
		}

		updated, ok, err := d.Settings.ToggleMaintenance(Context(c))
		if err != nil {
			return err
		}
		if !ok {
			return respondCallback(c, t.T("settings.unavailable"), true)
		}

		log.Info("maintenance mode toggled",
			slog.Int64("user_id", sender.ID),
			slog.Bool("maintenance_mode", updated.MaintenanceMode),
		)

		if err := respondCallback(c, t.T("settings.updated"), false); err != nil {
			log.Warn("failed to answer callback", slog.Any("error", err))
		}

		return c.Edit(settingsText(t, updated), withMarkup(d.Keyboard.MaintenanceToggle(t, updated.MaintenanceMode))...)
	}
}

func settingsText(t i18n.Translator, s *domain.Settings) string {
	mode := t.T("settings.off")
	if s.MaintenanceMode {
		mode = t.T("settings.on")
	}

	return t.Tf("settings.text", s.BotName, s.WebsiteURL, s.MaxUsers, mode)
}
