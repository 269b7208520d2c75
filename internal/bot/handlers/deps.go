package handlers

import (
	"context"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/bot/keyboard"
	"github.com/Proton-105/savos-bot/internal/i18n"
	"github.com/Proton-105/savos-bot/internal/settings"
	"github.com/Proton-105/savos-bot/internal/user"
	"github.com/Proton-105/savos-bot/internal/website"
)

// Website is the part of the website client the chat surface needs.
type Website interface {
	Connected() bool
	Health(ctx context.Context) website.HealthStatus
}

// PhotoResolver looks up the Bot API file path of a user's profile photo; "" when there is none.
type PhotoResolver interface {
	PhotoPath(ctx context.Context, user *telebot.User) string
}

// Deps bundles the services shared by all handlers.
type Deps struct {
	Users    *user.Service
	Settings *settings.Service
	Website  Website
	Photos   PhotoResolver
	I18n     *i18n.Manager
	Keyboard *keyboard.Builder
	AdminIDs []int64
	Log      *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Log == nil {
		return slog.Default()
	}
	return d.Log
}

// IsAdmin reports whether userID is listed in bot.admin_ids.
func (d Deps) IsAdmin(userID int64) bool {
	for _, id := range d.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Translator picks the catalog for the sender's Telegram language.
func (d Deps) Translator(c telebot.Context) i18n.Translator {
	lang := ""
	if c != nil && c.Sender() != nil {
		lang = c.Sender().LanguageCode
	}
	return d.I18n.Translator(lang)
}

// ProfileOf converts the sender into the onboarding profile.
func ProfileOf(sender *telebot.User) user.Profile {
	if sender == nil {
		return user.Profile{}
	}
	return user.Profile{
		ID:           sender.ID,
		Username:     sender.Username,
		FirstName:    sender.FirstName,
		LastName:     sender.LastName,
		LanguageCode: sender.LanguageCode,
	}
}

func (d Deps) menu(ctx context.Context, c telebot.Context) *telebot.ReplyMarkup {
	opts := keyboard.MenuOptions{}
	if c.Sender() != nil {
		opts.Admin = d.IsAdmin(c.Sender().ID)
	}

	if d.Settings != nil {
		if s, err := d.Settings.Get(ctx); err == nil {
			opts.MiniAppURL = s.MiniAppURL
			if opts.MiniAppURL == "" {
				opts.MiniAppURL = s.WebsiteURL
			}
			opts.AdminPanelURL = s.AdminPanelURL
		}
	}

	return d.Keyboard.MainMenu(d.Translator(c), opts)
}

func respondCallback(c telebot.Context, text string, alert bool) error {
	if c == nil || c.Callback() == nil {
		return nil
	}
	return c.Respond(&telebot.CallbackResponse{
		Text:      text,
		ShowAlert: alert,
	})
}

func withMarkup(markup *telebot.ReplyMarkup) []interface{} {
	if markup == nil {
		return nil
	}
	return []interface{}{markup}
}
