package keyboard

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/i18n"
)

// Callback data understood by the router.
const (
	CallbackStats             = "stats"
	CallbackProfile           = "profile"
	CallbackToggleMaintenance = "settings_toggle_maintenance"
)

// MenuOptions describes the links shown in the main menu.
type MenuOptions struct {
	MiniAppURL    string
	AdminPanelURL string
	Admin         bool
}

// Builder creates the bot's inline menus.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{log: log}
}

// MainMenu builds the menu shown to registered users: the mini app, the admin panel for
// admins, profile and statistics.
func (b *Builder) MainMenu(t i18n.Translator, opts MenuOptions) *telebot.ReplyMarkup {
	kb := NewInlineKeyboard()
	if opts.MiniAppURL != "" {
		kb.AddRow(InlineButton{Text: lookup(t, "keyboard.open_app"), WebAppURL: opts.MiniAppURL})
	}
	if opts.Admin && opts.AdminPanelURL != "" {
		kb.AddRow(InlineButton{Text: lookup(t, "keyboard.admin_panel"), WebAppURL: opts.AdminPanelURL})
	}
	kb.AddRow(
		InlineButton{Text: lookup(t, "keyboard.profile"), Unique: CallbackProfile},
		InlineButton{Text: lookup(t, "keyboard.stats"), Unique: CallbackStats},
	)

	return b.build(kb, "main_menu")
}

// MaintenanceToggle builds the admin settings keyboard.
func (b *Builder) MaintenanceToggle(t i18n.Translator, enabled bool) *telebot.ReplyMarkup {
	label := "keyboard.maintenance_on"
	if enabled {
		label = "keyboard.maintenance_off"
	}

	kb := NewInlineKeyboard().AddRow(InlineButton{Text: lookup(t, label), Unique: CallbackToggleMaintenance})
	return b.build(kb, "maintenance_toggle")
}

func (b *Builder) build(kb *InlineKeyboardBuilder, name string) *telebot.ReplyMarkup {
	markup, err := kb.Build()
	if err != nil {
		b.log.Error("failed to build keyboard", slog.String("keyboard", name), slog.Any("error", err))
		return nil
	}
	return markup
}
