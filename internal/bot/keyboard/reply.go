package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/i18n"
)

// ContactRequest builds the one-time keyboard asking the user to share their phone number.
func ContactRequest(t i18n.Translator) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}

	markup.Reply(markup.Row(markup.Contact(lookup(t, "keyboard.share_phone"))))
	return markup
}

// RemoveKeyboard hides a previously sent reply keyboard.
func RemoveKeyboard() *telebot.ReplyMarkup {
	return &telebot.ReplyMarkup{RemoveKeyboard: true}
}

func lookup(t i18n.Translator, key string) string {
	if t == nil {
		return key
	}
	return t.T(key)
}
