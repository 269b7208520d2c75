package handlers

import (
	telebot "gopkg.in/telebot.v3"
)

// NewHelpHandler lists the commands; admins also see the admin section.
func NewHelpHandler(d Deps) Handler {
	return func(c telebot.Context) error {
		t := d.Translator(c)

		text := t.T("help.text")
		if c.Sender() != nil && d.IsAdmin(c.Sender().ID) {
			text += t.T("help.admin")
		}

		return c.Send(text)
	}
}
