package handlers

import (
	telebot "gopkg.in/telebot.v3"
)

// NewStatsHandler shows user statistics and the website connection. From the inline button the
// menu message is edited in place.
func NewStatsHandler(d Deps) Handler {
	return func(c telebot.Context) error {
		t := d.Translator(c)

		stats, err := d.Users.Stats(Context(c))
		if err != nil {
			return err
		}

		connection := t.T("stats.disconnected")
		if d.Website != nil && d.Website.Connected() {
			connection = t.T("stats.connected")
		}

		text := t.Tf("stats.text", stats.TotalUsers, stats.ActiveUsers, stats.TodayUsers, connection)

		if c.Callback() != nil {
			_ = respondCallback(c, "", false)
			return c.Edit(text)
		}
		return c.Send(text)
	}
}
