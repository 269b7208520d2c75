package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"
)

// NewSyncHandler pushes every registered user, the statistics and the settings to the website.
// When admins are configured only they may run it.
func NewSyncHandler(d Deps) Handler {
	log := d.logger()

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		t := d.Translator(c)
		if len(d.AdminIDs) > 0 && !d.IsAdmin(sender.ID) {
			return c.Send(t.T("common.admin_only"))
		}

		ctx := Context(c)
		if d.Website == nil {
			return c.Send(t.T("sync.unavailable"))
		}

		if health := d.Website.Health(ctx); !health.OK() {
			log.Warn("sync skipped, website unhealthy", slog.String("detail", health.Detail))
			return c.Send(t.T("sync.unavailable"))
		}

		if err := c.Send(t.T("sync.started")); err != nil {
			return err
		}

		report, err := d.Users.SyncAll(ctx)
		if err != nil {
			return err
		}

		log.Info("sync requested", slog.Int64("user_id", sender.ID), slog.Int("users", report.Users))
		return c.Send(t.Tf("sync.completed", report.UsersQueued, report.Users))
	}
}
