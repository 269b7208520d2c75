package handlers

import (
	"errors"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/domain"
	"github.com/Proton-105/savos-bot/internal/repository"
)

// NewProfileHandler returns a handler for the /profile command and the profile button.
func NewProfileHandler(d Deps) Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		t := d.Translator(c)
		_ = respondCallback(c, "", false)

		u, err := d.Users.Get(Context(c), sender.ID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return c.Send(t.T("registration.start_first"))
			}
			return err
		}

		if !u.HasPhone() {
			return c.Send(t.T("profile.not_registered"))
		}

		notSet := t.T("profile.not_set")
		orNotSet := func(v string) string {
			if v == "" {
				return notSet
			}
			return v
		}

		internalID := notSet
		if u.InternalID != nil {
			internalID = strconv.Itoa(*u.InternalID)
		}

		return c.Send(t.Tf("profile.text",
			orNotSet(u.FullName()),
			"+"+domain.Deref(u.Phone),
			internalID,
			orNotSet(domain.Deref(u.ProfileLink)),
		))
	}
}
