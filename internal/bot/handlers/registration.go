package handlers

import (
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/bot/keyboard"
	"github.com/Proton-105/savos-bot/internal/domain"
	"github.com/Proton-105/savos-bot/internal/user"
)

// NewUnknownStateHandler answers users who write before /start.
func NewUnknownStateHandler(d Deps) Handler {
	return func(c telebot.Context) error {
		return c.Send(d.Translator(c).T("registration.start_first"))
	}
}

// NewRegisteredStateHandler answers text and contacts from users who already finished registration.
func NewRegisteredStateHandler(d Deps) Handler {
	return func(c telebot.Context) error {
		return c.Send(d.Translator(c).T("registration.already_registered"))
	}
}

// NewAwaitingPhoneHandler completes registration from a shared contact or a typed phone number.
func NewAwaitingPhoneHandler(d Deps) Handler {
	log := d.logger()

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := Context(c)
		t := d.Translator(c)

		var (
			registered *domain.User
			err        error
		)
		if msg := c.Message(); msg != nil && msg.Contact != nil {
			registered, err = d.Users.RegisterContact(ctx, sender.ID, msg.Contact.UserID, msg.Contact.PhoneNumber)
		} else {
			registered, err = d.Users.RegisterPhone(ctx, sender.ID, c.Text())
		}

		switch {
		case err == nil:
		case errors.Is(err, user.ErrInvalidPhone):
			log.Debug("invalid phone submitted", slog.Int64("user_id", sender.ID))
			return c.Send(t.T("registration.invalid_phone"), keyboard.ContactRequest(t))
		case errors.Is(err, user.ErrForeignContact):
			return c.Send(t.T("registration.foreign_contact"), keyboard.ContactRequest(t))
		case errors.Is(err, user.ErrNotStarted):
			return c.Send(t.T("registration.start_first"))
		case errors.Is(err, user.ErrAlreadyRegistered):
			return c.Send(t.T("registration.already_registered"))
		default:
			return err
		}

		link := domain.Deref(registered.ProfileLink)
		if link == "" {
			link = t.T("profile.not_set")
		}

		if err := c.Send(t.Tf("registration.completed",
			registered.FullName(),
			domain.Deref(registered.Phone),
			domain.Deref(registered.InternalID),
			link,
		), keyboard.RemoveKeyboard()); err != nil {
			return err
		}

		if markup := d.menu(ctx, c); markup != nil {
			return c.Send(d.welcomeText(c), markup)
		}
		return nil
	}
}

func (d Deps) welcomeText(c telebot.Context) string {
	if d.Settings != nil {
		if s, err := d.Settings.Get(Context(c)); err == nil && s.WelcomeMessage != "" {
			return s.WelcomeMessage
		}
	}
	return d.Translator(c).T("help.text")
}
