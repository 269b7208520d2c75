package handlers

import (
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/savos-bot/internal/bot/keyboard"
	apperrors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/internal/state"
)

// NewStartHandler handles /start: new users are asked for a phone number, registered users get the menu.
func NewStartHandler(d Deps) Handler {
	log := d.logger()

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			log.Warn("start handler invoked without sender")
			return nil
		}

		ctx := Context(c)
		t := d.Translator(c)

		profile := ProfileOf(sender)
		if d.Photos != nil {
			profile.PhotoURL = d.Photos.PhotoPath(ctx, sender)
		}

		result, err := d.Users.Start(ctx, profile)
		if err != nil {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.Code == apperrors.CodeCapacity {
				return c.Send(appErr.UserMessage)
			}
			return err
		}

		name := result.User.FirstName
		if name == "" {
			name = sender.Username
		}

		if result.State == state.StateRegistered {
			return c.Send(t.Tf("start.welcome_back", name), withMarkup(d.menu(ctx, c))...)
		}

		if result.Created {
			log.Info("new user awaiting phone", slog.Int64("user_id", sender.ID))
		}

		return c.Send(t.Tf("start.welcome_new", name), keyboard.ContactRequest(t))
	}
}
