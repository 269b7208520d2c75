package outbox

import (
	"context"

	"github.com/Proton-105/savos-bot/internal/domain"
	apperrors "github.com/Proton-105/savos-bot/internal/errors"
	"github.com/Proton-105/savos-bot/internal/website"
)

// Deliverer performs one delivery attempt.
type Deliverer interface {
	Deliver(ctx context.Context, change Change) error
}

// Remote is the subset of the website client used for delivery.
type Remote interface {
	PushUser(ctx context.Context, u *domain.User) (website.Result, error)
	UpdateUser(ctx context.Context, u *domain.User) (website.Result, error)
	PushStats(ctx context.Context, s *domain.Statistics) (website.Result, error)
	PushSettings(ctx context.Context, s *domain.Settings) (website.Result, error)
	Notify(ctx context.Context, n *domain.Notification) (website.Result, error)
}

// WebsiteDeliverer maps changes onto website calls.
type WebsiteDeliverer struct {
	remote Remote
}

// NewWebsiteDeliverer creates a deliverer over remote.
func NewWebsiteDeliverer(remote Remote) *WebsiteDeliverer {
	return &WebsiteDeliverer{remote: remote}
}

func (d *WebsiteDeliverer) Deliver(ctx context.Context, change Change) error {
	if err := change.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	var err error
	switch change.Kind {
	case KindUser:
		_, err = d.remote.PushUser(ctx, change.User)
	case KindUserUpdate:
		_, err = d.remote.UpdateUser(ctx, change.User)
	case KindStats:
		_, err = d.remote.PushStats(ctx, change.Stats)
	case KindSettings:
		_, err = d.remote.PushSettings(ctx, change.Settings)
	case KindNotification:
		_, err = d.remote.Notify(ctx, change.Notification)
	}

	return err
}
