// Package outbox delivers local changes to the website after the local write has succeeded.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Proton-105/savos-bot/internal/domain"
)

// Kind selects the website call used to deliver a change.
type Kind string

const (
	KindUser         Kind = "user"
	KindUserUpdate   Kind = "user_update"
	KindStats        Kind = "stats"
	KindSettings     Kind = "settings"
	KindNotification Kind = "notification"
)

var (
	// ErrFull is returned when the in-memory queue cannot accept another change.
	ErrFull = errors.New("outbox is full")
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("outbox is closed")
)

// Change is a snapshot of local state waiting to be mirrored.
type Change struct {
	ID           string               `json:"id"`
	Kind         Kind                 `json:"kind"`
	User         *domain.User         `json:"user,omitempty"`
	Stats        *domain.Statistics   `json:"stats,omitempty"`
	Settings     *domain.Settings     `json:"settings,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

func newChange(kind Kind) Change {
	return Change{ID: uuid.NewString(), Kind: kind, CreatedAt: time.Now()}
}

// UserChange pushes a full user record.
func UserChange(u *domain.User) Change {
	c := newChange(KindUser)
	c.User = u.Clone()
	return c
}

// UserUpdateChange replaces a user record by id.
func UserUpdateChange(u *domain.User) Change {
	c := newChange(KindUserUpdate)
	c.User = u.Clone()
	return c
}

// StatsChange pushes a statistics snapshot.
func StatsChange(s *domain.Statistics) Change {
	c := newChange(KindStats)
	if s != nil {
		copied := *s
		c.Stats = &copied
	}
	return c
}

// SettingsChange pushes the settings object.
func SettingsChange(s *domain.Settings) Change {
	c := newChange(KindSettings)
	if s != nil {
		copied := *s
		c.Settings = &copied
	}
	return c
}

// NotificationChange forwards an event notification.
func NotificationChange(n domain.Notification) Change {
	c := newChange(KindNotification)
	c.Notification = &n
	return c
}

// Validate checks that the payload for the kind is present.
func (c Change) Validate() error {
	var missing bool
	switch c.Kind {
	case KindUser, KindUserUpdate:
		missing = c.User == nil
	case KindStats:
		missing = c.Stats == nil
	case KindSettings:
		missing = c.Settings == nil
	case KindNotification:
		missing = c.Notification == nil
	default:
		return fmt.Errorf("unknown change kind %q", c.Kind)
	}

	if missing {
		return fmt.Errorf("change %s has no %s payload", c.ID, c.Kind)
	}
	return nil
}

// Outbox accepts changes for asynchronous delivery.
type Outbox interface {
	Enqueue(ctx context.Context, change Change) error
	Close(ctx context.Context) error
}
