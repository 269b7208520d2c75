package domain

import (
	"strings"

	"github.com/Proton-105/savos-bot/internal/state"
)

const profileLinkPrefix = "https://t.me/"

// User is one record of users.json.
type User struct {
	ID           int64       `json:"id"`
	Username     string      `json:"username"`
	FirstName    string      `json:"first_name"`
	LastName     string      `json:"last_name"`
	LanguageCode string      `json:"language_code,omitempty"`
	Phone        *string     `json:"phone"`
	PhotoURL     *string     `json:"photo_url"`
	ProfileLink  *string     `json:"profile_link"`
	IsActive     *bool       `json:"is_active,omitempty"`
	InternalID   *int        `json:"internal_id,omitempty"`
	State        state.State `json:"state,omitempty"`
	JoinedAt     Timestamp   `json:"joined_at"`
	CreatedAt    Timestamp   `json:"created_at"`
	UpdatedAt    Timestamp   `json:"updated_at"`
}

// HasPhone reports whether a phone number is stored.
func (u *User) HasPhone() bool {
	return u != nil && u.Phone != nil && *u.Phone != ""
}

// Active reports the membership flag. A missing flag counts as inactive.
func (u *User) Active() bool {
	return u != nil && u.IsActive != nil && *u.IsActive
}

// ConversationState returns the stored state, deriving it from the phone for records written before states were stored.
func (u *User) ConversationState() state.State {
	if u == nil {
		return state.StateUnknown
	}

	if u.State.Valid() && u.State != state.StateUnknown {
		return u.State
	}

	if u.HasPhone() {
		return state.StateRegistered
	}

	return state.StateAwaitingPhone
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Merge overwrites fields of u with every field set in patch. Empty strings and nil pointers are
// treated as unspecified. Join and creation times are only filled when u has none.
func (u *User) Merge(patch *User) {
	if u == nil || patch == nil {
		return
	}

	mergeString(&u.Username, patch.Username)
	mergeString(&u.FirstName, patch.FirstName)
	mergeString(&u.LastName, patch.LastName)
	mergeString(&u.LanguageCode, patch.LanguageCode)

	if patch.Phone != nil {
		u.Phone = patch.Phone
	}
	if patch.PhotoURL != nil {
		u.PhotoURL = patch.PhotoURL
	}
	if patch.ProfileLink != nil {
		u.ProfileLink = patch.ProfileLink
	}
	if patch.IsActive != nil {
		u.IsActive = patch.IsActive
	}
	if patch.InternalID != nil {
		u.InternalID = patch.InternalID
	}
	if patch.State != "" {
		u.State = patch.State
	}
	if u.JoinedAt.IsZero() {
		u.JoinedAt = patch.JoinedAt
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = patch.CreatedAt
	}
	if !patch.UpdatedAt.IsZero() {
		u.UpdatedAt = patch.UpdatedAt
	}
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}

	c := *u
	c.Phone = clonePtr(u.Phone)
	c.PhotoURL = clonePtr(u.PhotoURL)
	c.ProfileLink = clonePtr(u.ProfileLink)
	c.IsActive = clonePtr(u.IsActive)
	c.InternalID = clonePtr(u.InternalID)
	return &c
}

// ProfileLinkFor returns the public t.me link for username, or nil when the user has none.
func ProfileLinkFor(username string) *string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return nil
	}
	return Ptr(profileLinkPrefix + username)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns *p or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func mergeString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
