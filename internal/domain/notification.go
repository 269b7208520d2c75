package domain

// Notification types sent to the website.
const (
	NotificationNewRegistration = "new_registration"
	NotificationSync            = "sync"
)

// Notification is forwarded to POST /api/notifications.
type Notification struct {
	Type    string         `json:"type"`
	UserID  int64          `json:"user_id,omitempty"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
