package domain

import (
	"bytes"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// legacyLayouts are zone-less ISO forms written by older tooling; they are read as local time.
var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// Timestamp is a time.Time that encodes as RFC 3339 and accepts legacy zone-less values and null.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// ParseTimestamp parses RFC 3339 or one of the legacy layouts.
func ParseTimestamp(value string) (Timestamp, error) {
	if value == "" {
		return Timestamp{}, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return Timestamp{Time: t}, nil
	}

	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return Timestamp{Time: t}, nil
		}
	}

	return Timestamp{}, fmt.Errorf("parse timestamp %q: unsupported format", value)
}

// MarshalJSON writes null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// UnmarshalJSON accepts null, empty strings, RFC 3339 and legacy layouts.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = Timestamp{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}

	parsed, err := ParseTimestamp(raw)
	if err != nil {
		return err
	}

	*t = parsed
	return nil
}
