package user

import (
	"regexp"
	"strings"
)

const minPhoneDigits = 10

var phonePattern = regexp.MustCompile(`^[\d\s+\-()]+$`)

// NormalizePhone validates free-text input and returns its digits.
// Only digits, spaces, '+', '-', '(' and ')' are accepted, with at least ten digits.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !phonePattern.MatchString(raw) {
		return "", ErrInvalidPhone
	}

	digits := DigitsOnly(raw)
	if len(digits) < minPhoneDigits {
		return "", ErrInvalidPhone
	}

	return digits, nil
}

// DigitsOnly strips every non-digit rune.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
