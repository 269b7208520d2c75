package ratelimit

import (
	"errors"
	"strings"
	"time"

	"github.com/Proton-105/savos-bot/pkg/config"
)

// ErrNoRule is returned for commands without a dedicated limit.
var ErrNoRule = errors.New("no rate limit rule for command")

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// Enabled reports whether throttling is switched on.
func (r *Rules) Enabled() bool {
	return r != nil && r.config.Enabled
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	for _, id := range r.config.Whitelist {
		if id == userID {
			return true
		}
	}
	return false
}

// GetCommandLimit returns the limit and window for a command, with or without the leading slash.
func (r *Rules) GetCommandLimit(command string) (int, time.Duration, error) {
	switch strings.TrimPrefix(command, "/") {
	case "start":
		return parseRule(r.config.Commands.Start)
	case "stats":
		return parseRule(r.config.Commands.Stats)
	case "sync":
		return parseRule(r.config.Commands.Sync)
	default:
		return 0, 0, ErrNoRule
	}
}

// GetPerUserLimit returns the per-user rate limiting rule.
func (r *Rules) GetPerUserLimit() (int, time.Duration, error) {
	return parseRule(r.config.PerUser)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Limit <= 0 {
		return 0, 0, errors.New("limit is not set")
	}
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	return rule.Limit, window, nil
}
