package util

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// ParseBoolEnv reads key as a boolean. Accepted spellings are 1/true/yes/on
// and 0/false/no/off, case-insensitive. Unset, empty, or unparsable values
// fall back to the default.
func ParseBoolEnv(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	slog.Warn("ParseBoolEnv ignoring unparsable value", "key", key, "value", raw, "default", fallback)
	return fallback
}

// ParseDurationEnv reads key in time.ParseDuration syntax ("30m", "1h30m").
// Unset, unparsable, or non-positive values fall back to the default.
func ParseDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		slog.Warn("ParseDurationEnv ignoring unparsable value", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return d
}
