package moderation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"warden/internal/apperr"
)

// MaxMute is the longest timeout Discord accepts.
const MaxMute = 28 * 24 * time.Hour

const day = 24 * time.Hour

// maxDays is the largest day count a time.Duration can hold.
const maxDays = math.MaxInt64 / int64(day)

// ParseDuration extends time.ParseDuration with a day suffix ("3d").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if strings.HasSuffix(s, "d") {
		daysStr := strings.TrimSuffix(s, "d")
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid day value: %s", daysStr)
		}
		if int64(days) > maxDays || int64(days) < -maxDays {
			return 0, fmt.Errorf("day value out of range: %s", daysStr)
		}
		return time.Duration(days) * day, nil
	}
	return time.ParseDuration(s)
}

// muteDuration resolves the optional duration option of a mute.
func muteDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := ParseDuration(raw)
	if err != nil {
		return 0, apperr.Invalid("Use a duration like 30s, 10m, 2h or 1d.")
	}
	if d <= 0 {
		return 0, apperr.Invalid("The duration must be positive.")
	}
	if d > MaxMute {
		return 0, apperr.Invalid("A mute can last at most 28 days.")
	}
	return d, nil
}
