package jwtx

import (
	"regexp"
	"strconv"
	"time"
)

var ttlPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseTTL converts an expiry string like "15m", "24h" or "7d" into a
// duration. Only the s/m/h/d suffixes are recognized; anything else falls
// back to def rather than erroring, so a typo in an env var degrades to a
// sane lifetime instead of breaking login.
func ParseTTL(s string, def time.Duration) time.Duration {
	m := ttlPattern.FindStringSubmatch(s)
	if m == nil {
		return def
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return def
	}

	switch m[2] {
	case "d":
		return time.Duration(n) * 24 * time.Hour
	case "h":
		return time.Duration(n) * time.Hour
	case "m":
		return time.Duration(n) * time.Minute
	default:
		return time.Duration(n) * time.Second
	}
}
