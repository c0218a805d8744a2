package client

import (
	"fmt"
	"strings"
	"time"
)

// ParseTimestamp parses backend timestamps of the form
// YYYY-MM-DDTHH:MM:SS[.f{0,9}][Z|±hh:mm]. A missing offset means UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	rest := s
	if i := strings.IndexByte(s, '.'); i >= 0 {
		j := i + 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j-i-1 > 9 || j == i+1 {
			return time.Time{}, fmt.Errorf("timestamp %q: bad fractional seconds", s)
		}
		rest = s[:i] + s[j:]
	}

	if len(rest) > len("2006-01-02T15:04:05") {
		// Go accepts fractional seconds after the seconds field even when the
		// layout omits them, so parse the original string.
		t, err := time.Parse("2006-01-02T15:04:05Z07:00", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
		}
		return t, nil
	}

	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t, nil
}
