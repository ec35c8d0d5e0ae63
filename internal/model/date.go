package model

import (
	"fmt"
	"strings"
	"time"
)

// ParseDate parses:
// - YYYY-MM-DD (local midnight)
// - YYYY-MM-DD HH:MM or YYYY-MM-DDTHH:MM (local time)
// - RFC3339 (timezone-aware)
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD, YYYY-MM-DD HH:MM, or RFC3339)", s)
}
