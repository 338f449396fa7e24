package engine

import (
	"fmt"
	"time"
)

// parseTimeOfDay converts "HH:MM" to minutes past midnight.
func parseTimeOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// inEcoWindow reports whether now falls inside the [start, end)
// schedule window. A window with start after end wraps past midnight
// (22:00-06:00 covers 23:59 and 00:01 but not 12:00).
func inEcoWindow(start, end string, now time.Time) bool {
	startMin, err := parseTimeOfDay(start)
	if err != nil {
		return false
	}
	endMin, err := parseTimeOfDay(end)
	if err != nil {
		return false
	}

	nowMin := now.Hour()*60 + now.Minute()

	if startMin > endMin {
		return nowMin >= startMin || nowMin < endMin
	}
	return nowMin >= startMin && nowMin < endMin
}
