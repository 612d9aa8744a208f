package calendar

import (
	"fmt"
	"strings"
	"time"
	// embedded zone database so the default timezone loads on minimal hosts
	_ "time/tzdata"
)

const (
	// TimeLayout is the accepted preferred-time format, e.g. 2025-08-12 03:00 PM.
	TimeLayout = "2006-01-02 03:04 PM"
	// TimeLayout24h is accepted as a fallback, e.g. 2025-08-12 15:00.
	TimeLayout24h = "2006-01-02 15:04"
)

var layouts = []string{TimeLayout, "2006-01-02 3:04 PM", TimeLayout24h}

// ParseTime reads a wall-clock time in loc.
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	normalized := strings.ToUpper(strings.Join(strings.Fields(value), " "))
	if normalized == "" {
		return time.Time{}, fmt.Errorf("%w: preferred time is empty, expected format YYYY-MM-DD hh:mm AM/PM (e.g. 2025-08-12 03:00 PM)", ErrInvalidTime)
	}

	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, normalized, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q does not match format YYYY-MM-DD hh:mm AM/PM (e.g. 2025-08-12 03:00 PM) or YYYY-MM-DD HH:MM", ErrInvalidTime, value)
}
