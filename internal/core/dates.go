package core

import (
	"fmt"
	"strings"
	"time"
)

// Layouts seen in the wild: pandas and Postgres write ISO dates, the Sheets
// API may hand back RFC3339 timestamps, and hand-edited files use slashes.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2006-1-2",
}

// ParseDate parses a calendar date, discarding any time component.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
