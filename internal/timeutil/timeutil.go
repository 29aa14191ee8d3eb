package timeutil

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for dates on both remote APIs.
const DateLayout = "2006-01-02"

// ParseDate parses a strict YYYY-MM-DD date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// MonthRange returns the first and last day of the given month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, last
}

// LastMonth returns the first and last day of the calendar month
// preceding the one containing now.
func LastMonth(now time.Time) (time.Time, time.Time) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := first.AddDate(0, -1, 0)
	return MonthRange(prev.Year(), prev.Month())
}

// FormatHours formats a minute total as decimal hours, e.g. "2.50h".
func FormatHours(minutes int) string {
	return fmt.Sprintf("%.2fh", float64(minutes)/60)
}
