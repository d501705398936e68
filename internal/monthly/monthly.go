// Package monthly handles the month granularity Pushshift dumps are published at.
package monthly

import (
	"fmt"
	"time"

	"github.com/meigma/nastydata/core"
)

const (
	monthLayout = "2006-01"
	dayLayout   = "2006-01-02"
)

// Parse parses a YYYY-MM string into the first day of that month (UTC).
func Parse(s string) (time.Time, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (expected YYYY-MM)", core.ErrInvalidMonth, s)
	}
	return t, nil
}

// Of truncates t to the first day of its month (UTC).
func Of(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Format formats t as YYYY-MM.
func Format(t time.Time) string { return t.Format(monthLayout) }

// FormatDay formats t as YYYY-MM-DD.
func FormatDay(t time.Time) string { return t.Format(dayLayout) }

// AddMonths advances t by n months. The result is always the first day of a month.
func AddMonths(t time.Time, n int) time.Time {
	return Of(t).AddDate(0, n, 0)
}
