package orchestrator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "02-01-2006"

// FormatDate renders t as DD-MM-YYYY, the form the portal expects.
func FormatDate(t time.Time) string { return t.Format(dateLayout) }

// ParseDate reads a day-month-year string ("15-10-2025", "5-1-2026") as a
// calendar date at UTC midnight. Out-of-range parts are rejected.
func ParseDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("date %q: want DD-MM-YYYY", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return time.Time{}, fmt.Errorf("date %q: bad number %q", s, p)
		}
		n[i] = v
	}
	day, month, year := n[0], n[1], n[2]
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, fmt.Errorf("date %q: no such day", s)
	}
	return t, nil
}

// civil truncates t to its calendar date in t's own location, as UTC midnight.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
