package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/qada/internal/constants"
)

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}

// LocalDate formats t as YYYY-MM-DD in the given timezone.
// Unknown timezones fall back to the system local timezone.
func LocalDate(t time.Time, timezone string) string {
	loc, err := LoadLocation(timezone)
	if err != nil {
		loc = time.Local
	}
	return t.In(loc).Format(constants.DateFormat)
}

// ParseDate parses a YYYY-MM-DD date at UTC midnight. An empty string
// yields the zero time so callers can treat it as "missing".
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(constants.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateRange returns the n dates ending at (and including) end, oldest first.
func DateRange(end time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	end = StartOfDay(end)
	days := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		days = append(days, end.AddDate(0, 0, -i).Format(constants.DateFormat))
	}
	return days
}
