package shared

import (
	"errors"
	"fmt"
	"time"
)

// Month is a calendar month in the form YYYY-MM. Revenue records and cost
// percentage queries are keyed by it.
type Month struct {
	Year int
	Mon  time.Month
}

// ErrInvalidMonth indicates an unparseable month string.
var ErrInvalidMonth = errors.New("month must be formatted as YYYY-MM")

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	return Month{Year: t.Year(), Mon: t.Month()}, nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Mon: t.Month()}
}

// String formats the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Mon))
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following month. Range queries use
// [Start, End).
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

// IsZero reports whether the month is unset.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Mon == 0
}
