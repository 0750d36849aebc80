// Package period identifies scoring periods (ISO weeks) and the reporting
// days inside them.
package period

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPeriod reports a period id that is not a valid ISO week.
var ErrInvalidPeriod = errors.New("invalid period id")

const daysPerWeek = 7

// Week is an ISO 8601 week, rendered as "2026-W42".
type Week struct {
	Year int
	Week int
}

// Parse reads a "YYYY-Www" period id.
func Parse(id string) (Week, error) {
	var w Week
	if len(id) != len("2006-W01") {
		return Week{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, id)
	}
	if _, err := fmt.Sscanf(id, "%4d-W%2d", &w.Year, &w.Week); err != nil || w.String() != id {
		return Week{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, id)
	}
	if w.Week < 1 || w.Week > weeksIn(w.Year) {
		return Week{}, fmt.Errorf("%w: %q has no week %d", ErrInvalidPeriod, id, w.Week)
	}
	return w, nil
}

// Of returns the ISO week containing t.
func Of(t time.Time) Week {
	y, n := t.ISOWeek()
	return Week{Year: y, Week: n}
}

// String renders the period id.
func (w Week) String() string {
	return fmt.Sprintf("%04d-W%02d", w.Year, w.Week)
}

// Start is Monday 00:00 UTC of the week.
func (w Week) Start() time.Time {
	jan4 := time.Date(w.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % daysPerWeek
	return jan4.AddDate(0, 0, -offset+(w.Week-1)*daysPerWeek)
}

// End is the start of the following week.
func (w Week) End() time.Time {
	return w.Start().AddDate(0, 0, daysPerWeek)
}

// Prev returns the preceding week.
func (w Week) Prev() Week {
	return Of(w.Start().AddDate(0, 0, -daysPerWeek))
}

// Next returns the following week.
func (w Week) Next() Week {
	return Of(w.End())
}

// weeksIn returns 52 or 53. December 28 always falls in the last ISO week.
func weeksIn(year int) int {
	_, n := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return n
}
