// Package recurrence computes which calendar days a recurring tracker is due.
//
// Every function in this package is pure: results depend only on the
// arguments, so stats and history views can recompute them freely.
package recurrence

import (
	"fmt"
	"time"
)

// DayLayout is the textual form of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar day with no time-of-day and no zone.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// DayIn returns the calendar day of t as observed in loc.
func DayIn(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.Local
	}
	return DayOf(t.In(loc))
}

// ParseDay parses a YYYY-MM-DD string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// MustParseDay is ParseDay for constants and tests.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// midnight anchors the day at UTC midnight so day arithmetic never crosses
// a DST transition.
func (d Day) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the day n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return DayOf(d.midnight().AddDate(0, 0, n))
}

// Sub returns the number of whole days from o to d.
func (d Day) Sub(o Day) int {
	return int(d.midnight().Sub(o.midnight()).Hours() / 24)
}

// Weekday returns the day of the week; Sunday is 0.
func (d Day) Weekday() time.Weekday {
	return d.midnight().Weekday()
}

// Before reports whether d is strictly earlier than o.
func (d Day) Before(o Day) bool {
	return d.Sub(o) < 0
}

// After reports whether d is strictly later than o.
func (d Day) After(o Day) bool {
	return d.Sub(o) > 0
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool {
	return d == Day{}
}

// Time returns the start of d in loc.
func (d Day) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// String formats d as YYYY-MM-DD.
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}
