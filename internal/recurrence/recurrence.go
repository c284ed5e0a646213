package recurrence

import (
	"slices"
	"time"
)

// Type classifies how often a tracker is due.
type Type string

const (
	Daily  Type = "daily"
	Weekly Type = "weekly"
	Custom Type = "custom"
)

// Valid reports whether t is a known recurrence type.
func (t Type) Valid() bool {
	switch t {
	case Daily, Weekly, Custom:
		return true
	}
	return false
}

// Schedule is the part of a recurring tracker that decides due days.
type Schedule struct {
	Type Type
	// DaysOfWeek holds weekday indices (0 = Sunday) for Weekly.
	DaysOfWeek []int
	// IntervalDays is the period of Custom; values below 1 are never due.
	IntervalDays int
	// Anchor is the first due day of Custom, normally the creation day.
	Anchor Day
}

// IsDueOnDate reports whether s expects a response on day.
func IsDueOnDate(s Schedule, day Day) bool {
	switch s.Type {
	case Daily:
		return true

	case Weekly:
		if len(s.DaysOfWeek) == 0 {
			return false
		}
		return slices.Contains(s.DaysOfWeek, int(day.Weekday()))

	case Custom:
		if s.IntervalDays < 1 {
			return false
		}
		diff := day.Sub(s.Anchor)
		return diff >= 0 && diff%s.IntervalDays == 0
	}
	return false
}

// ScheduledDays lists every due day from from to to inclusive, ascending.
// It returns nil when from is after to.
func ScheduledDays(s Schedule, from, to Day) []Day {
	if from.After(to) {
		return nil
	}
	var days []Day
	for d := from; !d.After(to); d = d.AddDays(1) {
		if IsDueOnDate(s, d) {
			days = append(days, d)
		}
	}
	return days
}

// ScheduledDates is ScheduledDays formatted as YYYY-MM-DD strings.
// The result is never nil so it encodes as an empty JSON array.
func ScheduledDates(s Schedule, from, to Day) []string {
	days := ScheduledDays(s, from, to)
	dates := make([]string, len(days))
	for i, d := range days {
		dates[i] = d.String()
	}
	return dates
}

// IsDueAt is IsDueOnDate for an instant; the time of day is ignored.
func IsDueAt(s Schedule, t time.Time) bool {
	return IsDueOnDate(s, DayOf(t))
}

// ScheduledDatesBetween normalises both instants to their calendar days
// before calling ScheduledDates.
func ScheduledDatesBetween(s Schedule, from, to time.Time) []string {
	return ScheduledDates(s, DayOf(from), DayOf(to))
}
