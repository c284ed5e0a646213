// Package stats computes completion and history views from tracker data.
//
// The functions are pure: they take already-loaded records and never touch
// the store, so the desktop API and the CLI can share them.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
)

// ValuePoint is one numeric answer on a calendar day.
type ValuePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// CalendarDay is a scheduled day of a boolean tracker; Value is nil when
// nothing was answered.
type CalendarDay struct {
	Date  string `json:"date"`
	Value *bool  `json:"value"`
}

// RecurringCompletion is the completion of one tracker over a range.
type RecurringCompletion struct {
	RecurringID string `json:"recurringId"`
	Name        string `json:"name"`
	Scheduled   int    `json:"scheduled"`
	Completed   int    `json:"completed"`
	Rate        int    `json:"rate"`
}

// FilterResponsesByRecurring keeps the responses answering recurringID.
func FilterResponsesByRecurring(responses []*models.TrackingResponse, recurringID string) []*models.TrackingResponse {
	out := make([]*models.TrackingResponse, 0, len(responses))
	for _, r := range responses {
		if r.RecurringID == recurringID {
			out = append(out, r)
		}
	}
	return out
}

// NumberValueCurve returns the numeric answers of recurringID sorted by day.
// Responses without a number are skipped.
func NumberValueCurve(responses []*models.TrackingResponse, recurringID string) []ValuePoint {
	points := make([]ValuePoint, 0)
	for _, r := range FilterResponsesByRecurring(responses, recurringID) {
		if r.ValueNumber == nil {
			continue
		}
		points = append(points, ValuePoint{Date: r.Date, Value: *r.ValueNumber})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date < points[j].Date
	})
	return points
}

// BooleanCalendar lays the boolean answers of recurringID over the
// scheduled days, in the order given.
func BooleanCalendar(responses []*models.TrackingResponse, recurringID string, scheduled []string) []CalendarDay {
	byDate := make(map[string]*bool)
	for _, r := range FilterResponsesByRecurring(responses, recurringID) {
		if r.ValueBoolean != nil {
			byDate[r.Date] = r.ValueBoolean
		}
	}

	days := make([]CalendarDay, len(scheduled))
	for i, date := range scheduled {
		days[i] = CalendarDay{Date: date, Value: byDate[date]}
	}
	return days
}

// CompletionRate is the share of scheduled days in [from, to] that have a
// response, over all trackers, as a rounded percentage. It is 0 when
// nothing is scheduled.
func CompletionRate(recurrings []*models.TrackingRecurring, responses []*models.TrackingResponse, from, to recurrence.Day, loc *time.Location) int {
	var scheduled, completed int
	for _, c := range CompletionRateByRecurring(recurrings, responses, from, to, loc) {
		scheduled += c.Scheduled
		completed += c.Completed
	}
	return percent(completed, scheduled)
}

// CompletionRateByRecurring reports the completion of each tracker over
// [from, to]. Days before a tracker was created are not counted.
func CompletionRateByRecurring(recurrings []*models.TrackingRecurring, responses []*models.TrackingResponse, from, to recurrence.Day, loc *time.Location) []RecurringCompletion {
	answered := make(map[string]map[string]bool)
	for _, r := range responses {
		if answered[r.RecurringID] == nil {
			answered[r.RecurringID] = make(map[string]bool)
		}
		answered[r.RecurringID][r.Date] = true
	}

	out := make([]RecurringCompletion, 0, len(recurrings))
	for _, rec := range recurrings {
		dates := ScheduledDates(rec, from, to, loc)
		c := RecurringCompletion{RecurringID: rec.ID, Name: rec.Name, Scheduled: len(dates)}
		for _, d := range dates {
			if answered[rec.ID][d] {
				c.Completed++
			}
		}
		c.Rate = percent(c.Completed, c.Scheduled)
		out = append(out, c)
	}
	return out
}

// ScheduledDates lists the due days of rec in [from, to], starting no
// earlier than the day rec was created.
func ScheduledDates(rec *models.TrackingRecurring, from, to recurrence.Day, loc *time.Location) []string {
	s := rec.Schedule(loc)
	if from.Before(s.Anchor) {
		from = s.Anchor
	}
	return recurrence.ScheduledDates(s, from, to)
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) * 100 / float64(total)))
}
