package stats

import (
	"sort"
	"strings"

	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
)

// TagCount is a journal tag and how many entries carry it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// WeekCount is the number of entries in the week starting on Week (a Monday).
type WeekCount struct {
	Week  string `json:"week"`
	Count int    `json:"count"`
}

// PropertyPoint holds the ratings of one journal entry.
type PropertyPoint struct {
	Date       string `json:"date"`
	Mood       *int   `json:"mood,omitempty"`
	Motivation *int   `json:"motivation,omitempty"`
	Energy     *int   `json:"energy,omitempty"`
}

// entryDay returns the calendar day of an entry; entry dates may carry a
// time of day after the date.
func entryDay(e *models.JournalEntry) (recurrence.Day, bool) {
	date := e.EntryDate
	if len(date) > len(recurrence.DayLayout) {
		date = date[:len(recurrence.DayLayout)]
	}
	d, err := recurrence.ParseDay(date)
	return d, err == nil
}

// FilterEntriesByPeriod keeps the entries dated within [from, to].
func FilterEntriesByPeriod(entries []*models.JournalEntry, from, to recurrence.Day) []*models.JournalEntry {
	out := make([]*models.JournalEntry, 0, len(entries))
	for _, e := range entries {
		d, ok := entryDay(e)
		if !ok || d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// CountEntriesByWeek groups entries by Monday-based week, oldest first.
func CountEntriesByWeek(entries []*models.JournalEntry) []WeekCount {
	counts := make(map[string]int)
	for _, e := range entries {
		d, ok := entryDay(e)
		if !ok {
			continue
		}
		monday := d.AddDays(-((int(d.Weekday()) + 6) % 7))
		counts[monday.String()]++
	}

	weeks := make([]WeekCount, 0, len(counts))
	for week, n := range counts {
		weeks = append(weeks, WeekCount{Week: week, Count: n})
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Week < weeks[j].Week })
	return weeks
}

// PropertyCurves returns the rated entries sorted by day. Entries without
// any rating are skipped.
func PropertyCurves(entries []*models.JournalEntry) []PropertyPoint {
	points := make([]PropertyPoint, 0)
	for _, e := range entries {
		if e.Mood == nil && e.Motivation == nil && e.Energy == nil {
			continue
		}
		d, ok := entryDay(e)
		if !ok {
			continue
		}
		points = append(points, PropertyPoint{Date: d.String(), Mood: e.Mood, Motivation: e.Motivation, Energy: e.Energy})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// TopTags returns the n most used tags, most frequent first. Ties keep
// alphabetical order.
func TopTags(entries []*models.JournalEntry, n int) []TagCount {
	counts := make(map[string]int)
	for _, e := range entries {
		for _, tag := range e.Tags {
			tag = strings.TrimSpace(tag)
			if tag != "" {
				counts[tag]++
			}
		}
	}
	return topN(counts, n, func(tag string, count int) TagCount {
		return TagCount{Tag: tag, Count: count}
	})
}

func topN[T any](counts map[string]int, n int, mk func(string, int) T) []T {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if n >= 0 && len(keys) > n {
		keys = keys[:n]
	}

	out := make([]T, len(keys))
	for i, k := range keys {
		out[i] = mk(k, counts[k])
	}
	return out
}
