package stats

import (
	"math"
	"sort"

	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
)

// GridWeeks is the number of full weeks covered by the activity grid.
const GridWeeks = 53

// DayCounts counts how many times each YYYY-MM-DD date occurs.
func DayCounts(dates []string) map[string]int {
	counts := make(map[string]int, len(dates))
	for _, d := range dates {
		counts[d]++
	}
	return counts
}

// IntensityLevel buckets a day's activity count into 0..4.
func IntensityLevel(count int) int {
	switch {
	case count <= 0:
		return 0
	case count <= 2:
		return 1
	case count <= 5:
		return 2
	case count <= 10:
		return 3
	default:
		return 4
	}
}

// BestStreak is the longest run of consecutive calendar days with a
// positive count. Keys that are not valid days are ignored.
func BestStreak(counts map[string]int) int {
	days := make([]recurrence.Day, 0, len(counts))
	for date, n := range counts {
		if n <= 0 {
			continue
		}
		d, err := recurrence.ParseDay(date)
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	best, run := 0, 0
	for i, d := range days {
		if i > 0 && d.Sub(days[i-1]) == 1 {
			run++
		} else {
			run = 1
		}
		best = max(best, run)
	}
	return best
}

// AvgEntriesPerDay averages the counts of active days, rounded to one
// decimal.
func AvgEntriesPerDay(counts map[string]int) float64 {
	var total, active int
	for _, n := range counts {
		if n > 0 {
			total += n
			active++
		}
	}
	if active == 0 {
		return 0
	}
	return math.Round(float64(total)/float64(active)*10) / 10
}

// GridDays lists the days of the activity grid ending with the week of
// today: it starts on a Monday about a year back and ends on the Sunday of
// the current week.
func GridDays(today recurrence.Day) []string {
	// Days since the Monday of this week.
	offset := (int(today.Weekday()) + 6) % 7
	start := today.AddDays(-offset - 7*(GridWeeks-1))

	days := make([]string, 0, GridWeeks*7)
	for d := start; len(days) < GridWeeks*7; d = d.AddDays(1) {
		days = append(days, d.String())
	}
	return days
}
