package stats

import (
	"math"
	"sort"

	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
)

// StockForecast is how long a product lasts at its routines' pace.
type StockForecast struct {
	ProductID     string  `json:"productId"`
	ProductName   string  `json:"productName"`
	Quantity      float64 `json:"quantity"`
	DailyUsage    float64 `json:"dailyUsage"`
	DaysRemaining int     `json:"daysRemaining"`
}

// DailyUsage is the average quantity a routine consumes per day.
func DailyUsage(r *models.StockRoutine) float64 {
	switch r.RecurrenceType {
	case recurrence.Daily:
		return r.Quantity
	case recurrence.Weekly:
		return r.Quantity * float64(len(r.DaysOfWeek)) / 7
	case recurrence.Custom:
		if r.IntervalDays < 1 {
			return 0
		}
		return r.Quantity / float64(r.IntervalDays)
	}
	return 0
}

// DaysRemaining forecasts every product consumed by an active routine,
// soonest empty first. Products without such a routine are left out.
func DaysRemaining(products []*models.StockProduct, routines []*models.StockRoutine) []StockForecast {
	usage := make(map[string]float64)
	for _, r := range routines {
		if r.IsActive && !r.IsDeleted() {
			usage[r.ProductID] += DailyUsage(r)
		}
	}

	out := make([]StockForecast, 0)
	for _, p := range products {
		daily := usage[p.ID]
		if daily <= 0 {
			continue
		}
		out = append(out, StockForecast{
			ProductID:     p.ID,
			ProductName:   p.Name,
			Quantity:      p.Quantity,
			DailyUsage:    daily,
			DaysRemaining: int(math.Floor(p.Quantity / daily)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysRemaining < out[j].DaysRemaining
	})
	return out
}
