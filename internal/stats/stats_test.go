package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
)

var day = recurrence.MustParseDay

func recurring(id, name string, rt recurrence.Type, created string) *models.TrackingRecurring {
	createdAt, _ := time.Parse(time.RFC3339, created)
	return &models.TrackingRecurring{
		Base:         models.Base{ID: id, UserID: "u1", CreatedAt: createdAt, UpdatedAt: createdAt},
		Recurrence:   models.Recurrence{RecurrenceType: rt},
		Name:         name,
		ResponseType: models.ResponseNumber,
		IsActive:     true,
	}
}

func response(recurringID, date string) *models.TrackingResponse {
	return &models.TrackingResponse{RecurringID: recurringID, Date: date}
}

func number(recurringID, date string, v float64) *models.TrackingResponse {
	r := response(recurringID, date)
	r.ValueNumber = &v
	return r
}

func boolean(recurringID, date string, v bool) *models.TrackingResponse {
	r := response(recurringID, date)
	r.ValueBoolean = &v
	return r
}

// =====================================================
// Response views
// =====================================================

func TestFilterResponsesByRecurring(t *testing.T) {
	responses := []*models.TrackingResponse{
		response("rec-1", "2026-01-10"),
		response("rec-2", "2026-01-11"),
		response("rec-1", "2026-01-12"),
	}

	got := FilterResponsesByRecurring(responses, "rec-1")
	require.Len(t, got, 2)
	for _, r := range got {
		assert.Equal(t, "rec-1", r.RecurringID)
	}
	assert.Empty(t, FilterResponsesByRecurring(responses, "rec-3"))
}

func TestNumberValueCurve(t *testing.T) {
	responses := []*models.TrackingResponse{
		number("rec-1", "2026-01-20", 75.5),
		number("rec-1", "2026-01-10", 76),
		boolean("rec-1", "2026-01-11", true),
		number("rec-2", "2026-01-12", 1),
		number("rec-1", "2026-01-15", 75),
	}

	got := NumberValueCurve(responses, "rec-1")
	assert.Equal(t, []ValuePoint{
		{Date: "2026-01-10", Value: 76},
		{Date: "2026-01-15", Value: 75},
		{Date: "2026-01-20", Value: 75.5},
	}, got)

	assert.Equal(t, []ValuePoint{}, NumberValueCurve(nil, "rec-1"))
}

func TestBooleanCalendar(t *testing.T) {
	responses := []*models.TrackingResponse{
		boolean("rec-1", "2026-01-10", true),
		boolean("rec-1", "2026-01-12", false),
		boolean("rec-2", "2026-01-11", true),
	}

	got := BooleanCalendar(responses, "rec-1", []string{"2026-01-10", "2026-01-11", "2026-01-12"})
	require.Len(t, got, 3)
	require.NotNil(t, got[0].Value)
	assert.True(t, *got[0].Value)
	assert.Nil(t, got[1].Value)
	require.NotNil(t, got[2].Value)
	assert.False(t, *got[2].Value)

	assert.Empty(t, BooleanCalendar(nil, "rec-1", nil))
}

// =====================================================
// Completion
// =====================================================

func TestCompletionRate(t *testing.T) {
	rec := recurring("rec-1", "Weight", recurrence.Daily, "2025-12-01T00:00:00Z")

	tests := []struct {
		name       string
		recurrings []*models.TrackingRecurring
		responses  []*models.TrackingResponse
		from, to   string
		want       int
	}{
		{
			name:       "partial",
			recurrings: []*models.TrackingRecurring{rec},
			responses: []*models.TrackingResponse{
				response("rec-1", "2026-01-01"),
				response("rec-1", "2026-01-02"),
				response("rec-1", "2026-01-03"),
			},
			from: "2026-01-01", to: "2026-01-05",
			want: 60,
		},
		{
			name:       "nothing scheduled",
			recurrings: nil,
			from:       "2026-01-01", to: "2026-01-05",
			want: 0,
		},
		{
			name:       "complete",
			recurrings: []*models.TrackingRecurring{rec},
			responses: []*models.TrackingResponse{
				response("rec-1", "2026-01-01"),
				response("rec-1", "2026-01-02"),
			},
			from: "2026-01-01", to: "2026-01-02",
			want: 100,
		},
		{
			name:       "responses off schedule are ignored",
			recurrings: []*models.TrackingRecurring{rec},
			responses: []*models.TrackingResponse{
				response("rec-1", "2026-01-01"),
				response("rec-1", "2026-02-01"),
			},
			from: "2026-01-01", to: "2026-01-03",
			want: 33,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompletionRate(tt.recurrings, tt.responses, day(tt.from), day(tt.to), time.UTC)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompletionRateByRecurring(t *testing.T) {
	weight := recurring("rec-1", "Weight", recurrence.Daily, "2025-12-01T00:00:00Z")
	sport := recurring("rec-2", "Sport", recurrence.Daily, "2025-12-01T00:00:00Z")
	responses := []*models.TrackingResponse{
		response("rec-1", "2026-01-01"),
		response("rec-1", "2026-01-02"),
	}

	got := CompletionRateByRecurring([]*models.TrackingRecurring{weight, sport}, responses, day("2026-01-01"), day("2026-01-02"), time.UTC)
	assert.Equal(t, []RecurringCompletion{
		{RecurringID: "rec-1", Name: "Weight", Scheduled: 2, Completed: 2, Rate: 100},
		{RecurringID: "rec-2", Name: "Sport", Scheduled: 2, Completed: 0, Rate: 0},
	}, got)
}

func TestCompletionRate_StartsAtCreationDay(t *testing.T) {
	rec := recurring("rec-1", "Water", recurrence.Daily, "2026-01-04T18:00:00Z")
	responses := []*models.TrackingResponse{response("rec-1", "2026-01-04"), response("rec-1", "2026-01-05")}

	got := CompletionRateByRecurring([]*models.TrackingRecurring{rec}, responses, day("2026-01-01"), day("2026-01-05"), time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Scheduled)
	assert.Equal(t, 100, got[0].Rate)

	assert.Equal(t, []string{"2026-01-04", "2026-01-05"}, ScheduledDates(rec, day("2026-01-01"), day("2026-01-05"), time.UTC))
	// Created at 18:00 UTC is already the next day in Tokyo.
	tokyo := time.FixedZone("JST", 9*3600)
	assert.Equal(t, []string{"2026-01-05"}, ScheduledDates(rec, day("2026-01-01"), day("2026-01-05"), tokyo))
}

func TestCompletionRate_Weekly(t *testing.T) {
	rec := recurring("rec-1", "Gym", recurrence.Weekly, "2025-12-01T00:00:00Z")
	rec.DaysOfWeek = []int{1, 3} // Monday, Wednesday

	// Week of Monday 2026-01-05: two due days.
	responses := []*models.TrackingResponse{response("rec-1", "2026-01-05"), response("rec-1", "2026-01-06")}
	got := CompletionRateByRecurring([]*models.TrackingRecurring{rec}, responses, day("2026-01-05"), day("2026-01-11"), time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, RecurringCompletion{RecurringID: "rec-1", Name: "Gym", Scheduled: 2, Completed: 1, Rate: 50}, got[0])
}
