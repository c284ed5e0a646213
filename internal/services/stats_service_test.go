package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
	"github.com/kimhsiao/lifetrack/backend/internal/services"
)

func TestStatsService_Completion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := services.NewStatsService(h.repos.TrackingRecurrings, h.repos.TrackingResponses, time.UTC)

	daily, err := h.repos.TrackingRecurrings.Create(ctx, &models.TrackingRecurring{
		Name:         "Water",
		ResponseType: models.ResponseBoolean,
		Recurrence:   models.Recurrence{RecurrenceType: recurrence.Daily},
		IsActive:     true,
	})
	require.NoError(t, err)
	yes := true
	for _, d := range []string{"2026-01-01", "2026-01-02"} {
		_, err := h.repos.TrackingResponses.UpsertResponse(ctx, daily.ID, d, models.ResponseValue{ValueBoolean: &yes})
		require.NoError(t, err)
	}

	got, err := svc.Completion(ctx, recurrence.MustParseDay("2026-01-01"), recurrence.MustParseDay("2026-01-04"))
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", got.From)
	assert.Equal(t, "2026-01-04", got.To)
	assert.Equal(t, 50, got.Rate)
	require.Len(t, got.Trackers, 1)
	assert.Equal(t, 4, got.Trackers[0].Scheduled)
	assert.Equal(t, 2, got.Trackers[0].Completed)

	_, err = svc.Completion(ctx, recurrence.MustParseDay("2026-01-04"), recurrence.MustParseDay("2026-01-01"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestStatsService_Schedule(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := services.NewStatsService(h.repos.TrackingRecurrings, h.repos.TrackingResponses, time.UTC)

	tracker, err := h.repos.TrackingRecurrings.Create(ctx, &models.TrackingRecurring{
		Name:         "Stretch",
		ResponseType: models.ResponseBoolean,
		Recurrence:   models.Recurrence{RecurrenceType: recurrence.Custom, IntervalDays: 2},
		IsActive:     true,
	})
	require.NoError(t, err)

	got, err := svc.Schedule(ctx, tracker.ID, recurrence.MustParseDay("2025-12-25"), recurrence.MustParseDay("2026-01-06"))
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-01", "2026-01-03", "2026-01-05"}, got)

	_, err = svc.Schedule(ctx, "6ba7b810-9dad-41d1-80b4-00c04fd430c8", recurrence.MustParseDay("2026-01-01"), recurrence.MustParseDay("2026-01-02"))
	assert.True(t, apperrors.IsNotFound(err))
}
