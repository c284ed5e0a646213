package services

import (
	"context"
	"time"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
	"github.com/kimhsiao/lifetrack/backend/internal/stats"
)

// TrackerLister lists the active trackers.
type TrackerLister interface {
	ListActiveSorted(ctx context.Context) ([]*models.TrackingRecurring, error)
	GetByID(ctx context.Context, id string) (*models.TrackingRecurring, error)
}

// ResponseRanger lists responses by day.
type ResponseRanger interface {
	GetInDateRange(ctx context.Context, from, to string) ([]*models.TrackingResponse, error)
}

// Completion is the completion report over a day range.
type Completion struct {
	From     string                      `json:"from"`
	To       string                      `json:"to"`
	Rate     int                         `json:"rate"`
	Trackers []stats.RecurringCompletion `json:"trackers"`
}

// StatsService loads tracker data and feeds it to the stats views.
type StatsService struct {
	trackers  TrackerLister
	responses ResponseRanger
	loc       *time.Location
}

// NewStatsService creates a StatsService computing calendar days in loc.
func NewStatsService(trackers TrackerLister, responses ResponseRanger, loc *time.Location) *StatsService {
	if loc == nil {
		loc = time.Local
	}
	return &StatsService{trackers: trackers, responses: responses, loc: loc}
}

// Completion reports the completion of every active tracker over [from, to].
func (s *StatsService) Completion(ctx context.Context, from, to recurrence.Day) (*Completion, error) {
	if from.After(to) {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "range starts after it ends: %s > %s", from, to)
	}

	trackers, err := s.trackers.ListActiveSorted(ctx)
	if err != nil {
		return nil, err
	}
	responses, err := s.responses.GetInDateRange(ctx, from.String(), to.String())
	if err != nil {
		return nil, err
	}

	byTracker := stats.CompletionRateByRecurring(trackers, responses, from, to, s.loc)
	return &Completion{
		From:     from.String(),
		To:       to.String(),
		Rate:     stats.CompletionRate(trackers, responses, from, to, s.loc),
		Trackers: byTracker,
	}, nil
}

// Schedule lists the due days of one tracker over [from, to].
func (s *StatsService) Schedule(ctx context.Context, trackerID string, from, to recurrence.Day) ([]string, error) {
	if from.After(to) {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "range starts after it ends: %s > %s", from, to)
	}
	tracker, err := s.trackers.GetByID(ctx, trackerID)
	if err != nil {
		return nil, err
	}
	return stats.ScheduledDates(tracker, from, to, s.loc), nil
}
