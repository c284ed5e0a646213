package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/recurrence"
)

// =====================================================
// TrackingRecurring
// =====================================================

// TrackingRecurringRepository stores recurring trackers.
type TrackingRecurringRepository struct {
	*Repository[models.TrackingRecurring, *models.TrackingRecurring]
}

// NewTrackingRecurringRepository creates the tracker repository.
func NewTrackingRecurringRepository(s *Store) *TrackingRecurringRepository {
	return &TrackingRecurringRepository{NewRepository[models.TrackingRecurring](s)}
}

// ListActiveSorted returns live, active trackers sorted by name.
func (r *TrackingRecurringRepository) ListActiveSorted(ctx context.Context) ([]*models.TrackingRecurring, error) {
	items, err := r.Find(ctx, "json_extract(data, '$.isActive') = 1")
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

// DueOn returns the active trackers expecting an answer on day.
func (r *TrackingRecurringRepository) DueOn(ctx context.Context, day recurrence.Day, loc *time.Location) ([]*models.TrackingRecurring, error) {
	items, err := r.ListActiveSorted(ctx)
	if err != nil {
		return nil, err
	}
	due := items[:0]
	for _, item := range items {
		if recurrence.IsDueOnDate(item.Schedule(loc), day) {
			due = append(due, item)
		}
	}
	return due, nil
}

// =====================================================
// TrackingResponse
// =====================================================

// TrackingResponseRepository stores answers, one per tracker and day.
type TrackingResponseRepository struct {
	*Repository[models.TrackingResponse, *models.TrackingResponse]
	upsertMu sync.Mutex
}

// NewTrackingResponseRepository creates the response repository.
func NewTrackingResponseRepository(s *Store) *TrackingResponseRepository {
	return &TrackingResponseRepository{Repository: NewRepository[models.TrackingResponse](s)}
}

// GetByDate returns the live responses for a YYYY-MM-DD day.
func (r *TrackingResponseRepository) GetByDate(ctx context.Context, date string) ([]*models.TrackingResponse, error) {
	return r.Find(ctx, "json_extract(data, '$.date') = ?", date)
}

// GetByRecurringID returns a tracker's live responses by day.
func (r *TrackingResponseRepository) GetByRecurringID(ctx context.Context, recurringID string) ([]*models.TrackingResponse, error) {
	return r.FindOrdered(ctx, "json_extract(data, '$.recurringId') = ?",
		"json_extract(data, '$.date') ASC, created_at ASC", recurringID)
}

// GetResponse returns the live response of a tracker for a day, or nil.
func (r *TrackingResponseRepository) GetResponse(ctx context.Context, recurringID, date string) (*models.TrackingResponse, error) {
	items, err := r.Find(ctx, "json_extract(data, '$.recurringId') = ? AND json_extract(data, '$.date') = ?", recurringID, date)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// GetTodayResponse is GetResponse for the current calendar day in loc.
func (r *TrackingResponseRepository) GetTodayResponse(ctx context.Context, recurringID string, loc *time.Location) (*models.TrackingResponse, error) {
	today := recurrence.DayIn(r.store.now(), loc)
	return r.GetResponse(ctx, recurringID, today.String())
}

// GetInDateRange returns live responses with from <= date <= to.
func (r *TrackingResponseRepository) GetInDateRange(ctx context.Context, from, to string) ([]*models.TrackingResponse, error) {
	return r.FindOrdered(ctx, "json_extract(data, '$.date') BETWEEN ? AND ?",
		"json_extract(data, '$.date') ASC, created_at ASC", from, to)
}

// UpsertResponse creates the response for (recurringID, date) or updates
// the existing one. The idx_tracking_responses_day unique index keeps a
// tracker to one live answer per day for every other writer too.
func (r *TrackingResponseRepository) UpsertResponse(ctx context.Context, recurringID, date string, value models.ResponseValue) (*models.TrackingResponse, error) {
	r.upsertMu.Lock()
	defer r.upsertMu.Unlock()

	existing, err := r.GetResponse(ctx, recurringID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return r.Update(ctx, existing.ID, func(resp *models.TrackingResponse) {
			value.Apply(resp)
		})
	}
	resp := &models.TrackingResponse{RecurringID: recurringID, Date: date}
	value.Apply(resp)
	return r.Create(ctx, resp)
}
