package db

import (
	"sort"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
)

// Repositories bundles one repository per entity table.
type Repositories struct {
	TrackingRecurrings *TrackingRecurringRepository
	TrackingResponses  *TrackingResponseRepository
	TrackingEvents     *Repository[models.TrackingEvent, *models.TrackingEvent]
	JournalEntries     *Repository[models.JournalEntry, *models.JournalEntry]
	StockProducts      *StockRepository
	StockRoutines      *StockRoutineRepository
	WorkSessions       *Repository[models.WorkSession, *models.WorkSession]
	MediaBlobs         *Repository[models.MediaBlob, *models.MediaBlob]
	ConflictLogs       *ConflictLogs
}

// NewRepositories creates every repository over one Store.
func NewRepositories(s *Store) *Repositories {
	return &Repositories{
		TrackingRecurrings: NewTrackingRecurringRepository(s),
		TrackingResponses:  NewTrackingResponseRepository(s),
		TrackingEvents:     NewRepository[models.TrackingEvent](s),
		JournalEntries:     NewRepository[models.JournalEntry](s),
		StockProducts:      NewStockRepository(s),
		StockRoutines:      NewStockRoutineRepository(s),
		WorkSessions:       NewRepository[models.WorkSession](s),
		MediaBlobs:         NewRepository[models.MediaBlob](s),
		ConflictLogs:       NewConflictLogs(s),
	}
}

func (r *Repositories) trash() []TrashRepository {
	return []TrashRepository{
		r.TrackingRecurrings, r.TrackingResponses, r.TrackingEvents, r.JournalEntries,
		r.StockProducts, r.StockRoutines, r.WorkSessions, r.MediaBlobs,
	}
}

// Trash returns the repository for an entity table.
func (r *Repositories) Trash(table string) (TrashRepository, error) {
	for _, repo := range r.trash() {
		if repo.Table() == table {
			return repo, nil
		}
	}
	return nil, apperrors.Newf(apperrors.ErrNotFound, "unknown table %q", table)
}

// Tables lists the entity tables in sorted order.
func (r *Repositories) Tables() []string {
	var out []string
	for _, repo := range r.trash() {
		out = append(out, repo.Table())
	}
	sort.Strings(out)
	return out
}
