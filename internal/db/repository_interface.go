package db

import (
	"context"

	"github.com/kimhsiao/lifetrack/backend/internal/models"
)

// EntityRepository is the per-entity API used by services and handlers.
type EntityRepository[P models.Entity] interface {
	Table() string
	Create(ctx context.Context, data P) (P, error)
	GetByID(ctx context.Context, id string) (P, error)
	GetAll(ctx context.Context, includeDeleted bool) ([]P, error)
	Update(ctx context.Context, id string, patch func(P)) (P, error)
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	GetDeleted(ctx context.Context) ([]P, error)
	GetDeletedCount(ctx context.Context) (int, error)
	HardDelete(ctx context.Context, id string) error
}

// TrashRepository is the table-agnostic part of EntityRepository used by
// the trash view.
type TrashRepository interface {
	Table() string
	GetDeletedCount(ctx context.Context) (int, error)
	Restore(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error
}

// ConflictLogRepository defines operations for conflict log persistence.
type ConflictLogRepository interface {
	CreateConflictLog(ctx context.Context, log *models.ConflictLog) error
	ListConflictLogs(ctx context.Context, limit int) ([]models.ConflictLog, error)
}

// Ensure the concrete repositories implement the interfaces at compile time.
var (
	_ EntityRepository[*models.TrackingRecurring] = (*Repository[models.TrackingRecurring, *models.TrackingRecurring])(nil)
	_ EntityRepository[*models.JournalEntry]      = (*Repository[models.JournalEntry, *models.JournalEntry])(nil)
	_ TrashRepository                             = (*Repository[models.MediaBlob, *models.MediaBlob])(nil)
	_ ConflictLogRepository                       = (*ConflictLogs)(nil)
)
