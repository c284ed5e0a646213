package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
)

// Mutation is one queue entry as sent to the backend.
type Mutation struct {
	Table     string           `json:"table"`
	EntityID  string           `json:"entityId"`
	Operation models.Operation `json:"operation"`
	Payload   json.RawMessage  `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	// Force asks the backend to overwrite a concurrent remote change.
	Force bool `json:"force,omitempty"`
}

// MutationOf builds the mutation for a queue entry.
func MutationOf(e *models.SyncQueueEntry) Mutation {
	return Mutation{
		Table:     e.Entity,
		EntityID:  e.EntityID,
		Operation: e.Operation,
		Payload:   e.Payload,
		Timestamp: e.CreatedAt,
	}
}

// Backend delivers mutations to the remote store. Implementations return
// *ConflictError when the remote record changed concurrently, and
// SYNC_TRANSPORT or SYNC_REJECTED AppErrors for other failures.
type Backend interface {
	Push(ctx context.Context, m Mutation) error
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, m Mutation) error

// Push implements Backend.
func (f BackendFunc) Push(ctx context.Context, m Mutation) error {
	return f(ctx, m)
}

// ConflictError reports that the remote copy of a record was written
// concurrently.
type ConflictError struct {
	RemoteUpdatedAt time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("[%s] remote record updated at %s", apperrors.ErrSyncConflict, e.RemoteUpdatedAt.Format(time.RFC3339Nano))
}

// Unwrap lets apperrors.Is(err, ErrSyncConflict) match.
func (e *ConflictError) Unwrap() error {
	return apperrors.New(apperrors.ErrSyncConflict, "remote conflict")
}

// Errors returned by Drain without attempting delivery.
var (
	ErrOffline        = apperrors.New(apperrors.ErrSyncOffline, "device is offline")
	ErrSyncInProgress = apperrors.New(apperrors.ErrSyncInProgress, "sync already in progress")
)

// localUpdatedAt reads updatedAt from a record snapshot. Hard-delete
// payloads carry only the id, so the entry time stands in.
func localUpdatedAt(e *models.SyncQueueEntry) time.Time {
	var snap struct {
		UpdatedAt *time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(e.Payload, &snap); err == nil && snap.UpdatedAt != nil {
		return *snap.UpdatedAt
	}
	return e.CreatedAt
}
