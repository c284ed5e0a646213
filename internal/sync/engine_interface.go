// Package sync delivers the local sync queue to the remote backend.
package sync

import (
	"context"

	"github.com/kimhsiao/lifetrack/backend/internal/sync/status"
)

// SyncEngineInterface defines the interface for sync engine operations.
// This interface allows for mocking in tests and alternative implementations.
type SyncEngineInterface interface {
	// Drain delivers queued mutations in order until the queue is empty,
	// a delivery fails or ctx is cancelled.
	Drain(ctx context.Context) (*SyncResult, error)

	// SetOnline records the connectivity signal.
	SetOnline(online bool)

	// IsOnline reports the last connectivity signal.
	IsOnline() bool

	// Status returns the current sync status.
	Status() status.Snapshot

	// RefreshQueueSize publishes the current queue size on the status.
	RefreshQueueSize(ctx context.Context) error
}
