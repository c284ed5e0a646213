package models

import (
	"encoding/json"
	"time"
)

// Operation is the kind of change a queue entry replicates.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// SyncQueueEntry is one pending mutation awaiting delivery to the backend.
type SyncQueueEntry struct {
	Seq         int64           `json:"seq"`
	ID          string          `json:"id"`
	Entity      string          `json:"entity"`
	EntityID    string          `json:"entityId"`
	Operation   Operation       `json:"operation"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"timestamp"`
	RetryCount  int             `json:"retryCount"`
	NextRetryAt *time.Time      `json:"nextRetryAt,omitempty"`
	LastError   string          `json:"lastError,omitempty"`
}

// TableName returns the table name for SyncQueueEntry.
func (SyncQueueEntry) TableName() string {
	return "sync_queue"
}

// ReadyAt reports whether the entry may be attempted at now.
func (e *SyncQueueEntry) ReadyAt(now time.Time) bool {
	return e.NextRetryAt == nil || !now.Before(*e.NextRetryAt)
}
