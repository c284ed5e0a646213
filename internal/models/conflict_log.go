package models

import "time"

// Resolution names which side of a conflict was kept.
type Resolution string

const (
	ResolutionLocalWins  Resolution = "local_wins"
	ResolutionRemoteWins Resolution = "remote_wins"
)

// ConflictLog records a resolved concurrent edit for user awareness.
type ConflictLog struct {
	ID              string     `json:"id"`
	Entity          string     `json:"entity"`
	EntityID        string     `json:"entityId"`
	LocalUpdatedAt  time.Time  `json:"localUpdatedAt"`
	RemoteUpdatedAt time.Time  `json:"remoteUpdatedAt"`
	Resolution      Resolution `json:"resolution"`
	DetectedAt      time.Time  `json:"detectedAt"`
}

// TableName returns the table name for ConflictLog.
func (ConflictLog) TableName() string {
	return "conflict_log"
}
