package models

import "time"

// WorkSession is a timed block of work.
type WorkSession struct {
	Base
	Label     string     `json:"label,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	ProjectID string     `json:"projectId,omitempty"`
}

// TableName returns the table name for WorkSession.
func (WorkSession) TableName() string {
	return "work_sessions"
}

// Validate checks the session's fields.
func (w *WorkSession) Validate() error {
	v := newValidation(w)
	if w.StartedAt.IsZero() {
		v.Add("startedAt", "is required")
	}
	if w.EndedAt != nil && w.EndedAt.Before(w.StartedAt) {
		v.Add("endedAt", "must not be before startedAt")
	}
	validReference(v, "projectId", w.ProjectID, false)
	return v.Err()
}

// IsRunning reports whether the session has not been stopped yet.
func (w *WorkSession) IsRunning() bool {
	return w.EndedAt == nil
}

// Duration returns the elapsed time, measured up to now while running.
func (w *WorkSession) Duration(now time.Time) time.Duration {
	end := now
	if w.EndedAt != nil {
		end = *w.EndedAt
	}
	if end.Before(w.StartedAt) {
		return 0
	}
	return end.Sub(w.StartedAt)
}
