// Package status tracks the process-wide sync status shown to the user.
package status

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kimhsiao/lifetrack/backend/internal/bus"
)

// Phase is the engine's coarse activity.
type Phase string

const (
	Idle    Phase = "idle"
	Syncing Phase = "syncing"
	Error   Phase = "error"
)

var validTransitions = map[Phase][]Phase{
	Idle:    {Syncing},
	Syncing: {Idle, Error},
	Error:   {Syncing, Idle},
}

// Snapshot is an immutable copy of the sync status.
type Snapshot struct {
	Phase             Phase
	QueueSize         int
	LastSyncTimestamp *time.Time
	LastError         string
	Online            bool
}

// MarshalJSON renders an empty LastError as null.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var lastErr *string
	if s.LastError != "" {
		lastErr = &s.LastError
	}
	return json.Marshal(struct {
		Status            Phase      `json:"status"`
		QueueSize         int        `json:"queueSize"`
		LastSyncTimestamp *time.Time `json:"lastSyncTimestamp"`
		LastError         *string    `json:"lastError"`
		Online            bool       `json:"online"`
		Label             string     `json:"label"`
	}{s.Phase, s.QueueSize, s.LastSyncTimestamp, lastErr, s.Online, s.Label()})
}

// Label is the short status text: offline wins over every phase.
func (s Snapshot) Label() string {
	switch {
	case !s.Online:
		return "offline"
	case s.Phase == Syncing:
		return "syncing"
	case s.Phase == Error:
		return "sync error"
	case s.QueueSize == 1:
		return "1 operation pending"
	case s.QueueSize > 1:
		return fmt.Sprintf("%d operations pending", s.QueueSize)
	}
	return "synced"
}

// LastSyncLabel describes how long ago the last successful sync ended.
func (s Snapshot) LastSyncLabel(now time.Time) string {
	if s.LastSyncTimestamp == nil {
		return "never synced"
	}
	diff := now.Sub(*s.LastSyncTimestamp)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d min ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(diff/time.Hour))
	}
	return fmt.Sprintf("%d d ago", int(diff/(24*time.Hour)))
}

// Change is the payload of a sync.status_changed event.
type Change struct {
	Previous Snapshot
	Current  Snapshot
}

// Tracker owns the sync status. Only the engine and connectivity signals
// mutate it; everyone else reads snapshots or subscribes on the bus.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	pub  bus.Publisher
	now  func() time.Time
}

// NewTracker starts idle, online, with an empty queue.
func NewTracker(pub bus.Publisher) *Tracker {
	return &Tracker{
		snap: Snapshot{Phase: Idle, Online: true},
		pub:  pub,
		now:  time.Now,
	}
}

// SetClock replaces the time source.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Current returns a copy of the status.
func (t *Tracker) Current() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// BeginSync enters the syncing phase.
func (t *Tracker) BeginSync() error {
	return t.update(func(s *Snapshot) error {
		return transition(s, Syncing)
	})
}

// Succeeded records a drained queue.
func (t *Tracker) Succeeded(queueSize int) error {
	return t.update(func(s *Snapshot) error {
		if err := transition(s, Idle); err != nil {
			return err
		}
		now := t.now().UTC()
		s.LastSyncTimestamp = &now
		s.LastError = ""
		s.QueueSize = queueSize
		return nil
	})
}

// Failed records a delivery failure; the queue is left as it was.
func (t *Tracker) Failed(err error, queueSize int) error {
	return t.update(func(s *Snapshot) error {
		if terr := transition(s, Error); terr != nil {
			return terr
		}
		if err != nil {
			s.LastError = err.Error()
		}
		s.QueueSize = queueSize
		return nil
	})
}

// Cancelled ends a sync that was interrupted rather than failed.
func (t *Tracker) Cancelled(queueSize int) error {
	return t.update(func(s *Snapshot) error {
		if err := transition(s, Idle); err != nil {
			return err
		}
		s.QueueSize = queueSize
		return nil
	})
}

// SetQueueSize refreshes the pending count outside a sync.
func (t *Tracker) SetQueueSize(n int) {
	_ = t.update(func(s *Snapshot) error {
		s.QueueSize = n
		return nil
	})
}

// SetOnline records the connectivity signal.
func (t *Tracker) SetOnline(online bool) {
	_ = t.update(func(s *Snapshot) error {
		s.Online = online
		return nil
	})
}

func (t *Tracker) update(fn func(*Snapshot) error) error {
	t.mu.Lock()
	prev := t.snap
	next := prev
	if err := fn(&next); err != nil {
		t.mu.Unlock()
		return err
	}
	t.snap = next
	t.mu.Unlock()

	if !sameSnapshot(prev, next) {
		bus.Emit(t.pub, bus.KindSyncStatus, Change{Previous: prev, Current: next})
	}
	return nil
}

func transition(s *Snapshot, to Phase) error {
	if !slices.Contains(validTransitions[s.Phase], to) {
		return fmt.Errorf("invalid sync status transition from %s to %s", s.Phase, to)
	}
	s.Phase = to
	return nil
}

func sameSnapshot(a, b Snapshot) bool {
	if a.Phase != b.Phase || a.QueueSize != b.QueueSize || a.LastError != b.LastError || a.Online != b.Online {
		return false
	}
	if (a.LastSyncTimestamp == nil) != (b.LastSyncTimestamp == nil) {
		return false
	}
	return a.LastSyncTimestamp == nil || a.LastSyncTimestamp.Equal(*b.LastSyncTimestamp)
}
