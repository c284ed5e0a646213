// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"sync"
	"testing"
	"time"

	"github.com/kimhsiao/lifetrack/backend/internal/db"
)

// Open returns a migrated database in a temp dir, closed on cleanup.
func Open(tb testing.TB) *db.DB {
	tb.Helper()
	d, err := db.Open(tb.TempDir())
	if err != nil {
		tb.Fatalf("open test database: %v", err)
	}
	tb.Cleanup(func() { _ = d.Close() })
	if _, err := d.Migrate(); err != nil {
		tb.Fatalf("migrate test database: %v", err)
	}
	return d
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
