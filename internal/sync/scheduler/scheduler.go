// Package scheduler runs the sync engine in the background: on a cron
// schedule, whenever a mutation is queued, and when connectivity returns.
package scheduler

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kimhsiao/lifetrack/backend/internal/bus"
	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/logging"
	syncpkg "github.com/kimhsiao/lifetrack/backend/internal/sync"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/status"
)

// BackoffResetter makes failed queue entries eligible again.
type BackoffResetter interface {
	ResetBackoff(ctx context.Context) (int64, error)
}

// Subscriber is the subscribing half of bus.Bus.
type Subscriber interface {
	Subscribe(prefix string, bufSize int) (<-chan bus.Event, func())
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Schedule is a cron spec or descriptor such as "@every 30s".
	Schedule string
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{Schedule: "@every 30s"}
}

// Scheduler manages background sync operations.
type Scheduler struct {
	engine   syncpkg.SyncEngineInterface
	queue    BackoffResetter
	events   Subscriber
	schedule string
	logger   *zap.Logger

	cron    *cron.Cron
	trigger chan struct{}
	stop    context.CancelFunc
	unsub   func()
	wg      sync.WaitGroup

	mu             sync.RWMutex
	isRunning      bool
	syncInProgress bool
	cancelDrain    context.CancelFunc
	lastSyncTime   time.Time
	lastResult     *syncpkg.SyncResult
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithEvents drains whenever a queue.appended event is published.
func WithEvents(s Subscriber) Option {
	return func(sc *Scheduler) { sc.events = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(sc *Scheduler) { sc.logger = l }
}

// NewScheduler creates a new Scheduler.
func NewScheduler(engine syncpkg.SyncEngineInterface, queue BackoffResetter, config *SchedulerConfig, opts ...Option) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	s := &Scheduler{
		engine:   engine,
		queue:    queue,
		schedule: config.Schedule,
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrGlobal(s.logger, "sync.scheduler")
	return s
}

// Start starts the background sync scheduler. Drains run on a single
// worker goroutine until Stop is called or ctx is done; Stop cancels the
// drain in flight.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	c := cron.New()
	if s.schedule != "" {
		if _, err := c.AddFunc(s.schedule, func() { s.TriggerSync() }); err != nil {
			return apperrors.Wrap(apperrors.ErrInvalid, "invalid sync schedule "+s.schedule, err)
		}
	}

	var appended <-chan bus.Event
	if s.events != nil {
		appended, s.unsub = s.events.Subscribe(bus.KindQueueAppended, 16)
	}

	runCtx, stop := context.WithCancel(ctx)
	s.cron = c
	s.stop = stop
	s.isRunning = true
	c.Start()

	s.wg.Add(1)
	go s.loop(runCtx, appended)

	s.logger.Info("background sync scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop stops the background sync scheduler and waits for the worker.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	c, unsub, stop := s.cron, s.unsub, s.stop
	s.unsub = nil
	s.mu.Unlock()

	// Jobs call TriggerSync, which takes the lock.
	<-c.Stop().Done()
	if unsub != nil {
		unsub()
	}
	stop()
	s.wg.Wait()
	s.logger.Info("background sync scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, appended <-chan bus.Event) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-appended:
			if !ok {
				appended = nil
				continue
			}
			s.runSync(ctx)
		case <-s.trigger:
			s.runSync(ctx)
		}
	}
}

// runSync executes one drain with a context that going offline or Stop
// can cancel.
func (s *Scheduler) runSync(ctx context.Context) {
	if !s.engine.IsOnline() {
		s.logger.Debug("skipping sync while offline")
		if err := s.engine.RefreshQueueSize(ctx); err != nil {
			s.logger.Warn("refresh sync queue size", zap.Error(err))
		}
		return
	}

	drainCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.syncInProgress = true
	s.cancelDrain = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncInProgress = false
		s.cancelDrain = nil
		s.mu.Unlock()
	}()

	result, err := s.engine.Drain(drainCtx)
	s.record(result, err)
}

func (s *Scheduler) record(result *syncpkg.SyncResult, err error) {
	switch {
	case err == nil:
		s.mu.Lock()
		s.lastSyncTime = result.EndTime
		s.lastResult = result
		s.mu.Unlock()
		if result.Pushed > 0 || result.Conflicts > 0 {
			s.logger.Info("sync completed",
				zap.Int("pushed", result.Pushed),
				zap.Int("conflicts", result.Conflicts),
				zap.Duration("duration", result.Duration))
		}
	case stderrors.Is(err, context.Canceled),
		apperrors.Is(err, apperrors.ErrSyncOffline),
		apperrors.Is(err, apperrors.ErrSyncInProgress):
		s.logger.Debug("sync skipped", zap.Error(err))
	default:
		s.mu.Lock()
		s.lastResult = result
		s.mu.Unlock()
		s.logger.Warn("sync failed", zap.Error(err))
	}
}

// TriggerSync asks the worker for a drain. It returns false when the
// scheduler is stopped or a drain is already pending.
func (s *Scheduler) TriggerSync() bool {
	if !s.IsRunning() {
		return false
	}
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// SyncNow drains on the caller's goroutine and waits for completion.
func (s *Scheduler) SyncNow(ctx context.Context) (*syncpkg.SyncResult, error) {
	result, err := s.engine.Drain(ctx)
	s.record(result, err)
	return result, err
}

// SetOnlineStatus forwards the connectivity signal to the engine. Going
// offline cancels an in-flight drain; coming back online clears every
// retry delay and drains.
func (s *Scheduler) SetOnlineStatus(isOnline bool) {
	wasOnline := s.engine.IsOnline()
	s.engine.SetOnline(isOnline)
	if wasOnline == isOnline {
		return
	}

	if !isOnline {
		s.mu.RLock()
		cancel := s.cancelDrain
		s.mu.RUnlock()
		if cancel != nil {
			cancel()
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.queue.ResetBackoff(ctx); err != nil {
		s.logger.Error("reset sync backoff", zap.Error(err))
	}
	s.TriggerSync()
}

// SchedulerStatus reports the scheduler and the sync status.
type SchedulerStatus struct {
	IsRunning      bool                `json:"isRunning"`
	IsOnline       bool                `json:"isOnline"`
	SyncInProgress bool                `json:"syncInProgress"`
	LastSyncTime   *time.Time          `json:"lastSyncTime,omitempty"`
	LastResult     *syncpkg.SyncResult `json:"lastResult,omitempty"`
	Sync           status.Snapshot     `json:"sync"`
}

// GetStatus returns the current status of the scheduler.
func (s *Scheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := SchedulerStatus{
		IsRunning:      s.isRunning,
		IsOnline:       s.engine.IsOnline(),
		SyncInProgress: s.syncInProgress,
		LastResult:     s.lastResult,
		Sync:           s.engine.Status(),
	}
	if !s.lastSyncTime.IsZero() {
		t := s.lastSyncTime
		st.LastSyncTime = &t
	}
	return st
}

// IsOnline returns whether the engine is in online mode.
func (s *Scheduler) IsOnline() bool {
	return s.engine.IsOnline()
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
