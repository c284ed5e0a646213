package sync

import (
	"context"
	stderrors "errors"
	gosync "sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kimhsiao/lifetrack/backend/internal/bus"
	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/logging"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/conflict"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/queue"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/status"
)

// DefaultEntryTimeout bounds a single push.
const DefaultEntryTimeout = 30 * time.Second

// settleTimeout bounds the queue bookkeeping that follows a push.
const settleTimeout = 5 * time.Second

// EventSource is the subscribing half of the bus.
type EventSource interface {
	Subscribe(prefix string, bufSize int) (<-chan bus.Event, func())
}

// ConflictRecorder persists resolved conflicts.
type ConflictRecorder interface {
	CreateConflictLog(ctx context.Context, log *models.ConflictLog) error
}

// SyncResult summarises one drain.
type SyncResult struct {
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`
	Pushed    int           `json:"pushed"`
	Conflicts int           `json:"conflicts"`
	Remaining int           `json:"remaining"`
	Error     string        `json:"error,omitempty"`
}

// SyncEngine drains the sync queue into a Backend, oldest entry first.
type SyncEngine struct {
	queue     *queue.Queue
	backend   Backend
	status    *status.Tracker
	resolver  *conflict.Resolver
	conflicts ConflictRecorder
	events    bus.Publisher
	timeout   time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu     gosync.Mutex
	online atomic.Bool
}

// Option configures a SyncEngine.
type Option func(*SyncEngine)

// WithEntryTimeout bounds each push; zero keeps DefaultEntryTimeout.
func WithEntryTimeout(d time.Duration) Option {
	return func(e *SyncEngine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithResolver replaces the last-write-wins resolver.
func WithResolver(r *conflict.Resolver) Option {
	return func(e *SyncEngine) { e.resolver = r }
}

// WithConflictLog sets where resolved conflicts are recorded.
func WithConflictLog(c ConflictRecorder) Option {
	return func(e *SyncEngine) { e.conflicts = c }
}

// WithEvents sets the bus that receives sync.conflict_resolved events.
func WithEvents(p bus.Publisher) Option {
	return func(e *SyncEngine) { e.events = p }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *SyncEngine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *SyncEngine) { e.logger = l }
}

// NewSyncEngine creates an engine that starts online.
func NewSyncEngine(q *queue.Queue, backend Backend, tracker *status.Tracker, opts ...Option) *SyncEngine {
	e := &SyncEngine{
		queue:   q,
		backend: backend,
		status:  tracker,
		timeout: DefaultEntryTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrGlobal(e.logger, "sync.engine")
	if e.resolver == nil {
		e.resolver = conflict.NewResolver(conflict.ResolutionStrategyLastWriteWins,
			conflict.WithClock(e.now), conflict.WithLogger(e.logger))
	}
	e.online.Store(true)
	return e
}

// Status returns the current sync status.
func (e *SyncEngine) Status() status.Snapshot {
	return e.status.Current()
}

// SetOnline records the connectivity signal.
func (e *SyncEngine) SetOnline(online bool) {
	if e.online.Swap(online) != online {
		e.logger.Info("connectivity changed", zap.Bool("online", online))
	}
	e.status.SetOnline(online)
}

// IsOnline reports the last connectivity signal.
func (e *SyncEngine) IsOnline() bool {
	return e.online.Load()
}

// RefreshQueueSize publishes the current queue size on the status.
func (e *SyncEngine) RefreshQueueSize(ctx context.Context) error {
	n, err := e.queue.Size(ctx)
	if err != nil {
		return err
	}
	e.status.SetQueueSize(n)
	return nil
}

func (e *SyncEngine) refreshQueueSize(ctx context.Context) {
	if err := e.RefreshQueueSize(ctx); err != nil {
		e.logger.Warn("refresh sync queue size", zap.Error(err))
	}
}

// WatchQueue refreshes the status queue size on every queue.appended
// event, online or not, until the returned stop function is called.
func (e *SyncEngine) WatchQueue(source EventSource) (stop func()) {
	events, unsub := source.Subscribe(bus.KindQueueAppended, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range events {
			ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
			e.refreshQueueSize(ctx)
			cancel()
		}
	}()

	var once gosync.Once
	return func() {
		once.Do(func() {
			unsub()
			<-done
		})
	}
}

// settleContext keeps ctx's values but not its cancellation: an entry the
// backend accepted is acknowledged even when the drain is being cancelled.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

// Drain delivers the queue head by head. The head is re-read after every
// acknowledgement, so entries appended meanwhile are delivered in the same
// cycle. A failed delivery keeps the entry, schedules its retry and leaves
// the status in error. Cancelling ctx stops between or during pushes and
// leaves unacknowledged entries queued.
func (e *SyncEngine) Drain(ctx context.Context) (*SyncResult, error) {
	if !e.IsOnline() {
		e.refreshQueueSize(ctx)
		return nil, ErrOffline
	}
	if !e.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer e.mu.Unlock()

	result := &SyncResult{StartTime: e.now()}

	// A head still waiting on its backoff is not a new attempt.
	head, err := e.queue.Head(ctx)
	if err != nil {
		return nil, err
	}
	if head != nil && !head.ReadyAt(e.now()) {
		e.logger.Debug("queue head waiting for retry", zap.String("entry", queue.String(head)))
		e.refreshQueueSize(ctx)
		return e.finish(ctx, result, nil), nil
	}

	if err := e.status.BeginSync(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "begin sync", err)
	}

	for {
		if ctx.Err() != nil {
			return e.cancelled(result), ctx.Err()
		}
		entry, err := e.queue.Head(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return e.cancelled(result), ctx.Err()
			}
			return e.failed(ctx, result, err), err
		}
		if entry == nil {
			break
		}
		if !entry.ReadyAt(e.now()) {
			err := apperrors.New(apperrors.ErrSyncTransport, entry.LastError)
			return e.failed(ctx, result, err), err
		}

		if err := e.deliver(ctx, entry, result); err != nil {
			if ctx.Err() != nil {
				return e.cancelled(result), ctx.Err()
			}
			settleCtx, cancel := settleContext(ctx)
			_, markErr := e.queue.MarkFailed(settleCtx, entry.Seq, err)
			cancel()
			if markErr != nil {
				e.logger.Error("record sync failure", zap.Error(markErr))
			}
			return e.failed(ctx, result, err), err
		}
	}

	size, err := e.queue.Size(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return e.cancelled(result), ctx.Err()
		}
		return e.failed(ctx, result, err), err
	}
	if err := e.status.Succeeded(size); err != nil {
		e.logger.Error("update sync status", zap.Error(err))
	}
	e.logger.Info("sync queue drained",
		zap.Int("pushed", result.Pushed),
		zap.Int("conflicts", result.Conflicts))
	return e.finish(ctx, result, nil), nil
}

// deliver pushes one entry and settles it.
func (e *SyncEngine) deliver(ctx context.Context, entry *models.SyncQueueEntry, result *SyncResult) error {
	m := MutationOf(entry)
	err := e.push(ctx, m)

	var ce *ConflictError
	if stderrors.As(err, &ce) {
		return e.resolve(ctx, entry, m, ce, result)
	}
	if err != nil {
		return err
	}

	settleCtx, cancel := settleContext(ctx)
	defer cancel()
	if err := e.queue.Ack(settleCtx, entry.Seq); err != nil {
		return err
	}
	result.Pushed++
	e.logger.Debug("sync entry delivered", zap.String("entry", queue.String(entry)))
	return nil
}

// push bounds one delivery by the entry timeout.
func (e *SyncEngine) push(ctx context.Context, m Mutation) error {
	pushCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	err := e.backend.Push(pushCtx, m)
	if err != nil && ctx.Err() == nil && stderrors.Is(pushCtx.Err(), context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrSyncTimeout, "push "+m.Table+"/"+m.EntityID, err)
	}
	return err
}

// resolve settles a conflict: a winning local write is pushed again with
// Force, a winning remote write makes the entry obsolete.
func (e *SyncEngine) resolve(ctx context.Context, entry *models.SyncQueueEntry, m Mutation, ce *ConflictError, result *SyncResult) error {
	outcome, err := e.resolver.Resolve(&conflict.Conflict{
		Entity:          entry.Entity,
		EntityID:        entry.EntityID,
		LocalUpdatedAt:  localUpdatedAt(entry),
		RemoteUpdatedAt: ce.RemoteUpdatedAt,
	})
	if err != nil {
		return err
	}

	if e.conflicts != nil {
		logCtx, cancel := settleContext(ctx)
		err := e.conflicts.CreateConflictLog(logCtx, outcome.ConflictLog)
		cancel()
		if err != nil {
			e.logger.Error("record conflict", zap.Error(err))
		}
	}
	bus.Emit(e.events, bus.KindSyncConflict, *outcome.ConflictLog)
	result.Conflicts++

	if outcome.LocalWins() {
		m.Force = true
		if err := e.push(ctx, m); err != nil {
			return err
		}
		result.Pushed++
	}

	settleCtx, cancel := settleContext(ctx)
	defer cancel()
	return e.queue.Ack(settleCtx, entry.Seq)
}

func (e *SyncEngine) failed(ctx context.Context, result *SyncResult, cause error) *SyncResult {
	ctx, cancel := settleContext(ctx)
	defer cancel()
	size, _ := e.queue.Size(ctx)
	if err := e.status.Failed(cause, size); err != nil {
		e.logger.Error("update sync status", zap.Error(err))
	}
	e.logger.Warn("sync failed", zap.Error(cause), zap.Int("pushed", result.Pushed))
	return e.finish(ctx, result, cause)
}

func (e *SyncEngine) cancelled(result *SyncResult) *SyncResult {
	// The caller's context is done; count with a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	size, _ := e.queue.Size(ctx)
	if err := e.status.Cancelled(size); err != nil {
		e.logger.Error("update sync status", zap.Error(err))
	}
	e.logger.Info("sync cancelled", zap.Int("pushed", result.Pushed))
	return e.finish(ctx, result, nil)
}

func (e *SyncEngine) finish(ctx context.Context, result *SyncResult, cause error) *SyncResult {
	result.EndTime = e.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	if n, err := e.queue.Size(ctx); err == nil {
		result.Remaining = n
	}
	if cause != nil {
		result.Error = cause.Error()
	}
	return result
}

var _ SyncEngineInterface = (*SyncEngine)(nil)
