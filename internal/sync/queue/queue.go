// Package queue is the durable outbound mutation queue.
//
// Entries are appended only inside the repository transaction that
// performs the local write, and removed only when the backend has
// acknowledged them. Delivery is strictly FIFO over the whole queue: a
// head entry that is backing off holds every later entry back.
package queue

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/logging"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/uuid"
)

// Execer is satisfied by *sql.Tx and *sql.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append inserts entry using tx, filling in ID, CreatedAt and Seq.
func Append(ctx context.Context, tx Execer, entry *models.SyncQueueEntry) error {
	if !entry.Operation.Valid() {
		return apperrors.Newf(apperrors.ErrInvalid, "invalid queue operation %q", entry.Operation)
	}
	if entry.ID == "" {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = models.Timestamp(time.Now())
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sync_queue (id, entity, entity_id, operation, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Entity, entry.EntityID, string(entry.Operation),
		string(entry.Payload), entry.CreatedAt.UnixMilli())
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "append sync queue entry", err)
	}
	if seq, err := res.LastInsertId(); err == nil {
		entry.Seq = seq
	}
	return nil
}

// Backoff computes the delay before retrying an entry: Base doubled per
// previous failure, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff waits 1m, 2m, 4m ... up to 1h.
var DefaultBackoff = Backoff{Base: time.Minute, Max: time.Hour}

// Delay returns the wait after the retryCount-th consecutive failure.
func (b Backoff) Delay(retryCount int) time.Duration {
	if retryCount < 1 {
		return 0
	}
	d := b.Base
	for i := 1; i < retryCount; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// Queue reads and settles entries of the sync_queue table.
type Queue struct {
	db      *sql.DB
	backoff Backoff
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithBackoff replaces DefaultBackoff.
func WithBackoff(b Backoff) Option {
	return func(q *Queue) { q.backoff = b }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// New creates a Queue over db.
func New(db *sql.DB, opts ...Option) *Queue {
	q := &Queue{db: db, backoff: DefaultBackoff, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = logging.OrGlobal(q.logger, "sync.queue")
	return q
}

const selectEntry = `
	SELECT seq, id, entity, entity_id, operation, payload, created_at,
	       retry_count, next_retry_at, last_error
	FROM sync_queue`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*models.SyncQueueEntry, error) {
	var (
		e         models.SyncQueueEntry
		op        string
		payload   string
		createdAt int64
		nextRetry sql.NullInt64
	)
	if err := s.Scan(&e.Seq, &e.ID, &e.Entity, &e.EntityID, &op, &payload, &createdAt,
		&e.RetryCount, &nextRetry, &e.LastError); err != nil {
		return nil, err
	}
	e.Operation = models.Operation(op)
	e.Payload = []byte(payload)
	e.CreatedAt = models.FromMillis(createdAt)
	if nextRetry.Valid {
		t := models.FromMillis(nextRetry.Int64)
		e.NextRetryAt = &t
	}
	return &e, nil
}

// Head returns the oldest entry whether or not it is ready, or nil when
// the queue is empty.
func (q *Queue) Head(ctx context.Context) (*models.SyncQueueEntry, error) {
	e, err := scanEntry(q.db.QueryRowContext(ctx, selectEntry+` ORDER BY seq ASC LIMIT 1`))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "read sync queue head", err)
	}
	return e, nil
}

// Next returns the head entry if it may be attempted now, else nil.
func (q *Queue) Next(ctx context.Context) (*models.SyncQueueEntry, error) {
	e, err := q.Head(ctx)
	if err != nil || e == nil {
		return nil, err
	}
	if !e.ReadyAt(q.now()) {
		return nil, nil
	}
	return e, nil
}

// Ack removes a delivered entry.
func (q *Queue) Ack(ctx context.Context, seq int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE seq = ?`, seq)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "ack sync queue entry", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "sync queue entry %d not found", seq)
	}
	return nil
}

// MarkFailed records a failed attempt and schedules the next one. The
// entry is never dropped.
func (q *Queue) MarkFailed(ctx context.Context, seq int64, cause error) (time.Time, error) {
	var retryCount int
	err := q.db.QueryRowContext(ctx, `SELECT retry_count FROM sync_queue WHERE seq = ?`, seq).Scan(&retryCount)
	if stderrors.Is(err, sql.ErrNoRows) {
		return time.Time{}, apperrors.Newf(apperrors.ErrNotFound, "sync queue entry %d not found", seq)
	}
	if err != nil {
		return time.Time{}, apperrors.Wrap(apperrors.ErrDatabase, "read sync queue entry", err)
	}

	retryCount++
	next := models.Timestamp(q.now().Add(q.backoff.Delay(retryCount)))
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if _, err := q.db.ExecContext(ctx, `
		UPDATE sync_queue SET retry_count = ?, next_retry_at = ?, last_error = ?
		WHERE seq = ?`, retryCount, next.UnixMilli(), msg, seq); err != nil {
		return time.Time{}, apperrors.Wrap(apperrors.ErrDatabase, "mark sync queue entry failed", err)
	}

	q.logger.Warn("sync entry failed, retry scheduled",
		zap.Int64("seq", seq),
		zap.Int("retry_count", retryCount),
		zap.Time("next_retry_at", next),
		zap.String("error", msg))
	return next, nil
}

// ResetBackoff makes every entry immediately eligible again, used when
// connectivity comes back. It returns the number of entries reset.
func (q *Queue) ResetBackoff(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE sync_queue SET retry_count = 0, next_retry_at = NULL
		WHERE next_retry_at IS NOT NULL OR retry_count > 0`)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "reset sync queue backoff", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		q.logger.Info("sync queue backoff reset", zap.Int64("entries", n))
	}
	return n, nil
}

// Size returns the number of pending entries.
func (q *Queue) Size(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "count sync queue", err)
	}
	return n, nil
}

// List returns every pending entry in delivery order.
func (q *Queue) List(ctx context.Context) ([]models.SyncQueueEntry, error) {
	rows, err := q.db.QueryContext(ctx, selectEntry+` ORDER BY seq ASC`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list sync queue", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []models.SyncQueueEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "scan sync queue entry", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list sync queue", err)
	}
	return entries, nil
}

// Stats summarises the queue.
type Stats struct {
	Total    int            `json:"total"`
	Failing  int            `json:"failing"`
	Waiting  int            `json:"waiting"`
	ByEntity map[string]int `json:"byEntity"`
	Oldest   *time.Time     `json:"oldest,omitempty"`
}

// Stats counts entries, how many have failed at least once and how many
// are waiting on a retry time.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	entries, err := q.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	now := q.now()
	st := Stats{Total: len(entries), ByEntity: map[string]int{}}
	for i := range entries {
		e := &entries[i]
		if e.RetryCount > 0 {
			st.Failing++
		}
		if !e.ReadyAt(now) {
			st.Waiting++
		}
		st.ByEntity[e.Entity]++
	}
	if len(entries) > 0 {
		oldest := entries[0].CreatedAt
		st.Oldest = &oldest
	}
	return st, nil
}

// String formats an entry for logs.
func String(e *models.SyncQueueEntry) string {
	return fmt.Sprintf("#%d %s %s/%s", e.Seq, e.Operation, e.Entity, e.EntityID)
}
