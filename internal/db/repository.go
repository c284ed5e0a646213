package db

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kimhsiao/lifetrack/backend/internal/bus"
	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/logging"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/session"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/queue"
	"github.com/kimhsiao/lifetrack/backend/internal/sync/registry"
	"github.com/kimhsiao/lifetrack/backend/internal/uuid"
)

// Record constrains P to be a pointer to T implementing models.Entity.
type Record[T any] interface {
	*T
	models.Entity
}

// defaulter is implemented by records that fill defaults on create.
type defaulter interface {
	Defaults()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store holds what every repository shares: the database, the session
// that owns new records, the sync registry and the event bus.
type Store struct {
	db       *DB
	users    session.Provider
	registry registry.Registry
	events   bus.Publisher
	now      func() time.Time
	logger   *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSession sets the provider consulted when a record has no userId.
func WithSession(p session.Provider) StoreOption {
	return func(s *Store) { s.users = p }
}

// WithRegistry replaces registry.Default.
func WithRegistry(r registry.Registry) StoreOption {
	return func(s *Store) { s.registry = r }
}

// WithEvents sets the bus notified after queue appends.
func WithEvents(p bus.Publisher) StoreOption {
	return func(s *Store) { s.events = p }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a Store over db.
func NewStore(db *DB, opts ...StoreOption) *Store {
	s := &Store{
		db:       db,
		users:    session.Static(""),
		registry: registry.Default,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrGlobal(s.logger, "db")
	return s
}

// DB returns the underlying database.
func (s *Store) DB() *DB {
	return s.db
}

func (s *Store) clock() time.Time {
	return models.Timestamp(s.now())
}

// Repository is the only path through which records of one entity table
// are read and mutated. Every mutation of a replicated table is written
// together with its sync queue entry in one transaction.
type Repository[T any, P Record[T]] struct {
	store *Store
	table string
}

// NewRepository creates the repository for T's table.
func NewRepository[T any, P Record[T]](s *Store) *Repository[T, P] {
	return &Repository[T, P]{store: s, table: P(new(T)).TableName()}
}

// Table returns the entity table name.
func (r *Repository[T, P]) Table() string {
	return r.table
}

// Synced reports whether mutations of this table are replicated.
func (r *Repository[T, P]) Synced() bool {
	return r.store.registry.IsRegistered(r.table)
}

const recordColumns = "id, user_id, is_deleted, deleted_at, created_at, updated_at, data"

func (r *Repository[T, P]) scan(s interface{ Scan(...any) error }) (P, error) {
	var (
		id, userID, data     string
		isDeleted            bool
		deletedAt            sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := s.Scan(&id, &userID, &isDeleted, &deletedAt, &createdAt, &updatedAt, &data); err != nil {
		return nil, err
	}
	rec := P(new(T))
	if err := json.Unmarshal([]byte(data), rec); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("decode %s %s", r.table, id), err)
	}
	// Columns are authoritative for the metadata.
	meta := rec.Meta()
	meta.ID = id
	meta.UserID = userID
	meta.CreatedAt = models.FromMillis(createdAt)
	meta.UpdatedAt = models.FromMillis(updatedAt)
	meta.DeletedAt = nil
	if isDeleted && deletedAt.Valid {
		meta.MarkDeleted(models.FromMillis(deletedAt.Int64))
	}
	return rec, nil
}

// load returns the stored record including soft-deleted ones.
func (r *Repository[T, P]) load(ctx context.Context, q querier, id string) (P, error) {
	row := q.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM "+r.table+" WHERE id = ?", id)
	rec, err := r.scan(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(r.table, id)
	}
	if err != nil {
		return nil, wrapDB(err, "read "+r.table)
	}
	return rec, nil
}

// query runs a SELECT over the table with an optional extra condition.
func (r *Repository[T, P]) query(ctx context.Context, q querier, where, order string, args ...any) ([]P, error) {
	stmt := "SELECT " + recordColumns + " FROM " + r.table
	if where != "" {
		stmt += " WHERE " + where
	}
	if order == "" {
		order = "created_at ASC, id ASC"
	}
	stmt += " ORDER BY " + order

	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, wrapDB(err, "list "+r.table)
	}
	defer func() { _ = rows.Close() }()

	out := []P{}
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, wrapDB(err, "scan "+r.table)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDB(err, "list "+r.table)
	}
	return out, nil
}

// Find lists live records matching a condition on the record columns or
// on json_extract(data, ...). Specialised repositories build on it.
func (r *Repository[T, P]) Find(ctx context.Context, where string, args ...any) ([]P, error) {
	cond := "is_deleted = 0"
	if where != "" {
		cond += " AND (" + where + ")"
	}
	return r.query(ctx, r.store.db, cond, "", args...)
}

// FindOrdered is Find with an explicit ORDER BY clause.
func (r *Repository[T, P]) FindOrdered(ctx context.Context, where, order string, args ...any) ([]P, error) {
	cond := "is_deleted = 0"
	if where != "" {
		cond += " AND (" + where + ")"
	}
	return r.query(ctx, r.store.db, cond, order, args...)
}

// =====================================================
// Read Operations
// =====================================================

// GetByID returns a live record; missing and soft-deleted ids are NOT_FOUND.
func (r *Repository[T, P]) GetByID(ctx context.Context, id string) (P, error) {
	rec, err := r.load(ctx, r.store.db, id)
	if err != nil {
		return nil, err
	}
	if rec.Meta().IsDeleted() {
		return nil, apperrors.NotFound(r.table, id)
	}
	return rec, nil
}

// GetAll lists records by creation time, optionally with soft-deleted ones.
func (r *Repository[T, P]) GetAll(ctx context.Context, includeDeleted bool) ([]P, error) {
	if includeDeleted {
		return r.query(ctx, r.store.db, "", "")
	}
	return r.query(ctx, r.store.db, "is_deleted = 0", "")
}

// GetDeleted lists the trash, most recently deleted first.
func (r *Repository[T, P]) GetDeleted(ctx context.Context) ([]P, error) {
	return r.query(ctx, r.store.db, "is_deleted = 1", "deleted_at DESC, id ASC")
}

// GetDeletedCount counts the trash.
func (r *Repository[T, P]) GetDeletedCount(ctx context.Context) (int, error) {
	var n int
	err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+r.table+" WHERE is_deleted = 1").Scan(&n)
	if err != nil {
		return 0, wrapDB(err, "count deleted "+r.table)
	}
	return n, nil
}

// =====================================================
// Mutations
// =====================================================

// Create stores a new record built from data. The id, timestamps and
// delete state are assigned here; data itself is not modified.
func (r *Repository[T, P]) Create(ctx context.Context, data P) (P, error) {
	if data == nil {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "nil %s record", r.table)
	}
	rec, err := models.Clone[T, P](data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "copy "+r.table+" record", err)
	}

	meta := rec.Meta()
	if meta.UserID == "" {
		userID, err := r.store.users.UserID(ctx)
		if err != nil {
			return nil, err
		}
		meta.UserID = userID
	}
	now := r.store.clock()
	meta.ID = uuid.New()
	meta.CreatedAt = now
	meta.UpdatedAt = now
	meta.MarkActive()
	if d, ok := any(rec).(defaulter); ok {
		d.Defaults()
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	err = r.store.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := r.insert(ctx, tx, rec); err != nil {
			return err
		}
		return r.enqueue(ctx, tx, rec, models.OpCreate)
	})
	if err != nil {
		return nil, err
	}
	r.committed(models.OpCreate, meta.ID)
	return rec, nil
}

// Update applies patch to a copy of the stored record. id, createdAt and
// the delete state always keep their stored values.
func (r *Repository[T, P]) Update(ctx context.Context, id string, patch func(P)) (P, error) {
	return r.mutate(ctx, id, models.OpUpdate, func(stored, next P) {
		if patch != nil {
			patch(next)
		}
		m, s := next.Meta(), stored.Meta()
		m.ID = s.ID
		m.CreatedAt = s.CreatedAt
		m.DeletedAt = s.DeletedAt
	})
}

// SoftDelete moves a record to the trash.
func (r *Repository[T, P]) SoftDelete(ctx context.Context, id string) error {
	_, err := r.mutate(ctx, id, models.OpDelete, func(_, next P) {
		next.Meta().MarkDeleted(r.store.clock())
	})
	return err
}

// Restore brings a record back from the trash.
func (r *Repository[T, P]) Restore(ctx context.Context, id string) error {
	_, err := r.mutate(ctx, id, models.OpUpdate, func(_, next P) {
		next.Meta().MarkActive()
	})
	return err
}

// HardDelete physically removes a record. Replicated tables queue a delete
// whose payload only carries the id.
func (r *Repository[T, P]) HardDelete(ctx context.Context, id string) error {
	err := r.store.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+r.table+" WHERE id = ?", id)
		if err != nil {
			return wrapDB(err, "delete "+r.table)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NotFound(r.table, id)
		}
		if !r.Synced() {
			return nil
		}
		payload, _ := json.Marshal(map[string]string{"id": id})
		return queue.Append(ctx, tx, &models.SyncQueueEntry{
			Entity:    r.table,
			EntityID:  id,
			Operation: models.OpDelete,
			Payload:   payload,
			CreatedAt: r.store.clock(),
		})
	})
	if err != nil {
		return err
	}
	r.committed(models.OpDelete, id)
	return nil
}

// mutate loads the stored record inside the transaction, lets change edit
// a copy, advances updatedAt, validates and writes it back with its queue
// entry.
func (r *Repository[T, P]) mutate(ctx context.Context, id string, op models.Operation, change func(stored, next P)) (P, error) {
	var out P
	err := r.store.db.WithTx(ctx, func(tx *sql.Tx) error {
		stored, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := models.Clone[T, P](stored)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, "copy "+r.table+" record", err)
		}
		change(stored, next)
		next.Meta().UpdatedAt = r.nextUpdatedAt(stored.Meta().UpdatedAt)
		if err := next.Validate(); err != nil {
			return err
		}
		if err := r.replace(ctx, tx, next); err != nil {
			return err
		}
		if err := r.enqueue(ctx, tx, next, op); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.committed(op, id)
	return out, nil
}

// nextUpdatedAt returns now, or one millisecond past prev when the clock
// has not moved beyond it.
func (r *Repository[T, P]) nextUpdatedAt(prev time.Time) time.Time {
	now := r.store.clock()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

func (r *Repository[T, P]) columns(rec P) (string, []any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", nil, apperrors.Wrap(apperrors.ErrInternal, "encode "+r.table+" record", err)
	}
	meta := rec.Meta()
	var deletedAt any
	if meta.DeletedAt != nil {
		deletedAt = meta.DeletedAt.UnixMilli()
	}
	return string(data), []any{meta.UserID, meta.IsDeleted(), deletedAt, meta.CreatedAt.UnixMilli(), meta.UpdatedAt.UnixMilli()}, nil
}

func (r *Repository[T, P]) insert(ctx context.Context, tx *sql.Tx, rec P) error {
	data, cols, err := r.columns(rec)
	if err != nil {
		return err
	}
	args := append([]any{rec.Meta().ID}, cols...)
	args = append(args, data)
	_, err = tx.ExecContext(ctx, "INSERT INTO "+r.table+" ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)", args...)
	return wrapDB(err, "insert "+r.table)
}

func (r *Repository[T, P]) replace(ctx context.Context, tx *sql.Tx, rec P) error {
	data, cols, err := r.columns(rec)
	if err != nil {
		return err
	}
	args := append(cols, data, rec.Meta().ID)
	_, err = tx.ExecContext(ctx, "UPDATE "+r.table+
		" SET user_id = ?, is_deleted = ?, deleted_at = ?, created_at = ?, updated_at = ?, data = ? WHERE id = ?", args...)
	return wrapDB(err, "update "+r.table)
}

// enqueue appends the full snapshot of rec when the table is replicated.
func (r *Repository[T, P]) enqueue(ctx context.Context, tx *sql.Tx, rec P, op models.Operation) error {
	if !r.Synced() {
		return nil
	}
	payload, err := models.Snapshot(rec)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "encode "+r.table+" snapshot", err)
	}
	return queue.Append(ctx, tx, &models.SyncQueueEntry{
		Entity:    r.table,
		EntityID:  rec.Meta().ID,
		Operation: op,
		Payload:   payload,
		CreatedAt: r.store.clock(),
	})
}

// committed runs after a successful commit.
func (r *Repository[T, P]) committed(op models.Operation, id string) {
	r.store.logger.Debug("record written",
		zap.String("table", r.table),
		zap.String("id", id),
		zap.String("operation", string(op)))
	if r.Synced() {
		bus.Emit(r.store.events, bus.KindQueueAppended, QueueAppended{Entity: r.table, EntityID: id, Operation: op})
	}
}

// QueueAppended is the payload of a queue.appended event.
type QueueAppended struct {
	Entity    string
	EntityID  string
	Operation models.Operation
}

// wrapDB tags storage failures as DATABASE_ERROR, leaving AppErrors as is.
func wrapDB(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrDatabase, what, err)
}
