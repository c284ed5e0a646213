package db

import (
	"context"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
	"github.com/kimhsiao/lifetrack/backend/internal/uuid"
)

// ConflictLogs persists resolved sync conflicts. The table is local
// bookkeeping and is never replicated.
type ConflictLogs struct {
	store *Store
}

// NewConflictLogs creates the conflict log repository.
func NewConflictLogs(s *Store) *ConflictLogs {
	return &ConflictLogs{store: s}
}

// CreateConflictLog records a resolution.
func (r *ConflictLogs) CreateConflictLog(ctx context.Context, log *models.ConflictLog) error {
	if log.ID == "" {
		log.ID = uuid.New()
	}
	if log.DetectedAt.IsZero() {
		log.DetectedAt = r.store.clock()
	}
	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO conflict_log (id, entity, entity_id, local_updated_at, remote_updated_at, resolution, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Entity, log.EntityID, log.LocalUpdatedAt.UnixMilli(),
		log.RemoteUpdatedAt.UnixMilli(), string(log.Resolution), log.DetectedAt.UnixMilli())
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "insert conflict log", err)
	}
	return nil
}

// ListConflictLogs returns the most recent resolutions first; limit <= 0
// returns all of them.
func (r *ConflictLogs) ListConflictLogs(ctx context.Context, limit int) ([]models.ConflictLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.store.db.QueryContext(ctx, `
		SELECT id, entity, entity_id, local_updated_at, remote_updated_at, resolution, detected_at
		FROM conflict_log ORDER BY detected_at DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list conflict logs", err)
	}
	defer func() { _ = rows.Close() }()

	logs := []models.ConflictLog{}
	for rows.Next() {
		var (
			l                         models.ConflictLog
			resolution                string
			local, remote, detectedAt int64
		)
		if err := rows.Scan(&l.ID, &l.Entity, &l.EntityID, &local, &remote, &resolution, &detectedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "scan conflict log", err)
		}
		l.LocalUpdatedAt = models.FromMillis(local)
		l.RemoteUpdatedAt = models.FromMillis(remote)
		l.DetectedAt = models.FromMillis(detectedAt)
		l.Resolution = models.Resolution(resolution)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list conflict logs", err)
	}
	return logs, nil
}
