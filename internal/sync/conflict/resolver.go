// Package conflict resolves concurrent edits reported by the sync backend.
package conflict

import (
	"time"

	"go.uber.org/zap"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/logging"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
)

// ResolutionStrategy defines how conflicts are resolved.
type ResolutionStrategy string

const (
	// ResolutionStrategyLastWriteWins keeps the side with the newer
	// updatedAt; ties go to the local device.
	ResolutionStrategyLastWriteWins ResolutionStrategy = "last_write_wins"
	// ResolutionStrategyLocalWins always keeps the local write.
	ResolutionStrategyLocalWins ResolutionStrategy = "local_wins"
)

// Resolver handles conflict resolution during synchronization.
type Resolver struct {
	strategy ResolutionStrategy
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock replaces the time source used for DetectedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a new Resolver with the specified strategy.
func NewResolver(strategy ResolutionStrategy, opts ...Option) *Resolver {
	r := &Resolver{strategy: strategy, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrGlobal(r.logger, "sync.conflict")
	return r
}

// Conflict is a mutation the backend refused because the remote copy of
// the record changed concurrently.
type Conflict struct {
	Entity          string
	EntityID        string
	LocalUpdatedAt  time.Time
	RemoteUpdatedAt time.Time
}

// ResolveResult represents the outcome of conflict resolution.
type ResolveResult struct {
	Resolution  models.Resolution
	Strategy    ResolutionStrategy
	ConflictLog *models.ConflictLog
}

// LocalWins reports whether the local write must be pushed again.
func (r *ResolveResult) LocalWins() bool {
	return r.Resolution == models.ResolutionLocalWins
}

// ErrInvalidConflict is returned for a conflict that does not name a record.
var ErrInvalidConflict = apperrors.New(apperrors.ErrInvalid, "invalid conflict: entity and entity id are required")

// Resolve resolves a conflict using the configured strategy.
func (r *Resolver) Resolve(c *Conflict) (*ResolveResult, error) {
	if c == nil || c.Entity == "" || c.EntityID == "" {
		return nil, ErrInvalidConflict
	}

	var resolution models.Resolution
	switch r.strategy {
	case ResolutionStrategyLocalWins:
		resolution = models.ResolutionLocalWins
	default:
		resolution = lastWriteWins(c.LocalUpdatedAt, c.RemoteUpdatedAt)
	}

	log := &models.ConflictLog{
		Entity:          c.Entity,
		EntityID:        c.EntityID,
		LocalUpdatedAt:  models.Timestamp(c.LocalUpdatedAt),
		RemoteUpdatedAt: models.Timestamp(c.RemoteUpdatedAt),
		Resolution:      resolution,
		DetectedAt:      models.Timestamp(r.now()),
	}

	r.logger.Info("conflict resolved",
		zap.String("entity", c.Entity),
		zap.String("entity_id", c.EntityID),
		zap.Time("local_updated_at", c.LocalUpdatedAt),
		zap.Time("remote_updated_at", c.RemoteUpdatedAt),
		zap.String("strategy", string(r.strategy)),
		zap.String("resolution", string(resolution)))

	return &ResolveResult{Resolution: resolution, Strategy: r.strategy, ConflictLog: log}, nil
}

// lastWriteWins compares at millisecond precision, the precision records
// are stored with.
func lastWriteWins(local, remote time.Time) models.Resolution {
	if local.UnixMilli() >= remote.UnixMilli() {
		return models.ResolutionLocalWins
	}
	return models.ResolutionRemoteWins
}
