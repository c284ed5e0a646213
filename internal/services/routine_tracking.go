// Package services coordinates the repositories for use cases that touch
// more than one table.
package services

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/logging"
	"github.com/kimhsiao/lifetrack/backend/internal/models"
)

// TrackerStore is the part of the tracker repository the service uses.
type TrackerStore interface {
	GetByID(ctx context.Context, id string) (*models.TrackingRecurring, error)
	Create(ctx context.Context, data *models.TrackingRecurring) (*models.TrackingRecurring, error)
	Update(ctx context.Context, id string, patch func(*models.TrackingRecurring)) (*models.TrackingRecurring, error)
	SoftDelete(ctx context.Context, id string) error
}

// RoutineStore is the part of the routine repository the service uses.
type RoutineStore interface {
	Update(ctx context.Context, id string, patch func(*models.StockRoutine)) (*models.StockRoutine, error)
}

// ResponseStore is the part of the response repository the service uses.
type ResponseStore interface {
	GetResponse(ctx context.Context, recurringID, date string) (*models.TrackingResponse, error)
	UpsertResponse(ctx context.Context, recurringID, date string, value models.ResponseValue) (*models.TrackingResponse, error)
}

// StockAdjuster changes a product's quantity on hand.
type StockAdjuster interface {
	AdjustStock(ctx context.Context, productID string, delta float64) (*models.StockProduct, error)
}

// RoutineTrackingService keeps a consumption routine and its boolean
// tracker in step, and moves stock when the tracker is answered.
type RoutineTrackingService struct {
	trackers  TrackerStore
	routines  RoutineStore
	responses ResponseStore
	stock     StockAdjuster
	logger    *zap.Logger
}

// NewRoutineTrackingService creates a RoutineTrackingService. A nil logger
// uses the process-wide one.
func NewRoutineTrackingService(trackers TrackerStore, routines RoutineStore, responses ResponseStore, stock StockAdjuster, logger *zap.Logger) *RoutineTrackingService {
	return &RoutineTrackingService{
		trackers:  trackers,
		routines:  routines,
		responses: responses,
		stock:     stock,
		logger:    logging.OrGlobal(logger, "routines"),
	}
}

// CreateTrackingForRoutine creates the boolean tracker answering a stored
// routine and links the routine to it.
func (s *RoutineTrackingService) CreateTrackingForRoutine(ctx context.Context, routine *models.StockRoutine) (*models.TrackingRecurring, error) {
	if routine == nil || routine.ID == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "routine must be stored before it is tracked")
	}

	tracker, err := s.trackers.Create(ctx, &models.TrackingRecurring{
		Base:             models.Base{UserID: routine.UserID},
		Recurrence:       routine.Recurrence,
		Name:             routine.Name,
		ResponseType:     models.ResponseBoolean,
		IsActive:         true,
		RoutineID:        routine.ID,
		RoutineProductID: routine.ProductID,
		RoutineQuantity:  routine.Quantity,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.routines.Update(ctx, routine.ID, func(r *models.StockRoutine) {
		r.LinkedTrackingID = tracker.ID
	}); err != nil {
		return nil, err
	}
	routine.LinkedTrackingID = tracker.ID

	s.logger.Info("routine tracker created",
		zap.String("routine_id", routine.ID),
		zap.String("tracker_id", tracker.ID))
	return tracker, nil
}

// SyncTrackingForRoutine copies the routine's name, schedule, product and
// quantity onto its linked tracker. Unlinked routines are left alone.
func (s *RoutineTrackingService) SyncTrackingForRoutine(ctx context.Context, routine *models.StockRoutine) error {
	if routine == nil || routine.LinkedTrackingID == "" {
		return nil
	}
	_, err := s.trackers.Update(ctx, routine.LinkedTrackingID, func(t *models.TrackingRecurring) {
		t.Name = routine.Name
		t.Recurrence = routine.Recurrence
		t.RoutineProductID = routine.ProductID
		t.RoutineQuantity = routine.Quantity
	})
	return err
}

// DeleteTrackingForRoutine moves the routine's linked tracker to the trash.
func (s *RoutineTrackingService) DeleteTrackingForRoutine(ctx context.Context, routine *models.StockRoutine) error {
	if routine == nil || routine.LinkedTrackingID == "" {
		return nil
	}
	return s.trackers.SoftDelete(ctx, routine.LinkedTrackingID)
}

// HandleRoutineConsumption moves stock after a routine tracker was
// answered: checking it consumes routineQuantity, unchecking a previously
// checked answer puts it back, and any other transition does nothing.
func (s *RoutineTrackingService) HandleRoutineConsumption(ctx context.Context, recurring *models.TrackingRecurring, newValue bool, previous *bool) error {
	if recurring == nil || !recurring.IsRoutineLinked() {
		return nil
	}

	wasChecked := previous != nil && *previous
	var delta float64
	switch {
	case newValue && !wasChecked:
		delta = -recurring.RoutineQuantity
	case !newValue && wasChecked:
		delta = recurring.RoutineQuantity
	default:
		return nil
	}

	product, err := s.stock.AdjustStock(ctx, recurring.RoutineProductID, delta)
	if err != nil {
		return err
	}
	s.logger.Debug("stock adjusted by routine",
		zap.String("tracker_id", recurring.ID),
		zap.String("product_id", product.ID),
		zap.Float64("delta", delta),
		zap.Float64("quantity", product.Quantity))
	return nil
}

// Answer records the response of a tracker for a day and, for a routine
// tracker, applies the stock consumption of the change.
func (s *RoutineTrackingService) Answer(ctx context.Context, recurringID, date string, value models.ResponseValue) (*models.TrackingResponse, error) {
	recurring, err := s.trackers.GetByID(ctx, recurringID)
	if err != nil {
		return nil, err
	}

	previous, err := s.responses.GetResponse(ctx, recurringID, date)
	if err != nil {
		return nil, err
	}

	resp, err := s.responses.UpsertResponse(ctx, recurringID, date, value)
	if err != nil {
		return nil, err
	}

	if recurring.ResponseType == models.ResponseBoolean && value.ValueBoolean != nil {
		var prev *bool
		if previous != nil {
			prev = previous.ValueBoolean
		}
		if err := s.HandleRoutineConsumption(ctx, recurring, *value.ValueBoolean, prev); err != nil {
			return resp, err
		}
	}
	return resp, nil
}
