package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/interview-slots/internal/models"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
	"github.com/noah-isme/interview-slots/pkg/jobs"
)

type slotStore interface {
	ListAvailableDates(ctx context.Context, departmentID int64) ([]string, error)
	ListAvailableSlots(ctx context.Context, departmentID int64, date string) ([]models.TimeSlot, error)
	Reserve(ctx context.Context, candidateID, timeslotID int64) (bool, error)
	Release(ctx context.Context, candidateID int64) (bool, error)
	GetByOccupant(ctx context.Context, candidateID int64) (*models.TimeSlot, error)
	GetByID(ctx context.Context, timeslotID int64) (*models.TimeSlot, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// BookingService owns the book, reschedule and cancel intents. Business
// conditions come back as outcome values; only the read queries return errors.
type BookingService struct {
	store   slotStore
	mirror  jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewBookingService constructs the booking engine. A nil mirror disables sync tasks.
func NewBookingService(store slotStore, mirror jobEnqueuer, metrics *MetricsService, logger *zap.Logger) *BookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{store: store, mirror: mirror, metrics: metrics, logger: logger}
}

// BookSlot reserves timeslotID for the candidate, moving any existing booking.
func (s *BookingService) BookSlot(ctx context.Context, candidateID, timeslotID int64) models.BookingResult {
	result := s.moveBooking(ctx, candidateID, timeslotID)
	s.metrics.RecordBookingOutcome("book", string(result.Outcome))
	return result
}

// RescheduleSlot is BookSlot under another name; Reserve already releases the old slot.
func (s *BookingService) RescheduleSlot(ctx context.Context, candidateID, newTimeslotID int64) models.BookingResult {
	result := s.moveBooking(ctx, candidateID, newTimeslotID)
	s.metrics.RecordBookingOutcome("reschedule", string(result.Outcome))
	return result
}

func (s *BookingService) moveBooking(ctx context.Context, candidateID, timeslotID int64) models.BookingResult {
	log := s.logger.With(zap.Int64("candidate_id", candidateID), zap.Int64("timeslot_id", timeslotID))

	target, err := s.store.GetByID(ctx, timeslotID)
	if err != nil {
		log.Error("load slot before reserve", zap.Error(err))
		return models.BookingResult{Outcome: models.BookingError}
	}
	if target == nil {
		return models.BookingResult{Outcome: models.BookingNotFound}
	}
	if target.HeldBy(candidateID) {
		return models.BookingResult{Outcome: models.BookingBooked, Slot: target}
	}
	if !target.Open() {
		return models.BookingResult{Outcome: models.BookingSlotTaken}
	}

	previous, err := s.store.GetByOccupant(ctx, candidateID)
	if err != nil {
		log.Error("load current booking", zap.Error(err))
		return models.BookingResult{Outcome: models.BookingError}
	}

	reserved, err := s.store.Reserve(ctx, candidateID, timeslotID)
	if err != nil {
		log.Error("reserve slot", zap.Error(err))
		return models.BookingResult{Outcome: models.BookingError}
	}
	if !reserved {
		log.Info("slot taken at confirm")
		return models.BookingResult{Outcome: models.BookingSlotTaken}
	}

	booked := *target
	booked.IsAvailable = false
	booked.OccupantID = &candidateID

	occupant := candidateID
	s.enqueueMirror(models.TaskForSlot(booked, &occupant))
	if previous != nil && previous.ID != timeslotID {
		freed := *previous
		freed.IsAvailable = true
		freed.OccupantID = nil
		s.enqueueMirror(models.TaskForSlot(freed, nil))
		return models.BookingResult{Outcome: models.BookingBooked, Slot: &booked, Previous: &freed}
	}
	return models.BookingResult{Outcome: models.BookingBooked, Slot: &booked}
}

// CancelBooking releases the candidate's slot.
func (s *BookingService) CancelBooking(ctx context.Context, candidateID int64) models.CancelResult {
	result := s.cancel(ctx, candidateID)
	s.metrics.RecordBookingOutcome("cancel", string(result.Outcome))
	return result
}

func (s *BookingService) cancel(ctx context.Context, candidateID int64) models.CancelResult {
	log := s.logger.With(zap.Int64("candidate_id", candidateID))

	current, err := s.store.GetByOccupant(ctx, candidateID)
	if err != nil {
		log.Error("load booking before cancel", zap.Error(err))
		return models.CancelResult{Outcome: models.CancelError}
	}
	if current == nil {
		return models.CancelResult{Outcome: models.CancelNothingToCancel}
	}

	released, err := s.store.Release(ctx, candidateID)
	if err != nil {
		log.Error("release slot", zap.Error(err), zap.Int64("timeslot_id", current.ID))
		return models.CancelResult{Outcome: models.CancelError}
	}
	if !released {
		// A parallel cancel or reschedule got there first.
		return models.CancelResult{Outcome: models.CancelNothingToCancel}
	}

	freed := *current
	freed.IsAvailable = true
	freed.OccupantID = nil
	s.enqueueMirror(models.TaskForSlot(freed, nil))
	return models.CancelResult{Outcome: models.CancelCancelled, Slot: &freed}
}

// ListAvailableDates returns dates with open slots in the department.
func (s *BookingService) ListAvailableDates(ctx context.Context, departmentID int64) ([]string, error) {
	dates, err := s.store.ListAvailableDates(ctx, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list available dates")
	}
	return dates, nil
}

// ListAvailableSlots returns open slots of a department date.
func (s *BookingService) ListAvailableSlots(ctx context.Context, departmentID int64, date string) ([]models.TimeSlot, error) {
	slots, err := s.store.ListAvailableSlots(ctx, departmentID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to list available slots")
	}
	return slots, nil
}

// CurrentBooking returns the candidate's slot or nil.
func (s *BookingService) CurrentBooking(ctx context.Context, candidateID int64) (*models.TimeSlot, error) {
	slot, err := s.store.GetByOccupant(ctx, candidateID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load booking")
	}
	return slot, nil
}

// GetSlot returns a slot or appErrors.ErrNotFound.
func (s *BookingService) GetSlot(ctx context.Context, timeslotID int64) (*models.TimeSlot, error) {
	slot, err := s.store.GetByID(ctx, timeslotID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to load slot")
	}
	if slot == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
	}
	return slot, nil
}

// enqueueMirror never blocks; a refused task is logged and left to reconciliation.
func (s *BookingService) enqueueMirror(task models.MirrorSyncTask) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Enqueue(jobs.Job{Type: MirrorSyncJobType, Payload: task}); err != nil {
		s.logger.Warn("mirror task not queued",
			zap.Int64("department_id", task.DepartmentID),
			zap.String("date", task.Date),
			zap.String("start_time", task.StartTime),
			zap.Error(err))
	}
}
