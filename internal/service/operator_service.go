package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-slots/internal/models"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
)

type operatorSlotStore interface {
	ListByDepartment(ctx context.Context, departmentID int64) ([]models.TimeSlot, error)
	ReseedDepartment(ctx context.Context, departmentID int64, grid []models.GridSlot) ([]models.RevokedBooking, error)
	SetAvailability(ctx context.Context, edit models.AvailabilityEdit) (*models.AvailabilityChange, error)
}

type departmentSyncer interface {
	SyncDepartment(ctx context.Context, departmentID int64) models.SyncResult
	ReconcileAll(ctx context.Context) (map[int64]models.SyncResult, error)
}

// SeedReport describes one reseeded department.
type SeedReport struct {
	DepartmentID int64                   `json:"department_id"`
	Slots        int                     `json:"slots"`
	Revoked      []models.RevokedBooking `json:"revoked"`
	Sync         *models.SyncResult      `json:"sync,omitempty"`
}

// AvailabilityReport describes a bulk availability edit.
type AvailabilityReport struct {
	models.AvailabilityChange
	Sync *models.SyncResult `json:"sync,omitempty"`
}

// OperatorService backs slotctl. Unlike the candidate paths it returns full
// error detail.
type OperatorService struct {
	store     operatorSlotStore
	mirror    departmentSyncer
	notifier  RevocationNotifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOperatorService constructs the operator service. A nil mirror skips resyncs.
func NewOperatorService(store operatorSlotStore, mirror departmentSyncer, notifier RevocationNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *OperatorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if notifier == nil {
		notifier = NewLogRevocationNotifier(logger)
	}
	return &OperatorService{store: store, mirror: mirror, notifier: notifier, metrics: metrics, validator: validate, logger: logger}
}

// Seed replaces department grids from the file. departmentID 0 seeds all of
// them. Departments that still hold bookings are refused unless force is set.
func (s *OperatorService) Seed(ctx context.Context, grid *AvailabilityGrid, departmentID int64, force bool) ([]SeedReport, error) {
	targets := grid.Departments
	if departmentID > 0 {
		dept, ok := grid.Department(departmentID)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("department %d is not in the grid file", departmentID))
		}
		targets = []DepartmentGrid{dept}
	}

	expanded := make([][]models.GridSlot, len(targets))
	for i, dept := range targets {
		slots, err := dept.Slots()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grid")
		}
		expanded[i] = slots
	}

	if !force {
		for _, dept := range targets {
			booked, err := s.countBookings(ctx, dept.ID)
			if err != nil {
				return nil, err
			}
			if booked > 0 {
				return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("department %d has %d active bookings; rerun with --force to revoke them", dept.ID, booked))
			}
		}
	}

	reports := make([]SeedReport, 0, len(targets))
	for i, dept := range targets {
		revoked, err := s.store.ReseedDepartment(ctx, dept.ID, expanded[i])
		if err != nil {
			return reports, fmt.Errorf("reseed department %d: %w", dept.ID, err)
		}
		s.logger.Info("department reseeded", zap.Int64("department_id", dept.ID), zap.Int("slots", len(expanded[i])), zap.Int("revoked", len(revoked)))
		s.notifyAll(ctx, revoked)

		report := SeedReport{DepartmentID: dept.ID, Slots: len(expanded[i]), Revoked: revoked}
		report.Sync = s.sync(ctx, dept.ID)
		reports = append(reports, report)
	}
	return reports, nil
}

// SetAvailability opens or closes start times. Occupants of closed slots are
// notified and the department is resynced.
func (s *OperatorService) SetAvailability(ctx context.Context, edit models.AvailabilityEdit) (*AvailabilityReport, error) {
	if err := s.validator.Struct(edit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability edit")
	}

	change, err := s.store.SetAvailability(ctx, edit)
	if err != nil {
		return nil, fmt.Errorf("set availability: %w", err)
	}
	s.logger.Info("availability updated",
		zap.Int64("department_id", edit.DepartmentID),
		zap.String("date", edit.Date),
		zap.Strings("start_times", edit.StartTimes),
		zap.Bool("available", edit.Available),
		zap.Int64("updated", change.Updated),
		zap.Int("revoked", len(change.Revoked)))
	s.notifyAll(ctx, change.Revoked)

	report := &AvailabilityReport{AvailabilityChange: *change}
	if change.Updated > 0 {
		report.Sync = s.sync(ctx, edit.DepartmentID)
	}
	return report, nil
}

// Resync pushes one department, or every department when departmentID is 0.
func (s *OperatorService) Resync(ctx context.Context, departmentID int64) (map[int64]models.SyncResult, error) {
	if s.mirror == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "mirror is not configured")
	}
	if departmentID > 0 {
		return map[int64]models.SyncResult{departmentID: s.mirror.SyncDepartment(ctx, departmentID)}, nil
	}
	return s.mirror.ReconcileAll(ctx)
}

func (s *OperatorService) countBookings(ctx context.Context, departmentID int64) (int, error) {
	slots, err := s.store.ListByDepartment(ctx, departmentID)
	if err != nil {
		return 0, fmt.Errorf("list department %d slots: %w", departmentID, err)
	}
	booked := 0
	for _, slot := range slots {
		if slot.OccupantID != nil {
			booked++
		}
	}
	return booked, nil
}

func (s *OperatorService) notifyAll(ctx context.Context, revoked []models.RevokedBooking) {
	s.metrics.RecordRevocations(len(revoked))
	for _, r := range revoked {
		if err := s.notifier.NotifyRevoked(ctx, r); err != nil {
			s.logger.Warn("notify revoked candidate", zap.Int64("candidate_id", r.CandidateID), zap.Error(err))
		}
	}
}

func (s *OperatorService) sync(ctx context.Context, departmentID int64) *models.SyncResult {
	if s.mirror == nil {
		return nil
	}
	result := s.mirror.SyncDepartment(ctx, departmentID)
	return &result
}
