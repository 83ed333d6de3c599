package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/interview-slots/internal/models"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
)

type stubOperatorStore struct {
	existing map[int64][]models.TimeSlot
	reseeded map[int64][]models.GridSlot
	revoked  []models.RevokedBooking
	change   *models.AvailabilityChange
	edits    []models.AvailabilityEdit
	err      error
}

func (s *stubOperatorStore) ListByDepartment(_ context.Context, departmentID int64) ([]models.TimeSlot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.existing[departmentID], nil
}

func (s *stubOperatorStore) ReseedDepartment(_ context.Context, departmentID int64, grid []models.GridSlot) ([]models.RevokedBooking, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.reseeded == nil {
		s.reseeded = map[int64][]models.GridSlot{}
	}
	s.reseeded[departmentID] = grid
	return s.revoked, nil
}

func (s *stubOperatorStore) SetAvailability(_ context.Context, edit models.AvailabilityEdit) (*models.AvailabilityChange, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.edits = append(s.edits, edit)
	return s.change, nil
}

type stubSyncer struct {
	synced     []int64
	reconciled int
}

func (s *stubSyncer) SyncDepartment(_ context.Context, departmentID int64) models.SyncResult {
	s.synced = append(s.synced, departmentID)
	return models.SyncResult{Status: models.SyncSynced, Attempts: 1}
}

func (s *stubSyncer) ReconcileAll(context.Context) (map[int64]models.SyncResult, error) {
	s.reconciled++
	return map[int64]models.SyncResult{1: {Status: models.SyncSynced}}, nil
}

type recordingNotifier struct {
	notified []models.RevokedBooking
}

func (n *recordingNotifier) NotifyRevoked(_ context.Context, revoked models.RevokedBooking) error {
	n.notified = append(n.notified, revoked)
	return nil
}

func mustGrid(t *testing.T) *AvailabilityGrid {
	t.Helper()
	grid, err := ParseAvailabilityGrid([]byte(sampleGrid))
	require.NoError(t, err)
	return grid
}

func TestOperatorSeedAllDepartments(t *testing.T) {
	store := &stubOperatorStore{}
	syncer := &stubSyncer{}
	svc := NewOperatorService(store, syncer, &recordingNotifier{}, nil, nil, nil)

	reports, err := svc.Seed(context.Background(), mustGrid(t), 0, false)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 8, reports[0].Slots)
	assert.Len(t, store.reseeded[1], 8)
	assert.Len(t, store.reseeded[2], 2)
	assert.Equal(t, []int64{1, 2}, syncer.synced)
	require.NotNil(t, reports[1].Sync)
}

func TestOperatorSeedRefusesBookedDepartmentWithoutForce(t *testing.T) {
	store := &stubOperatorStore{existing: map[int64][]models.TimeSlot{
		1: {{ID: 1, DepartmentID: 1, OccupantID: occupant(7)}},
	}}
	svc := NewOperatorService(store, nil, &recordingNotifier{}, nil, nil, nil)

	_, err := svc.Seed(context.Background(), mustGrid(t), 1, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, store.reseeded)
}

func TestOperatorSeedForceNotifiesRevoked(t *testing.T) {
	revoked := models.RevokedBooking{CandidateID: 7, Slot: models.TimeSlot{ID: 1, DepartmentID: 1, Date: "2025-10-06", StartTime: "09:00"}}
	store := &stubOperatorStore{
		existing: map[int64][]models.TimeSlot{1: {{ID: 1, DepartmentID: 1, OccupantID: occupant(7)}}},
		revoked:  []models.RevokedBooking{revoked},
	}
	notifier := &recordingNotifier{}
	svc := NewOperatorService(store, nil, notifier, nil, nil, nil)

	reports, err := svc.Seed(context.Background(), mustGrid(t), 1, true)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Nil(t, reports[0].Sync)
	assert.Equal(t, []models.RevokedBooking{revoked}, notifier.notified)
}

func TestOperatorSeedUnknownDepartment(t *testing.T) {
	svc := NewOperatorService(&stubOperatorStore{}, nil, nil, nil, nil, nil)

	_, err := svc.Seed(context.Background(), mustGrid(t), 42, false)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestOperatorSetAvailabilityClosesAndNotifies(t *testing.T) {
	revoked := models.RevokedBooking{CandidateID: 7, Slot: models.TimeSlot{ID: 1, DepartmentID: 1, Date: "2025-10-06", StartTime: "09:00"}}
	store := &stubOperatorStore{change: &models.AvailabilityChange{Updated: 2, Revoked: []models.RevokedBooking{revoked}}}
	syncer := &stubSyncer{}
	notifier := &recordingNotifier{}
	svc := NewOperatorService(store, syncer, notifier, nil, nil, nil)

	report, err := svc.SetAvailability(context.Background(), models.AvailabilityEdit{
		DepartmentID: 1,
		Date:         "2025-10-06",
		StartTimes:   []string{"09:00", "09:20"},
		Available:    false,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Updated)
	assert.Len(t, notifier.notified, 1)
	assert.Equal(t, []int64{1}, syncer.synced)
	require.NotNil(t, report.Sync)
}

func TestOperatorSetAvailabilityValidates(t *testing.T) {
	store := &stubOperatorStore{}
	svc := NewOperatorService(store, nil, nil, nil, nil, nil)

	_, err := svc.SetAvailability(context.Background(), models.AvailabilityEdit{DepartmentID: 1, Date: "2025-10-06", StartTimes: []string{"9am"}})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.SetAvailability(context.Background(), models.AvailabilityEdit{DepartmentID: 1, Date: "2025-10-06"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, store.edits)
}

func TestOperatorResync(t *testing.T) {
	syncer := &stubSyncer{}
	svc := NewOperatorService(&stubOperatorStore{}, syncer, nil, nil, nil, nil)

	results, err := svc.Resync(context.Background(), 3)
	require.NoError(t, err)
	assert.Contains(t, results, int64(3))

	_, err = svc.Resync(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, syncer.reconciled)

	_, err = NewOperatorService(&stubOperatorStore{}, nil, nil, nil, nil, nil).Resync(context.Background(), 0)
	assert.True(t, errors.Is(err, appErrors.ErrUnavailable))
}
