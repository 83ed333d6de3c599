package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/interview-slots/internal/models"
	"github.com/noah-isme/interview-slots/internal/repository"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
)

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[int64]models.WorkflowSession
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: map[int64]models.WorkflowSession{}}
}

func (m *memSessionStore) Get(_ context.Context, candidateID int64) (*models.WorkflowSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[candidateID]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	return &session, nil
}

func (m *memSessionStore) Save(_ context.Context, session *models.WorkflowSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.CandidateID] = *session
	return nil
}

func (m *memSessionStore) Delete(_ context.Context, candidateID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, candidateID)
	return nil
}

type stubEligibility struct {
	departments map[int64]int64
	err         error
}

func (s *stubEligibility) EligibleDepartment(_ context.Context, candidateID int64) (int64, bool, error) {
	if s.err != nil {
		return 0, false, s.err
	}
	dept, ok := s.departments[candidateID]
	return dept, ok, nil
}

type workflowFixture struct {
	store    *memSlotStore
	sessions workflowSessionStore
	svc      *WorkflowService
}

func newWorkflowFixture() *workflowFixture {
	return newWorkflowFixtureWithSessions(newMemSessionStore())
}

func newWorkflowFixtureWithSessions(sessions workflowSessionStore) *workflowFixture {
	store := newMemSlotStore(departmentGrid()...)
	booking := NewBookingService(store, &recordingEnqueuer{}, nil, nil)
	eligibility := &stubEligibility{departments: map[int64]int64{100: 1, 200: 1}}
	return &workflowFixture{
		store:    store,
		sessions: sessions,
		svc:      NewWorkflowService(booking, sessions, eligibility, nil, nil),
	}
}

func (f *workflowFixture) act(t *testing.T, candidateID int64, input models.WorkflowInput) *models.WorkflowView {
	t.Helper()
	view, err := f.svc.Handle(context.Background(), candidateID, input)
	require.NoError(t, err)
	require.NotNil(t, view)
	return view
}

func (f *workflowFixture) pickSlot(t *testing.T, candidateID int64, date string, timeslotID int64) {
	t.Helper()
	view := f.act(t, candidateID, models.WorkflowInput{Action: models.ActionBook})
	require.Equal(t, models.StateDateSelection, view.State)
	view = f.act(t, candidateID, models.WorkflowInput{Action: models.ActionSelectDate, Date: date})
	require.Equal(t, models.StateTimeSelection, view.State)
	view = f.act(t, candidateID, models.WorkflowInput{Action: models.ActionSelectSlot, TimeslotID: timeslotID})
	require.Equal(t, models.StateConfirmation, view.State)
}

func TestWorkflowBookingHappyPath(t *testing.T) {
	f := newWorkflowFixture()

	view, err := f.svc.Start(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, models.StateMainMenu, view.State)
	assert.Nil(t, view.Booking)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionBook})
	assert.Equal(t, models.StateDateSelection, view.State)
	assert.Equal(t, []string{"2025-10-09", "2025-10-10"}, view.Dates)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectDate, Date: "2025-10-09"})
	assert.Equal(t, models.StateTimeSelection, view.State)
	require.Len(t, view.Slots, 2)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectSlot, TimeslotID: 2})
	assert.Equal(t, models.StateConfirmation, view.State)
	require.NotNil(t, view.Pending)
	assert.Equal(t, "09:20", view.Pending.StartTime)
	assert.Empty(t, f.store.occupiedBy(100), "picking a slot does not reserve it")

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})
	assert.Equal(t, models.StateSuccess, view.State)
	require.NotNil(t, view.Booking)
	assert.Equal(t, int64(2), view.Booking.ID)
	assert.Equal(t, []int64{2}, f.store.occupiedBy(100))

	_, err = f.sessions.Get(context.Background(), 100)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}

func TestWorkflowConfirmRaceReturnsToDateSelection(t *testing.T) {
	f := newWorkflowFixture()

	f.pickSlot(t, 100, "2025-10-09", 1)
	f.pickSlot(t, 200, "2025-10-09", 1)

	first := f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})
	assert.Equal(t, models.StateSuccess, first.State)

	second := f.act(t, 200, models.WorkflowInput{Action: models.ActionConfirm})
	assert.Equal(t, models.StateDateSelection, second.State)
	assert.Equal(t, models.NoticeSlotNoLongerAvailable, second.Notice)
	assert.NotEmpty(t, second.Dates)
	assert.Empty(t, f.store.occupiedBy(200))
}

func TestWorkflowDeclineReturnsToTimeSelection(t *testing.T) {
	f := newWorkflowFixture()
	f.pickSlot(t, 100, "2025-10-09", 1)

	view := f.act(t, 100, models.WorkflowInput{Action: models.ActionDecline})
	assert.Equal(t, models.StateTimeSelection, view.State)
	assert.Len(t, view.Slots, 2)
	assert.Empty(t, f.store.occupiedBy(100))
}

func TestWorkflowMainMenuGuards(t *testing.T) {
	f := newWorkflowFixture()

	view := f.act(t, 300, models.WorkflowInput{Action: models.ActionBook})
	assert.Equal(t, models.StateMainMenu, view.State)
	assert.Equal(t, models.NoticeNotEligible, view.Notice)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionReschedule})
	assert.Equal(t, models.NoticeNoBooking, view.Notice)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionCancel})
	assert.Equal(t, models.NoticeNoBooking, view.Notice)

	f.pickSlot(t, 100, "2025-10-09", 1)
	f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionBook})
	assert.Equal(t, models.StateMainMenu, view.State)
	assert.Equal(t, models.NoticeAlreadyBooked, view.Notice)
	require.NotNil(t, view.Booking)
}

func TestWorkflowReschedule(t *testing.T) {
	f := newWorkflowFixture()
	f.pickSlot(t, 100, "2025-10-09", 1)
	f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})

	view := f.act(t, 100, models.WorkflowInput{Action: models.ActionReschedule})
	assert.Equal(t, models.StateRescheduleDateSelection, view.State)
	require.NotNil(t, view.Booking)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectDate, Date: "2025-10-09"})
	assert.Equal(t, models.StateRescheduleTimeSelection, view.State)
	require.Len(t, view.Slots, 1)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectSlot, TimeslotID: 2})
	assert.Equal(t, models.StateRescheduleConfirmation, view.State)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})
	assert.Equal(t, models.StateMainMenu, view.State)
	assert.Equal(t, models.NoticeBookingRescheduled, view.Notice)
	assert.Equal(t, []int64{2}, f.store.occupiedBy(100))

	old, err := f.store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, old.Open())
}

func TestWorkflowRescheduleRaceReturnsToRescheduleDates(t *testing.T) {
	f := newWorkflowFixture()
	f.pickSlot(t, 100, "2025-10-09", 1)
	f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})

	f.act(t, 100, models.WorkflowInput{Action: models.ActionReschedule})
	f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectDate, Date: "2025-10-10"})
	f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectSlot, TimeslotID: 3})

	f.pickSlot(t, 200, "2025-10-10", 3)
	f.act(t, 200, models.WorkflowInput{Action: models.ActionConfirm})

	view := f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})
	assert.Equal(t, models.StateRescheduleDateSelection, view.State)
	assert.Equal(t, models.NoticeSlotNoLongerAvailable, view.Notice)
	assert.Equal(t, []int64{1}, f.store.occupiedBy(100))
}

func TestWorkflowCancel(t *testing.T) {
	f := newWorkflowFixture()
	f.pickSlot(t, 100, "2025-10-09", 1)
	f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})

	view := f.act(t, 100, models.WorkflowInput{Action: models.ActionCancel})
	assert.Equal(t, models.StateCancelConfirmation, view.State)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionDecline})
	assert.Equal(t, models.StateMainMenu, view.State)
	require.NotNil(t, view.Booking)
	assert.Equal(t, []int64{1}, f.store.occupiedBy(100))

	f.act(t, 100, models.WorkflowInput{Action: models.ActionCancel})
	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})
	assert.Equal(t, models.StateMainMenu, view.State)
	assert.Equal(t, models.NoticeBookingCancelled, view.Notice)
	assert.Nil(t, view.Booking)
	assert.Empty(t, f.store.occupiedBy(100))
}

func TestWorkflowCancelConfirmationReportsLookupFailure(t *testing.T) {
	f := newWorkflowFixture()
	f.pickSlot(t, 100, "2025-10-09", 1)
	f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})

	view := f.act(t, 100, models.WorkflowInput{Action: models.ActionCancel})
	require.Equal(t, models.StateCancelConfirmation, view.State)

	f.store.err = errors.New("connection reset")
	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectDate, Date: "2025-10-10"})
	assert.Equal(t, models.StateCancelConfirmation, view.State)
	assert.Equal(t, models.NoticeTryLater, view.Notice)
	assert.Nil(t, view.Booking)
}

func TestWorkflowCompletesWithoutRedis(t *testing.T) {
	f := newWorkflowFixtureWithSessions(repository.NewSessionRepository(nil, time.Minute, nil))

	view := f.act(t, 100, models.WorkflowInput{Action: models.ActionBook})
	require.Equal(t, models.StateDateSelection, view.State)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectDate, Date: "2025-10-10"})
	require.Equal(t, models.StateTimeSelection, view.State)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectSlot, TimeslotID: 3})
	require.Equal(t, models.StateConfirmation, view.State)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})
	assert.Equal(t, models.StateSuccess, view.State)
	require.NotNil(t, view.Booking)
	assert.Equal(t, int64(3), view.Booking.ID)
	assert.Equal(t, []int64{3}, f.store.occupiedBy(100))
}

func TestWorkflowLostSessionRestartsAtMainMenu(t *testing.T) {
	f := newWorkflowFixture()
	f.pickSlot(t, 100, "2025-10-09", 1)
	require.NoError(t, f.sessions.Delete(context.Background(), 100))

	view := f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})
	assert.Equal(t, models.StateMainMenu, view.State)
	assert.Equal(t, models.NoticeSessionRestarted, view.Notice)
	assert.Empty(t, f.store.occupiedBy(100))
}

func TestWorkflowRejectsSlotFromAnotherDate(t *testing.T) {
	f := newWorkflowFixture()
	f.act(t, 100, models.WorkflowInput{Action: models.ActionBook})
	f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectDate, Date: "2025-10-09"})

	view := f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectSlot, TimeslotID: 3})
	assert.Equal(t, models.StateTimeSelection, view.State)
	assert.Equal(t, models.NoticeUnsupportedAction, view.Notice)

	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectSlot, TimeslotID: 99})
	assert.Equal(t, models.StateTimeSelection, view.State)
	assert.Equal(t, models.NoticeSlotNoLongerAvailable, view.Notice)
}

func TestWorkflowEmptyDateStaysOnDateSelection(t *testing.T) {
	f := newWorkflowFixture()
	f.act(t, 100, models.WorkflowInput{Action: models.ActionBook})

	view := f.act(t, 100, models.WorkflowInput{Action: models.ActionSelectDate, Date: "2025-10-20"})
	assert.Equal(t, models.StateDateSelection, view.State)
	assert.Equal(t, models.NoticeNoSlotsOnDate, view.Notice)
}

func TestWorkflowValidation(t *testing.T) {
	f := newWorkflowFixture()

	_, err := f.svc.Handle(context.Background(), 100, models.WorkflowInput{Action: "dance"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Handle(context.Background(), 100, models.WorkflowInput{Action: models.ActionSelectDate})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Handle(context.Background(), 100, models.WorkflowInput{Action: models.ActionSelectDate, Date: "09-10-2025"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestWorkflowDatastoreFailureSaysTryLater(t *testing.T) {
	f := newWorkflowFixture()
	f.pickSlot(t, 100, "2025-10-09", 1)
	f.store.err = errors.New("connection refused")

	view := f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})
	assert.Equal(t, models.StateConfirmation, view.State)
	assert.Equal(t, models.NoticeTryLater, view.Notice)

	f.store.err = nil
	view = f.act(t, 100, models.WorkflowInput{Action: models.ActionConfirm})
	assert.Equal(t, models.StateSuccess, view.State)
}
