package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-slots/internal/models"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
)

type workflowBooking interface {
	BookSlot(ctx context.Context, candidateID, timeslotID int64) models.BookingResult
	RescheduleSlot(ctx context.Context, candidateID, newTimeslotID int64) models.BookingResult
	CancelBooking(ctx context.Context, candidateID int64) models.CancelResult
	ListAvailableDates(ctx context.Context, departmentID int64) ([]string, error)
	ListAvailableSlots(ctx context.Context, departmentID int64, date string) ([]models.TimeSlot, error)
	CurrentBooking(ctx context.Context, candidateID int64) (*models.TimeSlot, error)
	GetSlot(ctx context.Context, timeslotID int64) (*models.TimeSlot, error)
}

type workflowSessionStore interface {
	Get(ctx context.Context, candidateID int64) (*models.WorkflowSession, error)
	Save(ctx context.Context, session *models.WorkflowSession) error
	Delete(ctx context.Context, candidateID int64) error
}

type eligibilityChecker interface {
	EligibleDepartment(ctx context.Context, candidateID int64) (int64, bool, error)
}

// WorkflowService drives the interactive booking dialog. Session data is
// scratch: the main menu needs none and is rebuilt from the slot store on
// every visit, so a lost session only sends the candidate back there.
type WorkflowService struct {
	booking     workflowBooking
	sessions    workflowSessionStore
	eligibility eligibilityChecker
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewWorkflowService constructs the workflow state machine.
func NewWorkflowService(booking workflowBooking, sessions workflowSessionStore, eligibility eligibilityChecker, validate *validator.Validate, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &WorkflowService{
		booking:     booking,
		sessions:    sessions,
		eligibility: eligibility,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start drops any half-finished dialog and renders the main menu.
func (s *WorkflowService) Start(ctx context.Context, candidateID int64) (*models.WorkflowView, error) {
	return s.Handle(ctx, candidateID, models.WorkflowInput{Action: models.ActionStart})
}

// Handle applies one candidate action and returns the next menu to render.
func (s *WorkflowService) Handle(ctx context.Context, candidateID int64, input models.WorkflowInput) (*models.WorkflowView, error) {
	if err := s.validate(input); err != nil {
		return nil, err
	}

	if input.Action == models.ActionStart {
		return s.toMainMenu(ctx, candidateID, models.NoticeNone), nil
	}

	session := s.loadSession(ctx, candidateID)
	if session == nil {
		switch input.Action {
		case models.ActionBook, models.ActionReschedule, models.ActionCancel:
			return s.fromMainMenu(ctx, candidateID, input), nil
		default:
			return s.toMainMenu(ctx, candidateID, models.NoticeSessionRestarted), nil
		}
	}

	switch session.State {
	case models.StateDateSelection, models.StateRescheduleDateSelection:
		return s.fromDateSelection(ctx, session, input), nil
	case models.StateTimeSelection, models.StateRescheduleTimeSelection:
		return s.fromTimeSelection(ctx, session, input), nil
	case models.StateConfirmation:
		return s.fromConfirmation(ctx, session, input, false), nil
	case models.StateRescheduleConfirmation:
		return s.fromConfirmation(ctx, session, input, true), nil
	case models.StateCancelConfirmation:
		return s.fromCancelConfirmation(ctx, session, input), nil
	default:
		return s.fromMainMenu(ctx, candidateID, input), nil
	}
}

func (s *WorkflowService) validate(input models.WorkflowInput) error {
	if err := s.validator.Struct(input); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workflow action")
	}
	switch input.Action {
	case models.ActionSelectDate:
		if input.Date == "" {
			return appErrors.Clone(appErrors.ErrValidation, "date is required")
		}
	case models.ActionSelectSlot:
		if input.TimeslotID == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "timeslot_id is required")
		}
	}
	return nil
}

func (s *WorkflowService) fromMainMenu(ctx context.Context, candidateID int64, input models.WorkflowInput) *models.WorkflowView {
	current, err := s.booking.CurrentBooking(ctx, candidateID)
	if err != nil {
		s.logger.Warn("load booking for main menu", zap.Int64("candidate_id", candidateID), zap.Error(err))
		return &models.WorkflowView{State: models.StateMainMenu, Notice: models.NoticeTryLater}
	}

	switch input.Action {
	case models.ActionBook:
		if current != nil {
			return &models.WorkflowView{State: models.StateMainMenu, Notice: models.NoticeAlreadyBooked, Booking: current}
		}
		departmentID, ok, err := s.eligibility.EligibleDepartment(ctx, candidateID)
		if err != nil {
			s.logger.Warn("check booking eligibility", zap.Int64("candidate_id", candidateID), zap.Error(err))
			return &models.WorkflowView{State: models.StateMainMenu, Notice: models.NoticeTryLater}
		}
		if !ok {
			return &models.WorkflowView{State: models.StateMainMenu, Notice: models.NoticeNotEligible}
		}
		session := &models.WorkflowSession{CandidateID: candidateID, DepartmentID: departmentID}
		return s.toDateSelection(ctx, session, models.StateDateSelection, models.NoticeNone)

	case models.ActionReschedule:
		if current == nil {
			return &models.WorkflowView{State: models.StateMainMenu, Notice: models.NoticeNoBooking}
		}
		session := &models.WorkflowSession{CandidateID: candidateID, DepartmentID: current.DepartmentID}
		view := s.toDateSelection(ctx, session, models.StateRescheduleDateSelection, models.NoticeNone)
		view.Booking = current
		return view

	case models.ActionCancel:
		if current == nil {
			return &models.WorkflowView{State: models.StateMainMenu, Notice: models.NoticeNoBooking}
		}
		session := &models.WorkflowSession{CandidateID: candidateID, State: models.StateCancelConfirmation, DepartmentID: current.DepartmentID}
		s.saveSession(ctx, session)
		return &models.WorkflowView{State: models.StateCancelConfirmation, Booking: current}

	default:
		return &models.WorkflowView{State: models.StateMainMenu, Notice: models.NoticeUnsupportedAction, Booking: current}
	}
}

func (s *WorkflowService) fromDateSelection(ctx context.Context, session *models.WorkflowSession, input models.WorkflowInput) *models.WorkflowView {
	reschedule := session.State == models.StateRescheduleDateSelection
	switch input.Action {
	case models.ActionSelectDate:
		if reschedule {
			session.RescheduleDate = input.Date
		} else {
			session.SelectedDate = input.Date
		}
		return s.toTimeSelection(ctx, session, reschedule, models.NoticeNone)
	case models.ActionBack:
		return s.toMainMenu(ctx, session.CandidateID, models.NoticeNone)
	default:
		return s.toDateSelection(ctx, session, session.State, models.NoticeUnsupportedAction)
	}
}

func (s *WorkflowService) fromTimeSelection(ctx context.Context, session *models.WorkflowSession, input models.WorkflowInput) *models.WorkflowView {
	reschedule := session.State == models.StateRescheduleTimeSelection
	switch input.Action {
	case models.ActionSelectSlot:
		slot, err := s.booking.GetSlot(ctx, input.TimeslotID)
		if err != nil {
			if errors.Is(err, appErrors.ErrNotFound) {
				return s.toTimeSelection(ctx, session, reschedule, models.NoticeSlotNoLongerAvailable)
			}
			s.logger.Warn("load picked slot", zap.Int64("timeslot_id", input.TimeslotID), zap.Error(err))
			return s.toTimeSelection(ctx, session, reschedule, models.NoticeTryLater)
		}
		if slot.DepartmentID != session.DepartmentID || slot.Date != selectedDate(session, reschedule) {
			return s.toTimeSelection(ctx, session, reschedule, models.NoticeUnsupportedAction)
		}

		// The picked slot may already be gone; confirm re-validates it.
		state := models.StateConfirmation
		if reschedule {
			session.RescheduleTimeslotID = slot.ID
			state = models.StateRescheduleConfirmation
		} else {
			session.SelectedTimeslotID = slot.ID
		}
		session.State = state
		s.saveSession(ctx, session)
		return &models.WorkflowView{State: state, Pending: slot}

	case models.ActionBack:
		dateState := models.StateDateSelection
		if reschedule {
			dateState = models.StateRescheduleDateSelection
		}
		return s.toDateSelection(ctx, session, dateState, models.NoticeNone)

	default:
		return s.toTimeSelection(ctx, session, reschedule, models.NoticeUnsupportedAction)
	}
}

func (s *WorkflowService) fromConfirmation(ctx context.Context, session *models.WorkflowSession, input models.WorkflowInput, reschedule bool) *models.WorkflowView {
	switch input.Action {
	case models.ActionConfirm:
		var result models.BookingResult
		if reschedule {
			result = s.booking.RescheduleSlot(ctx, session.CandidateID, session.RescheduleTimeslotID)
		} else {
			result = s.booking.BookSlot(ctx, session.CandidateID, session.SelectedTimeslotID)
		}

		switch result.Outcome {
		case models.BookingBooked:
			s.dropSession(ctx, session.CandidateID)
			if reschedule {
				return &models.WorkflowView{State: models.StateMainMenu, Notice: models.NoticeBookingRescheduled, Booking: result.Slot}
			}
			return &models.WorkflowView{State: models.StateSuccess, Booking: result.Slot}
		case models.BookingSlotTaken, models.BookingNotFound:
			dateState := models.StateDateSelection
			if reschedule {
				dateState = models.StateRescheduleDateSelection
			}
			return s.toDateSelection(ctx, session, dateState, models.NoticeSlotNoLongerAvailable)
		default:
			return &models.WorkflowView{State: session.State, Notice: models.NoticeTryLater, Pending: s.pendingSlot(ctx, session, reschedule)}
		}

	case models.ActionDecline, models.ActionBack:
		return s.toTimeSelection(ctx, session, reschedule, models.NoticeNone)

	default:
		return &models.WorkflowView{State: session.State, Notice: models.NoticeUnsupportedAction, Pending: s.pendingSlot(ctx, session, reschedule)}
	}
}

func (s *WorkflowService) fromCancelConfirmation(ctx context.Context, session *models.WorkflowSession, input models.WorkflowInput) *models.WorkflowView {
	switch input.Action {
	case models.ActionConfirm:
		result := s.booking.CancelBooking(ctx, session.CandidateID)
		switch result.Outcome {
		case models.CancelCancelled:
			return s.toMainMenu(ctx, session.CandidateID, models.NoticeBookingCancelled)
		case models.CancelNothingToCancel:
			return s.toMainMenu(ctx, session.CandidateID, models.NoticeNoBooking)
		default:
			return &models.WorkflowView{State: models.StateCancelConfirmation, Notice: models.NoticeTryLater}
		}
	case models.ActionDecline, models.ActionBack:
		return s.toMainMenu(ctx, session.CandidateID, models.NoticeNone)
	default:
		current, err := s.booking.CurrentBooking(ctx, session.CandidateID)
		if err != nil {
			s.logger.Warn("load booking for cancel confirmation", zap.Int64("candidate_id", session.CandidateID), zap.Error(err))
			return &models.WorkflowView{State: models.StateCancelConfirmation, Notice: models.NoticeTryLater}
		}
		return &models.WorkflowView{State: models.StateCancelConfirmation, Notice: models.NoticeUnsupportedAction, Booking: current}
	}
}

// toMainMenu discards the session and re-reads the current booking.
func (s *WorkflowService) toMainMenu(ctx context.Context, candidateID int64, notice models.WorkflowNotice) *models.WorkflowView {
	s.dropSession(ctx, candidateID)
	current, err := s.booking.CurrentBooking(ctx, candidateID)
	if err != nil {
		s.logger.Warn("load booking for main menu", zap.Int64("candidate_id", candidateID), zap.Error(err))
		return &models.WorkflowView{State: models.StateMainMenu, Notice: models.NoticeTryLater}
	}
	return &models.WorkflowView{State: models.StateMainMenu, Notice: notice, Booking: current}
}

func (s *WorkflowService) toDateSelection(ctx context.Context, session *models.WorkflowSession, state models.WorkflowState, notice models.WorkflowNotice) *models.WorkflowView {
	dates, err := s.booking.ListAvailableDates(ctx, session.DepartmentID)
	if err != nil {
		s.logger.Warn("list dates for workflow", zap.Int64("department_id", session.DepartmentID), zap.Error(err))
		return s.toMainMenu(ctx, session.CandidateID, models.NoticeTryLater)
	}
	if len(dates) == 0 {
		if notice == models.NoticeNone {
			notice = models.NoticeNoDates
		}
		return s.toMainMenu(ctx, session.CandidateID, notice)
	}

	session.State = state
	session.SelectedDate, session.SelectedTimeslotID = "", 0
	session.RescheduleDate, session.RescheduleTimeslotID = "", 0
	s.saveSession(ctx, session)
	return &models.WorkflowView{State: state, Notice: notice, Dates: dates}
}

func (s *WorkflowService) toTimeSelection(ctx context.Context, session *models.WorkflowSession, reschedule bool, notice models.WorkflowNotice) *models.WorkflowView {
	dateState, timeState := models.StateDateSelection, models.StateTimeSelection
	if reschedule {
		dateState, timeState = models.StateRescheduleDateSelection, models.StateRescheduleTimeSelection
	}

	slots, err := s.booking.ListAvailableSlots(ctx, session.DepartmentID, selectedDate(session, reschedule))
	if err != nil {
		s.logger.Warn("list slots for workflow", zap.Int64("department_id", session.DepartmentID), zap.Error(err))
		return s.toDateSelection(ctx, session, dateState, models.NoticeTryLater)
	}
	if len(slots) == 0 {
		return s.toDateSelection(ctx, session, dateState, models.NoticeNoSlotsOnDate)
	}

	session.State = timeState
	if reschedule {
		session.RescheduleTimeslotID = 0
	} else {
		session.SelectedTimeslotID = 0
	}
	s.saveSession(ctx, session)
	return &models.WorkflowView{State: timeState, Notice: notice, Slots: slots}
}

func (s *WorkflowService) pendingSlot(ctx context.Context, session *models.WorkflowSession, reschedule bool) *models.TimeSlot {
	id := session.SelectedTimeslotID
	if reschedule {
		id = session.RescheduleTimeslotID
	}
	slot, err := s.booking.GetSlot(ctx, id)
	if err != nil {
		return nil
	}
	return slot
}

func selectedDate(session *models.WorkflowSession, reschedule bool) string {
	if reschedule {
		return session.RescheduleDate
	}
	return session.SelectedDate
}

// loadSession returns nil when the dialog has to restart.
func (s *WorkflowService) loadSession(ctx context.Context, candidateID int64) *models.WorkflowSession {
	session, err := s.sessions.Get(ctx, candidateID)
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("load workflow session", zap.Int64("candidate_id", candidateID), zap.Error(err))
		}
		return nil
	}
	if session == nil || session.State == models.StateMainMenu || session.State == models.StateSuccess {
		return nil
	}
	return session
}

func (s *WorkflowService) saveSession(ctx context.Context, session *models.WorkflowSession) {
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Warn("save workflow session", zap.Int64("candidate_id", session.CandidateID), zap.Error(err))
	}
}

func (s *WorkflowService) dropSession(ctx context.Context, candidateID int64) {
	if err := s.sessions.Delete(ctx, candidateID); err != nil {
		s.logger.Warn("drop workflow session", zap.Int64("candidate_id", candidateID), zap.Error(err))
	}
}
