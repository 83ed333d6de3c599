package models

import "time"

// WorkflowState is a node of the interactive booking dialog.
type WorkflowState string

const (
	StateMainMenu                WorkflowState = "MAIN_MENU"
	StateDateSelection           WorkflowState = "DATE_SELECTION"
	StateTimeSelection           WorkflowState = "TIME_SELECTION"
	StateConfirmation            WorkflowState = "CONFIRMATION"
	StateSuccess                 WorkflowState = "SUCCESS"
	StateRescheduleDateSelection WorkflowState = "RESCHEDULE_DATE_SELECTION"
	StateRescheduleTimeSelection WorkflowState = "RESCHEDULE_TIME_SELECTION"
	StateRescheduleConfirmation  WorkflowState = "RESCHEDULE_CONFIRMATION"
	StateCancelConfirmation      WorkflowState = "CANCEL_CONFIRMATION"
)

// WorkflowAction is an input the front-end forwards from the candidate.
type WorkflowAction string

const (
	ActionStart      WorkflowAction = "start"
	ActionBook       WorkflowAction = "book"
	ActionReschedule WorkflowAction = "reschedule"
	ActionCancel     WorkflowAction = "cancel"
	ActionSelectDate WorkflowAction = "select_date"
	ActionSelectSlot WorkflowAction = "select_slot"
	ActionConfirm    WorkflowAction = "confirm"
	ActionDecline    WorkflowAction = "decline"
	ActionBack       WorkflowAction = "back"
)

// WorkflowNotice is a stable code the front-end turns into copy.
type WorkflowNotice string

const (
	NoticeNone                  WorkflowNotice = ""
	NoticeSlotNoLongerAvailable WorkflowNotice = "SLOT_NO_LONGER_AVAILABLE"
	NoticeAlreadyBooked         WorkflowNotice = "ALREADY_BOOKED"
	NoticeNotEligible           WorkflowNotice = "NOT_ELIGIBLE"
	NoticeNoBooking             WorkflowNotice = "NO_BOOKING"
	NoticeTryLater              WorkflowNotice = "TRY_LATER"
	NoticeNoSlotsOnDate         WorkflowNotice = "NO_SLOTS_ON_DATE"
	NoticeNoDates               WorkflowNotice = "NO_DATES_AVAILABLE"
	NoticeBookingCancelled      WorkflowNotice = "BOOKING_CANCELLED"
	NoticeBookingRescheduled    WorkflowNotice = "BOOKING_RESCHEDULED"
	NoticeSessionRestarted      WorkflowNotice = "SESSION_RESTARTED"
	NoticeUnsupportedAction     WorkflowNotice = "UNSUPPORTED_ACTION"
)

// WorkflowSession is disposable per-interaction scratch, never a source of truth.
type WorkflowSession struct {
	CandidateID          int64         `json:"candidate_id"`
	State                WorkflowState `json:"state"`
	DepartmentID         int64         `json:"department_id,omitempty"`
	SelectedDate         string        `json:"selected_date,omitempty"`
	SelectedTimeslotID   int64         `json:"selected_timeslot_id,omitempty"`
	RescheduleDate       string        `json:"reschedule_date,omitempty"`
	RescheduleTimeslotID int64         `json:"reschedule_timeslot_id,omitempty"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// WorkflowInput is one candidate action.
type WorkflowInput struct {
	Action     WorkflowAction `json:"action" validate:"required,oneof=start book reschedule cancel select_date select_slot confirm decline back"`
	Date       string         `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	TimeslotID int64          `json:"timeslot_id,omitempty" validate:"omitempty,gt=0"`
}

// WorkflowView is everything the front-end needs to render the next menu.
type WorkflowView struct {
	State   WorkflowState  `json:"state"`
	Notice  WorkflowNotice `json:"notice,omitempty"`
	Dates   []string       `json:"dates,omitempty"`
	Slots   []TimeSlot     `json:"slots,omitempty"`
	Booking *TimeSlot      `json:"booking,omitempty"`
	Pending *TimeSlot      `json:"pending,omitempty"`
}
