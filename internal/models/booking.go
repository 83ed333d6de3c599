package models

// BookingOutcome is the result of a book or reschedule intent.
type BookingOutcome string

const (
	BookingBooked    BookingOutcome = "BOOKED"
	BookingSlotTaken BookingOutcome = "SLOT_TAKEN"
	BookingNotFound  BookingOutcome = "NOT_FOUND"
	BookingError     BookingOutcome = "ERROR"
)

// CancelOutcome is the result of a cancel intent.
type CancelOutcome string

const (
	CancelCancelled       CancelOutcome = "CANCELLED"
	CancelNothingToCancel CancelOutcome = "NOTHING_TO_CANCEL"
	CancelError           CancelOutcome = "ERROR"
)

// BookingResult carries the outcome plus the slots involved.
type BookingResult struct {
	Outcome  BookingOutcome `json:"outcome"`
	Slot     *TimeSlot      `json:"slot,omitempty"`
	Previous *TimeSlot      `json:"previous,omitempty"`
}

// CancelResult carries the outcome plus the released slot.
type CancelResult struct {
	Outcome CancelOutcome `json:"outcome"`
	Slot    *TimeSlot     `json:"slot,omitempty"`
}
