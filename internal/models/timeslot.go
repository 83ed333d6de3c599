package models

import "time"

// DateLayout and TimeLayout are the wire formats for slot coordinates.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// TimeSlot is one fixed (department, date, time) interview opportunity.
// OccupantID set implies IsAvailable is false.
type TimeSlot struct {
	ID           int64     `db:"id" json:"id"`
	DepartmentID int64     `db:"department_id" json:"department_id"`
	Date         string    `db:"slot_date" json:"date"`
	StartTime    string    `db:"start_time" json:"start_time"`
	IsAvailable  bool      `db:"is_available" json:"is_available"`
	OccupantID   *int64    `db:"occupant_id" json:"occupant_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"-"`
	UpdatedAt    time.Time `db:"updated_at" json:"-"`
}

// Open reports whether the slot can be reserved right now.
func (s *TimeSlot) Open() bool {
	return s != nil && s.IsAvailable && s.OccupantID == nil
}

// HeldBy reports whether candidateID currently occupies the slot.
func (s *TimeSlot) HeldBy(candidateID int64) bool {
	return s != nil && s.OccupantID != nil && *s.OccupantID == candidateID
}

// CandidateDisplay is what reviewers see in the mirror for an occupant.
type CandidateDisplay struct {
	Name   string `db:"full_name" json:"name"`
	Handle string `db:"handle" json:"handle"`
}

// AvailabilityEdit opens or closes a set of start times on one department date.
type AvailabilityEdit struct {
	DepartmentID int64    `json:"department_id" validate:"required,gt=0"`
	Date         string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTimes   []string `json:"start_times" validate:"required,min=1,dive,datetime=15:04"`
	Available    bool     `json:"available"`
}

// RevokedBooking records an occupant displaced by an availability edit.
type RevokedBooking struct {
	CandidateID int64    `json:"candidate_id"`
	Slot        TimeSlot `json:"slot"`
}

// AvailabilityChange summarises a bulk availability edit.
type AvailabilityChange struct {
	Updated int64            `json:"updated"`
	Revoked []RevokedBooking `json:"revoked"`
}

// GridSlot is one seedable coordinate of a department's availability grid.
type GridSlot struct {
	DepartmentID int64  `db:"department_id"`
	Date         string `db:"slot_date"`
	StartTime    string `db:"start_time"`
	IsAvailable  bool   `db:"is_available"`
}
