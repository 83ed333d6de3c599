package dto

import "github.com/noah-isme/interview-slots/internal/models"

// BookingRequest captures POST /bookings and PUT /bookings/me payloads.
type BookingRequest struct {
	TimeslotID int64 `json:"timeslot_id" binding:"required,gt=0"`
}

// CurrentBookingResponse is returned by GET /bookings/me. Booking is null when the candidate holds nothing.
type CurrentBookingResponse struct {
	Booking *models.TimeSlot `json:"booking"`
}

// DatesResponse lists bookable dates of a department.
type DatesResponse struct {
	DepartmentID int64    `json:"department_id"`
	Dates        []string `json:"dates"`
}

// SlotsResponse lists open slots of a department date.
type SlotsResponse struct {
	DepartmentID int64             `json:"department_id"`
	Date         string            `json:"date"`
	Slots        []models.TimeSlot `json:"slots"`
}
