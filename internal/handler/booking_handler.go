package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/interview-slots/internal/dto"
	"github.com/noah-isme/interview-slots/internal/models"
	appErrors "github.com/noah-isme/interview-slots/pkg/errors"
	"github.com/noah-isme/interview-slots/pkg/response"
)

type bookingService interface {
	BookSlot(ctx context.Context, candidateID, timeslotID int64) models.BookingResult
	RescheduleSlot(ctx context.Context, candidateID, newTimeslotID int64) models.BookingResult
	CancelBooking(ctx context.Context, candidateID int64) models.CancelResult
	ListAvailableDates(ctx context.Context, departmentID int64) ([]string, error)
	ListAvailableSlots(ctx context.Context, departmentID int64, date string) ([]models.TimeSlot, error)
	CurrentBooking(ctx context.Context, candidateID int64) (*models.TimeSlot, error)
	GetSlot(ctx context.Context, timeslotID int64) (*models.TimeSlot, error)
}

type eligibilityLookup interface {
	EligibleDepartment(ctx context.Context, candidateID int64) (int64, bool, error)
}

// BookingHandler exposes the booking engine to the conversational front-end.
type BookingHandler struct {
	bookings    bookingService
	eligibility eligibilityLookup
}

// NewBookingHandler constructs handler.
func NewBookingHandler(bookings bookingService, eligibility eligibilityLookup) *BookingHandler {
	return &BookingHandler{bookings: bookings, eligibility: eligibility}
}

// ListDates godoc
// @Summary List bookable dates of a department
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param departmentId path int true "Department ID"
// @Success 200 {object} response.Envelope
// @Router /departments/{departmentId}/dates [get]
func (h *BookingHandler) ListDates(c *gin.Context) {
	departmentID, err := int64Param(c, "departmentId")
	if err != nil {
		response.Error(c, err)
		return
	}
	dates, err := h.bookings.ListAvailableDates(c.Request.Context(), departmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DatesResponse{DepartmentID: departmentID, Dates: dates})
}

// ListSlots godoc
// @Summary List open slots of a department date
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param departmentId path int true "Department ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /departments/{departmentId}/dates/{date}/slots [get]
func (h *BookingHandler) ListSlots(c *gin.Context) {
	departmentID, err := int64Param(c, "departmentId")
	if err != nil {
		response.Error(c, err)
		return
	}
	date := c.Param("date")
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	slots, err := h.bookings.ListAvailableSlots(c.Request.Context(), departmentID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SlotsResponse{DepartmentID: departmentID, Date: date, Slots: slots})
}

// GetSlot godoc
// @Summary Get a slot
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Param id path int true "Timeslot ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /slots/{id} [get]
func (h *BookingHandler) GetSlot(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	slot, err := h.bookings.GetSlot(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot)
}

// Current godoc
// @Summary Current booking of the authenticated candidate
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /bookings/me [get]
func (h *BookingHandler) Current(c *gin.Context) {
	candidateID, err := candidateFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	slot, err := h.bookings.CurrentBooking(c.Request.Context(), candidateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CurrentBookingResponse{Booking: slot})
}

// Book godoc
// @Summary Book a slot
// @Description Moves any existing booking. Returns 409 when the slot was taken in the meantime.
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BookingRequest true "Slot to book"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Book(c *gin.Context) {
	candidateID, req, ok := h.bindBooking(c)
	if !ok {
		return
	}
	result := h.bookings.BookSlot(c.Request.Context(), candidateID, req.TimeslotID)
	h.renderBooking(c, result, http.StatusCreated)
}

// Reschedule godoc
// @Summary Move the current booking to another slot
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BookingRequest true "New slot"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings/me [put]
func (h *BookingHandler) Reschedule(c *gin.Context) {
	candidateID, req, ok := h.bindBooking(c)
	if !ok {
		return
	}
	current, err := h.bookings.CurrentBooking(c.Request.Context(), candidateID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if current == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no booking to reschedule"))
		return
	}
	result := h.bookings.RescheduleSlot(c.Request.Context(), candidateID, req.TimeslotID)
	h.renderBooking(c, result, http.StatusOK)
}

// Cancel godoc
// @Summary Cancel the current booking
// @Tags Bookings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /bookings/me [delete]
func (h *BookingHandler) Cancel(c *gin.Context) {
	candidateID, err := candidateFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result := h.bookings.CancelBooking(c.Request.Context(), candidateID)
	switch result.Outcome {
	case models.CancelCancelled:
		response.JSON(c, http.StatusOK, result)
	case models.CancelNothingToCancel:
		response.Error(c, appErrors.ErrNothingToCancel)
	default:
		response.Error(c, appErrors.ErrUnavailable)
	}
}

// bindBooking authenticates, decodes the payload and checks the slot is in
// the candidate's department.
func (h *BookingHandler) bindBooking(c *gin.Context) (int64, dto.BookingRequest, bool) {
	var req dto.BookingRequest
	candidateID, err := candidateFromContext(c)
	if err != nil {
		response.Error(c, err)
		return 0, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return 0, req, false
	}

	departmentID, eligible, err := h.eligibility.EligibleDepartment(c.Request.Context(), candidateID)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, appErrors.ErrUnavailable.Message))
		return 0, req, false
	}
	if !eligible {
		response.Error(c, appErrors.ErrNotEligible)
		return 0, req, false
	}
	slot, err := h.bookings.GetSlot(c.Request.Context(), req.TimeslotID)
	if err != nil {
		response.Error(c, err)
		return 0, req, false
	}
	if slot.DepartmentID != departmentID {
		response.Error(c, appErrors.Clone(appErrors.ErrNotEligible, "slot belongs to another department"))
		return 0, req, false
	}
	return candidateID, req, true
}

func (h *BookingHandler) renderBooking(c *gin.Context, result models.BookingResult, successStatus int) {
	switch result.Outcome {
	case models.BookingBooked:
		response.JSON(c, successStatus, result)
	case models.BookingSlotTaken:
		response.Error(c, appErrors.ErrSlotTaken)
	case models.BookingNotFound:
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "slot not found"))
	default:
		response.Error(c, appErrors.ErrUnavailable)
	}
}
