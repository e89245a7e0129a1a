package http

import (
	"time"

	"github.com/nekogravitycat/ground-booking-backend/internal/booking"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

// Slot and contact fields are left to the service so that malformed values
// surface as INVALID_SLOT / INVALID_CONTACT rather than INVALID_REQUEST.
type SubmitBookingBody struct {
	GroundID string      `json:"ground_id" binding:"required,uuid"`
	Date     string      `json:"date" binding:"required"`
	Slots    []slot.Slot `json:"slots"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Phone    string      `json:"phone"`
}

type SubmitBookingResponse struct {
	BookingID     string     `json:"booking_id"`
	Amount        int64      `json:"amount"`
	Status        string     `json:"status"`
	HoldExpiresAt *time.Time `json:"hold_expires_at"`
}

type VerifyOTPBody struct {
	BookingID string `json:"booking_id" binding:"omitempty,uuid"`
	Email     string `json:"email"`
	Code      string `json:"code" binding:"required"`
}

type VerifyOTPResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type ResendOTPBody struct {
	BookingID string `json:"booking_id" binding:"omitempty,uuid"`
	Email     string `json:"email"`
}

type ResendOTPResponse struct {
	Sent      bool       `json:"sent"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type DecisionBody struct {
	Decision string `json:"decision" binding:"required"`
	Reason   string `json:"reason"`
}

// SlotsQuery is the ground+day pair of the calendar endpoints.
type SlotsQuery struct {
	GroundID string `form:"ground_id" binding:"required,uuid"`
	Date     string `form:"date" binding:"required"`
}

type DateQuery struct {
	Date string `form:"date" binding:"required"`
}

type SlotStateResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Held  bool   `json:"held"`
}

type AvailabilityResponse struct {
	GroundID string              `json:"ground_id"`
	Date     string              `json:"date"`
	Slots    []SlotStateResponse `json:"slots"`
}

type HeldSlotsResponse struct {
	GroundID string      `json:"ground_id"`
	Date     string      `json:"date"`
	Slots    []slot.Slot `json:"slots"`
}

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	GroundID string `form:"ground_id" binding:"omitempty,uuid"`
	Date     string `form:"date" binding:"omitempty,isodate"`
	Status   string `form:"status" binding:"omitempty,oneof=UNVERIFIED PENDING CONFIRMED REJECTED"`
	Email    string `form:"email" binding:"omitempty,email"`
	Mine     bool   `form:"mine"`
	SortBy   string `form:"sort_by" binding:"omitempty,oneof=created_at booking_date amount status"`
}

type StatsRequest struct {
	GroundID string `form:"ground_id" binding:"omitempty,uuid"`
	From     string `form:"from" binding:"omitempty,isodate"`
	To       string `form:"to" binding:"omitempty,isodate"`
	Mine     bool   `form:"mine"`
}

type StatsResponse struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	Revenue   int64          `json:"revenue"`
	SlotHours int            `json:"slot_hours"`
}

func NewStatsResponse(s *booking.Stats) StatsResponse {
	byStatus := map[string]int{
		string(booking.StatusUnverified): 0,
		string(booking.StatusPending):    0,
		string(booking.StatusConfirmed):  0,
		string(booking.StatusRejected):   0,
	}
	for k, v := range s.ByStatus {
		byStatus[string(k)] = v
	}
	return StatsResponse{
		Total:     s.Total,
		ByStatus:  byStatus,
		Revenue:   s.Revenue,
		SlotHours: s.SlotHours,
	}
}

type BookingResponse struct {
	ID              string      `json:"id"`
	GroundID        string      `json:"ground_id"`
	Date            string      `json:"date"`
	Slots           []slot.Slot `json:"slots"`
	Name            string      `json:"name"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone"`
	Amount          int64       `json:"amount"`
	Status          string      `json:"status"`
	RejectionReason *string     `json:"rejection_reason,omitempty"`
	HoldExpiresAt   *time.Time  `json:"hold_expires_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	slots := b.Slots
	if slots == nil {
		slots = []slot.Slot{}
	}
	return BookingResponse{
		ID:              b.ID,
		GroundID:        b.GroundID,
		Date:            slot.FormatDate(b.Date),
		Slots:           slots,
		Name:            b.Name,
		Email:           b.Email,
		Phone:           b.Phone,
		Amount:          b.Amount,
		Status:          string(b.Status),
		RejectionReason: b.RejectionReason,
		HoldExpiresAt:   b.HoldExpiresAt,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// optionalDate parses an already validated YYYY-MM-DD query value.
func optionalDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, err := slot.ParseDate(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
