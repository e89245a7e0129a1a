package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/ground-booking-backend/internal/auth"
	"github.com/nekogravitycat/ground-booking-backend/internal/booking"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

type BookingHandler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *BookingHandler {
	return &BookingHandler{service: service}
}

// Availability lists the ground's slots for a day with their held flag.
// The booking page polls this endpoint.
func (h *BookingHandler) Availability(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BindError(c, err)
		return
	}
	var q DateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}
	date, err := slot.ParseDate(q.Date)
	if err != nil {
		response.Error(c, err)
		return
	}

	states, err := h.service.Availability(c.Request.Context(), uri.ID, date)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SlotStateResponse, len(states))
	for i, s := range states {
		items[i] = SlotStateResponse{Start: s.Start, End: s.End, Held: s.Held}
	}
	c.JSON(http.StatusOK, AvailabilityResponse{GroundID: uri.ID, Date: slot.FormatDate(date), Slots: items})
}

func (h *BookingHandler) HeldSlots(c *gin.Context) {
	var q SlotsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BindError(c, err)
		return
	}
	date, err := slot.ParseDate(q.Date)
	if err != nil {
		response.Error(c, err)
		return
	}

	held, err := h.service.HeldSlots(c.Request.Context(), q.GroundID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	if held == nil {
		held = []slot.Slot{}
	}
	c.JSON(http.StatusOK, HeldSlotsResponse{GroundID: q.GroundID, Date: slot.FormatDate(date), Slots: held})
}

// Submit places an unverified booking and triggers code delivery.
func (h *BookingHandler) Submit(c *gin.Context) {
	var body SubmitBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BindError(c, err)
		return
	}
	date, err := slot.ParseDate(body.Date)
	if err != nil {
		response.Error(c, err)
		return
	}

	b, err := h.service.Submit(c.Request.Context(), booking.SubmitRequest{
		GroundID: body.GroundID,
		Date:     date,
		Slots:    body.Slots,
		Name:     body.Name,
		Email:    body.Email,
		Phone:    body.Phone,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, SubmitBookingResponse{
		BookingID:     b.ID,
		Amount:        b.Amount,
		Status:        string(b.Status),
		HoldExpiresAt: b.HoldExpiresAt,
	})
}

func (h *BookingHandler) VerifyOTP(c *gin.Context) {
	var body VerifyOTPBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BindError(c, err)
		return
	}

	b, err := h.service.VerifyOTP(c.Request.Context(), booking.VerifyRequest{
		BookingID: body.BookingID,
		Email:     body.Email,
		Code:      body.Code,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, VerifyOTPResponse{BookingID: b.ID, Status: string(b.Status)})
}

func (h *BookingHandler) ResendOTP(c *gin.Context) {
	var body ResendOTPBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BindError(c, err)
		return
	}

	b, err := h.service.ResendOTP(c.Request.Context(), booking.ResendRequest{
		BookingID: body.BookingID,
		Email:     body.Email,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ResendOTPResponse{Sent: true, ExpiresAt: b.HoldExpiresAt})
}

// List returns bookings for administrators.
func (h *BookingHandler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}
	date, err := optionalDate(req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := booking.Filter{
		GroundID:  req.GroundID,
		Date:      date,
		Status:    booking.Status(req.Status),
		Email:     req.Email,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.NormalizedSortOrder(),
	}
	if req.Mine {
		filter.OwnerID = auth.GetUserID(c)
	}

	bookings, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *BookingHandler) Stats(c *gin.Context) {
	var req StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}
	from, err := optionalDate(req.From)
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := optionalDate(req.To)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := booking.StatsFilter{GroundID: req.GroundID, From: from, To: to}
	if req.Mine {
		filter.OwnerID = auth.GetUserID(c)
	}

	stats, err := h.service.Stats(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewStatsResponse(stats))
}

func (h *BookingHandler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BindError(c, err)
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// Decide confirms or rejects a pending booking.
// Access Control: administrator owning the ground.
func (h *BookingHandler) Decide(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BindError(c, err)
		return
	}
	var body DecisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BindError(c, err)
		return
	}

	b, err := h.service.Decide(c.Request.Context(), uri.ID, booking.DecideRequest{
		Decision: booking.Status(body.Decision),
		Reason:   body.Reason,
	}, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// Remove deletes a confirmed booking, e.g. after a no-show.
func (h *BookingHandler) Remove(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.service.RemoveConfirmed(c.Request.Context(), req.ID, auth.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
