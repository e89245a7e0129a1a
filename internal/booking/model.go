package booking

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

const (
	CodeSlotConflict    = "SLOT_CONFLICT"
	CodeInvalidSlot     = "INVALID_SLOT"
	CodeInvalidDate     = "INVALID_DATE"
	CodeInvalidContact  = "INVALID_CONTACT"
	CodeInvalidState    = "INVALID_STATE"
	CodeInvalidDecision = "INVALID_DECISION"
	CodeReasonRequired  = "REASON_REQUIRED"
	CodeOTPExpired      = "OTP_EXPIRED"
	CodeOTPInvalid      = "OTP_INVALID"
)

var (
	ErrNotFound          = apperror.New(http.StatusNotFound, apperror.CodeNotFound, "booking not found")
	ErrNoUnverified      = apperror.New(http.StatusNotFound, apperror.CodeNotFound, "no booking awaiting verification")
	ErrSlotConflict      = apperror.New(http.StatusConflict, CodeSlotConflict, "one or more slots are no longer available")
	ErrNoSlots           = apperror.New(http.StatusBadRequest, CodeInvalidSlot, "at least one slot is required")
	ErrDuplicateSlot     = apperror.New(http.StatusBadRequest, CodeInvalidSlot, "slots must be unique")
	ErrSlotNotOffered    = apperror.New(http.StatusBadRequest, CodeInvalidSlot, "slot is not offered by this ground")
	ErrSlotStarted       = apperror.New(http.StatusBadRequest, CodeInvalidSlot, "slot has already started")
	ErrDateInPast        = apperror.New(http.StatusBadRequest, CodeInvalidDate, "date must be today or later")
	ErrInvalidContact    = apperror.New(http.StatusBadRequest, CodeInvalidContact, "invalid contact details")
	ErrInvalidState      = apperror.New(http.StatusConflict, CodeInvalidState, "booking is not in a state that allows this action")
	ErrInvalidDecision   = apperror.New(http.StatusBadRequest, CodeInvalidDecision, "decision must be CONFIRMED or REJECTED")
	ErrReasonRequired    = apperror.New(http.StatusBadRequest, CodeReasonRequired, "a reason is required when rejecting")
	ErrHoldExpired       = apperror.New(http.StatusBadRequest, CodeOTPExpired, "booking hold has expired, submit again")
	ErrAlreadyVerified   = apperror.New(http.StatusBadRequest, CodeOTPInvalid, "booking is already verified")
	ErrMissingReference  = apperror.BadRequest("booking_id or email is required")
	ErrPermissionDenied  = apperror.New(http.StatusForbidden, apperror.CodeForbidden, "only the ground's administrator may manage its bookings")
	ErrInvalidDateWindow = apperror.BadRequest("from must not be after to")
)

type Status string

const (
	StatusUnverified Status = "UNVERIFIED"
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusRejected   Status = "REJECTED"
)

// HoldPolicy selects which booking states keep their slots exclusive.
type HoldPolicy string

const (
	// HoldPending: confirmed, pending and unexpired unverified bookings hold.
	HoldPending HoldPolicy = "pending"
	// HoldConfirmed: only confirmed bookings hold.
	HoldConfirmed HoldPolicy = "confirmed"
)

type Booking struct {
	ID              string
	GroundID        string
	Date            time.Time // calendar day at UTC midnight
	Slots           []slot.Slot
	Name            string
	Email           string
	Phone           string
	Amount          int64
	Status          Status
	RejectionReason *string
	HoldExpiresAt   *time.Time // set only while unverified
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Holds reports whether b keeps its slots exclusive at instant now.
func (b *Booking) Holds(policy HoldPolicy, now time.Time) bool {
	switch b.Status {
	case StatusConfirmed:
		return true
	case StatusPending:
		return policy == HoldPending
	case StatusUnverified:
		return policy == HoldPending && !b.HoldExpired(now)
	default:
		return false
	}
}

// HoldExpired reports whether an unverified booking's hold has lapsed.
func (b *Booking) HoldExpired(now time.Time) bool {
	return b.HoldExpiresAt == nil || !now.Before(*b.HoldExpiresAt)
}

// Filter defines parameters for listing bookings.
type Filter struct {
	GroundID  string
	OwnerID   string // grounds administered by this user
	Date      *time.Time
	Status    Status
	Email     string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StatsFilter narrows the statistics to a ground and an inclusive date range.
type StatsFilter struct {
	GroundID string
	OwnerID  string
	From     *time.Time
	To       *time.Time
}

// Stats summarises bookings per status and the revenue of confirmed ones.
type Stats struct {
	Total     int
	ByStatus  map[Status]int
	Revenue   int64
	SlotHours int
}

// StatusChange is a compare-and-set transition applied by UpdateStatus.
type StatusChange struct {
	ID     string
	From   Status
	To     Status
	Reason *string
	// LiveAt, when set, additionally requires the hold to be unexpired at this instant.
	LiveAt *time.Time
}

// Scope limits a reclaim sweep. The zero value covers every ground and date.
type Scope struct {
	GroundID string
	Date     time.Time
}
