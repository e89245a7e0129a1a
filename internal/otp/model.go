package otp

import (
	"context"
	"net/http"
	"time"

	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/apperror"
)

const (
	CodeOTPInvalid = "OTP_INVALID"
	CodeOTPExpired = "OTP_EXPIRED"
)

var (
	ErrInvalid   = apperror.New(http.StatusBadRequest, CodeOTPInvalid, "invalid verification code")
	ErrConsumed  = apperror.New(http.StatusBadRequest, CodeOTPInvalid, "verification code already used")
	ErrExhausted = apperror.New(http.StatusBadRequest, CodeOTPInvalid, "too many attempts, request a new code")
	ErrExpired   = apperror.New(http.StatusBadRequest, CodeOTPExpired, "verification code expired")
)

// Challenge is the stored state of one issued code. Only the digest of the
// code is kept.
type Challenge struct {
	BookingID string
	Email     string
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
	Consumed  bool
}

// Store persists challenges keyed by booking id.
type Store interface {
	// Create stores c, replacing any earlier challenge for the same booking.
	Create(ctx context.Context, c Challenge) error
	// Consume atomically checks codeHash against the stored challenge and
	// marks it consumed on a match. It returns ErrExpired, ErrConsumed,
	// ErrExhausted or ErrInvalid on failure.
	Consume(ctx context.Context, bookingID, codeHash string, now time.Time) error
	// Invalidate removes the challenge, if any.
	Invalidate(ctx context.Context, bookingID string) error
}
