package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/ground-booking-backend/internal/ground"
	"github.com/nekogravitycat/ground-booking-backend/internal/otp"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

func conflictingSlots(t *testing.T, err error) []slot.Slot {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	details, ok := appErr.Details.(map[string]any)
	require.True(t, ok)
	return details["conflicting_slots"].([]slot.Slot)
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, HoldPending)

	// First user takes 09:00 and 10:00.
	first, err := f.svc.Submit(ctx, request(tomorrow, "09:00", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), first.Amount)
	assert.Equal(t, StatusUnverified, first.Status)
	require.NotNil(t, first.HoldExpiresAt)
	assert.Equal(t, start.Add(5*time.Minute), *first.HoldExpiresAt)

	first, err = f.svc.VerifyOTP(ctx, VerifyRequest{BookingID: first.ID, Code: f.events.code(first.ID)})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, first.Status)
	assert.Nil(t, first.HoldExpiresAt)

	// Second user overlaps on 10:00.
	second := request(tomorrow, "10:00", "11:00")
	second.Email = "pema@example.bt"
	_, err = f.svc.Submit(ctx, second)
	require.ErrorIs(t, err, ErrSlotConflict)
	assert.Equal(t, []slot.Slot{hour("10:00")}, conflictingSlots(t, err))

	confirmed, err := f.svc.Decide(ctx, first.ID, DecideRequest{Decision: StatusConfirmed}, ownerID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	retry := request(tomorrow, "11:00")
	retry.Email = "pema@example.bt"
	b, err := f.svc.Submit(ctx, retry)
	require.NoError(t, err)
	assert.Equal(t, int64(500), b.Amount)

	held, err := f.svc.HeldSlots(ctx, groundID, tomorrow)
	require.NoError(t, err)
	assert.Equal(t, []slot.Slot{hour("09:00"), hour("10:00"), hour("11:00")}, held)

	assert.Equal(t, 2, f.events.count(EventSubmitted))
	assert.Equal(t, 1, f.events.count(EventConfirmed))
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SubmitRequest)
		wantErr error
	}{
		{"Blank name", func(r *SubmitRequest) { r.Name = "  " }, ErrInvalidContact},
		{"Malformed email", func(r *SubmitRequest) { r.Email = "karma-at-example" }, ErrInvalidContact},
		{"Phone with wrong prefix", func(r *SubmitRequest) { r.Phone = "27123456" }, ErrInvalidContact},
		{"Phone too short", func(r *SubmitRequest) { r.Phone = "1712345" }, ErrInvalidContact},
		{"Date in the past", func(r *SubmitRequest) { r.Date = today.AddDate(0, 0, -1) }, ErrDateInPast},
		{"No slots", func(r *SubmitRequest) { r.Slots = nil }, ErrNoSlots},
		{"Duplicate slots", func(r *SubmitRequest) { r.Slots = []slot.Slot{hour("09:00"), hour("09:00")} }, ErrDuplicateSlot},
		{"Slot outside availability", func(r *SubmitRequest) { r.Slots = []slot.Slot{hour("13:00")} }, ErrSlotNotOffered},
		{"Malformed slot", func(r *SubmitRequest) { r.Slots = []slot.Slot{{Start: "9", End: "10"}} }, slot.ErrInvalidSlot},
		{"Two-hour slot", func(r *SubmitRequest) { r.Slots = []slot.Slot{{Start: "09:00", End: "11:00"}} }, slot.ErrInvalidSlot},
		{"Hour before opening today", func(r *SubmitRequest) {
			r.Date = today
			r.Slots = []slot.Slot{hour("08:00")}
		}, ErrSlotNotOffered},
		{"Unknown ground", func(r *SubmitRequest) { r.GroundID = otherID }, ground.ErrNotFound},
	}

	sentinels := []error{ErrInvalidContact, ErrDateInPast, ErrNoSlots, ErrDuplicateSlot,
		ErrSlotNotOffered, ErrSlotStarted, slot.ErrInvalidSlot, ground.ErrNotFound}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, HoldPending)
			req := request(tomorrow, "09:00")
			tt.mutate(&req)

			_, err := f.svc.Submit(context.Background(), req)
			assert.ErrorIs(t, err, tt.wantErr)
			for _, other := range sentinels {
				if other != tt.wantErr {
					assert.NotErrorIs(t, err, other)
				}
			}
			assert.Empty(t, f.repo.all())
		})
	}
}

func TestSubmitRejectsStartedSlotToday(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, HoldPending)
	f.clock.Set(today.Add(10*time.Hour + 30*time.Minute))

	_, err := f.svc.Submit(ctx, request(today, "10:00"))
	assert.ErrorIs(t, err, ErrSlotStarted)

	b, err := f.svc.Submit(ctx, request(today, "11:00"))
	require.NoError(t, err)
	assert.Equal(t, []slot.Slot{hour("11:00")}, b.Slots)
}

func TestSubmitUsesGroundTimezone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, HoldPending)
	thimphu := time.FixedZone("BTT", 6*60*60)
	f.svc = NewService(f.repo, f.grounds, otp.NewGate(f.store), f.events, Options{
		Clock:    f.clock,
		Location: thimphu,
		OTPTTL:   5 * time.Minute,
	})

	// 20:00 UTC on Mar 1 is already Mar 2 in Thimphu.
	f.clock.Set(time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC))

	_, err := f.svc.Submit(ctx, request(today, "11:00"))
	assert.ErrorIs(t, err, ErrDateInPast)

	_, err = f.svc.Submit(ctx, request(tomorrow, "11:00"))
	assert.NoError(t, err)
}

func TestSubmitNormalizesAndSortsSlots(t *testing.T) {
	f := newFixture(t, HoldPending)
	req := request(tomorrow, "11:00", "09:00")
	req.Email = "  Karma@Example.BT "

	b, err := f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []slot.Slot{hour("09:00"), hour("11:00")}, b.Slots)
	assert.Equal(t, "karma@example.bt", b.Email)
}

func TestVerifyOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("Succeeds once", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b, err := f.svc.Submit(ctx, request(tomorrow, "09:00"))
		require.NoError(t, err)
		code := f.events.code(b.ID)

		verified, err := f.svc.VerifyOTP(ctx, VerifyRequest{BookingID: b.ID, Code: code})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, verified.Status)

		_, err = f.svc.VerifyOTP(ctx, VerifyRequest{BookingID: b.ID, Code: code})
		assert.ErrorIs(t, err, ErrAlreadyVerified)
	})

	t.Run("By email", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b, err := f.svc.Submit(ctx, request(tomorrow, "09:00"))
		require.NoError(t, err)

		verified, err := f.svc.VerifyOTP(ctx, VerifyRequest{Email: "KARMA@example.bt", Code: f.events.code(b.ID)})
		require.NoError(t, err)
		assert.Equal(t, b.ID, verified.ID)
	})

	t.Run("Wrong code leaves booking unverified", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b, err := f.svc.Submit(ctx, request(tomorrow, "09:00"))
		require.NoError(t, err)

		wrong := "000000"
		if f.events.code(b.ID) == wrong {
			wrong = "111111"
		}
		_, err = f.svc.VerifyOTP(ctx, VerifyRequest{BookingID: b.ID, Code: wrong})
		assert.ErrorIs(t, err, otp.ErrInvalid)

		got, err := f.svc.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusUnverified, got.Status)
	})

	t.Run("Expired code", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b, err := f.svc.Submit(ctx, request(tomorrow, "09:00"))
		require.NoError(t, err)

		f.clock.Advance(5 * time.Minute)
		_, err = f.svc.VerifyOTP(ctx, VerifyRequest{BookingID: b.ID, Code: f.events.code(b.ID)})
		assert.ErrorIs(t, err, ErrHoldExpired)
	})

	t.Run("Reclaimed booking", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b, err := f.svc.Submit(ctx, request(tomorrow, "09:00"))
		require.NoError(t, err)

		f.clock.Advance(6 * time.Minute)
		n, err := f.svc.ReclaimExpired(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		_, err = f.svc.VerifyOTP(ctx, VerifyRequest{BookingID: b.ID, Code: f.events.code(b.ID)})
		assert.ErrorIs(t, err, ErrHoldExpired)

		_, err = f.svc.VerifyOTP(ctx, VerifyRequest{Email: "karma@example.bt", Code: f.events.code(b.ID)})
		assert.ErrorIs(t, err, ErrHoldExpired)
	})

	t.Run("Missing reference", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		_, err := f.svc.VerifyOTP(ctx, VerifyRequest{Code: "123456"})
		assert.ErrorIs(t, err, ErrMissingReference)
	})
}

func TestResendOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("Supersedes code and extends hold", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b, err := f.svc.Submit(ctx, request(tomorrow, "09:00"))
		require.NoError(t, err)
		oldCode := f.events.code(b.ID)

		f.clock.Advance(4 * time.Minute)
		resent, err := f.svc.ResendOTP(ctx, ResendRequest{Email: "karma@example.bt"})
		require.NoError(t, err)
		assert.Equal(t, StatusUnverified, resent.Status)
		assert.Equal(t, f.clock.Now().Add(5*time.Minute), *resent.HoldExpiresAt)

		newCode := f.events.code(b.ID)
		if newCode != oldCode {
			_, err = f.svc.VerifyOTP(ctx, VerifyRequest{BookingID: b.ID, Code: oldCode})
			assert.ErrorIs(t, err, otp.ErrInvalid)
		}

		// Past the original expiry, still inside the extended one.
		f.clock.Advance(3 * time.Minute)
		verified, err := f.svc.VerifyOTP(ctx, VerifyRequest{BookingID: b.ID, Code: newCode})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, verified.Status)
	})

	t.Run("Hold is capped however often the code is resent", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b, err := f.svc.Submit(ctx, request(tomorrow, "09:00"))
		require.NoError(t, err)
		deadline := start.Add(30 * time.Minute)

		// Resend just before every expiry until the cap is reached.
		for f.clock.Now().Before(deadline.Add(-4 * time.Minute)) {
			f.clock.Advance(4 * time.Minute)
			resent, err := f.svc.ResendOTP(ctx, ResendRequest{BookingID: b.ID})
			require.NoError(t, err)
			assert.False(t, resent.HoldExpiresAt.After(deadline))
		}

		f.clock.Set(deadline)
		_, err = f.svc.ResendOTP(ctx, ResendRequest{BookingID: b.ID})
		assert.ErrorIs(t, err, ErrHoldExpired)

		other := request(tomorrow, "09:00")
		other.Email = "pema@example.bt"
		_, err = f.svc.Submit(ctx, other)
		require.NoError(t, err)

		_, err = f.svc.GetByID(ctx, b.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Lapsed hold", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b, err := f.svc.Submit(ctx, request(tomorrow, "09:00"))
		require.NoError(t, err)

		f.clock.Advance(5 * time.Minute)
		_, err = f.svc.ResendOTP(ctx, ResendRequest{BookingID: b.ID})
		assert.ErrorIs(t, err, ErrHoldExpired)
	})

	t.Run("Nothing awaiting verification", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b := f.submitVerified(t, request(tomorrow, "09:00"))

		_, err := f.svc.ResendOTP(ctx, ResendRequest{BookingID: b.ID})
		assert.ErrorIs(t, err, ErrNoUnverified)

		_, err = f.svc.ResendOTP(ctx, ResendRequest{Email: "nobody@example.bt"})
		assert.ErrorIs(t, err, ErrNoUnverified)
	})
}

func TestExpiredUnverifiedDoesNotLockSlots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, HoldPending)

	abandoned, err := f.svc.Submit(ctx, request(tomorrow, "09:00", "10:00"))
	require.NoError(t, err)

	other := request(tomorrow, "10:00")
	other.Email = "pema@example.bt"
	_, err = f.svc.Submit(ctx, other)
	require.ErrorIs(t, err, ErrSlotConflict)

	f.clock.Advance(5 * time.Minute)

	held, err := f.svc.HeldSlots(ctx, groundID, tomorrow)
	require.NoError(t, err)
	assert.Empty(t, held)

	_, err = f.svc.Submit(ctx, other)
	require.NoError(t, err)

	// Lazily reclaimed on submission.
	_, err = f.svc.GetByID(ctx, abandoned.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, f.events.count(EventReclaimed))
}

func TestReclaimExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, HoldPending)

	expired, err := f.svc.Submit(ctx, request(tomorrow, "09:00"))
	require.NoError(t, err)
	f.clock.Advance(3 * time.Minute)

	fresh := request(tomorrow, "10:00")
	fresh.Email = "pema@example.bt"
	live, err := f.svc.Submit(ctx, fresh)
	require.NoError(t, err)
	verified := f.submitVerified(t, request(tomorrow.AddDate(0, 0, 1), "09:00"))

	f.clock.Advance(3 * time.Minute)
	n, err := f.svc.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.GetByID(ctx, expired.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.GetByID(ctx, live.ID)
	assert.NoError(t, err)
	_, err = f.svc.GetByID(ctx, verified.ID)
	assert.NoError(t, err)

	// The challenge is gone with the booking.
	assert.ErrorIs(t, f.store.Consume(ctx, expired.ID, otp.HashCode(expired.ID, f.events.code(expired.ID)), f.clock.Now()), otp.ErrExpired)

	n, err = f.svc.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDecide(t *testing.T) {
	ctx := context.Background()

	t.Run("Validation", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b := f.submitVerified(t, request(tomorrow, "09:00"))

		_, err := f.svc.Decide(ctx, b.ID, DecideRequest{Decision: StatusPending}, ownerID)
		assert.ErrorIs(t, err, ErrInvalidDecision)

		_, err = f.svc.Decide(ctx, b.ID, DecideRequest{Decision: StatusRejected, Reason: "   "}, ownerID)
		assert.ErrorIs(t, err, ErrReasonRequired)

		_, err = f.svc.Decide(ctx, b.ID, DecideRequest{Decision: StatusConfirmed}, otherID)
		assert.ErrorIs(t, err, ErrPermissionDenied)

		_, err = f.svc.Decide(ctx, "missing", DecideRequest{Decision: StatusConfirmed}, ownerID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Unverified booking", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b, err := f.svc.Submit(ctx, request(tomorrow, "09:00"))
		require.NoError(t, err)

		_, err = f.svc.Decide(ctx, b.ID, DecideRequest{Decision: StatusConfirmed}, ownerID)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("Terminal states refuse every decision", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		confirmed := f.submitVerified(t, request(tomorrow, "09:00"))
		_, err := f.svc.Decide(ctx, confirmed.ID, DecideRequest{Decision: StatusConfirmed}, ownerID)
		require.NoError(t, err)

		rejected := f.submitVerified(t, request(tomorrow, "10:00"))
		_, err = f.svc.Decide(ctx, rejected.ID, DecideRequest{Decision: StatusRejected, Reason: "maintenance"}, ownerID)
		require.NoError(t, err)

		for _, id := range []string{confirmed.ID, rejected.ID} {
			for _, d := range []DecideRequest{
				{Decision: StatusConfirmed},
				{Decision: StatusRejected, Reason: "again"},
			} {
				_, err := f.svc.Decide(ctx, id, d, ownerID)
				assert.ErrorIs(t, err, ErrInvalidState)
			}
		}
	})

	t.Run("Reject releases slots for an identical resubmission", func(t *testing.T) {
		f := newFixture(t, HoldPending)
		b := f.submitVerified(t, request(tomorrow, "09:00", "10:00"))

		rejected, err := f.svc.Decide(ctx, b.ID, DecideRequest{Decision: StatusRejected, Reason: " double booked "}, ownerID)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, rejected.Status)
		require.NotNil(t, rejected.RejectionReason)
		assert.Equal(t, "double booked", *rejected.RejectionReason)

		again, err := f.svc.Submit(ctx, request(tomorrow, "09:00", "10:00"))
		require.NoError(t, err)
		assert.Equal(t, StatusUnverified, again.Status)
	})
}

func TestRemoveConfirmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, HoldPending)

	b := f.submitVerified(t, request(tomorrow, "09:00"))
	assert.ErrorIs(t, f.svc.RemoveConfirmed(ctx, b.ID, ownerID), ErrInvalidState)

	_, err := f.svc.Decide(ctx, b.ID, DecideRequest{Decision: StatusConfirmed}, ownerID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.RemoveConfirmed(ctx, b.ID, otherID), ErrPermissionDenied)
	require.NoError(t, f.svc.RemoveConfirmed(ctx, b.ID, ownerID))
	assert.ErrorIs(t, f.svc.RemoveConfirmed(ctx, b.ID, ownerID), ErrNotFound)

	held, err := f.svc.HeldSlots(ctx, groundID, tomorrow)
	require.NoError(t, err)
	assert.Empty(t, held)
	assert.Equal(t, 1, f.events.count(EventRemoved))
}

func TestListMatchesEmailCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, HoldPending)
	b := f.submitVerified(t, request(tomorrow, "09:00"))

	other := request(tomorrow, "10:00")
	other.Email = "pema@example.bt"
	f.submitVerified(t, other)

	list, total, err := f.svc.List(ctx, Filter{Email: "  Karma@Example.BT "})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}

func TestConfirmedHoldPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, HoldConfirmed)

	first := f.submitVerified(t, request(tomorrow, "09:00", "10:00"))

	// Pending bookings do not hold under this policy.
	req := request(tomorrow, "10:00")
	req.Email = "pema@example.bt"
	second := f.submitVerified(t, req)

	_, err := f.svc.Decide(ctx, first.ID, DecideRequest{Decision: StatusConfirmed}, ownerID)
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, second.ID, DecideRequest{Decision: StatusConfirmed}, ownerID)
	require.ErrorIs(t, err, ErrSlotConflict)
	assert.Equal(t, []slot.Slot{hour("10:00")}, conflictingSlots(t, err))

	got, err := f.svc.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	_, err = f.svc.Submit(ctx, request(tomorrow, "09:00"))
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, HoldPending)

	a := f.submitVerified(t, request(tomorrow, "09:00", "10:00"))
	_, err := f.svc.Decide(ctx, a.ID, DecideRequest{Decision: StatusConfirmed}, ownerID)
	require.NoError(t, err)
	f.submitVerified(t, request(tomorrow, "11:00"))

	stats, err := f.svc.Stats(ctx, StatsFilter{GroundID: groundID})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[StatusConfirmed])
	assert.Equal(t, 1, stats.ByStatus[StatusPending])
	assert.Equal(t, int64(1000), stats.Revenue)
	assert.Equal(t, 2, stats.SlotHours)

	from, to := tomorrow, today
	_, err = f.svc.Stats(ctx, StatsFilter{From: &from, To: &to})
	assert.ErrorIs(t, err, ErrInvalidDateWindow)
}

func TestLiveCounter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, HoldPending)
	counter := NewLiveCounter(f.repo, f.clock, time.UTC)

	n, err := counter.CountLive(ctx, groundID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.Submit(ctx, request(tomorrow, "09:00"))
	require.NoError(t, err)
	f.submitVerified(t, request(tomorrow, "10:00"))

	n, err = counter.CountLive(ctx, groundID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The unverified hold lapses; bookings on past days stop counting.
	f.clock.Advance(5 * time.Minute)
	n, err = counter.CountLive(ctx, groundID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f.clock.Advance(72 * time.Hour)
	n, err = counter.CountLive(ctx, groundID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
