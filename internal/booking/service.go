package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nekogravitycat/ground-booking-backend/internal/metrics"
	"github.com/nekogravitycat/ground-booking-backend/internal/otp"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/mq"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/validation"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

var tracer = otel.Tracer("github.com/nekogravitycat/ground-booking-backend/internal/booking")

// Event routing keys.
const (
	EventOTPIssued = "otp.issued"
	EventSubmitted = "booking.submitted"
	EventVerified  = "booking.verified"
	EventConfirmed = "booking.confirmed"
	EventRejected  = "booking.rejected"
	EventRemoved   = "booking.removed"
	EventReclaimed = "booking.reclaimed"
)

// SubmitRequest carries a user's request for slots on one ground and day.
type SubmitRequest struct {
	GroundID string
	Date     time.Time
	Slots    []slot.Slot
	Name     string
	Email    string
	Phone    string
}

// VerifyRequest identifies the booking by id or, failing that, by email.
type VerifyRequest struct {
	BookingID string
	Email     string
	Code      string
}

type ResendRequest struct {
	BookingID string
	Email     string
}

type DecideRequest struct {
	Decision Status
	Reason   string
}

// Options configures the reconciler.
type Options struct {
	Clock    clock.Clock
	Location *time.Location
	Policy   HoldPolicy
	OTPTTL   time.Duration
	// MaxHold caps how long resends can keep an unverified booking's
	// slots, counted from submission.
	MaxHold  time.Duration
}

type Service interface {
	HeldSlots(ctx context.Context, groundID string, date time.Time) ([]slot.Slot, error)
	Availability(ctx context.Context, groundID string, date time.Time) ([]SlotState, error)

	Submit(ctx context.Context, req SubmitRequest) (*Booking, error)
	VerifyOTP(ctx context.Context, req VerifyRequest) (*Booking, error)
	ResendOTP(ctx context.Context, req ResendRequest) (*Booking, error)
	Decide(ctx context.Context, id string, req DecideRequest, actorID string) (*Booking, error)
	RemoveConfirmed(ctx context.Context, id string, actorID string) error

	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	Stats(ctx context.Context, filter StatsFilter) (*Stats, error)
	ReclaimExpired(ctx context.Context) (int, error)
}

type service struct {
	*Calendar
	repo    Repository
	grounds GroundReader
	gate    *otp.Gate
	events  mq.Publisher
	clock   clock.Clock
	loc     *time.Location
	policy  HoldPolicy
	otpTTL  time.Duration
	maxHold time.Duration
}

func NewService(repo Repository, grounds GroundReader, gate *otp.Gate, events mq.Publisher, opts Options) Service {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Policy == "" {
		opts.Policy = HoldPending
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 5 * time.Minute
	}
	if opts.MaxHold < opts.OTPTTL {
		opts.MaxHold = 6 * opts.OTPTTL
	}
	if events == nil {
		events = mq.NopPublisher{}
	}
	return &service{
		Calendar: NewCalendar(grounds, repo, opts.Clock, opts.Policy),
		repo:     repo,
		grounds:  grounds,
		gate:     gate,
		events:   events,
		clock:    opts.Clock,
		loc:      opts.Location,
		policy:   opts.Policy,
		otpTTL:   opts.OTPTTL,
		maxHold:  opts.MaxHold,
	}
}

func (s *service) Submit(ctx context.Context, req SubmitRequest) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("ground.id", req.GroundID),
		attribute.String("booking.date", slot.FormatDate(req.Date)),
		attribute.Int("booking.slots", len(req.Slots)),
	)

	b, code, reclaimed, err := s.submit(ctx, req)
	s.afterReclaim(ctx, reclaimed)
	metrics.RecordSubmission(submissionResult(err))
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.id", b.ID))

	metrics.RecordOTPIssued()
	s.publish(ctx, EventOTPIssued, otpIssuedEvent(b, code))
	s.publish(ctx, EventSubmitted, map[string]any{
		"booking_id": b.ID,
		"ground_id":  b.GroundID,
		"date":       slot.FormatDate(b.Date),
		"slots":      b.Slots,
		"amount":     b.Amount,
	})
	s.log(b).Info("booking submitted")
	return b, nil
}

func (s *service) submit(ctx context.Context, req SubmitRequest) (*Booking, string, []*Booking, error) {
	now := s.clock.Now()

	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	phone := strings.TrimSpace(req.Phone)
	if err := validateContact(name, email, phone); err != nil {
		return nil, "", nil, err
	}

	y, m, d := req.Date.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	today := slot.Today(now, s.loc)
	if date.Before(today) {
		return nil, "", nil, ErrDateInPast
	}

	g, err := s.grounds.GetByID(ctx, req.GroundID)
	if err != nil {
		return nil, "", nil, err
	}
	offered, err := g.Slots()
	if err != nil {
		return nil, "", nil, err
	}
	requested, err := s.checkSlots(req.Slots, offered, date, today, now)
	if err != nil {
		return nil, "", nil, err
	}

	expires := now.Add(s.otpTTL)
	b := &Booking{
		GroundID:      g.ID,
		Date:          date,
		Slots:         requested,
		Name:          name,
		Email:         email,
		Phone:         phone,
		Amount:        g.PricePerHour * int64(len(requested)),
		Status:        StatusUnverified,
		HoldExpiresAt: &expires,
		CreatedAt:     now,
	}

	var (
		code      string
		reclaimed []*Booking
	)
	err = s.repo.WithinGroundDate(ctx, g.ID, date, func(ctx context.Context, tx Repository) error {
		var err error
		reclaimed, err = tx.DeleteExpiredUnverified(ctx, now, Scope{GroundID: g.ID, Date: date})
		if err != nil {
			return err
		}

		existing, err := tx.ListByGroundAndDate(ctx, g.ID, date)
		if err != nil {
			return err
		}
		if conflict := slot.Intersect(requested, heldFrom(existing, s.policy, now)); len(conflict) > 0 {
			return ErrSlotConflict.WithDetails(map[string]any{"conflicting_slots": conflict})
		}

		if err := tx.Insert(ctx, b); err != nil {
			return err
		}
		code, err = s.gate.Issue(ctx, b.ID, b.Email, expires)
		return err
	})
	if err != nil {
		return nil, "", reclaimed, err
	}
	return b, code, reclaimed, nil
}

// checkSlots normalizes the requested slots and checks them against the
// ground's offer. The result is in start order.
func (s *service) checkSlots(requested, offered []slot.Slot, date, today, now time.Time) ([]slot.Slot, error) {
	if len(requested) == 0 {
		return nil, ErrNoSlots
	}

	out := make([]slot.Slot, 0, len(requested))
	for _, r := range requested {
		n, err := slot.Normalize(r)
		if err != nil {
			return nil, err
		}
		if slot.Contains(out, n) {
			return nil, ErrDuplicateSlot.WithDetails(n)
		}
		if !slot.Contains(offered, n) {
			return nil, ErrSlotNotOffered.WithDetails(n)
		}
		if date.Equal(today) {
			startsAt, err := slot.StartsAt(date, n, s.loc)
			if err != nil {
				return nil, err
			}
			if !now.Before(startsAt) {
				return nil, ErrSlotStarted.WithDetails(n)
			}
		}
		out = append(out, n)
	}
	slot.Sort(out)
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateContact(name, email, phone string) error {
	if name == "" {
		return ErrInvalidContact.WithDetails("name is required")
	}
	if err := validation.Validator().Var(email, "required,email"); err != nil {
		return ErrInvalidContact.WithDetails("email is invalid")
	}
	if !validation.IsPhone(phone) {
		return ErrInvalidContact.WithDetails("phone must be 8 digits starting with 77 or 17")
	}
	return nil
}

func (s *service) VerifyOTP(ctx context.Context, req VerifyRequest) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.verify_otp")
	defer span.End()

	b, err := s.verify(ctx, req)
	metrics.RecordOTPVerification(verificationResult(err))
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("booking.id", b.ID))

	s.publish(ctx, EventVerified, map[string]any{"booking_id": b.ID, "ground_id": b.GroundID})
	s.log(b).Info("booking verified")
	return b, nil
}

func (s *service) verify(ctx context.Context, req VerifyRequest) (*Booking, error) {
	now := s.clock.Now()

	b, err := s.resolve(ctx, req.BookingID, req.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoUnverified) {
			// Never issued, or reclaimed after expiry.
			return nil, ErrHoldExpired
		}
		return nil, err
	}
	if b.Status != StatusUnverified {
		return nil, ErrAlreadyVerified
	}
	if b.HoldExpired(now) {
		return nil, ErrHoldExpired
	}

	if err := s.gate.Verify(ctx, b.ID, req.Code, now); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, StatusChange{
		ID:     b.ID,
		From:   StatusUnverified,
		To:     StatusPending,
		LiveAt: &now,
	})
	if errors.Is(err, ErrStale) {
		return nil, ErrHoldExpired
	}
	return updated, err
}

func (s *service) ResendOTP(ctx context.Context, req ResendRequest) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.resend_otp")
	defer span.End()

	now := s.clock.Now()
	b, err := s.resolve(ctx, req.BookingID, req.Email)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	if b.Status != StatusUnverified {
		return nil, ErrNoUnverified
	}
	if b.HoldExpired(now) {
		return nil, ErrHoldExpired
	}

	// The hold never outlives submission + maxHold, however often the code
	// is resent. Past that point the booking lapses and is reclaimed.
	until := now.Add(s.otpTTL)
	if deadline := b.CreatedAt.Add(s.maxHold); until.After(deadline) {
		until = deadline
	}
	if !until.After(now) {
		return nil, ErrHoldExpired
	}
	updated, err := s.repo.ExtendHold(ctx, b.ID, now, until)
	if err != nil {
		if errors.Is(err, ErrStale) {
			return nil, ErrHoldExpired
		}
		failSpan(span, err)
		return nil, err
	}

	code, err := s.gate.Issue(ctx, updated.ID, updated.Email, until)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	metrics.RecordOTPIssued()
	s.publish(ctx, EventOTPIssued, otpIssuedEvent(updated, code))
	s.log(updated).Info("verification code reissued")
	return updated, nil
}

// resolve finds the booking a verification request refers to.
func (s *service) resolve(ctx context.Context, bookingID, email string) (*Booking, error) {
	switch {
	case bookingID != "":
		b, err := s.repo.GetByID(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		return b, nil
	case email != "":
		return s.repo.FindUnverifiedByEmail(ctx, normalizeEmail(email))
	default:
		return nil, ErrMissingReference
	}
}

func (s *service) Decide(ctx context.Context, id string, req DecideRequest, actorID string) (*Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.decide", trace.WithAttributes(
		attribute.String("booking.id", id),
		attribute.String("booking.decision", string(req.Decision)),
	))
	defer span.End()

	b, err := s.decide(ctx, id, req, actorID)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	metrics.RecordDecision(string(b.Status))
	event := EventConfirmed
	payload := map[string]any{"booking_id": b.ID, "ground_id": b.GroundID, "email": b.Email}
	if b.Status == StatusRejected {
		event = EventRejected
		payload["reason"] = *b.RejectionReason
	}
	s.publish(ctx, event, payload)
	s.log(b).WithField("actor_id", actorID).Info("booking decided")
	return b, nil
}

func (s *service) decide(ctx context.Context, id string, req DecideRequest, actorID string) (*Booking, error) {
	if req.Decision != StatusConfirmed && req.Decision != StatusRejected {
		return nil, ErrInvalidDecision
	}
	reason := strings.TrimSpace(req.Reason)
	if req.Decision == StatusRejected && reason == "" {
		return nil, ErrReasonRequired
	}

	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, b, actorID); err != nil {
		return nil, err
	}
	if b.Status != StatusPending {
		return nil, ErrInvalidState
	}

	change := StatusChange{ID: b.ID, From: StatusPending, To: req.Decision}
	if req.Decision == StatusRejected {
		change.Reason = &reason
	}

	var updated *Booking
	if req.Decision == StatusConfirmed && s.policy == HoldConfirmed {
		// Pending bookings do not hold under this policy, so another one may
		// have been confirmed for the same slots in the meantime.
		now := s.clock.Now()
		err = s.repo.WithinGroundDate(ctx, b.GroundID, b.Date, func(ctx context.Context, tx Repository) error {
			existing, err := tx.ListByGroundAndDate(ctx, b.GroundID, b.Date)
			if err != nil {
				return err
			}
			if conflict := slot.Intersect(b.Slots, heldFrom(existing, s.policy, now)); len(conflict) > 0 {
				return ErrSlotConflict.WithDetails(map[string]any{"conflicting_slots": conflict})
			}
			updated, err = tx.UpdateStatus(ctx, change)
			return err
		})
	} else {
		updated, err = s.repo.UpdateStatus(ctx, change)
	}
	if errors.Is(err, ErrStale) {
		return nil, ErrInvalidState
	}
	return updated, err
}

func (s *service) RemoveConfirmed(ctx context.Context, id string, actorID string) error {
	ctx, span := tracer.Start(ctx, "booking.remove_confirmed", trace.WithAttributes(
		attribute.String("booking.id", id),
	))
	defer span.End()

	b, err := s.removeConfirmed(ctx, id, actorID)
	if err != nil {
		failSpan(span, err)
		return err
	}

	metrics.RecordRemoval()
	s.publish(ctx, EventRemoved, map[string]any{"booking_id": b.ID, "ground_id": b.GroundID})
	s.log(b).WithField("actor_id", actorID).Info("confirmed booking removed")
	return nil
}

func (s *service) removeConfirmed(ctx context.Context, id string, actorID string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, b, actorID); err != nil {
		return nil, err
	}
	if b.Status != StatusConfirmed {
		return nil, ErrInvalidState
	}

	if err := s.repo.Delete(ctx, b.ID, StatusConfirmed); err != nil {
		if errors.Is(err, ErrStale) {
			return nil, ErrInvalidState
		}
		return nil, err
	}
	return b, nil
}

// authorize allows only the administrator who owns the booking's ground.
func (s *service) authorize(ctx context.Context, b *Booking, actorID string) error {
	g, err := s.grounds.GetByID(ctx, b.GroundID)
	if err != nil {
		return err
	}
	if g.OwnerID != actorID {
		return ErrPermissionDenied
	}
	return nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	// Emails are stored normalized.
	filter.Email = normalizeEmail(filter.Email)
	return s.repo.List(ctx, filter)
}

func (s *service) Stats(ctx context.Context, filter StatsFilter) (*Stats, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, ErrInvalidDateWindow
	}
	return s.repo.Stats(ctx, filter)
}

// ReclaimExpired deletes every unverified booking whose hold has lapsed.
func (s *service) ReclaimExpired(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "booking.reclaim_expired")
	defer span.End()

	reclaimed, err := s.repo.DeleteExpiredUnverified(ctx, s.clock.Now(), Scope{})
	if err != nil {
		failSpan(span, err)
		return 0, err
	}
	s.afterReclaim(ctx, reclaimed)
	span.SetAttributes(attribute.Int("booking.reclaimed", len(reclaimed)))
	return len(reclaimed), nil
}

func (s *service) afterReclaim(ctx context.Context, reclaimed []*Booking) {
	if len(reclaimed) == 0 {
		return
	}
	metrics.RecordReclaimed(len(reclaimed))
	for _, b := range reclaimed {
		if err := s.gate.Invalidate(ctx, b.ID); err != nil {
			s.log(b).WithError(err).Warn("invalidate challenge of reclaimed booking failed")
		}
		s.publish(ctx, EventReclaimed, map[string]any{
			"booking_id": b.ID,
			"ground_id":  b.GroundID,
			"date":       slot.FormatDate(b.Date),
			"slots":      b.Slots,
		})
	}
	logrus.WithField("count", len(reclaimed)).Info("reclaimed expired unverified bookings")
}

func (s *service) publish(ctx context.Context, key string, v any) {
	if err := s.events.PublishJSON(ctx, key, v); err != nil {
		logrus.WithError(err).WithField("event", key).Warn("publish event failed")
	}
}

func (s *service) log(b *Booking) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"ground_id":  b.GroundID,
		"date":       slot.FormatDate(b.Date),
		"status":     b.Status,
	})
}

// otpIssuedEvent is the hand-off to the delivery channel; it is the only
// place the plaintext code leaves the service.
func otpIssuedEvent(b *Booking, code string) map[string]any {
	return map[string]any{
		"booking_id": b.ID,
		"email":      b.Email,
		"phone":      b.Phone,
		"code":       code,
		"expires_at": b.HoldExpiresAt,
	}
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func submissionResult(err error) string {
	var appErr *apperror.AppError
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrSlotConflict):
		return "conflict"
	case errors.As(err, &appErr) && appErr.Status < 500:
		return "rejected_input"
	default:
		return "error"
	}
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return "verified"
	case errors.Is(err, otp.ErrExpired), errors.Is(err, ErrHoldExpired):
		return "expired"
	case errors.Is(err, otp.ErrInvalid), errors.Is(err, otp.ErrConsumed),
		errors.Is(err, otp.ErrExhausted), errors.Is(err, ErrAlreadyVerified):
		return "invalid"
	default:
		return "error"
	}
}
