package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/ground-booking-backend/internal/ground"
	"github.com/nekogravitycat/ground-booking-backend/internal/otp"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

const (
	ownerID  = "7d1f3a52-0c7e-4c55-a3f5-7b8f5c0f2c11"
	otherID  = "0b6a8d47-2f0e-4a58-9f5c-2a8e63f0d3aa"
	groundID = "5e0c9b52-4a3d-4c1b-9f1e-3c2d1e0f9a88"
)

var (
	// 2026-03-01 08:00 UTC
	start    = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	today    = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tomorrow = today.AddDate(0, 0, 1)
)

type memGrounds struct {
	mu      sync.Mutex
	grounds map[string]*ground.Ground
}

func (m *memGrounds) GetByID(_ context.Context, id string) (*ground.Ground, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grounds[id]
	if !ok {
		return nil, ground.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

type event struct {
	key     string
	payload map[string]any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	payload, _ := v.(map[string]any)
	p.events = append(p.events, event{key: key, payload: payload})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

// code returns the most recent code handed off for the booking.
func (p *recordingPublisher) code(bookingID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		e := p.events[i]
		if e.key == EventOTPIssued && e.payload["booking_id"] == bookingID {
			return e.payload["code"].(string)
		}
	}
	return ""
}

func (p *recordingPublisher) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.key == key {
			n++
		}
	}
	return n
}

type fixture struct {
	svc     Service
	repo    *memRepo
	grounds *memGrounds
	clock   *clock.Fake
	events  *recordingPublisher
	store   *otp.MemoryStore
}

func newFixture(t *testing.T, policy HoldPolicy) *fixture {
	t.Helper()

	f := &fixture{
		repo:    newMemRepo(),
		grounds: &memGrounds{grounds: make(map[string]*ground.Ground)},
		clock:   clock.NewFake(start),
		events:  &recordingPublisher{},
	}
	f.store = otp.NewMemoryStore(5, time.Hour, f.clock)
	f.addGround(groundID, ownerID, 500, slot.Window{Start: "09:00", End: "12:00"})

	f.svc = NewService(f.repo, f.grounds, otp.NewGate(f.store), f.events, Options{
		Clock:    f.clock,
		Location: time.UTC,
		Policy:   policy,
		OTPTTL:   5 * time.Minute,
	})
	return f
}

func (f *fixture) addGround(id, owner string, price int64, windows ...slot.Window) {
	f.grounds.mu.Lock()
	f.grounds.grounds[id] = &ground.Ground{
		ID:           id,
		OwnerID:      owner,
		Name:         "Changlimithang",
		Sport:        ground.SportFootball,
		PricePerHour: price,
		Capacity:     22,
		Availability: windows,
	}
	f.grounds.mu.Unlock()

	f.repo.mu.Lock()
	f.repo.owners[id] = owner
	f.repo.mu.Unlock()
}

func request(date time.Time, slots ...string) SubmitRequest {
	req := SubmitRequest{
		GroundID: groundID,
		Date:     date,
		Name:     "Karma",
		Email:    "karma@example.bt",
		Phone:    "17123456",
	}
	for _, s := range slots {
		req.Slots = append(req.Slots, hour(s))
	}
	return req
}

// hour builds the one-hour slot starting at s ("09:00").
func hour(s string) slot.Slot {
	m, err := slot.ParseClock(s)
	if err != nil {
		panic(err)
	}
	return slot.Slot{Start: s, End: slot.FormatClock(m + slot.Minutes)}
}

// submitVerified submits and verifies a booking, returning it in PENDING.
func (f *fixture) submitVerified(t *testing.T, req SubmitRequest) *Booking {
	t.Helper()
	ctx := context.Background()

	b, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)
	b, err = f.svc.VerifyOTP(ctx, VerifyRequest{BookingID: b.ID, Code: f.events.code(b.ID)})
	require.NoError(t, err)
	require.Equal(t, StatusPending, b.Status)
	return b
}
