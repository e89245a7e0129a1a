package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/ground-booking-backend/internal/ground"
)

// memRepo is an in-memory Repository. WithinGroundDate serialises callers per
// ground+date with a keyed mutex, mirroring the advisory lock.
type memRepo struct {
	mu       sync.Mutex
	bookings map[string]*Booking
	order    []string
	owners   map[string]string // ground id -> owner id
	locks    sync.Map
}

func newMemRepo() *memRepo {
	return &memRepo{bookings: make(map[string]*Booking), owners: make(map[string]string)}
}

func clone(b *Booking) *Booking {
	cp := *b
	cp.Slots = append(cp.Slots[:0:0], b.Slots...)
	if b.HoldExpiresAt != nil {
		t := *b.HoldExpiresAt
		cp.HoldExpiresAt = &t
	}
	if b.RejectionReason != nil {
		r := *b.RejectionReason
		cp.RejectionReason = &r
	}
	return &cp
}

func (r *memRepo) WithinGroundDate(ctx context.Context, groundID string, date time.Time, fn func(ctx context.Context, tx Repository) error) error {
	m, _ := r.locks.LoadOrStore(lockKey(groundID, date), &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return fn(ctx, r)
}

func (r *memRepo) Insert(_ context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.owners[b.GroundID]; !ok {
		return ground.ErrNotFound
	}
	b.ID = uuid.NewString()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.UpdatedAt = b.CreatedAt
	r.bookings[b.ID] = clone(b)
	r.order = append(r.order, b.ID)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(b), nil
}

func (r *memRepo) ListByGroundAndDate(_ context.Context, groundID string, date time.Time) ([]*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Booking
	for _, id := range r.order {
		b, ok := r.bookings[id]
		if ok && b.GroundID == groundID && b.Date.Equal(date) {
			out = append(out, clone(b))
		}
	}
	return out, nil
}

func (r *memRepo) FindUnverifiedByEmail(_ context.Context, email string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		b, ok := r.bookings[r.order[i]]
		if ok && b.Email == email && b.Status == StatusUnverified {
			return clone(b), nil
		}
	}
	return nil, ErrNoUnverified
}

func (r *memRepo) List(_ context.Context, filter Filter) ([]*Booking, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Booking
	for _, id := range r.order {
		b, ok := r.bookings[id]
		if !ok {
			continue
		}
		if filter.GroundID != "" && b.GroundID != filter.GroundID {
			continue
		}
		if filter.OwnerID != "" && r.owners[b.GroundID] != filter.OwnerID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.Date != nil && !b.Date.Equal(*filter.Date) {
			continue
		}
		if filter.Email != "" && b.Email != filter.Email {
			continue
		}
		out = append(out, clone(b))
	}
	return out, len(out), nil
}

func (r *memRepo) UpdateStatus(_ context.Context, change StatusChange) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[change.ID]
	if !ok || b.Status != change.From {
		return nil, ErrStale
	}
	if change.LiveAt != nil && (b.HoldExpiresAt == nil || !b.HoldExpiresAt.After(*change.LiveAt)) {
		return nil, ErrStale
	}
	b.Status = change.To
	b.RejectionReason = change.Reason
	if change.To != StatusUnverified {
		b.HoldExpiresAt = nil
	}
	b.UpdatedAt = time.Now()
	return clone(b), nil
}

func (r *memRepo) ExtendHold(_ context.Context, id string, now, until time.Time) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != StatusUnverified || b.HoldExpiresAt == nil || !b.HoldExpiresAt.After(now) {
		return nil, ErrStale
	}
	b.HoldExpiresAt = &until
	return clone(b), nil
}

func (r *memRepo) Delete(_ context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Status != status {
		return ErrStale
	}
	delete(r.bookings, id)
	return nil
}

func (r *memRepo) DeleteExpiredUnverified(_ context.Context, now time.Time, scope Scope) ([]*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Booking
	for _, id := range r.order {
		b, ok := r.bookings[id]
		if !ok || b.Status != StatusUnverified || b.HoldExpiresAt.After(now) {
			continue
		}
		if scope.GroundID != "" && b.GroundID != scope.GroundID {
			continue
		}
		if !scope.Date.IsZero() && !b.Date.Equal(scope.Date) {
			continue
		}
		out = append(out, clone(b))
		delete(r.bookings, id)
	}
	return out, nil
}

func (r *memRepo) CountLive(_ context.Context, groundID string, now, today time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.bookings {
		if b.GroundID != groundID || b.Date.Before(today) {
			continue
		}
		if b.Holds(HoldPending, now) {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) Stats(_ context.Context, filter StatsFilter) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &Stats{ByStatus: make(map[Status]int)}
	for _, b := range r.bookings {
		if filter.GroundID != "" && b.GroundID != filter.GroundID {
			continue
		}
		if filter.From != nil && b.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && b.Date.After(*filter.To) {
			continue
		}
		stats.ByStatus[b.Status]++
		stats.Total++
		if b.Status == StatusConfirmed {
			stats.Revenue += b.Amount
			stats.SlotHours += len(b.Slots)
		}
	}
	return stats, nil
}

// all returns every stored booking ordered by insertion.
func (r *memRepo) all() []*Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Booking
	for _, id := range r.order {
		if b, ok := r.bookings[id]; ok {
			out = append(out, clone(b))
		}
	}
	return out
}
