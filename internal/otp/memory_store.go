package otp

import (
	"context"
	"sync"
	"time"

	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/clock"
)

// MemoryStore is a process-local Store for single-instance deployments
// without Redis, and for tests. Like the Redis keys, a challenge is kept
// for retention past its expiry and then dropped.
type MemoryStore struct {
	mu          sync.Mutex
	challenges  map[string]*Challenge
	maxAttempts int
	retention   time.Duration
	clock       clock.Clock
	lastSweep   time.Time
}

func NewMemoryStore(maxAttempts int, retention time.Duration, clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.System()
	}
	return &MemoryStore{
		challenges:  make(map[string]*Challenge),
		maxAttempts: maxAttempts,
		retention:   retention,
		clock:       clk,
		lastSweep:   clk.Now(),
	}
}

func (s *MemoryStore) Create(_ context.Context, c Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(s.clock.Now())
	c.Attempts = 0
	c.Consumed = false
	s.challenges[c.BookingID] = &c
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, bookingID, codeHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep(now)

	c, ok := s.challenges[bookingID]
	switch {
	case !ok:
		return ErrExpired
	case c.Consumed:
		return ErrConsumed
	case !now.Before(c.ExpiresAt):
		return ErrExpired
	case c.Attempts >= s.maxAttempts:
		return ErrExhausted
	case c.CodeHash != codeHash:
		c.Attempts++
		return ErrInvalid
	}
	c.Consumed = true
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, bookingID string) error {
	s.mu.Lock()
	delete(s.challenges, bookingID)
	s.mu.Unlock()
	return nil
}

// Len reports the number of challenges currently kept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// sweep drops challenges past expiry + retention, at most once per retention
// period. Callers hold s.mu.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.retention {
		return
	}
	for id, c := range s.challenges {
		if !now.Before(c.ExpiresAt.Add(s.retention)) {
			delete(s.challenges, id)
		}
	}
	s.lastSweep = now
}
