package booking

import (
	"context"
	"time"

	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

// LiveCounter adapts the repository to ground.LiveBookingCounter.
type LiveCounter struct {
	repo  Repository
	clock clock.Clock
	loc   *time.Location
}

func NewLiveCounter(repo Repository, clk clock.Clock, loc *time.Location) *LiveCounter {
	return &LiveCounter{repo: repo, clock: clk, loc: loc}
}

func (c *LiveCounter) CountLive(ctx context.Context, groundID string) (int, error) {
	now := c.clock.Now()
	return c.repo.CountLive(ctx, groundID, now, slot.Today(now, c.loc))
}
