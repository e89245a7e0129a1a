package booking

import (
	"context"
	"time"

	"github.com/nekogravitycat/ground-booking-backend/internal/ground"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

// GroundReader is the part of the ground catalog the booking flow reads.
type GroundReader interface {
	GetByID(ctx context.Context, id string) (*ground.Ground, error)
}

// SlotState is a derived slot annotated with whether it is currently held.
type SlotState struct {
	slot.Slot
	Held bool
}

// Calendar answers availability questions for a ground and day. Reads are
// plain queries; the exclusive check happens at submission.
type Calendar struct {
	grounds GroundReader
	repo    Repository
	clock   clock.Clock
	policy  HoldPolicy
}

func NewCalendar(grounds GroundReader, repo Repository, clk clock.Clock, policy HoldPolicy) *Calendar {
	return &Calendar{grounds: grounds, repo: repo, clock: clk, policy: policy}
}

// DeriveSlots returns the ground's bookable hours in start order.
func (c *Calendar) DeriveSlots(ctx context.Context, groundID string) ([]slot.Slot, error) {
	g, err := c.grounds.GetByID(ctx, groundID)
	if err != nil {
		return nil, err
	}
	return g.Slots()
}

// HeldSlots returns the slots currently held on the ground and day.
func (c *Calendar) HeldSlots(ctx context.Context, groundID string, date time.Time) ([]slot.Slot, error) {
	if _, err := c.grounds.GetByID(ctx, groundID); err != nil {
		return nil, err
	}
	bookings, err := c.repo.ListByGroundAndDate(ctx, groundID, date)
	if err != nil {
		return nil, err
	}
	return heldFrom(bookings, c.policy, c.clock.Now()), nil
}

// Availability returns every derived slot of the ground with its held flag.
func (c *Calendar) Availability(ctx context.Context, groundID string, date time.Time) ([]SlotState, error) {
	g, err := c.grounds.GetByID(ctx, groundID)
	if err != nil {
		return nil, err
	}
	derived, err := g.Slots()
	if err != nil {
		return nil, err
	}
	bookings, err := c.repo.ListByGroundAndDate(ctx, groundID, date)
	if err != nil {
		return nil, err
	}

	held := heldFrom(bookings, c.policy, c.clock.Now())
	states := make([]SlotState, len(derived))
	for i, s := range derived {
		states[i] = SlotState{Slot: s, Held: slot.Contains(held, s)}
	}
	return states, nil
}

// heldFrom unions the slots of the bookings that hold at now, in start order.
func heldFrom(bookings []*Booking, policy HoldPolicy, now time.Time) []slot.Slot {
	seen := make(map[slot.Slot]struct{})
	held := []slot.Slot{}
	for _, b := range bookings {
		if !b.Holds(policy, now) {
			continue
		}
		for _, s := range b.Slots {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			held = append(held, s)
		}
	}
	slot.Sort(held)
	return held
}
