package ground

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

// LiveBookingCounter reports how many bookings still hold or may still hold
// slots on a ground. Deletion is refused while this is non-zero.
type LiveBookingCounter interface {
	CountLive(ctx context.Context, groundID string) (int, error)
}

// CreateRequest carries data to create a ground.
type CreateRequest struct {
	OwnerID      string
	Name         string
	Sport        SportType
	Location     string
	PricePerHour int64
	Capacity     int
	Availability []slot.Window
	Features     []string
	Images       []string
}

// UpdateRequest carries data for partial updates.
type UpdateRequest struct {
	Name         *string
	Sport        *SportType
	Location     *string
	PricePerHour *int64
	Capacity     *int
	Availability *[]slot.Window
	Features     *[]string
	Images       *[]string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Ground, error)
	GetByID(ctx context.Context, id string) (*Ground, error)
	List(ctx context.Context, filter Filter) ([]*Ground, int, error)
	Update(ctx context.Context, id string, req UpdateRequest, actorID string) (*Ground, error)
	Delete(ctx context.Context, id string, actorID string) error
}

type service struct {
	repo Repository
	live LiveBookingCounter
}

func NewService(repo Repository, live LiveBookingCounter) Service {
	return &service{repo: repo, live: live}
}

// validateGround checks the catalog rules for a Ground.
func validateGround(g *Ground) error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrNameRequired
	}
	if !g.Sport.Valid() {
		return ErrInvalidSport
	}
	if g.PricePerHour < 0 {
		return ErrInvalidPrice
	}
	if g.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	return slot.ValidateWindows(g.Availability)
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Ground, error) {
	g := &Ground{
		OwnerID:      req.OwnerID,
		Name:         strings.TrimSpace(req.Name),
		Sport:        req.Sport,
		Location:     strings.TrimSpace(req.Location),
		PricePerHour: req.PricePerHour,
		Capacity:     req.Capacity,
		Availability: req.Availability,
		Features:     req.Features,
		Images:       req.Images,
	}
	if err := validateGround(g); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, g); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"ground_id": g.ID, "owner_id": g.OwnerID}).Info("ground created")
	return g, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Ground, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Ground, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest, actorID string) (*Ground, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.OwnerID != actorID {
		return nil, ErrPermissionDenied
	}

	if req.Name != nil {
		g.Name = strings.TrimSpace(*req.Name)
	}
	if req.Sport != nil {
		g.Sport = *req.Sport
	}
	if req.Location != nil {
		g.Location = strings.TrimSpace(*req.Location)
	}
	if req.PricePerHour != nil {
		g.PricePerHour = *req.PricePerHour
	}
	if req.Capacity != nil {
		g.Capacity = *req.Capacity
	}
	if req.Availability != nil {
		g.Availability = *req.Availability
	}
	if req.Features != nil {
		g.Features = *req.Features
	}
	if req.Images != nil {
		g.Images = *req.Images
	}

	if err := validateGround(g); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *service) Delete(ctx context.Context, id string, actorID string) error {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if g.OwnerID != actorID {
		return ErrPermissionDenied
	}

	n, err := s.live.CountLive(ctx, id)
	if err != nil {
		return fmt.Errorf("count live bookings: %w", err)
	}
	if n > 0 {
		return ErrHasLiveBookings.WithDetails(map[string]int{"live_bookings": n})
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	logrus.WithField("ground_id", id).Info("ground deleted")
	return nil
}
