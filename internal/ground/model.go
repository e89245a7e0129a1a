package ground

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "GROUND_NOT_FOUND", "ground not found")
	ErrNameRequired     = apperror.New(http.StatusBadRequest, apperror.CodeInvalidRequest, "name is required")
	ErrInvalidSport     = apperror.New(http.StatusBadRequest, apperror.CodeInvalidRequest, "unknown sport type")
	ErrInvalidPrice     = apperror.New(http.StatusBadRequest, apperror.CodeInvalidRequest, "price per hour must not be negative")
	ErrInvalidCapacity  = apperror.New(http.StatusBadRequest, apperror.CodeInvalidRequest, "capacity must be positive")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, apperror.CodeForbidden, "only the owning administrator may modify this ground")
	ErrHasLiveBookings  = apperror.New(http.StatusConflict, "GROUND_HAS_LIVE_BOOKINGS", "ground has live bookings")
)

type SportType string

const (
	SportFootball   SportType = "Football"
	SportCricket    SportType = "Cricket"
	SportBasketball SportType = "Basketball"
	SportTennis     SportType = "Tennis"
	SportBadminton  SportType = "Badminton"
	SportVolleyball SportType = "Volleyball"
	SportFutsal     SportType = "Futsal"
)

var sports = map[SportType]struct{}{
	SportFootball: {}, SportCricket: {}, SportBasketball: {}, SportTennis: {},
	SportBadminton: {}, SportVolleyball: {}, SportFutsal: {},
}

func (s SportType) Valid() bool {
	_, ok := sports[s]
	return ok
}

// Ground is a bookable venue with an hourly availability template.
type Ground struct {
	ID           string
	OwnerID      string
	Name         string
	Sport        SportType
	Location     string
	PricePerHour int64
	Capacity     int
	Availability []slot.Window
	Features     []string
	Images       []string // opaque references, uploads are handled elsewhere
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Slots derives the ground's bookable hours from its availability template.
func (g *Ground) Slots() ([]slot.Slot, error) {
	return slot.DeriveSlots(g.Availability)
}

// Filter defines parameters for listing grounds.
type Filter struct {
	OwnerID   string
	Sport     SportType
	Keyword   string // Search in Name or Location
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
