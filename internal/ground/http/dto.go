package http

import (
	"time"

	"github.com/nekogravitycat/ground-booking-backend/internal/ground"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

// ListGroundsRequest defines query parameters for listing grounds.
type ListGroundsRequest struct {
	request.ListParams
	Sport   string `form:"sport" binding:"omitempty,oneof=Football Cricket Basketball Tennis Badminton Volleyball Futsal"`
	OwnerID string `form:"owner_id" binding:"omitempty,uuid"`
	Keyword string `form:"q"`
	SortBy  string `form:"sort_by" binding:"omitempty,oneof=name price_per_hour capacity created_at"`
}

type WindowBody struct {
	Start string `json:"start" binding:"required,hhmm"`
	End   string `json:"end" binding:"required,hhmm"`
}

func toWindows(in []WindowBody) []slot.Window {
	out := make([]slot.Window, len(in))
	for i, w := range in {
		out[i] = slot.Window{Start: w.Start, End: w.End}
	}
	return out
}

type CreateGroundBody struct {
	Name         string       `json:"name" binding:"required"`
	Sport        string       `json:"sport" binding:"required"`
	Location     string       `json:"location"`
	PricePerHour int64        `json:"price_per_hour" binding:"min=0"`
	Capacity     int          `json:"capacity" binding:"required,min=1"`
	Availability []WindowBody `json:"availability" binding:"dive"`
	Features     []string     `json:"features"`
	Images       []string     `json:"images"`
}

type UpdateGroundBody struct {
	Name         *string       `json:"name" binding:"omitempty,min=1"`
	Sport        *string       `json:"sport"`
	Location     *string       `json:"location"`
	PricePerHour *int64        `json:"price_per_hour" binding:"omitempty,min=0"`
	Capacity     *int          `json:"capacity" binding:"omitempty,min=1"`
	Availability *[]WindowBody `json:"availability" binding:"omitempty,dive"`
	Features     *[]string     `json:"features"`
	Images       *[]string     `json:"images"`
}

type GroundResponse struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"owner_id"`
	Name         string        `json:"name"`
	Sport        string        `json:"sport"`
	Location     string        `json:"location"`
	PricePerHour int64         `json:"price_per_hour"`
	Capacity     int           `json:"capacity"`
	Availability []slot.Window `json:"availability"`
	Features     []string      `json:"features"`
	Images       []string      `json:"images"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func emptyIfNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func NewGroundResponse(g *ground.Ground) GroundResponse {
	return GroundResponse{
		ID:           g.ID,
		OwnerID:      g.OwnerID,
		Name:         g.Name,
		Sport:        string(g.Sport),
		Location:     g.Location,
		PricePerHour: g.PricePerHour,
		Capacity:     g.Capacity,
		Availability: emptyIfNil(g.Availability),
		Features:     emptyIfNil(g.Features),
		Images:       emptyIfNil(g.Images),
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}
