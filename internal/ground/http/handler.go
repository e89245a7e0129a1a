package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/ground-booking-backend/internal/auth"
	"github.com/nekogravitycat/ground-booking-backend/internal/ground"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/ground-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/ground-booking-backend/internal/slot"
)

type GroundHandler struct {
	service ground.Service
}

func NewHandler(service ground.Service) *GroundHandler {
	return &GroundHandler{service: service}
}

// List retrieves a paginated list of grounds with optional filtering.
func (h *GroundHandler) List(c *gin.Context) {
	var req ListGroundsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}

	filter := ground.Filter{
		OwnerID:   req.OwnerID,
		Sport:     ground.SportType(req.Sport),
		Keyword:   req.Keyword,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.NormalizedSortOrder(),
	}

	grounds, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]GroundResponse, len(grounds))
	for i, g := range grounds {
		items[i] = NewGroundResponse(g)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *GroundHandler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BindError(c, err)
		return
	}

	g, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewGroundResponse(g))
}

// Create adds a new ground owned by the calling administrator.
func (h *GroundHandler) Create(c *gin.Context) {
	var body CreateGroundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BindError(c, err)
		return
	}

	g, err := h.service.Create(c.Request.Context(), ground.CreateRequest{
		OwnerID:      auth.GetUserID(c),
		Name:         body.Name,
		Sport:        ground.SportType(body.Sport),
		Location:     body.Location,
		PricePerHour: body.PricePerHour,
		Capacity:     body.Capacity,
		Availability: toWindows(body.Availability),
		Features:     body.Features,
		Images:       body.Images,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewGroundResponse(g))
}

// Update applies a partial update. Only the owning administrator may do this.
func (h *GroundHandler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BindError(c, err)
		return
	}

	var body UpdateGroundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BindError(c, err)
		return
	}

	req := ground.UpdateRequest{
		Name:         body.Name,
		Location:     body.Location,
		PricePerHour: body.PricePerHour,
		Capacity:     body.Capacity,
		Features:     body.Features,
		Images:       body.Images,
	}
	if body.Sport != nil {
		sport := ground.SportType(*body.Sport)
		req.Sport = &sport
	}
	if body.Availability != nil {
		windows := toWindows(*body.Availability)
		req.Availability = &windows
	}

	g, err := h.service.Update(c.Request.Context(), uri.ID, req, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewGroundResponse(g))
}

func (h *GroundHandler) Delete(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), req.ID, auth.GetUserID(c)); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Template returns the ground's derived bookable hours, independent of any date.
func (h *GroundHandler) Template(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BindError(c, err)
		return
	}

	g, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	slots, err := g.Slots()
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ground_id": g.ID, "slots": emptyIfNil[slot.Slot](slots)})
}
