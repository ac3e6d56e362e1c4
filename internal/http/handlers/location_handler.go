// README: Courier location ingestion.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"feastly/internal/types"
)

// LocationSink receives courier position updates.
type LocationSink interface {
	UpdateLocation(ctx context.Context, id types.ID, pos types.Point) error
}

type LocationHandler struct {
	sink LocationSink
}

func NewLocationHandler(sink LocationSink) *LocationHandler {
	return &LocationHandler{sink: sink}
}

type locationReq struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (h *LocationHandler) Update(c *gin.Context) {
	id := c.Param("id")
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "validation_failed", "missing coordinates")
		return
	}
	if *req.Lat < -90 || *req.Lat > 90 || *req.Lng < -180 || *req.Lng > 180 {
		writeError(c, http.StatusBadRequest, "validation_failed", "coordinates out of range")
		return
	}
	err := h.sink.UpdateLocation(c.Request.Context(), types.ID(id), types.Point{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
