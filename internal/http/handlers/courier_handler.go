// README: Courier-facing handlers (profile, availability, order accept).
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"feastly/internal/modules/order"
	"feastly/internal/modules/partner"
	"feastly/internal/types"
)

// CourierService is the slice of the partner module the transport needs.
type CourierService interface {
	EnsureProfile(ctx context.Context, accountID types.ID) (*partner.DeliveryPartner, error)
	Get(ctx context.Context, id types.ID) (*partner.DeliveryPartner, error)
	SetAvailability(ctx context.Context, id types.ID, available bool) (*partner.DeliveryPartner, error)
}

// DispatchService is the manual-accept entry into courier matching.
type DispatchService interface {
	AcceptOrder(ctx context.Context, orderID, courierID types.ID) (*order.Order, error)
}

type CourierHandler struct {
	couriers CourierService
	dispatch DispatchService
}

func NewCourierHandler(couriers CourierService, dispatch DispatchService) *CourierHandler {
	return &CourierHandler{couriers: couriers, dispatch: dispatch}
}

// Register creates the courier profile for the calling account if it does
// not exist yet. Safe to call on every app start.
func (h *CourierHandler) Register(c *gin.Context) {
	actor := callerActor(c)
	p, err := h.couriers.EnsureProfile(c.Request.Context(), actor.ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *CourierHandler) Profile(c *gin.Context) {
	id := c.Param("id")
	p, err := h.couriers.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type availabilityReq struct {
	Available *bool `json:"available"`
}

func (h *CourierHandler) SetAvailability(c *gin.Context) {
	id := c.Param("id")
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Available == nil {
		writeError(c, http.StatusBadRequest, "validation_failed", "missing available flag")
		return
	}
	p, err := h.couriers.SetAvailability(c.Request.Context(), types.ID(id), *req.Available)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *CourierHandler) AcceptOrder(c *gin.Context) {
	orderID := c.Param("id")
	actor := callerActor(c)
	o, err := h.dispatch.AcceptOrder(c.Request.Context(), types.ID(orderID), actor.ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}
