// README: Order handlers for create/get/transition/cancel.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"feastly/internal/modules/order"
	"feastly/internal/types"
)

// OrderService is the slice of the order module the transport needs.
type OrderService interface {
	Create(ctx context.Context, cmd order.CreateCommand) (*order.Order, error)
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	Transition(ctx context.Context, orderID types.ID, actor order.Actor, target order.Status) (*order.Order, error)
	Cancel(ctx context.Context, orderID types.ID, actor order.Actor, reason string) (*order.Order, error)
}

type OrderHandler struct {
	order OrderService
}

func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{order: svc}
}

type orderItemReq struct {
	ItemID string        `json:"item_id"`
	Qty    int           `json:"qty"`
	Addons []order.Addon `json:"addons"`
}

type createOrderReq struct {
	CustomerID   string         `json:"customer_id"`
	RestaurantID string         `json:"restaurant_id"`
	Items        []orderItemReq `json:"items"`
	DropAddress  string         `json:"drop_address"`
	CouponCode   string         `json:"coupon_code"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation_failed", "invalid json")
		return
	}
	if req.CustomerID == "" || req.RestaurantID == "" || len(req.Items) == 0 {
		writeError(c, http.StatusBadRequest, "validation_failed", "missing fields")
		return
	}
	items := make([]order.ItemSelection, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.ItemSelection{
			ItemID: types.ID(it.ItemID),
			Qty:    it.Qty,
			Addons: it.Addons,
		})
	}
	o, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		CustomerID:   types.ID(req.CustomerID),
		RestaurantID: types.ID(req.RestaurantID),
		Items:        items,
		DropAddress:  req.DropAddress,
		CouponCode:   req.CouponCode,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, o)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "validation_failed", "missing order id")
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

type transitionReq struct {
	Status string `json:"status"`
}

func (h *OrderHandler) Transition(c *gin.Context) {
	id := c.Param("id")
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		writeError(c, http.StatusBadRequest, "validation_failed", "missing target status")
		return
	}
	actor := callerActor(c)
	o, err := h.order.Transition(c.Request.Context(), types.ID(id), actor, order.Status(req.Status))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	actor := callerActor(c)
	o, err := h.order.Cancel(c.Request.Context(), types.ID(id), actor, req.Reason)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}
