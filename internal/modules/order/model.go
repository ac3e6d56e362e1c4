// README: Order aggregate, status graph, and money fields.
package order

import (
	"time"

	"feastly/internal/types"
)

type Status string

// Persisted status strings; case-sensitive on the wire and in the store.
const (
	StatusProcessing     Status = "processing"
	StatusAccepted       Status = "accepted"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out-for-delivery"
	StatusDelivered      Status = "delivered"
	StatusCompleted      Status = "completed" // legacy terminal alias of delivered
	StatusCancelled      Status = "cancelled"
)

// AllowedTransitions represents the order state flow as code: a linear chain
// to delivered, with cancellation possible only before the kitchen hands the
// order off.
var AllowedTransitions = map[Status][]Status{
	StatusProcessing:     {StatusAccepted, StatusCancelled},
	StatusAccepted:       {StatusReady, StatusCancelled},
	StatusReady:          {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Normalize maps the legacy completed alias onto delivered.
func Normalize(s Status) Status {
	if s == StatusCompleted {
		return StatusDelivered
	}
	return s
}

func IsTerminal(s Status) bool {
	s = Normalize(s)
	return s == StatusDelivered || s == StatusCancelled
}

// DispatchEligible statuses trigger automatic courier matching.
func DispatchEligible(s Status) bool {
	return s == StatusAccepted || s == StatusReady
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type RefundStatus string

const (
	RefundNone    RefundStatus = "none"
	RefundPending RefundStatus = "pending"
)

type Addon struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type Item struct {
	ItemID    types.ID `json:"item_id"`
	Name      string   `json:"name"`
	Qty       int      `json:"qty"`
	UnitPrice int64    `json:"unit_price"`
	Addons    []Addon  `json:"addons,omitempty"`
}

func (i Item) LineTotal() int64 {
	unit := i.UnitPrice
	for _, a := range i.Addons {
		unit += a.Price
	}
	return unit * int64(i.Qty)
}

// Cancellation records who ended the order, why, and the refund disposition.
type Cancellation struct {
	Reason string       `json:"reason"`
	Actor  string       `json:"actor"`
	At     time.Time    `json:"at"`
	Refund RefundStatus `json:"refund"`
}

type Order struct {
	ID           types.ID      `json:"id"`
	CustomerID   types.ID      `json:"customer_id"`
	RestaurantID types.ID      `json:"restaurant_id"`
	CourierID    *types.ID     `json:"courier_id,omitempty"`
	Items        []Item        `json:"items"`
	Subtotal     int64         `json:"subtotal"`
	Discount     int64         `json:"discount"`
	DeliveryFee  int64         `json:"delivery_fee"`
	PackagingFee int64         `json:"packaging_fee"`
	PlatformFee  int64         `json:"platform_fee"`
	Tax          int64         `json:"tax"`
	Total        int64         `json:"total"`
	Currency     string        `json:"currency"`
	CouponCode   string        `json:"coupon_code,omitempty"`
	Status       Status        `json:"status"`
	Payment      PaymentStatus `json:"payment_status"`
	Cancellation *Cancellation `json:"cancellation,omitempty"`
	DropAddress  string        `json:"drop_address"`
	DropPoint    *types.Point  `json:"drop_point,omitempty"`
	PickupPoint  *types.Point  `json:"pickup_point,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// TotalsConsistent checks the money invariant:
// total = subtotal - discount + deliveryFee + packagingFee + platformFee + tax,
// with the discount inside [0, subtotal].
func (o *Order) TotalsConsistent() bool {
	if o.Discount < 0 || o.Discount > o.Subtotal {
		return false
	}
	return o.Total == o.Subtotal-o.Discount+o.DeliveryFee+o.PackagingFee+o.PlatformFee+o.Tax
}
