// README: Dispatch collaborator interfaces and assignment payloads.
package dispatch

import (
	"context"

	"feastly/internal/modules/catalog"
	"feastly/internal/modules/order"
	"feastly/internal/modules/partner"
	"feastly/internal/types"
)

// OrderDirectory is the slice of the order store dispatch mutates: the courier
// reference, via conditional writes only.
type OrderDirectory interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	AssignCourier(ctx context.Context, orderID, courierID types.ID) (bool, error)
	UnassignCourier(ctx context.Context, orderID, courierID types.ID) (bool, error)
	ListUnassigned(ctx context.Context, limit int) ([]types.ID, error)
}

// PartnerDirectory is the availability tracker surface.
type PartnerDirectory interface {
	Get(ctx context.Context, id types.ID) (*partner.DeliveryPartner, error)
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]partner.Candidate, error)
	Reserve(ctx context.Context, partnerID, orderID types.ID) (bool, error)
	Release(ctx context.Context, partnerID, orderID types.ID) (bool, error)
}

type RestaurantSource interface {
	Restaurant(ctx context.Context, id types.ID) (*catalog.Restaurant, error)
}

// Geocoder resolves a free-text drop address; optional, assignment events
// simply omit the drop point without one.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

// Assignment is the payload sent to the winning courier's private channel.
type Assignment struct {
	OrderID  types.ID     `json:"order_id"`
	Pickup   types.Point  `json:"pickup"`
	Drop     *types.Point `json:"drop,omitempty"`
	Earnings types.Money  `json:"earnings"`
}
