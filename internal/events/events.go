// README: Real-time event bus; fan-out of order snapshots to customer, restaurant, and courier rooms.
package events

import (
	"context"
	"fmt"

	"feastly/internal/types"
)

// Event names carried on the wire.
const (
	OrderStatusUpdated    = "order-status-updated"
	NewDeliveryRequest    = "new-delivery-request"
	DriverLocationUpdated = "driver-location-updated"
)

// CouriersChannel is the shared pool every online courier listens on.
const CouriersChannel = "couriers"

type Event struct {
	Name    string `json:"name"`
	Payload any    `json:"payload"`
}

// Publisher delivers events fire-and-forget: at-most-once, no retry, no persistence.
// A disconnected client misses the event and reconciles via a pull fetch.
type Publisher interface {
	Publish(ctx context.Context, channel string, e Event)
}

func CustomerChannel(id types.ID) string {
	return fmt.Sprintf("customer:%s", string(id))
}

func RestaurantChannel(id types.ID) string {
	return fmt.Sprintf("restaurant:%s", string(id))
}

func CourierChannel(id types.ID) string {
	return fmt.Sprintf("courier:%s", string(id))
}
