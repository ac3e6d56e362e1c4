// README: Memory bus fan-out and drop semantics.
package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"feastly/internal/types"
)

func TestMemoryBusFanOut(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	custCh, cancelCust := bus.Subscribe(CustomerChannel("c1"))
	defer cancelCust()
	restCh, cancelRest := bus.Subscribe(RestaurantChannel("r1"))
	defer cancelRest()

	bus.Publish(ctx, CustomerChannel("c1"), Event{Name: OrderStatusUpdated, Payload: "snap"})
	bus.Publish(ctx, RestaurantChannel("r1"), Event{Name: OrderStatusUpdated, Payload: "snap"})

	require.Equal(t, OrderStatusUpdated, (<-custCh).Name)
	require.Equal(t, OrderStatusUpdated, (<-restCh).Name)
	require.Empty(t, custCh, "customer room must not see restaurant events")
}

func TestMemoryBusDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	ch, cancel := bus.Subscribe(CouriersChannel)
	defer cancel()

	// Overfill the buffer; publishes past capacity must drop, not hang.
	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(ctx, CouriersChannel, Event{Name: NewDeliveryRequest, Payload: i})
	}
	require.Len(t, ch, subscriberBuffer)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	ch, cancel := bus.Subscribe(CourierChannel(types.ID("d1")))
	cancel()

	bus.Publish(ctx, CourierChannel(types.ID("d1")), Event{Name: NewDeliveryRequest})
	require.Empty(t, ch)
}
