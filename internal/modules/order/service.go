// README: Order service implements intake, the state machine, and terminal side effects.
package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feastly/internal/config"
	"feastly/internal/events"
	"feastly/internal/modules/catalog"
	"feastly/internal/modules/coupon"
	"feastly/internal/types"
)

var (
	ErrNotFound     = errors.New("order not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("order state conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrValidation   = errors.New("validation failed")
)

// OrderStore is what the service needs from persistence; the Postgres Store
// implements it, tests use an in-memory one with the same CAS semantics.
type OrderStore interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status) (bool, error)
	Cancel(ctx context.Context, id types.ID, from Status, c Cancellation) (bool, error)
	CountByCustomer(ctx context.Context, customerID types.ID) (int, error)
}

// RestaurantSource and MenuSource are the catalog collaborators.
type RestaurantSource interface {
	Restaurant(ctx context.Context, id types.ID) (*catalog.Restaurant, error)
}

type MenuSource interface {
	Item(ctx context.Context, id types.ID) (*catalog.MenuItem, error)
}

// DiscountEngine applies a coupon code to a subtotal at order creation.
type DiscountEngine interface {
	Apply(ctx context.Context, code string, subtotal types.Money, restaurantID, customerID types.ID) (types.Money, error)
}

// CourierStats credits a completed delivery to the assigned partner.
type CourierStats interface {
	AddDelivery(ctx context.Context, partnerID, orderID types.ID, earnings types.Money) error
}

// Dispatcher is the courier-matching trigger fired on dispatch-eligible
// transitions. Best effort: its errors never fail the transition.
type Dispatcher interface {
	AutoAssignOrder(ctx context.Context, orderID types.ID) error
}

type Actor struct {
	Type string // "customer", "restaurant", "courier", "system"
	ID   types.ID
}

type Service struct {
	store       OrderStore
	restaurants RestaurantSource
	menu        MenuSource
	discounts   DiscountEngine
	stats       CourierStats
	dispatcher  Dispatcher
	bus         events.Publisher
	fees        config.FeeConfig
	log         *zap.Logger
}

func NewService(
	store OrderStore,
	restaurants RestaurantSource,
	menu MenuSource,
	discounts DiscountEngine,
	stats CourierStats,
	bus events.Publisher,
	fees config.FeeConfig,
	log *zap.Logger,
) *Service {
	return &Service{
		store:       store,
		restaurants: restaurants,
		menu:        menu,
		discounts:   discounts,
		stats:       stats,
		bus:         bus,
		fees:        fees,
		log:         log,
	}
}

// SetDispatcher is wired after construction; the dispatcher sits above this
// module and consumes it.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

type ItemSelection struct {
	ItemID types.ID
	Qty    int
	Addons []Addon
}

type CreateCommand struct {
	CustomerID   types.ID
	RestaurantID types.ID
	Items        []ItemSelection
	DropAddress  string
	CouponCode   string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.CustomerID == "" || cmd.RestaurantID == "" || len(cmd.Items) == 0 {
		return nil, fmt.Errorf("%w: customer, restaurant, and items are required", ErrValidation)
	}

	r, err := s.restaurants.Restaurant(ctx, cmd.RestaurantID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("%w: restaurant %s", ErrNotFound, cmd.RestaurantID)
	}
	if err != nil {
		return nil, err
	}
	if !r.Approved {
		return nil, fmt.Errorf("%w: restaurant is not accepting orders", ErrValidation)
	}
	if !r.OpenAt(time.Now()) {
		return nil, fmt.Errorf("%w: restaurant is closed right now", ErrValidation)
	}

	items := make([]Item, 0, len(cmd.Items))
	var subtotal int64
	for _, sel := range cmd.Items {
		if sel.Qty < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
		}
		mi, err := s.menu.Item(ctx, sel.ItemID)
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("%w: item %s", ErrNotFound, sel.ItemID)
		}
		if err != nil {
			return nil, err
		}
		if mi.RestaurantID != r.ID {
			return nil, fmt.Errorf("%w: item %s does not belong to this restaurant", ErrValidation, sel.ItemID)
		}
		if !mi.Available {
			return nil, fmt.Errorf("%w: item %q is unavailable", ErrValidation, mi.Name)
		}
		for _, a := range sel.Addons {
			if a.Price < 0 {
				return nil, fmt.Errorf("%w: addon price must not be negative", ErrValidation)
			}
		}
		item := Item{
			ItemID:    mi.ID,
			Name:      mi.Name,
			Qty:       sel.Qty,
			UnitPrice: mi.Price,
			Addons:    sel.Addons,
		}
		items = append(items, item)
		subtotal += item.LineTotal()
	}

	var discount int64
	if cmd.CouponCode != "" {
		d, err := s.discounts.Apply(ctx, cmd.CouponCode, types.Paise(subtotal), r.ID, cmd.CustomerID)
		if errors.Is(err, coupon.ErrNotFound) {
			return nil, fmt.Errorf("%w: coupon %s", ErrNotFound, coupon.NormalizeCode(cmd.CouponCode))
		}
		if errors.Is(err, coupon.ErrInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if err != nil {
			return nil, err
		}
		discount = d.Amount
	}

	tax := int64(math.Round(float64(subtotal) * s.fees.TaxPercent / 100))
	now := time.Now()
	pickup := r.Location
	o := &Order{
		ID:           types.ID(uuid.NewString()),
		CustomerID:   cmd.CustomerID,
		RestaurantID: r.ID,
		Items:        items,
		Subtotal:     subtotal,
		Discount:     discount,
		DeliveryFee:  s.fees.DeliveryFee,
		PackagingFee: s.fees.PackagingFee,
		PlatformFee:  s.fees.PlatformFee,
		Tax:          tax,
		Total:        subtotal - discount + s.fees.DeliveryFee + s.fees.PackagingFee + s.fees.PlatformFee + tax,
		Currency:     types.DefaultCurrency,
		CouponCode:   coupon.NormalizeCode(cmd.CouponCode),
		Status:       StatusProcessing,
		Payment:      PaymentPending,
		DropAddress:  cmd.DropAddress,
		PickupPoint:  &pickup,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.RestaurantChannel(o.RestaurantID), events.Event{
		Name:    events.OrderStatusUpdated,
		Payload: o,
	})
	s.bus.Publish(ctx, events.CouriersChannel, events.Event{
		Name: events.NewDeliveryRequest,
		Payload: map[string]any{
			"order_id":     o.ID,
			"restaurant":   r.Name,
			"drop_address": o.DropAddress,
			"total":        o.Total,
		},
	})
	return o, nil
}

// Transition advances the order along the legal chain. Re-requesting the
// status the order is already in is a no-op success: no second write, no
// second side effect, no second event.
func (s *Service) Transition(ctx context.Context, orderID types.ID, actor Actor, target Status) (*Order, error) {
	target = Normalize(target)
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if Normalize(o.Status) == target {
		return o, nil
	}
	if target == StatusCancelled {
		return s.Cancel(ctx, orderID, actor, "")
	}
	if !CanTransition(Normalize(o.Status), target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidState, o.Status, target)
	}

	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		// lost a race; an identical concurrent call is still a success
		cur, err := s.store.Get(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if Normalize(cur.Status) == target {
			return cur, nil
		}
		return nil, ErrConflict
	}

	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	if target == StatusDelivered {
		s.creditCourier(ctx, updated)
	}
	if DispatchEligible(target) && updated.CourierID == nil {
		s.fireDispatch(updated.ID)
	}
	s.publishStatus(ctx, updated)
	return updated, nil
}

// Cancel terminally ends the order. Only its customer or the platform may
// cancel, and only before the kitchen hands it off.
func (s *Service) Cancel(ctx context.Context, orderID types.ID, actor Actor, reason string) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch actor.Type {
	case "customer":
		if actor.ID != o.CustomerID {
			return nil, fmt.Errorf("%w: not your order", ErrForbidden)
		}
	case "system":
	default:
		return nil, fmt.Errorf("%w: only the order's customer may cancel", ErrForbidden)
	}
	if o.Status == StatusCancelled {
		return o, nil
	}
	if o.Status != StatusProcessing && o.Status != StatusAccepted {
		return nil, fmt.Errorf("%w: cannot cancel a %s order", ErrInvalidState, o.Status)
	}

	c := Cancellation{
		Reason: reason,
		Actor:  actor.Type,
		At:     time.Now(),
		Refund: RefundNone,
	}
	if o.Payment == PaymentPaid {
		// refund execution is handled by the payments collaborator
		c.Refund = RefundPending
	}
	ok, err := s.store.Cancel(ctx, o.ID, o.Status, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	updated, err := s.store.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.publishStatus(ctx, updated)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

// CountByCustomer implements the coupon engine's order-history collaborator.
func (s *Service) CountByCustomer(ctx context.Context, customerID types.ID) (int, error) {
	return s.store.CountByCustomer(ctx, customerID)
}

// CustomerForOrder implements the partner tracker's resolver for forwarding
// courier location pings.
func (s *Service) CustomerForOrder(ctx context.Context, orderID types.ID) (types.ID, bool) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return "", false
	}
	return o.CustomerID, true
}

// creditCourier runs only in the call that won the delivered CAS, so the stat
// bump happens at most once per order. An order delivered with no courier
// assigned is legal (manual handoff / collect at counter) and skips it.
func (s *Service) creditCourier(ctx context.Context, o *Order) {
	if o.CourierID == nil || s.stats == nil {
		return
	}
	err := s.stats.AddDelivery(ctx, *o.CourierID, o.ID, types.Paise(s.fees.CourierPerDrop))
	if err != nil {
		s.log.Error("credit courier delivery",
			zap.String("order_id", string(o.ID)),
			zap.String("courier_id", string(*o.CourierID)),
			zap.Error(err),
		)
	}
}

// fireDispatch triggers matching off the request path. Failure to find or
// assign a courier is retried by later transitions or the sweep.
func (s *Service) fireDispatch(orderID types.ID) {
	d := s.dispatcher
	if d == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := d.AutoAssignOrder(ctx, orderID); err != nil {
			s.log.Warn("auto-assign failed", zap.String("order_id", string(orderID)), zap.Error(err))
		}
	}()
}

func (s *Service) publishStatus(ctx context.Context, o *Order) {
	e := events.Event{Name: events.OrderStatusUpdated, Payload: o}
	s.bus.Publish(ctx, events.CustomerChannel(o.CustomerID), e)
	s.bus.Publish(ctx, events.RestaurantChannel(o.RestaurantID), e)
}
