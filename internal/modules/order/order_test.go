// README: Order service tests over an in-memory store with the same CAS semantics.
package order

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"feastly/internal/config"
	"feastly/internal/events"
	"feastly/internal/modules/catalog"
	"feastly/internal/modules/coupon"
	"feastly/internal/types"
)

// memOrderStore mirrors the Postgres store's conditional-update behavior.
type memOrderStore struct {
	mu     sync.Mutex
	orders map[types.ID]*Order
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[types.ID]*Order)}
}

func (m *memOrderStore) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrderStore) Get(_ context.Context, id types.ID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderStore) UpdateStatus(_ context.Context, id types.ID, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if to == StatusDelivered {
		o.Payment = PaymentPaid
	}
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *memOrderStore) Cancel(_ context.Context, id types.ID, from Status, c Cancellation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = StatusCancelled
	cc := c
	o.Cancellation = &cc
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *memOrderStore) AssignCourier(_ context.Context, orderID, courierID types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.CourierID != nil {
		return false, nil
	}
	switch o.Status {
	case StatusProcessing:
		o.Status = StatusAccepted
	case StatusAccepted, StatusReady:
	default:
		return false, nil
	}
	cid := courierID
	o.CourierID = &cid
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *memOrderStore) UnassignCourier(_ context.Context, orderID, courierID types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.CourierID == nil || *o.CourierID != courierID {
		return false, nil
	}
	o.CourierID = nil
	return true, nil
}

func (m *memOrderStore) CountByCustomer(_ context.Context, customerID types.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (m *memOrderStore) ListUnassigned(_ context.Context, limit int) ([]types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []types.ID
	for _, o := range m.orders {
		if o.CourierID == nil && DispatchEligible(o.Status) && len(ids) < limit {
			ids = append(ids, o.ID)
		}
	}
	return ids, nil
}

// stub collaborators -------------------------------------------------------

type stubCatalog struct {
	restaurants map[types.ID]*catalog.Restaurant
	items       map[types.ID]*catalog.MenuItem
}

func (s *stubCatalog) Restaurant(_ context.Context, id types.ID) (*catalog.Restaurant, error) {
	r, ok := s.restaurants[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return r, nil
}

func (s *stubCatalog) Item(_ context.Context, id types.ID) (*catalog.MenuItem, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return it, nil
}

type stubDiscounts struct {
	amount int64
	err    error
}

func (s stubDiscounts) Apply(context.Context, string, types.Money, types.ID, types.ID) (types.Money, error) {
	if s.err != nil {
		return types.Money{}, s.err
	}
	return types.Paise(s.amount), nil
}

type recordingStats struct {
	mu      sync.Mutex
	credits []types.ID
}

func (s *recordingStats) AddDelivery(_ context.Context, partnerID, _ types.ID, _ types.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits = append(s.credits, partnerID)
	return nil
}

var testFees = config.FeeConfig{
	DeliveryFee:    3000,
	PackagingFee:   1000,
	PlatformFee:    500,
	TaxPercent:     5.0,
	CourierPerDrop: 5000,
}

func openCatalog() *stubCatalog {
	return &stubCatalog{
		restaurants: map[types.ID]*catalog.Restaurant{
			"rest1": {
				ID: "rest1", Name: "Dosa Corner", Approved: true,
				OpensAt: 0, ClosesAt: 0, // 24h so tests pass at any wall-clock time
				Location: types.Point{Lat: 12.9716, Lng: 77.5946},
			},
		},
		items: map[types.ID]*catalog.MenuItem{
			"dosa": {ID: "dosa", RestaurantID: "rest1", Name: "Masala Dosa", Price: 12000, Available: true},
			"idli": {ID: "idli", RestaurantID: "rest1", Name: "Idli", Price: 6000, Available: true},
			"vada": {ID: "vada", RestaurantID: "rest1", Name: "Vada", Price: 5000, Available: false},
		},
	}
}

func newTestService(store OrderStore, cat *stubCatalog, discounts DiscountEngine, stats CourierStats, bus events.Publisher) *Service {
	if cat == nil {
		cat = openCatalog()
	}
	if discounts == nil {
		discounts = stubDiscounts{}
	}
	if bus == nil {
		bus = events.NewMemoryBus()
	}
	return NewService(store, cat, cat, discounts, stats, bus, testFees, zap.NewNop())
}

func createTestOrder(t *testing.T, svc *Service) *Order {
	t.Helper()
	o, err := svc.Create(context.Background(), CreateCommand{
		CustomerID:   "cust1",
		RestaurantID: "rest1",
		Items: []ItemSelection{
			{ItemID: "dosa", Qty: 2},
			{ItemID: "idli", Qty: 1, Addons: []Addon{{Name: "extra chutney", Price: 1000}}},
		},
		DropAddress: "42 MG Road, Bengaluru",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return o
}

// tests --------------------------------------------------------------------

func TestCreateComputesTotals(t *testing.T) {
	store := newMemOrderStore()
	svc := newTestService(store, nil, nil, nil, nil)
	o := createTestOrder(t, svc)

	// 2×12000 + (6000+1000) = 31000 subtotal; 5% tax = 1550
	if o.Subtotal != 31000 {
		t.Fatalf("subtotal = %d, want 31000", o.Subtotal)
	}
	if o.Tax != 1550 {
		t.Fatalf("tax = %d, want 1550", o.Tax)
	}
	if !o.TotalsConsistent() {
		t.Fatalf("totals inconsistent: %+v", o)
	}
	if o.Status != StatusProcessing {
		t.Fatalf("status = %s, want processing", o.Status)
	}
	if o.Payment != PaymentPending {
		t.Fatalf("payment = %s, want pending", o.Payment)
	}
}

func TestCreateWithDiscountKeepsInvariant(t *testing.T) {
	store := newMemOrderStore()
	svc := newTestService(store, nil, stubDiscounts{amount: 15000}, nil, nil)
	o, err := svc.Create(context.Background(), CreateCommand{
		CustomerID:   "cust1",
		RestaurantID: "rest1",
		Items:        []ItemSelection{{ItemID: "dosa", Qty: 2}, {ItemID: "idli", Qty: 1}},
		DropAddress:  "42 MG Road",
		CouponCode:   "welcome50",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.Discount != 15000 {
		t.Fatalf("discount = %d, want 15000", o.Discount)
	}
	if o.CouponCode != "WELCOME50" {
		t.Fatalf("coupon code not normalized: %q", o.CouponCode)
	}
	if !o.TotalsConsistent() {
		t.Fatalf("totals inconsistent: %+v", o)
	}
}

func TestCreateValidation(t *testing.T) {
	store := newMemOrderStore()
	cat := openCatalog()
	closed := *cat.restaurants["rest1"]
	closed.ID = "rest2"
	closed.OpensAt = 9 * 60
	closed.ClosesAt = 9*60 + 1 // open for one minute a day, effectively closed
	cat.restaurants["rest2"] = &closed
	svc := newTestService(store, cat, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCommand{CustomerID: "c", RestaurantID: "nope", Items: []ItemSelection{{ItemID: "dosa", Qty: 1}}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing restaurant: got %v, want ErrNotFound", err)
	}

	_, err = svc.Create(ctx, CreateCommand{CustomerID: "c", RestaurantID: "rest1", Items: []ItemSelection{{ItemID: "vada", Qty: 1}}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("unavailable item: got %v, want ErrValidation", err)
	}

	_, err = svc.Create(ctx, CreateCommand{CustomerID: "c", RestaurantID: "rest1", Items: []ItemSelection{{ItemID: "dosa", Qty: 0}}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("zero qty: got %v, want ErrValidation", err)
	}
}

func TestCreateMapsCouponErrors(t *testing.T) {
	store := newMemOrderStore()
	ctx := context.Background()

	svc := newTestService(store, nil, stubDiscounts{err: coupon.ErrNotFound}, nil, nil)
	_, err := svc.Create(ctx, CreateCommand{
		CustomerID: "c", RestaurantID: "rest1",
		Items: []ItemSelection{{ItemID: "dosa", Qty: 1}}, CouponCode: "NOPE",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown coupon: got %v, want ErrNotFound", err)
	}

	wrapped := errors.Join(coupon.ErrInvalid)
	svc = newTestService(store, nil, stubDiscounts{err: wrapped}, nil, nil)
	_, err = svc.Create(ctx, CreateCommand{
		CustomerID: "c", RestaurantID: "rest1",
		Items: []ItemSelection{{ItemID: "dosa", Qty: 1}}, CouponCode: "WELCOME50",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("invalid coupon: got %v, want ErrValidation", err)
	}
}

func TestTransitionChainAndIllegalJumps(t *testing.T) {
	store := newMemOrderStore()
	svc := newTestService(store, nil, nil, nil, nil)
	ctx := context.Background()
	o := createTestOrder(t, svc)
	system := Actor{Type: "system"}

	for _, target := range []Status{StatusAccepted, StatusReady, StatusOutForDelivery, StatusDelivered} {
		updated, err := svc.Transition(ctx, o.ID, system, target)
		if err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
		if updated.Status != target {
			t.Fatalf("status = %s, want %s", updated.Status, target)
		}
	}

	final, _ := svc.Get(ctx, o.ID)
	if final.Payment != PaymentPaid {
		t.Fatalf("delivered order must be paid, got %s", final.Payment)
	}

	o2 := createTestOrder(t, svc)
	if _, err := svc.Transition(ctx, o2.ID, system, StatusDelivered); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("processing->delivered: got %v, want ErrInvalidState", err)
	}
	if _, err := svc.Transition(ctx, o2.ID, system, StatusOutForDelivery); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("processing->out-for-delivery: got %v, want ErrInvalidState", err)
	}
}

func TestTransitionIdempotent(t *testing.T) {
	store := newMemOrderStore()
	stats := &recordingStats{}
	svc := newTestService(store, nil, nil, stats, nil)
	ctx := context.Background()
	system := Actor{Type: "system"}

	o := createTestOrder(t, svc)
	for _, target := range []Status{StatusAccepted, StatusReady} {
		if _, err := svc.Transition(ctx, o.ID, system, target); err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}
	// courier must be attached while the order is still dispatch-eligible
	if ok, err := store.AssignCourier(ctx, o.ID, "courier1"); err != nil || !ok {
		t.Fatalf("assign courier: ok=%v err=%v", ok, err)
	}
	if _, err := svc.Transition(ctx, o.ID, system, StatusOutForDelivery); err != nil {
		t.Fatalf("transition to %s: %v", StatusOutForDelivery, err)
	}

	first, err := svc.Transition(ctx, o.ID, system, StatusDelivered)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	second, err := svc.Transition(ctx, o.ID, system, StatusDelivered)
	if err != nil {
		t.Fatalf("repeat deliver must succeed: %v", err)
	}
	if first.Status != second.Status {
		t.Fatalf("observable state differs on repeat: %s vs %s", first.Status, second.Status)
	}
	if len(stats.credits) != 1 {
		t.Fatalf("courier credited %d times, want exactly 1", len(stats.credits))
	}

	// legacy alias: asking for completed on a delivered order is the same no-op
	if _, err := svc.Transition(ctx, o.ID, system, StatusCompleted); err != nil {
		t.Fatalf("completed alias: %v", err)
	}
}

func TestDeliveredWithoutCourierSkipsCredit(t *testing.T) {
	store := newMemOrderStore()
	stats := &recordingStats{}
	svc := newTestService(store, nil, nil, stats, nil)
	ctx := context.Background()
	system := Actor{Type: "system"}

	o := createTestOrder(t, svc)
	for _, target := range []Status{StatusAccepted, StatusReady, StatusOutForDelivery, StatusDelivered} {
		if _, err := svc.Transition(ctx, o.ID, system, target); err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}
	if len(stats.credits) != 0 {
		t.Fatalf("no courier assigned, but %d credits recorded", len(stats.credits))
	}
}

func TestCancelRules(t *testing.T) {
	store := newMemOrderStore()
	svc := newTestService(store, nil, nil, nil, nil)
	ctx := context.Background()
	system := Actor{Type: "system"}

	o := createTestOrder(t, svc)
	if _, err := svc.Cancel(ctx, o.ID, Actor{Type: "customer", ID: "mallory"}, "changed my mind"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign customer cancel: got %v, want ErrForbidden", err)
	}
	if _, err := svc.Cancel(ctx, o.ID, Actor{Type: "courier", ID: "cour9"}, "running late"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("courier cancel: got %v, want ErrForbidden", err)
	}
	if _, err := svc.Cancel(ctx, o.ID, Actor{Type: "restaurant", ID: "rest1"}, "out of stock"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("restaurant cancel: got %v, want ErrForbidden", err)
	}
	if untouched, _ := svc.Get(ctx, o.ID); untouched.Status != StatusProcessing {
		t.Fatalf("order changed by forbidden cancel: %s", untouched.Status)
	}

	cancelled, err := svc.Cancel(ctx, o.ID, Actor{Type: "customer", ID: "cust1"}, "changed my mind")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.Cancellation == nil || cancelled.Cancellation.Reason != "changed my mind" {
		t.Fatalf("cancellation metadata missing: %+v", cancelled.Cancellation)
	}
	if cancelled.Cancellation.Refund != RefundNone {
		t.Fatalf("unpaid order must not queue a refund, got %s", cancelled.Cancellation.Refund)
	}

	// out-for-delivery can no longer be cancelled
	o2 := createTestOrder(t, svc)
	for _, target := range []Status{StatusAccepted, StatusReady, StatusOutForDelivery} {
		if _, err := svc.Transition(ctx, o2.ID, system, target); err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}
	_, err = svc.Cancel(ctx, o2.ID, Actor{Type: "customer", ID: "cust1"}, "too late")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("late cancel: got %v, want ErrInvalidState", err)
	}
	unchanged, _ := svc.Get(ctx, o2.ID)
	if unchanged.Status != StatusOutForDelivery {
		t.Fatalf("order changed by failed cancel: %s", unchanged.Status)
	}
}

func TestCancelPaidOrderQueuesRefund(t *testing.T) {
	store := newMemOrderStore()
	svc := newTestService(store, nil, nil, nil, nil)
	ctx := context.Background()

	o := createTestOrder(t, svc)
	store.mu.Lock()
	store.orders[o.ID].Payment = PaymentPaid
	store.mu.Unlock()

	cancelled, err := svc.Cancel(ctx, o.ID, Actor{Type: "customer", ID: "cust1"}, "item missing")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Cancellation.Refund != RefundPending {
		t.Fatalf("paid cancel must queue a refund, got %s", cancelled.Cancellation.Refund)
	}
}

func TestEventsCarryFullSnapshot(t *testing.T) {
	store := newMemOrderStore()
	bus := events.NewMemoryBus()
	svc := newTestService(store, nil, nil, nil, bus)
	ctx := context.Background()

	custCh, cancelCust := bus.Subscribe(events.CustomerChannel("cust1"))
	defer cancelCust()
	restCh, cancelRest := bus.Subscribe(events.RestaurantChannel("rest1"))
	defer cancelRest()
	poolCh, cancelPool := bus.Subscribe(events.CouriersChannel)
	defer cancelPool()

	o := createTestOrder(t, svc)

	created := <-restCh
	if created.Name != events.OrderStatusUpdated {
		t.Fatalf("restaurant event = %s", created.Name)
	}
	if snap, ok := created.Payload.(*Order); !ok || snap.ID != o.ID || !snap.TotalsConsistent() {
		t.Fatalf("restaurant event must carry the full order snapshot")
	}

	req := <-poolCh
	if req.Name != events.NewDeliveryRequest {
		t.Fatalf("pool event = %s", req.Name)
	}
	payload, ok := req.Payload.(map[string]any)
	if !ok || payload["restaurant"] != "Dosa Corner" {
		t.Fatalf("pool payload missing restaurant name: %v", req.Payload)
	}
	if addr, _ := payload["drop_address"].(string); !strings.Contains(addr, "MG Road") {
		t.Fatalf("pool payload missing drop address: %v", req.Payload)
	}

	if _, err := svc.Transition(ctx, o.ID, Actor{Type: "system"}, StatusAccepted); err != nil {
		t.Fatal(err)
	}
	statusEvent := <-custCh
	if snap, ok := statusEvent.Payload.(*Order); !ok || snap.Status != StatusAccepted {
		t.Fatalf("customer must receive the updated snapshot")
	}
}
