// README: Dispatch matcher: nearest-courier search and exactly-once assignment.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"feastly/internal/config"
	"feastly/internal/events"
	"feastly/internal/modules/order"
	"feastly/internal/modules/partner"
	"feastly/internal/types"
)

const sweepBatchSize = 50

type Service struct {
	orders      OrderDirectory
	partners    PartnerDirectory
	restaurants RestaurantSource
	geocoder    Geocoder
	bus         events.Publisher
	cfg         config.DispatchConfig
	earnings    int64 // per-delivery courier pay, paise
	log         *zap.Logger
}

func NewService(
	orders OrderDirectory,
	partners PartnerDirectory,
	restaurants RestaurantSource,
	geocoder Geocoder,
	bus events.Publisher,
	cfg config.DispatchConfig,
	earnings int64,
	log *zap.Logger,
) *Service {
	return &Service{
		orders:      orders,
		partners:    partners,
		restaurants: restaurants,
		geocoder:    geocoder,
		bus:         bus,
		cfg:         cfg,
		earnings:    earnings,
		log:         log,
	}
}

// FindNearest returns the closest dispatch-eligible partner within radiusKm
// of the pickup point, or false when nobody qualifies.
func (s *Service) FindNearest(ctx context.Context, pickup types.Point, radiusKm float64) (types.ID, bool, error) {
	candidates, err := s.partners.Nearby(ctx, pickup, radiusKm)
	if err != nil {
		return "", false, err
	}
	if len(candidates) == 0 {
		return "", false, nil
	}
	return candidates[0].ID, true, nil
}

// AssignOrderToPartner performs the two conditional writes of an assignment:
// courier onto the order (only if unset) and the order onto the partner (only
// if free). Either write losing its race means some other trigger won; the
// caller gets false and nothing is left half-set.
func (s *Service) AssignOrderToPartner(ctx context.Context, orderID, partnerID types.ID) bool {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		s.log.Warn("assign: order lookup failed", zap.String("order_id", string(orderID)), zap.Error(err))
		return false
	}
	p, err := s.partners.Get(ctx, partnerID)
	if err != nil {
		s.log.Warn("assign: partner lookup failed", zap.String("partner_id", string(partnerID)), zap.Error(err))
		return false
	}

	ok, err := s.orders.AssignCourier(ctx, o.ID, p.ID)
	if err != nil {
		s.log.Error("assign: order write failed", zap.String("order_id", string(o.ID)), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	reserved, err := s.partners.Reserve(ctx, p.ID, o.ID)
	if err == nil && !reserved {
		err = fmt.Errorf("partner no longer available")
	}
	if err != nil {
		// undo our half of the assignment; the order stays validly unassigned
		if _, uerr := s.orders.UnassignCourier(ctx, o.ID, p.ID); uerr != nil {
			s.log.Error("assign: rollback failed", zap.String("order_id", string(o.ID)), zap.Error(uerr))
		}
		s.log.Warn("assign: partner reservation lost",
			zap.String("order_id", string(o.ID)),
			zap.String("partner_id", string(p.ID)),
			zap.Error(err),
		)
		return false
	}

	assigned, err := s.orders.Get(ctx, o.ID)
	if err != nil {
		assigned = o
	}
	s.publishAssignment(ctx, assigned, p.ID)
	return true
}

// AcceptOrder is courier self-assignment: the same conditional writes as
// automatic dispatch, with the loser told explicitly it lost. Couriers that
// are not approved are refused outright.
func (s *Service) AcceptOrder(ctx context.Context, orderID, courierID types.ID) (*order.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	p, err := s.partners.Get(ctx, courierID)
	if err != nil {
		return nil, err
	}
	if p.ApprovalStatus != partner.ApprovalApproved {
		return nil, fmt.Errorf("%w: courier not approved for deliveries", order.ErrForbidden)
	}
	if o.CourierID != nil {
		return nil, fmt.Errorf("%w: order already assigned", order.ErrConflict)
	}
	if !s.AssignOrderToPartner(ctx, orderID, courierID) {
		return nil, fmt.Errorf("%w: order already assigned", order.ErrConflict)
	}
	return s.orders.Get(ctx, orderID)
}

// AutoAssignOrder is the orchestration entry point fired by dispatch-eligible
// transitions and the sweep. Finding no courier is not an error; the order
// stays unassigned and is retried later.
func (s *Service) AutoAssignOrder(ctx context.Context, orderID types.ID) error {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.CourierID != nil {
		return nil
	}
	if order.IsTerminal(o.Status) {
		return nil
	}

	pickup, ok := s.pickupPoint(ctx, o)
	if !ok {
		s.log.Warn("auto-assign: no pickup point", zap.String("order_id", string(o.ID)))
		return nil
	}

	partnerID, found, err := s.FindNearest(ctx, pickup, s.cfg.RadiusKm)
	if err != nil {
		return err
	}
	if !found {
		s.log.Info("auto-assign: no courier in range",
			zap.String("order_id", string(o.ID)),
			zap.Float64("radius_km", s.cfg.RadiusKm),
		)
		return nil
	}
	if !s.AssignOrderToPartner(ctx, o.ID, partnerID) {
		s.log.Info("auto-assign: lost assignment race", zap.String("order_id", string(o.ID)))
	}
	return nil
}

// RunRetrySweep periodically re-dispatches unassigned dispatch-eligible orders.
func (s *Service) RunRetrySweep(ctx context.Context) {
	tick := time.Duration(s.cfg.SweepSeconds) * time.Second
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := s.orders.ListUnassigned(ctx, sweepBatchSize)
			if err != nil {
				s.log.Error("sweep: list unassigned", zap.Error(err))
				continue
			}
			for _, id := range ids {
				if err := s.AutoAssignOrder(ctx, id); err != nil {
					s.log.Warn("sweep: auto-assign", zap.String("order_id", string(id)), zap.Error(err))
				}
			}
		}
	}
}

func (s *Service) pickupPoint(ctx context.Context, o *order.Order) (types.Point, bool) {
	r, err := s.restaurants.Restaurant(ctx, o.RestaurantID)
	if err == nil {
		return r.Location, true
	}
	if o.PickupPoint != nil {
		return *o.PickupPoint, true
	}
	return types.Point{}, false
}

func (s *Service) publishAssignment(ctx context.Context, o *order.Order, partnerID types.ID) {
	a := Assignment{
		OrderID:  o.ID,
		Earnings: types.Paise(s.earnings),
	}
	if o.PickupPoint != nil {
		a.Pickup = *o.PickupPoint
	}
	if o.DropPoint != nil {
		a.Drop = o.DropPoint
	} else if s.geocoder != nil && o.DropAddress != "" {
		if pt, err := s.geocoder.Geocode(ctx, o.DropAddress); err == nil {
			a.Drop = &pt
		}
	}
	s.bus.Publish(ctx, events.CourierChannel(partnerID), events.Event{
		Name:    events.NewDeliveryRequest,
		Payload: a,
	})
	e := events.Event{Name: events.OrderStatusUpdated, Payload: o}
	s.bus.Publish(ctx, events.CustomerChannel(o.CustomerID), e)
	s.bus.Publish(ctx, events.RestaurantChannel(o.RestaurantID), e)
}
