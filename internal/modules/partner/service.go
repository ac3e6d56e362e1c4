// README: Partner service: profile upsert, availability, high-frequency location updates.
package partner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"feastly/internal/events"
	"feastly/internal/types"
)

// PartnerStore is the persistence surface the service needs; the Postgres/Redis
// Store implements it and tests substitute an in-memory one.
type PartnerStore interface {
	Create(ctx context.Context, p *DeliveryPartner) error
	Get(ctx context.Context, id types.ID) (*DeliveryPartner, error)
	GetByAccount(ctx context.Context, accountID types.ID) (*DeliveryPartner, error)
	SetAvailability(ctx context.Context, id types.ID, available bool) (bool, error)
	UpdateLocation(ctx context.Context, id types.ID, pos types.Point, at time.Time) error
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]Candidate, error)
	Reserve(ctx context.Context, partnerID, orderID types.ID) (bool, error)
	Release(ctx context.Context, partnerID, orderID types.ID) (bool, error)
	AddDelivery(ctx context.Context, partnerID types.ID, earnings types.Money) error
}

// CustomerResolver maps an in-flight order to the customer tracking it, so
// location pings can be forwarded to the right room.
type CustomerResolver interface {
	CustomerForOrder(ctx context.Context, orderID types.ID) (types.ID, bool)
}

type Service struct {
	store    PartnerStore
	bus      events.Publisher
	resolver CustomerResolver
	log      *zap.Logger
}

func NewService(store PartnerStore, bus events.Publisher, log *zap.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

// SetCustomerResolver is wired after construction because the order service
// sits above this module in the dependency order.
func (s *Service) SetCustomerResolver(r CustomerResolver) {
	s.resolver = r
}

// EnsureProfile returns the partner for the account, creating one with the
// default policy if none exists. The defaults (approved, available, origin
// location) mirror the lazy self-healing behavior this replaces; a real
// onboarding flow would start partners at pending.
func (s *Service) EnsureProfile(ctx context.Context, accountID types.ID) (*DeliveryPartner, error) {
	p, err := s.store.GetByAccount(ctx, accountID)
	if err == nil {
		return p, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	now := time.Now()
	p = &DeliveryPartner{
		ID:             types.ID(uuid.NewString()),
		AccountID:      accountID,
		ApprovalStatus: ApprovalApproved,
		IsAvailable:    true,
		LocationAt:     now,
		Earnings:       types.Paise(0),
		CreatedAt:      now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	// a concurrent first access may have won the upsert; re-read either way
	return s.store.GetByAccount(ctx, accountID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*DeliveryPartner, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) SetAvailability(ctx context.Context, id types.ID, available bool) (*DeliveryPartner, error) {
	ok, err := s.store.SetAvailability(ctx, id, available)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := s.store.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return s.store.Get(ctx, id)
}

// UpdateLocation records a courier ping (last-write-wins) and forwards it to
// the customer tracking the courier's current order, if any.
func (s *Service) UpdateLocation(ctx context.Context, id types.ID, pos types.Point) error {
	if err := s.store.UpdateLocation(ctx, id, pos, time.Now()); err != nil {
		return err
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.CurrentOrderID == nil || s.resolver == nil {
		return nil
	}
	customerID, ok := s.resolver.CustomerForOrder(ctx, *p.CurrentOrderID)
	if !ok {
		return nil
	}
	s.bus.Publish(ctx, events.CustomerChannel(customerID), events.Event{
		Name: events.DriverLocationUpdated,
		Payload: map[string]any{
			"order_id": *p.CurrentOrderID,
			"location": pos,
		},
	})
	return nil
}

func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]Candidate, error) {
	return s.store.Nearby(ctx, p, radiusKm)
}

func (s *Service) Reserve(ctx context.Context, partnerID, orderID types.ID) (bool, error) {
	return s.store.Reserve(ctx, partnerID, orderID)
}

func (s *Service) Release(ctx context.Context, partnerID, orderID types.ID) (bool, error) {
	return s.store.Release(ctx, partnerID, orderID)
}

// AddDelivery credits a completed drop to the partner's lifetime stats and
// frees it for the next order.
func (s *Service) AddDelivery(ctx context.Context, partnerID, orderID types.ID, earnings types.Money) error {
	if err := s.store.AddDelivery(ctx, partnerID, earnings); err != nil {
		return err
	}
	released, err := s.store.Release(ctx, partnerID, orderID)
	if err != nil {
		return err
	}
	if !released {
		s.log.Warn("partner not holding order at delivery",
			zap.String("partner_id", string(partnerID)),
			zap.String("order_id", string(orderID)),
		)
	}
	return nil
}
