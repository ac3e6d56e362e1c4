// README: Discount engine: validate a coupon against an order and consume one usage.
package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"feastly/internal/types"
)

// CouponStore is the persistence surface of the engine.
type CouponStore interface {
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	TryConsume(ctx context.Context, code string) (bool, error)
}

// OrderHistory answers how many orders a customer has placed before, for the
// first-time-only restriction. Backed by the order store.
type OrderHistory interface {
	CountByCustomer(ctx context.Context, customerID types.ID) (int, error)
}

type Service struct {
	store       CouponStore
	history     OrderHistory
	deliveryFee int64 // the platform's fixed delivery fee, used by free_delivery coupons
}

func NewService(store CouponStore, history OrderHistory, deliveryFee int64) *Service {
	return &Service{store: store, history: history, deliveryFee: deliveryFee}
}

// Apply validates the code against the order being created and returns the
// discount amount. On success one usage is consumed; the consume happens
// before the order row is written, so a crash in between wastes a usage slot
// but the cap is never exceeded.
func (s *Service) Apply(ctx context.Context, code string, subtotal types.Money, restaurantID, customerID types.ID) (types.Money, error) {
	c, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return types.Money{}, err
	}
	if !c.Active {
		return types.Money{}, fmt.Errorf("%w: coupon is inactive", ErrInvalid)
	}
	now := time.Now()
	if now.Before(c.ValidFrom) || now.After(c.ValidTo) {
		return types.Money{}, fmt.Errorf("%w: coupon expired or not yet active", ErrInvalid)
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return types.Money{}, fmt.Errorf("%w: usage limit reached", ErrInvalid)
	}
	if subtotal.Amount < c.MinOrderValue {
		return types.Money{}, fmt.Errorf("%w: minimum order value ₹%d required", ErrInvalid, c.MinOrderValue/100)
	}
	if !c.AllowsRestaurant(restaurantID) {
		return types.Money{}, fmt.Errorf("%w: not valid at this restaurant", ErrInvalid)
	}
	if c.FirstTimeOnly {
		n, err := s.history.CountByCustomer(ctx, customerID)
		if err != nil {
			return types.Money{}, err
		}
		if n > 0 {
			return types.Money{}, fmt.Errorf("%w: first-time users only", ErrInvalid)
		}
	}

	amount := s.discount(c, subtotal.Amount)

	// cap-check-and-increment in one conditional write; the read above is advisory
	ok, err := s.store.TryConsume(ctx, c.Code)
	if err != nil {
		return types.Money{}, err
	}
	if !ok {
		return types.Money{}, fmt.Errorf("%w: usage limit reached", ErrInvalid)
	}
	return types.Money{Amount: amount, Currency: subtotal.Currency}, nil
}

func (s *Service) discount(c *Coupon, subtotal int64) int64 {
	var amount int64
	switch c.Type {
	case DiscountPercentage:
		amount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(c.Value)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		if c.MaxDiscount != nil && amount > *c.MaxDiscount {
			amount = *c.MaxDiscount
		}
	case DiscountFlat:
		amount = c.Value
	case DiscountFreeDeliver:
		amount = s.deliveryFee
	}
	if amount < 0 {
		amount = 0
	}
	if amount > subtotal {
		amount = subtotal
	}
	return amount
}
