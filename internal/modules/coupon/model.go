// README: Coupon rule definition.
package coupon

import (
	"errors"
	"strings"
	"time"

	"feastly/internal/types"
)

type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFlat        DiscountType = "flat"
	DiscountFreeDeliver DiscountType = "free_delivery"
)

// Coupon is an admin-managed discount rule. Codes are stored normalized
// uppercase; UsageCount only ever grows.
type Coupon struct {
	Code          string
	Type          DiscountType
	Value         int64 // percent for percentage, paise for flat
	MaxDiscount   *int64
	MinOrderValue int64
	RestaurantIDs []types.ID // empty = valid at every restaurant
	FirstTimeOnly bool
	Active        bool
	ValidFrom     time.Time
	ValidTo       time.Time
	UsageLimit    *int64
	UsageCount    int64
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c *Coupon) AllowsRestaurant(id types.ID) bool {
	if len(c.RestaurantIDs) == 0 {
		return true
	}
	for _, r := range c.RestaurantIDs {
		if r == id {
			return true
		}
	}
	return false
}

var (
	ErrNotFound = errors.New("coupon not found")
	ErrInvalid  = errors.New("coupon not valid")
)
