// README: Delivery partner aggregate and approval states.
package partner

import (
	"errors"
	"time"

	"feastly/internal/types"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// DeliveryPartner is a courier profile. IsAvailable and CurrentOrderID are
// mutually exclusive once the matcher has run: an available partner holds no
// order and a partner holding an order is unavailable.
type DeliveryPartner struct {
	ID             types.ID
	AccountID      types.ID
	ApprovalStatus ApprovalStatus
	IsAvailable    bool
	CurrentOrderID *types.ID
	Location       types.Point
	LocationAt     time.Time
	Deliveries     int64
	Earnings       types.Money
	CreatedAt      time.Time
}

// Candidate is a dispatch-eligible partner with its distance to a pickup point.
type Candidate struct {
	ID         types.ID
	Position   types.Point
	DistanceKm float64
}

func (p *DeliveryPartner) Eligible() bool {
	return p.ApprovalStatus == ApprovalApproved && p.IsAvailable && p.CurrentOrderID == nil
}

var (
	ErrNotFound = errors.New("partner not found")
	ErrConflict = errors.New("partner state conflict")
)
