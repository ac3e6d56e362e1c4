// README: Read models for the restaurant/menu collaborators; management lives elsewhere.
package catalog

import (
	"errors"
	"time"

	"feastly/internal/types"
)

// Restaurant carries only what order intake and dispatch need: approval,
// operating hours, and the pickup point.
type Restaurant struct {
	ID       types.ID
	Name     string
	Approved bool
	// Operating window as minutes-of-day; a window wrapping midnight has
	// OpensAt > ClosesAt.
	OpensAt  int
	ClosesAt int
	Location types.Point
}

// OpenAt reports whether the restaurant accepts orders at t (local clock).
func (r *Restaurant) OpenAt(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	if r.OpensAt == r.ClosesAt {
		return true // 24h
	}
	if r.OpensAt < r.ClosesAt {
		return minute >= r.OpensAt && minute < r.ClosesAt
	}
	return minute >= r.OpensAt || minute < r.ClosesAt
}

type MenuItem struct {
	ID           types.ID
	RestaurantID types.ID
	Name         string
	Price        int64
	Available    bool
}

var ErrNotFound = errors.New("catalog entry not found")
