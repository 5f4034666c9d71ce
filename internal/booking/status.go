package booking

import (
	"fmt"
	"slices"
	"time"

	"petagenda/internal/model"
)

// transitions lists the statuses reachable from each status. Cancelled and
// completed bookings are terminal and stay in storage for audit.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCancelled, model.StatusCompleted},
	model.StatusCancelled: {},
	model.StatusCompleted: {},
}

// CanTransition checks if moving from one status to another is allowed.
func CanTransition(from, to model.Status) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Transition moves b to status to, or returns ErrInvalidTransition.
func Transition(b *model.Booking, to model.Status, now time.Time) error {
	if !CanTransition(b.Status, to) {
		return fmt.Errorf("booking %d %s -> %s: %w", b.ID, b.Status, to, ErrInvalidTransition)
	}
	b.Status = to
	b.UpdatedAt = now
	return nil
}
