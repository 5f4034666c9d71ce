package booking

import (
	"time"

	"petagenda/internal/model"
)

// FirstAvailable returns the first roster member who passes Validate for start.
// If nobody does, the first member's rejection is returned. An empty roster
// yields ErrNoQualifiedStaff.
func FirstAvailable(roster []model.User, svc *model.Service, start time.Time, occ Occupancy) (*model.User, Derived, error) {
	if len(roster) == 0 {
		return nil, Derived{}, ErrNoQualifiedStaff
	}

	var firstErr error
	for i := range roster {
		d, err := Validate(Request{Staff: &roster[i], Service: svc, Start: start}, occ)
		if err == nil {
			return &roster[i], d, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, Derived{}, firstErr
}
