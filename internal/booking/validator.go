// Package booking decides whether a staff member can take a proposed booking.
package booking

import (
	"fmt"
	"time"

	"petagenda/internal/interval"
	"petagenda/internal/model"
)

// Request is a proposed booking to check.
type Request struct {
	Staff   *model.User
	Service *model.Service
	Start   time.Time
	// ExcludeBookingID skips the booking being updated. Zero excludes nothing.
	ExcludeBookingID int64
}

// Occupancy is what already takes the staff member's time. It may contain
// entries for other staff members or inactive statuses; Validate filters them.
type Occupancy struct {
	Bookings []model.Booking
	Blocks   []model.TimeBlock
}

// Add appends a booking, used to validate a series against itself.
func (o *Occupancy) Add(b model.Booking) {
	o.Bookings = append(o.Bookings, b)
}

// Derived holds the fields computed for an accepted request.
type Derived struct {
	EndTime    time.Time
	PriceCents int64
}

// EndTime is start plus service duration plus buffer. Every end time in the
// system is derived here.
func EndTime(start time.Time, svc *model.Service) time.Time {
	return start.Add(svc.Occupancy())
}

// Validate runs the checks in order and stops at the first failure:
// qualification, schedule for the weekday, fit within a sub-window, and
// overlap with the staff member's active bookings and time blocks.
// It has no side effects.
func Validate(req Request, occ Occupancy) (Derived, error) {
	if req.Staff == nil || req.Service == nil {
		return Derived{}, fmt.Errorf("validate booking: staff and service are required")
	}

	end := EndTime(req.Start, req.Service)
	reject := func(reason error, conflict string) (Derived, error) {
		return Derived{}, &RejectionError{
			Reason:    reason,
			StaffID:   req.Staff.ID,
			StaffName: req.Staff.DisplayName(),
			ServiceID: req.Service.ID,
			Start:     req.Start,
			End:       end,
			Conflict:  conflict,
		}
	}

	if !req.Service.QualifiedStaff(req.Staff.ID) {
		return reject(ErrNotQualified, "")
	}

	day, ok := req.Staff.ScheduleFor(req.Start)
	if !ok {
		return reject(ErrNoScheduleForDay, "")
	}

	proposed := interval.Interval{Start: req.Start, End: end}
	if !day.Fits(proposed) {
		return reject(ErrOutsideWorkingHours, "")
	}

	if conflict := findConflict(req, proposed, occ); conflict != "" {
		return reject(ErrStaffConflict, conflict)
	}

	return Derived{EndTime: end, PriceCents: req.Service.BasePriceCents}, nil
}

func findConflict(req Request, proposed interval.Interval, occ Occupancy) string {
	for i := range occ.Bookings {
		b := &occ.Bookings[i]
		if b.StaffID != req.Staff.ID || !b.Occupies() {
			continue
		}
		if req.ExcludeBookingID != 0 && b.ID == req.ExcludeBookingID {
			continue
		}
		if proposed.Overlaps(b.Interval()) {
			return fmt.Sprintf("booking %d (%s-%s)", b.ID, b.StartTime.Format("15:04"), b.EndTime.Format("15:04"))
		}
	}
	for i := range occ.Blocks {
		tb := &occ.Blocks[i]
		if tb.StaffID != req.Staff.ID {
			continue
		}
		if proposed.Overlaps(tb.Interval()) {
			return fmt.Sprintf("time block %d (%s-%s)", tb.ID, tb.StartTime.Format("15:04"), tb.EndTime.Format("15:04"))
		}
	}
	return ""
}
