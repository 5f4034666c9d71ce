package booking

import (
	"errors"
	"fmt"
	"time"
)

// Rejection reasons. All of them describe a refused request, never a fault.
var (
	ErrNotQualified          = errors.New("staff is not qualified for the service")
	ErrNoScheduleForDay      = errors.New("staff has no working hours on that day")
	ErrOutsideWorkingHours   = errors.New("interval does not fit the working hours")
	ErrStaffConflict         = errors.New("staff is already busy in that period")
	ErrInvalidRecurrenceRule = errors.New("invalid recurrence rule")
	ErrNoQualifiedStaff      = errors.New("service has no qualified staff")
	ErrInvalidTransition     = errors.New("status transition not allowed")
)

var reasonCodes = map[error]string{
	ErrNotQualified:          "not_qualified",
	ErrNoScheduleForDay:      "no_schedule_for_day",
	ErrOutsideWorkingHours:   "outside_working_hours",
	ErrStaffConflict:         "staff_conflict",
	ErrInvalidRecurrenceRule: "invalid_recurrence_rule",
	ErrNoQualifiedStaff:      "no_qualified_staff",
	ErrInvalidTransition:     "invalid_transition",
}

// ReasonCode returns a stable snake_case code for a rejection, or "" for other errors.
func ReasonCode(err error) string {
	for sentinel, code := range reasonCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// IsRejection reports whether err is one of the rejection reasons above.
func IsRejection(err error) bool {
	return ReasonCode(err) != ""
}

// RejectionError carries the details needed to render a rejection to a user.
type RejectionError struct {
	Reason    error
	StaffID   int64
	StaffName string
	ServiceID int64
	Start     time.Time
	End       time.Time
	// Conflict describes what the interval collided with, e.g. "booking 12".
	Conflict string
}

func (e *RejectionError) Error() string {
	msg := fmt.Sprintf("%v: staff %s (id %d) at %s-%s",
		e.Reason, e.StaffName, e.StaffID,
		e.Start.Format("2006-01-02 15:04"), e.End.Format("15:04"))
	if e.Conflict != "" {
		msg += " conflicts with " + e.Conflict
	}
	return msg
}

func (e *RejectionError) Unwrap() error {
	return e.Reason
}

// AsRejection extracts a RejectionError from err.
func AsRejection(err error) (*RejectionError, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
