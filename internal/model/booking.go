package model

import (
	"fmt"
	"strings"
	"time"

	"petagenda/internal/interval"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Occupies reports whether a booking in this status blocks the staff member's time.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusConfirmed
}

// OccupyingStatuses lists statuses that block time, for storage queries.
var OccupyingStatuses = []Status{StatusPending, StatusConfirmed}

// Booking is an appointment of one pet with one staff member for one service.
type Booking struct {
	ID                 int64           `json:"id"`
	ShopID             int64           `json:"shop_id"`
	ServiceID          int64           `json:"service_id"`
	StaffID            int64           `json:"staff_id"`
	PetID              int64           `json:"pet_id"`
	TutorID            *int64          `json:"tutor_id,omitempty"`
	ClientName         string          `json:"client_name,omitempty"`
	ClientPhone        string          `json:"client_phone,omitempty"`
	StartTime          time.Time       `json:"appointment_time"`
	EndTime            time.Time       `json:"end_time"`
	Status             Status          `json:"status"`
	TotalPriceCents    int64           `json:"total_price_cents"`
	RecurrenceParentID *int64          `json:"recurrence_parent,omitempty"`
	Recurrence         *RecurrenceRule `json:"recurrence,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Interval returns [StartTime, EndTime).
func (b *Booking) Interval() interval.Interval {
	return interval.Interval{Start: b.StartTime, End: b.EndTime}
}

// Occupies reports whether the booking blocks its staff member's time.
func (b *Booking) Occupies() bool {
	return b.Status.Occupies()
}

// TimeBlock reserves a staff member's time outside of bookings (vacation, errand).
type TimeBlock struct {
	ID        int64     `json:"id"`
	ShopID    int64     `json:"shop_id"`
	StaffID   int64     `json:"staff_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason,omitempty"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Interval returns [StartTime, EndTime).
func (t *TimeBlock) Interval() interval.Interval {
	return interval.Interval{Start: t.StartTime, End: t.EndTime}
}

// Frequency is the step of a recurrence rule.
type Frequency string

const (
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyBiweekly Frequency = "BIWEEKLY"
	FrequencyMonthly  Frequency = "MONTHLY"
)

// ParseFrequency accepts the three known frequencies, case-insensitive.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return f, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// RecurrenceRule lives on a parent booking only.
type RecurrenceRule struct {
	Frequency Frequency `json:"frequency"`
	EndDate   time.Time `json:"recurrence_end_date"`
}
