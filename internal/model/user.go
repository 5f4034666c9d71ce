package model

import (
	"slices"
	"time"
)

// Role is a user's type within the system.
type Role string

const (
	RoleTutor    Role = "TUTOR"
	RoleOwner    Role = "OWNER"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
)

// IsStaff reports whether the role belongs to shop staff.
func (r Role) IsStaff() bool {
	return r == RoleOwner || r == RoleManager || r == RoleEmployee
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleTutor || r.IsStaff()
}

// User is anyone acting on the system: tutors (pet owners) and shop staff.
// Staff members who perform services carry a work schedule.
type User struct {
	ID       int64        `json:"id"`
	Username string       `json:"username"`
	Name     string       `json:"name"`
	Phone    string       `json:"phone,omitempty"`
	Role     Role         `json:"role"`
	WorksAt  int64        `json:"works_at,omitempty"`
	Schedule WorkSchedule `json:"-"`
}

// ScheduleFor returns the staff member's hours for the weekday of day.
func (u *User) ScheduleFor(day time.Time) (DaySchedule, bool) {
	return u.Schedule.Lookup(day.Weekday())
}

// DisplayName prefers the full name.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Shop is a pet-care business.
type Shop struct {
	ID      int64  `json:"id"`
	OwnerID int64  `json:"owner_id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// DefaultDurationMinutes is used for services without a configured duration.
const DefaultDurationMinutes = 60

// Service is something a shop sells, performed by a set of qualified staff.
type Service struct {
	ID              int64   `json:"id"`
	ShopID          int64   `json:"shop_id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	BufferMinutes   int     `json:"buffer_time_minutes"`
	BasePriceCents  int64   `json:"base_price_cents"`
	IsActive        bool    `json:"is_active"`
	PerformerIDs    []int64 `json:"performer_ids"`
}

// Duration returns the service length, falling back to DefaultDurationMinutes.
func (s *Service) Duration() time.Duration {
	minutes := s.DurationMinutes
	if minutes <= 0 {
		minutes = DefaultDurationMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Buffer returns the cleanup time appended after the service.
func (s *Service) Buffer() time.Duration {
	if s.BufferMinutes < 0 {
		return 0
	}
	return time.Duration(s.BufferMinutes) * time.Minute
}

// Occupancy returns duration plus buffer: how long a staff member is taken.
func (s *Service) Occupancy() time.Duration {
	return s.Duration() + s.Buffer()
}

// QualifiedStaff reports whether staffID may perform the service.
func (s *Service) QualifiedStaff(staffID int64) bool {
	return slices.Contains(s.PerformerIDs, staffID)
}

// Pet belongs to a tutor.
type Pet struct {
	ID      int64  `json:"id"`
	TutorID int64  `json:"tutor_id"`
	Name    string `json:"name"`
	Species string `json:"species,omitempty"`
	Size    string `json:"size,omitempty"`
}
