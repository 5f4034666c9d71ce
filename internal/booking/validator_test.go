package booking

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petagenda/internal/interval"
	"petagenda/internal/model"
)

func monday(h, m int) time.Time {
	return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC)
}

func groomer() *model.User {
	return &model.User{
		ID:   7,
		Name: "Ana",
		Role: model.RoleEmployee,
		Schedule: model.WorkSchedule{
			time.Monday: {
				Start:      model.MustTimeOfDay("08:00"),
				BreakStart: model.MustTimeOfDay("12:00"),
				BreakEnd:   model.MustTimeOfDay("13:00"),
				End:        model.MustTimeOfDay("17:00"),
			},
		},
	}
}

func bath() *model.Service {
	return &model.Service{
		ID:              3,
		Name:            "Bath",
		DurationMinutes: 60,
		BasePriceCents:  5000,
		PerformerIDs:    []int64{7},
	}
}

func TestEndTime(t *testing.T) {
	svc := &model.Service{DurationMinutes: 45, BufferMinutes: 15}
	assert.Equal(t, monday(11, 0), EndTime(monday(10, 0), svc))

	unset := &model.Service{}
	assert.Equal(t, monday(11, 0), EndTime(monday(10, 0), unset), "missing duration defaults to 60 minutes")
}

func TestValidate_Success(t *testing.T) {
	d, err := Validate(Request{Staff: groomer(), Service: bath(), Start: monday(9, 0)}, Occupancy{})
	require.NoError(t, err)
	assert.Equal(t, monday(10, 0), d.EndTime)
	assert.Equal(t, int64(5000), d.PriceCents)
}

func TestValidate_CheckOrder(t *testing.T) {
	staff := groomer()
	svc := bath()

	tests := []struct {
		name   string
		mutate func(r *Request)
		want   error
	}{
		{
			name: "not qualified wins over everything",
			mutate: func(r *Request) {
				r.Service = &model.Service{ID: 3, DurationMinutes: 60}
				r.Start = time.Date(2024, 1, 7, 3, 0, 0, 0, time.UTC)
			},
			want: ErrNotQualified,
		},
		{
			name:   "sunday has no schedule",
			mutate: func(r *Request) { r.Start = time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC) },
			want:   ErrNoScheduleForDay,
		},
		{
			name:   "straddles the break",
			mutate: func(r *Request) { r.Start = monday(11, 30) },
			want:   ErrOutsideWorkingHours,
		},
		{
			name:   "before opening",
			mutate: func(r *Request) { r.Start = monday(7, 30) },
			want:   ErrOutsideWorkingHours,
		},
		{
			name:   "past closing",
			mutate: func(r *Request) { r.Start = monday(16, 30) },
			want:   ErrOutsideWorkingHours,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{Staff: staff, Service: svc, Start: monday(9, 0)}
			tt.mutate(&req)
			_, err := Validate(req, Occupancy{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsRejection(err))
		})
	}
}

func TestValidate_StaffConflict(t *testing.T) {
	staff := groomer()
	svc := bath()
	existing := model.Booking{
		ID: 1, StaffID: 7, Status: model.StatusConfirmed,
		StartTime: monday(10, 0), EndTime: monday(11, 0),
	}
	occ := Occupancy{Bookings: []model.Booking{existing}}

	_, err := Validate(Request{Staff: staff, Service: svc, Start: monday(10, 30)}, occ)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaffConflict)
	re, ok := AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, int64(7), re.StaffID)
	assert.Contains(t, re.Conflict, "booking 1")

	d, err := Validate(Request{Staff: staff, Service: svc, Start: monday(11, 0)}, occ)
	require.NoError(t, err, "touching the end of another booking is allowed")
	assert.Equal(t, monday(12, 0), d.EndTime)
}

func TestValidate_IgnoresInactiveAndOtherStaff(t *testing.T) {
	occ := Occupancy{Bookings: []model.Booking{
		{ID: 1, StaffID: 7, Status: model.StatusCancelled, StartTime: monday(9, 0), EndTime: monday(10, 0)},
		{ID: 2, StaffID: 7, Status: model.StatusCompleted, StartTime: monday(9, 0), EndTime: monday(10, 0)},
		{ID: 3, StaffID: 8, Status: model.StatusPending, StartTime: monday(9, 0), EndTime: monday(10, 0)},
	}}

	_, err := Validate(Request{Staff: groomer(), Service: bath(), Start: monday(9, 0)}, occ)
	assert.NoError(t, err)
}

func TestValidate_ExcludesUpdatedBooking(t *testing.T) {
	occ := Occupancy{Bookings: []model.Booking{
		{ID: 5, StaffID: 7, Status: model.StatusPending, StartTime: monday(9, 0), EndTime: monday(10, 0)},
	}}

	_, err := Validate(Request{Staff: groomer(), Service: bath(), Start: monday(9, 30)}, occ)
	assert.ErrorIs(t, err, ErrStaffConflict)

	_, err = Validate(Request{Staff: groomer(), Service: bath(), Start: monday(9, 30), ExcludeBookingID: 5}, occ)
	assert.NoError(t, err)
}

func TestValidate_TimeBlockConflict(t *testing.T) {
	occ := Occupancy{Blocks: []model.TimeBlock{
		{ID: 9, StaffID: 7, StartTime: monday(14, 0), EndTime: monday(15, 0)},
	}}

	_, err := Validate(Request{Staff: groomer(), Service: bath(), Start: monday(14, 30)}, occ)
	assert.ErrorIs(t, err, ErrStaffConflict)
	assert.Equal(t, "staff_conflict", ReasonCode(err))

	_, err = Validate(Request{Staff: groomer(), Service: bath(), Start: monday(15, 0)}, occ)
	assert.NoError(t, err)
}

func TestValidate_BufferCountsTowardsFit(t *testing.T) {
	svc := bath()
	svc.BufferMinutes = 30

	_, err := Validate(Request{Staff: groomer(), Service: svc, Start: monday(11, 0)}, Occupancy{})
	assert.ErrorIs(t, err, ErrOutsideWorkingHours, "11:00 + 60 + 30 ends inside the break")

	_, err = Validate(Request{Staff: groomer(), Service: svc, Start: monday(10, 30)}, Occupancy{})
	assert.NoError(t, err)
}

// Accepted bookings never overlap when every creation goes through Validate.
func TestValidate_NoDoubleBooking(t *testing.T) {
	staff := groomer()
	svc := bath()
	svc.DurationMinutes = 45

	var occ Occupancy
	for h := 8; h < 17; h++ {
		for _, m := range []int{0, 15, 30, 45} {
			start := monday(h, m)
			d, err := Validate(Request{Staff: staff, Service: svc, Start: start}, occ)
			if err != nil {
				continue
			}
			occ.Add(model.Booking{
				ID: int64(len(occ.Bookings) + 1), StaffID: staff.ID, Status: model.StatusPending,
				StartTime: start, EndTime: d.EndTime,
			})
		}
	}

	require.NotEmpty(t, occ.Bookings)
	for i, a := range occ.Bookings {
		for j, b := range occ.Bookings {
			if i == j {
				continue
			}
			assert.False(t, interval.Overlaps(a.Interval(), b.Interval()), "bookings %d and %d overlap", a.ID, b.ID)
		}
	}
}

func TestRejectionError_Message(t *testing.T) {
	_, err := Validate(Request{Staff: groomer(), Service: bath(), Start: monday(11, 30)}, Occupancy{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Ana")
	assert.Contains(t, err.Error(), "2024-01-01 11:30")

	wrapped := fmt.Errorf("create booking: %w", err)
	assert.True(t, errors.Is(wrapped, ErrOutsideWorkingHours))
	assert.Equal(t, "outside_working_hours", ReasonCode(wrapped))
	assert.Equal(t, "", ReasonCode(errors.New("boom")))
}
