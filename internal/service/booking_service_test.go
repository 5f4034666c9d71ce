package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"petagenda/internal/booking"
	"petagenda/internal/cache"
	"petagenda/internal/config"
	"petagenda/internal/database"
	"petagenda/internal/events"
	"petagenda/internal/model"
	"petagenda/internal/slots"
	"petagenda/shared/access"
)

const roster = `
shops:
  - id: 1
    owner_id: 10
    name: Happy Paws
users:
  - {id: 10, username: olivia, role: OWNER}
  - {id: 20, username: maria, role: MANAGER, works_at: 1}
  - id: 11
    username: ana
    name: Ana
    role: EMPLOYEE
    works_at: 1
    schedule:
      monday: {start: "08:00", break_start: "12:00", break_end: "13:00", end: "17:00"}
  - id: 12
    username: bruno
    name: Bruno
    role: EMPLOYEE
    works_at: 1
    schedule:
      monday: {start: "09:00", end: "18:00"}
  - {id: 50, username: tutor, role: TUTOR}
  - {id: 51, username: tutor2, role: TUTOR}
services:
  - {id: 3, shop_id: 1, name: Bath, duration_minutes: 60, base_price_cents: 4500, performers: [11]}
  - {id: 5, shop_id: 1, name: Groom, duration_minutes: 45, buffer_minutes: 15, base_price_cents: 7000, performers: [12, 11]}
pets:
  - {id: 9, tutor_id: 50, name: Rex}
  - {id: 8, tutor_id: 51, name: Mia}
`

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, shopID, serviceID int64, day time.Time) (cache.Entry, bool) {
	args := m.Called(shopID, serviceID, day)
	return args.Get(0).(cache.Entry), args.Bool(1)
}

func (m *mockCache) Set(ctx context.Context, shopID, serviceID int64, day time.Time, e cache.Entry) {
	m.Called(shopID, serviceID, day, e)
}

type mockBus struct {
	mock.Mock
}

func (m *mockBus) Publish(e events.Event) {
	m.Called(e.Type, e.ShopID)
}

var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func newTestService(t *testing.T) (*BookingService, *database.DB) {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(filepath.Join(t.TempDir(), "svc.db"), time.UTC, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg, err := config.ParseRoster([]byte(roster))
	require.NoError(t, err)
	require.NoError(t, db.SyncRoster(context.Background(), cfg))

	svc := NewBookingService(db, slots.NewGenerator(slots.DefaultConfig()), access.NewService(logger), time.UTC, logger)
	svc.SetClock(func() time.Time { return time.Date(2023, 12, 1, 9, 0, 0, 0, time.UTC) })
	return svc, db
}

func book(svc *BookingService, actor, service, pet, staff int64, start time.Time) (*model.Booking, error) {
	return svc.CreateBooking(context.Background(), actor, CreateBookingRequest{
		ShopID: 1, ServiceID: service, PetID: pet, StaffID: staff, Start: start,
	})
}

func TestAvailability(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("split shift", func(t *testing.T) {
		av, err := svc.Availability(ctx, 1, 3, monday)
		require.NoError(t, err)
		assert.Len(t, av.Slots, 26)
		assert.Equal(t, "08:00", av.Slots[0])
		assert.Equal(t, "16:00", av.Slots[len(av.Slots)-1])
		assert.Contains(t, av.Slots, "11:00")
		assert.NotContains(t, av.Slots, "11:15")
		assert.NotContains(t, av.Slots, "12:00")
		assert.Equal(t, "2024-01-01", av.Date)
		assert.Empty(t, av.Reason)
	})

	t.Run("day off", func(t *testing.T) {
		av, err := svc.Availability(ctx, 1, 3, monday.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.NotNil(t, av.Slots)
		assert.Empty(t, av.Slots)
		assert.Equal(t, "no_schedule_for_day", av.Reason)
	})

	t.Run("service of another shop", func(t *testing.T) {
		_, err := svc.Availability(ctx, 2, 3, monday)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("unknown service", func(t *testing.T) {
		_, err := svc.Availability(ctx, 1, 99, monday)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestAvailability_UsesCache(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	c := new(mockCache)
	svc.UseCache(c)

	c.On("Get", int64(1), int64(3), monday).Return(cache.Entry{}, false).Once()
	c.On("Set", int64(1), int64(3), monday, mock.MatchedBy(func(e cache.Entry) bool { return len(e.Slots) == 26 })).Once()
	av, err := svc.Availability(ctx, 1, 3, at(15, 0))
	require.NoError(t, err)
	assert.Len(t, av.Slots, 26)

	c.On("Get", int64(1), int64(3), monday).Return(cache.Entry{Slots: []string{"08:00"}}, true).Once()
	av, err = svc.Availability(ctx, 1, 3, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00"}, av.Slots)

	c.AssertExpectations(t)
}

func TestCreateBooking_AutoAssignsInRosterOrder(t *testing.T) {
	svc, _ := newTestService(t)
	bus := new(mockBus)
	svc.UseEvents(bus)
	bus.On("Publish", events.BookingCreated, int64(1)).Twice()

	first, err := book(svc, 50, 5, 9, 0, at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(11), first.StaffID)
	assert.Equal(t, at(11, 0), first.EndTime)
	assert.Equal(t, int64(7000), first.TotalPriceCents)
	assert.Equal(t, model.StatusPending, first.Status)
	require.NotNil(t, first.TutorID)
	assert.Equal(t, int64(50), *first.TutorID)

	second, err := book(svc, 51, 5, 8, 0, at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(12), second.StaffID)

	_, err = book(svc, 51, 5, 8, 0, at(10, 30))
	assert.ErrorIs(t, err, booking.ErrStaffConflict)
	assert.True(t, booking.IsRejection(err))

	bus.AssertExpectations(t)
}

func TestCreateBooking_Rejections(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name    string
		actor   int64
		service int64
		pet     int64
		staff   int64
		start   time.Time
		wantErr error
	}{
		{"straddles the break", 50, 3, 9, 11, at(11, 30), booking.ErrOutsideWorkingHours},
		{"ends after hours", 50, 3, 9, 11, at(16, 15), booking.ErrOutsideWorkingHours},
		{"day off", 50, 3, 9, 11, at(10, 0).AddDate(0, 0, 1), booking.ErrNoScheduleForDay},
		{"staff not a performer", 50, 3, 9, 12, at(10, 0), booking.ErrNotQualified},
		{"in the past", 50, 3, 9, 11, time.Date(2023, 11, 1, 10, 0, 0, 0, time.UTC), ErrInvalidRequest},
		{"unknown pet", 50, 3, 99, 11, at(10, 0), database.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := book(svc, tt.actor, tt.service, tt.pet, tt.staff, tt.start)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("tutor books another tutor's pet", func(t *testing.T) {
		_, err := book(svc, 50, 3, 8, 0, at(10, 0))
		assert.True(t, access.IsAccessDenied(err))
	})
}

func TestStatusChanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	b, err := book(svc, 50, 3, 9, 0, at(10, 0))
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, 50, b.ID)
	assert.True(t, access.IsAccessDenied(err), "tutors cannot confirm")

	confirmed, err := svc.Confirm(ctx, 11, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)

	_, err = svc.Cancel(ctx, 51, b.ID)
	assert.True(t, access.IsAccessDenied(err), "other tutors cannot cancel")

	cancelled, err := svc.Cancel(ctx, 50, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)

	_, err = svc.Confirm(ctx, 11, b.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	got, err := svc.GetBooking(ctx, 50, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status, "cancelled bookings are kept")

	// the slot is free again
	again, err := book(svc, 51, 3, 8, 0, at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(11), again.StaffID)
}

func TestCreateTimeBlock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	bus := new(mockBus)
	svc.UseEvents(bus)

	req := CreateTimeBlockRequest{ShopID: 1, StaffID: 11, Start: at(13, 0), End: at(15, 0), Reason: "training"}

	_, err := svc.CreateTimeBlock(ctx, 11, req)
	assert.True(t, access.IsAccessDenied(err), "employees cannot block time")

	_, err = svc.CreateTimeBlock(ctx, 20, CreateTimeBlockRequest{ShopID: 1, StaffID: 11, Start: at(15, 0), End: at(13, 0)})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	bus.On("Publish", events.TimeBlockCreated, int64(1)).Once()
	tb, err := svc.CreateTimeBlock(ctx, 20, req)
	require.NoError(t, err)
	assert.NotZero(t, tb.ID)
	assert.Equal(t, int64(20), tb.CreatedBy)

	av, err := svc.Availability(ctx, 1, 3, monday)
	require.NoError(t, err)
	assert.NotContains(t, av.Slots, "13:00")
	assert.NotContains(t, av.Slots, "14:00")
	assert.Contains(t, av.Slots, "15:00")

	_, err = book(svc, 50, 3, 9, 11, at(14, 30))
	assert.ErrorIs(t, err, booking.ErrStaffConflict)
	bus.AssertExpectations(t)
}

func TestCreateRecurrence(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	parent, err := book(svc, 50, 3, 9, 11, at(10, 0))
	require.NoError(t, err)
	_, err = book(svc, 51, 3, 8, 11, at(10, 30).AddDate(0, 0, 21))
	require.NoError(t, err)

	rule := model.RecurrenceRule{Frequency: model.FrequencyWeekly, EndDate: monday.AddDate(0, 0, 28)}
	_, err = svc.CreateRecurrence(ctx, 51, parent.ID, rule)
	assert.True(t, access.IsAccessDenied(err))

	_, err = svc.CreateRecurrence(ctx, 50, parent.ID, rule)
	require.Error(t, err)
	assert.ErrorIs(t, err, booking.ErrStaffConflict)
	children, err := db.ListRecurrenceChildren(ctx, parent.ID)
	require.NoError(t, err)
	assert.Empty(t, children, "a rejected series stores nothing")

	rule.EndDate = monday.AddDate(0, 0, 14)
	created, err := svc.CreateRecurrence(ctx, 50, parent.ID, rule)
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, at(10, 0).AddDate(0, 0, 7), created[0].StartTime)

	_, err = svc.CreateRecurrence(ctx, 50, parent.ID, rule)
	assert.ErrorIs(t, err, booking.ErrInvalidRecurrenceRule, "a parent repeats once")
}

func TestCreateBooking_ConcurrentRequestsDoNotDoubleBook(t *testing.T) {
	svc, _ := newTestService(t)

	const workers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := book(svc, 50, 3, 9, 11, at(10, 0))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, booking.ErrStaffConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)
}
