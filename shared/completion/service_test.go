package completion

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petagenda/internal/events"
	"petagenda/internal/model"
)

type fakeStore struct {
	mu       sync.Mutex
	bookings []model.Booking
	calls    int
	err      error
}

func (f *fakeStore) CompleteElapsed(ctx context.Context, now time.Time) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var done []model.Booking
	for i := range f.bookings {
		b := &f.bookings[i]
		if b.Status == model.StatusConfirmed && !b.EndTime.After(now) {
			b.Status = model.StatusCompleted
			done = append(done, *b)
		}
	}
	return done, nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.events = append(r.events, e)
}

func TestSweepNow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{bookings: []model.Booking{
		{ID: 1, ShopID: 1, Status: model.StatusConfirmed, StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour)},
		{ID: 2, ShopID: 1, Status: model.StatusConfirmed, StartTime: now.Add(-time.Hour), EndTime: now},
		{ID: 3, ShopID: 1, Status: model.StatusPending, StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour)},
		{ID: 4, ShopID: 1, Status: model.StatusConfirmed, StartTime: now, EndTime: now.Add(time.Hour)},
	}}
	rec := &recorder{}
	m := NewMetrics("test", prometheus.NewRegistry())

	s := NewService(nil, store, rec, m, zerolog.New(io.Discard))
	s.now = func() time.Time { return now }

	n, err := s.SweepNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, rec.events, 2)
	assert.Equal(t, events.BookingStatusChanged, rec.events[0].Type)
	assert.Equal(t, "COMPLETED", rec.events[0].Status)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CompletedTotal))

	n, err = s.SweepNow(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "second sweep finds nothing")
}

func TestSweepNow_Error(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())
	s := NewService(nil, &fakeStore{err: errors.New("db down")}, nil, m, zerolog.New(io.Discard))

	_, err := s.SweepNow(context.Background())
	assert.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SweepErrors))
}

func TestStartStop(t *testing.T) {
	store := &fakeStore{}
	s := NewService(&Config{Interval: 10 * time.Millisecond}, store, nil, nil, zerolog.New(io.Discard))

	s.Start()
	s.Start()
	assert.Eventually(t, func() bool { return store.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	calls := store.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, store.callCount(), "no sweeps after Stop")
}
