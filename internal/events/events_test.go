package events

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishesToSubscribers(t *testing.T) {
	bus := NewEventBus(zerolog.New(io.Discard))

	var got []Event
	bus.Subscribe(func(e Event) error {
		return errors.New("first handler fails")
	}, BookingCreated)
	bus.Subscribe(func(e Event) error {
		got = append(got, e)
		return nil
	}, BookingCreated, TimeBlockCreated)

	bus.Publish(Event{Type: BookingCreated, ShopID: 1})
	bus.Publish(Event{Type: TimeBlockCreated, ShopID: 2})
	bus.Publish(Event{Type: RosterSynced})

	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ShopID)
	assert.False(t, got[0].CreatedAt.IsZero())
	assert.Equal(t, TimeBlockCreated, got[1].Type)
}

func TestEventBus_NilIsNoop(t *testing.T) {
	var bus *EventBus
	assert.NotPanics(t, func() { bus.Publish(Event{Type: BookingCreated}) })
}

func TestDaysBetween(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2024, 1, d, h, 0, 0, 0, time.UTC) }

	assert.Equal(t, []time.Time{day(1, 0)}, DaysBetween(day(1, 10), day(1, 11)))
	assert.Equal(t, []time.Time{day(1, 0)}, DaysBetween(day(1, 10), day(2, 0)))
	assert.Equal(t, []time.Time{day(1, 0), day(2, 0), day(3, 0)}, DaysBetween(day(1, 22), day(3, 1)))
}
