package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
	SeriesCreated        = "booking.series_created"
	TimeBlockCreated     = "time_block.created"
	RosterSynced         = "roster.synced"
)

// Event is a change that affects a shop's availability.
type Event struct {
	Type      string
	ShopID    int64
	StaffID   int64
	BookingID int64
	Status    string
	// Days lists the calendar days whose availability changed.
	Days      []time.Time
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger zerolog.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		logger:      logger.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for the given event types.
func (b *EventBus) Subscribe(handler EventHandler, eventTypes ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range eventTypes {
		b.subscribers[t] = append(b.subscribers[t], handler)
	}
}

// Publish notifies subscribers of the event type. Handlers run synchronously
// and a failing handler does not stop the others.
func (b *EventBus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event", event.Type).Int64("shop_id", event.ShopID).Msg("event handler failed")
		}
	}
}

// DaysBetween returns each calendar day touched by [start, end).
func DaysBetween(start, end time.Time) []time.Time {
	y, m, d := start.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, start.Location())
	days := []time.Time{day}
	for {
		day = day.AddDate(0, 0, 1)
		if !day.Before(end) {
			return days
		}
		days = append(days, day)
	}
}
