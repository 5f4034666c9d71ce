// Package completion moves confirmed bookings whose end time has passed to COMPLETED.
package completion

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"petagenda/internal/events"
	"petagenda/internal/model"
)

// Store completes elapsed bookings atomically and returns them.
type Store interface {
	CompleteElapsed(ctx context.Context, now time.Time) ([]model.Booking, error)
}

// Publisher receives one event per completed booking.
type Publisher interface {
	Publish(event events.Event)
}

// Config holds configuration for the sweeper.
type Config struct {
	// Interval between sweeps. Default: 15 minutes.
	Interval time.Duration
}

// Service runs the completion sweep on a ticker.
type Service struct {
	config    *Config
	store     Store
	publisher Publisher
	metrics   *Metrics
	now       func() time.Time
	logger    zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewService creates a sweeper. publisher and metrics may be nil.
func NewService(config *Config, store Store, publisher Publisher, metrics *Metrics, logger zerolog.Logger) *Service {
	if config == nil {
		config = &Config{}
	}
	if config.Interval <= 0 {
		config.Interval = 15 * time.Minute
	}
	return &Service{
		config:    config,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		now:       time.Now,
		logger:    logger.With().Str("component", "completion").Logger(),
		stopCh:    make(chan struct{}),
	}
}

// Start begins the sweep loop; the first sweep runs immediately.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	s.logger.Info().Dur("interval", s.config.Interval).Msg("completion sweeper started")
}

// Stop waits for the current sweep to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info().Msg("completion sweeper stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	s.sweep()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.SweepNow(ctx); err != nil {
		s.logger.Error().Err(err).Msg("completion sweep failed")
	}
}

// SweepNow runs one sweep and returns how many bookings were completed.
func (s *Service) SweepNow(ctx context.Context) (int, error) {
	started := time.Now()
	done, err := s.store.CompleteElapsed(ctx, s.now())
	s.metrics.observe(time.Since(started).Seconds())
	if err != nil {
		s.metrics.incErrors()
		return 0, err
	}
	if len(done) == 0 {
		return 0, nil
	}

	s.metrics.addCompleted(len(done))
	for _, b := range done {
		if s.publisher != nil {
			s.publisher.Publish(events.Event{
				Type:      events.BookingStatusChanged,
				ShopID:    b.ShopID,
				StaffID:   b.StaffID,
				BookingID: b.ID,
				Status:    string(model.StatusCompleted),
				Days:      events.DaysBetween(b.StartTime, b.EndTime),
			})
		}
		s.logger.Debug().Int64("booking_id", b.ID).Msg("booking completed")
	}
	s.logger.Info().Int("count", len(done)).Msg("bookings completed")
	return len(done), nil
}
