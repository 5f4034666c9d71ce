// Package audit exports a month of bookings to an .xlsx workbook, one sheet per shop.
// Bookings are never deleted; the workbook is a read-only snapshot.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"petagenda/internal/model"
)

// Config holds configuration for the audit service.
type Config struct {
	// Dir receives the workbooks.
	Dir string

	// ExportOnStart exports the previous month as soon as Start is called.
	ExportOnStart bool
}

// Service writes monthly booking workbooks.
type Service struct {
	config *Config
	source BookingSource
	writer func() ExcelWriter
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewService creates an audit service. A nil writerFactory uses excelize.
func NewService(config *Config, source BookingSource, writerFactory func() ExcelWriter, loc *time.Location, logger zerolog.Logger) *Service {
	if config == nil {
		config = &Config{Dir: "exports"}
	}
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		config: config,
		source: source,
		writer: writerFactory,
		loc:    loc,
		now:    time.Now,
		logger: logger.With().Str("component", "audit").Logger(),
		stopCh: make(chan struct{}),
	}
}

// Start schedules an export of the previous month on every first of the month.
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

	s.logger.Info().Str("dir", s.config.Dir).Msg("audit service started")
}

// Stop waits for a running export to finish.
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
	s.logger.Info().Msg("audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	if s.config.ExportOnStart {
		s.exportPrevious()
	}

	next := s.nextFirstOfMonth()
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	s.logger.Info().Time("next_run", next).Msg("next audit scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.exportPrevious()
			next = s.nextFirstOfMonth()
			timer.Reset(time.Until(next))
			s.logger.Info().Time("next_run", next).Msg("next audit scheduled")
		}
	}
}

func (s *Service) nextFirstOfMonth() time.Time {
	_, next := MonthRange(s.now().In(s.loc))
	return next.Add(time.Minute)
}

func (s *Service) exportPrevious() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := s.ExportMonth(ctx, PreviousMonth(s.now().In(s.loc))); err != nil {
		s.logger.Error().Err(err).Msg("audit export failed")
	}
}

// ExportMonth writes every booking starting in month to Dir and returns the file path.
func (s *Service) ExportMonth(ctx context.Context, month time.Time) (string, error) {
	from, to := MonthRange(month.In(s.loc))

	shops, err := s.source.ListShops(ctx)
	if err != nil {
		return "", fmt.Errorf("list shops: %w", err)
	}
	bookings, err := s.source.ListBookingsBetween(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("list bookings: %w", err)
	}

	byShop := make(map[int64][]model.Booking, len(shops))
	for _, b := range bookings {
		byShop[b.ShopID] = append(byShop[b.ShopID], b)
	}
	sort.Slice(shops, func(i, j int) bool { return shops[i].ID < shops[j].ID })

	excel := s.writer()
	defer excel.Close()

	names := newNameResolver(s.source)
	for _, shop := range shops {
		if err := excel.AddSheet(fmt.Sprintf("%d %s", shop.ID, shop.Name)); err != nil {
			return "", err
		}
		if err := excel.WriteHeader(Columns); err != nil {
			return "", err
		}
		for _, b := range byShop[shop.ID] {
			if err := excel.WriteRow(s.row(ctx, names, b)); err != nil {
				return "", fmt.Errorf("booking %d: %w", b.ID, err)
			}
		}
		s.logger.Debug().Int64("shop_id", shop.ID).Int("rows", len(byShop[shop.ID])).Msg("exported shop")
	}

	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(s.config.Dir, GenerateFilename(from))
	if err := excel.SaveToFile(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	s.logger.Info().
		Str("path", path).
		Int("shops", len(shops)).
		Int("bookings", len(bookings)).
		Msg("audit export written")
	return path, nil
}

func (s *Service) row(ctx context.Context, names *nameResolver, b model.Booking) []interface{} {
	tutor, parent := "", ""
	if b.TutorID != nil {
		tutor = strconv.FormatInt(*b.TutorID, 10)
	}
	if b.RecurrenceParentID != nil {
		parent = strconv.FormatInt(*b.RecurrenceParentID, 10)
	}
	return []interface{}{
		b.ID,
		b.StartTime.In(s.loc).Format("2006-01-02 15:04"),
		b.EndTime.In(s.loc).Format("2006-01-02 15:04"),
		string(b.Status),
		names.service(ctx, b.ServiceID),
		names.staff(ctx, b.StaffID),
		b.PetID,
		tutor,
		b.ClientName,
		b.ClientPhone,
		float64(b.TotalPriceCents) / 100,
		parent,
	}
}

// nameResolver memoizes lookups; deactivated rows fall back to "#id".
type nameResolver struct {
	src      BookingSource
	services map[int64]string
	users    map[int64]string
}

func newNameResolver(src BookingSource) *nameResolver {
	return &nameResolver{src: src, services: map[int64]string{}, users: map[int64]string{}}
}

func (r *nameResolver) service(ctx context.Context, id int64) string {
	if n, ok := r.services[id]; ok {
		return n
	}
	n := "#" + strconv.FormatInt(id, 10)
	if svc, err := r.src.GetService(ctx, id); err == nil {
		n = svc.Name
	}
	r.services[id] = n
	return n
}

func (r *nameResolver) staff(ctx context.Context, id int64) string {
	if n, ok := r.users[id]; ok {
		return n
	}
	n := "#" + strconv.FormatInt(id, 10)
	if u, err := r.src.GetUser(ctx, id); err == nil {
		n = u.DisplayName()
	}
	r.users[id] = n
	return n
}
