package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"petagenda/internal/booking"
	"petagenda/internal/cache"
	"petagenda/internal/events"
	"petagenda/internal/metrics"
	"petagenda/internal/model"
	"petagenda/internal/recurrence"
	"petagenda/internal/slots"
	"petagenda/shared/access"
)

// ErrInvalidRequest marks input the caller must fix; it is never a rejection.
var ErrInvalidRequest = errors.New("invalid request")

// Repository is the storage the booking service needs.
type Repository interface {
	recurrence.UnitOfWork
	recurrence.Repository

	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetShop(ctx context.Context, id int64) (*model.Shop, error)
	GetService(ctx context.Context, id int64) (*model.Service, error)
	GetPet(ctx context.Context, id int64) (*model.Pet, error)
	ListRoster(ctx context.Context, svc *model.Service) ([]model.User, error)

	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, status model.Status) error
	ListBookingsForStaff(ctx context.Context, staffIDs []int64, from, to time.Time) ([]model.Booking, error)
	ListBlocksForStaff(ctx context.Context, staffIDs []int64, from, to time.Time) ([]model.TimeBlock, error)
	CreateTimeBlock(ctx context.Context, tb *model.TimeBlock) error
}

// AvailabilityCache stores computed availability per shop, service and day.
type AvailabilityCache interface {
	Get(ctx context.Context, shopID, serviceID int64, day time.Time) (cache.Entry, bool)
	Set(ctx context.Context, shopID, serviceID int64, day time.Time, e cache.Entry)
}

// EventPublisher receives availability-changing events.
type EventPublisher interface {
	Publish(event events.Event)
}

// Availability is the answer for one shop, service and day.
type Availability struct {
	Date      string   `json:"date"`
	ServiceID int64    `json:"service_id"`
	Slots     []string `json:"slots"`
	// Reason explains an empty list when the cause is structural rather than a full day.
	Reason string `json:"reason,omitempty"`
}

type CreateBookingRequest struct {
	ShopID    int64     `json:"shop_id"`
	ServiceID int64     `json:"service_id"`
	PetID     int64     `json:"pet_id"`
	StaffID   int64     `json:"staff_id,omitempty"`
	Start     time.Time `json:"appointment_time"`

	ClientName  string `json:"client_name,omitempty"`
	ClientPhone string `json:"client_phone,omitempty"`
}

type CreateTimeBlockRequest struct {
	ShopID  int64     `json:"shop_id"`
	StaffID int64     `json:"employee_id"`
	Start   time.Time `json:"start_time"`
	End     time.Time `json:"end_time"`
	Reason  string    `json:"reason,omitempty"`
}

type BookingService struct {
	repo     Repository
	gen      *slots.Generator
	access   *access.Service
	expander *recurrence.Expander
	cache    AvailabilityCache
	events   EventPublisher
	loc      *time.Location
	now      func() time.Time
	logger   zerolog.Logger
}

func NewBookingService(repo Repository, gen *slots.Generator, acl *access.Service, loc *time.Location, logger zerolog.Logger) *BookingService {
	if loc == nil {
		loc = time.Local
	}
	l := logger.With().Str("component", "booking_service").Logger()
	return &BookingService{
		repo:     repo,
		gen:      gen,
		access:   acl,
		expander: recurrence.NewExpander(repo, repo, logger),
		loc:      loc,
		now:      time.Now,
		logger:   l,
	}
}

// UseCache enables availability caching.
func (s *BookingService) UseCache(c AvailabilityCache) {
	s.cache = c
}

// UseEvents publishes changes to bus.
func (s *BookingService) UseEvents(bus EventPublisher) {
	s.events = bus
}

// SetClock replaces time.Now.
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

// Location returns the business timezone.
func (s *BookingService) Location() *time.Location {
	return s.loc
}

func (s *BookingService) publish(e events.Event) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

func (s *BookingService) midnight(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

// Availability lists bookable start times of a service on a day at a shop.
func (s *BookingService) Availability(ctx context.Context, shopID, serviceID int64, day time.Time) (*Availability, error) {
	day = s.midnight(day)
	result := &Availability{Date: day.Format("2006-01-02"), ServiceID: serviceID}

	if s.cache != nil {
		if entry, ok := s.cache.Get(ctx, shopID, serviceID, day); ok {
			metrics.IncAvailability("hit")
			result.Slots, result.Reason = entry.Slots, entry.Reason
			return result, nil
		}
	}

	in, err := s.loadDay(ctx, shopID, serviceID, day)
	if err != nil {
		return nil, err
	}

	result.Slots = s.gen.AvailableSlots(in)
	if len(result.Slots) == 0 {
		result.Reason = emptyReason(in)
	}

	if s.cache != nil {
		metrics.IncAvailability("miss")
		s.cache.Set(ctx, shopID, serviceID, day, cache.Entry{Slots: result.Slots, Reason: result.Reason})
	} else {
		metrics.IncAvailability("bypass")
	}
	return result, nil
}

// SlotDetails returns each available slot with the staff free for it.
func (s *BookingService) SlotDetails(ctx context.Context, shopID, serviceID int64, day time.Time) ([]slots.Slot, error) {
	in, err := s.loadDay(ctx, shopID, serviceID, s.midnight(day))
	if err != nil {
		return nil, err
	}
	return s.gen.GenerateSlots(in), nil
}

func (s *BookingService) loadDay(ctx context.Context, shopID, serviceID int64, day time.Time) (slots.Input, error) {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return slots.Input{}, err
	}
	if svc.ShopID != shopID {
		return slots.Input{}, fmt.Errorf("%w: service %d is not offered by shop %d", ErrInvalidRequest, serviceID, shopID)
	}

	in := slots.Input{Day: day, Service: svc}
	if !svc.IsActive {
		in.Roster = []model.User{}
		return in, nil
	}

	in.Roster, err = s.repo.ListRoster(ctx, svc)
	if err != nil {
		return slots.Input{}, fmt.Errorf("load roster: %w", err)
	}
	if len(in.Roster) == 0 {
		return in, nil
	}

	ids := make([]int64, len(in.Roster))
	for i := range in.Roster {
		ids[i] = in.Roster[i].ID
	}
	from, to := day, day.AddDate(0, 0, 1)
	if in.Bookings, err = s.repo.ListBookingsForStaff(ctx, ids, from, to); err != nil {
		return slots.Input{}, fmt.Errorf("load bookings: %w", err)
	}
	if in.Blocks, err = s.repo.ListBlocksForStaff(ctx, ids, from, to); err != nil {
		return slots.Input{}, fmt.Errorf("load time blocks: %w", err)
	}
	return in, nil
}

func emptyReason(in slots.Input) string {
	if len(in.Roster) == 0 {
		return booking.ReasonCode(booking.ErrNoQualifiedStaff)
	}
	for i := range in.Roster {
		if _, ok := in.Roster[i].ScheduleFor(in.Day); ok {
			return ""
		}
	}
	return booking.ReasonCode(booking.ErrNoScheduleForDay)
}

// CreateBooking checks access, then validates and inserts inside one
// transaction. Without a pinned staff member the first free roster member
// in ascending id order takes the booking.
func (s *BookingService) CreateBooking(ctx context.Context, actorID int64, req CreateBookingRequest) (*model.Booking, error) {
	if req.Start.IsZero() {
		return nil, fmt.Errorf("%w: appointment_time is required", ErrInvalidRequest)
	}
	start := req.Start.In(s.loc)
	if start.Before(s.now()) {
		return nil, fmt.Errorf("%w: appointment_time is in the past", ErrInvalidRequest)
	}

	actor, err := s.repo.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	shop, err := s.repo.GetShop(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}
	svc, err := s.repo.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	pet, err := s.repo.GetPet(ctx, req.PetID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanBook(actor, shop, svc, pet); err != nil {
		return nil, err
	}

	tutorID := pet.TutorID
	b := &model.Booking{
		ShopID:      shop.ID,
		ServiceID:   svc.ID,
		PetID:       pet.ID,
		TutorID:     &tutorID,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		StartTime:   start,
		Status:      model.StatusPending,
	}

	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		staff, derived, err := s.pickStaff(ctx, svc, req.StaffID, start)
		if err != nil {
			return err
		}
		b.StaffID = staff.ID
		b.EndTime = derived.EndTime
		b.TotalPriceCents = derived.PriceCents
		return s.repo.CreateBooking(ctx, b)
	})
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}

	metrics.IncBookingCreated("single", 1)
	s.publish(events.Event{
		Type:      events.BookingCreated,
		ShopID:    b.ShopID,
		StaffID:   b.StaffID,
		BookingID: b.ID,
		Status:    string(b.Status),
		Days:      events.DaysBetween(b.StartTime, b.EndTime),
	})
	s.logger.Info().
		Int64("booking_id", b.ID).
		Int64("staff_id", b.StaffID).
		Int64("actor_id", actorID).
		Time("start", b.StartTime).
		Msg("booking created")
	return b, nil
}

// pickStaff must run inside the write transaction.
func (s *BookingService) pickStaff(ctx context.Context, svc *model.Service, staffID int64, start time.Time) (*model.User, booking.Derived, error) {
	end := booking.EndTime(start, svc)

	if staffID != 0 {
		staff, err := s.repo.GetUser(ctx, staffID)
		if err != nil {
			return nil, booking.Derived{}, err
		}
		bookings, err := s.repo.ListStaffBookings(ctx, staff.ID, start, end)
		if err != nil {
			return nil, booking.Derived{}, err
		}
		blocks, err := s.repo.ListStaffBlocks(ctx, staff.ID, start, end)
		if err != nil {
			return nil, booking.Derived{}, err
		}
		d, err := booking.Validate(booking.Request{Staff: staff, Service: svc, Start: start},
			booking.Occupancy{Bookings: bookings, Blocks: blocks})
		return staff, d, err
	}

	roster, err := s.repo.ListRoster(ctx, svc)
	if err != nil {
		return nil, booking.Derived{}, err
	}
	ids := make([]int64, len(roster))
	for i := range roster {
		ids[i] = roster[i].ID
	}
	var occ booking.Occupancy
	if len(ids) > 0 {
		if occ.Bookings, err = s.repo.ListBookingsForStaff(ctx, ids, start, end); err != nil {
			return nil, booking.Derived{}, err
		}
		if occ.Blocks, err = s.repo.ListBlocksForStaff(ctx, ids, start, end); err != nil {
			return nil, booking.Derived{}, err
		}
	}
	return booking.FirstAvailable(roster, svc, start, occ)
}

func (s *BookingService) recordRejection(err error) {
	code := booking.ReasonCode(err)
	if code == "" {
		return
	}
	metrics.IncBookingRejected(code)
	ev := s.logger.Info().Str("reason", code)
	if re, ok := booking.AsRejection(err); ok {
		ev = ev.Int64("staff_id", re.StaffID).Time("start", re.Start).Str("conflict", re.Conflict)
	}
	ev.Msg("booking rejected")
}

// GetBooking returns a booking visible to the actor.
func (s *BookingService) GetBooking(ctx context.Context, actorID, bookingID int64) (*model.Booking, error) {
	actor, err := s.repo.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	shop, err := s.repo.GetShop(ctx, b.ShopID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanView(actor, b, shop); err != nil {
		return nil, err
	}
	return b, nil
}

// Confirm moves a PENDING booking to CONFIRMED. Shop staff only.
func (s *BookingService) Confirm(ctx context.Context, actorID, bookingID int64) (*model.Booking, error) {
	return s.changeStatus(ctx, actorID, bookingID, model.StatusConfirmed, func(actor *model.User, b *model.Booking, shop *model.Shop) error {
		return s.access.CanConfirm(actor, shop)
	})
}

// Cancel moves a PENDING or CONFIRMED booking to CANCELLED. The row is kept.
func (s *BookingService) Cancel(ctx context.Context, actorID, bookingID int64) (*model.Booking, error) {
	return s.changeStatus(ctx, actorID, bookingID, model.StatusCancelled, s.access.CanCancel)
}

func (s *BookingService) changeStatus(
	ctx context.Context,
	actorID, bookingID int64,
	to model.Status,
	allowed func(actor *model.User, b *model.Booking, shop *model.Shop) error,
) (*model.Booking, error) {
	actor, err := s.repo.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var b *model.Booking
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		b, err = s.repo.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		shop, err := s.repo.GetShop(ctx, b.ShopID)
		if err != nil {
			return err
		}
		if err := allowed(actor, b, shop); err != nil {
			return err
		}
		if err := booking.Transition(b, to, s.now()); err != nil {
			return err
		}
		return s.repo.UpdateBookingStatus(ctx, b.ID, b.Status)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncTransition(string(to))
	s.publish(events.Event{
		Type:      events.BookingStatusChanged,
		ShopID:    b.ShopID,
		StaffID:   b.StaffID,
		BookingID: b.ID,
		Status:    string(b.Status),
		Days:      events.DaysBetween(b.StartTime, b.EndTime),
	})
	s.logger.Info().Int64("booking_id", b.ID).Int64("actor_id", actorID).Str("status", string(to)).Msg("booking status changed")
	return b, nil
}

// CreateTimeBlock makes an employee unavailable for [Start, End).
func (s *BookingService) CreateTimeBlock(ctx context.Context, actorID int64, req CreateTimeBlockRequest) (*model.TimeBlock, error) {
	if req.Start.IsZero() || req.End.IsZero() || !req.Start.Before(req.End) {
		return nil, fmt.Errorf("%w: start_time must be before end_time", ErrInvalidRequest)
	}

	actor, err := s.repo.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	shop, err := s.repo.GetShop(ctx, req.ShopID)
	if err != nil {
		return nil, err
	}
	employee, err := s.repo.GetUser(ctx, req.StaffID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanBlockTime(actor, shop, employee); err != nil {
		return nil, err
	}

	tb := &model.TimeBlock{
		ShopID:    shop.ID,
		StaffID:   employee.ID,
		StartTime: req.Start.In(s.loc),
		EndTime:   req.End.In(s.loc),
		Reason:    req.Reason,
		CreatedBy: actor.ID,
	}
	if err := s.repo.CreateTimeBlock(ctx, tb); err != nil {
		return nil, err
	}

	s.publish(events.Event{
		Type:    events.TimeBlockCreated,
		ShopID:  tb.ShopID,
		StaffID: tb.StaffID,
		Days:    events.DaysBetween(tb.StartTime, tb.EndTime),
	})
	s.logger.Info().Int64("time_block_id", tb.ID).Int64("staff_id", tb.StaffID).Int64("actor_id", actorID).Msg("time block created")
	return tb, nil
}

// CreateRecurrence repeats a booking by rule. Either every occurrence is
// stored or none is.
func (s *BookingService) CreateRecurrence(ctx context.Context, actorID, bookingID int64, rule model.RecurrenceRule) ([]model.Booking, error) {
	actor, err := s.repo.GetUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	parent, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	shop, err := s.repo.GetShop(ctx, parent.ShopID)
	if err != nil {
		return nil, err
	}
	if err := s.access.CanRepeat(actor, parent, shop); err != nil {
		return nil, err
	}

	staff, err := s.repo.GetUser(ctx, parent.StaffID)
	if err != nil {
		return nil, err
	}
	svc, err := s.repo.GetService(ctx, parent.ServiceID)
	if err != nil {
		return nil, err
	}

	created, err := s.expander.Create(ctx, parent, staff, svc, rule)
	if err != nil {
		s.recordRejection(err)
		return nil, err
	}

	if len(created) > 0 {
		metrics.IncBookingCreated("series", len(created))
		days := make([]time.Time, 0, len(created))
		for _, c := range created {
			days = append(days, events.DaysBetween(c.StartTime, c.EndTime)...)
		}
		s.publish(events.Event{
			Type:      events.SeriesCreated,
			ShopID:    parent.ShopID,
			StaffID:   parent.StaffID,
			BookingID: parent.ID,
			Days:      days,
		})
	}
	return created, nil
}
