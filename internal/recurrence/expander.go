// Package recurrence expands a parent booking into a series of occurrences and
// commits the series in a single transaction, or not at all.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"petagenda/internal/booking"
	"petagenda/internal/model"
)

// MaxOccurrences bounds a single series.
const MaxOccurrences = 104

// Error names the first occurrence that failed validation.
type Error struct {
	Index int
	Date  time.Time
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("occurrence %d on %s: %v", e.Index+1, e.Date.Format("2006-01-02"), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a recurrence Error from err.
func AsError(err error) (*Error, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Dates returns the occurrence start times after start, stepping by freq,
// up to and including the calendar day of end. Monthly steps keep the day of
// month, clamped to the last day of shorter months.
func Dates(start time.Time, freq model.Frequency, end time.Time) ([]time.Time, error) {
	step, err := stepper(freq)
	if err != nil {
		return nil, err
	}

	startDay := dayOf(start, start.Location())
	endDay := dayOf(end, start.Location())
	if endDay.Before(startDay) {
		return nil, fmt.Errorf("%w: end date %s is before %s",
			booking.ErrInvalidRecurrenceRule, endDay.Format("2006-01-02"), startDay.Format("2006-01-02"))
	}

	var dates []time.Time
	for k := 1; ; k++ {
		next := step(start, k)
		if dayOf(next, start.Location()).After(endDay) {
			break
		}
		if len(dates) == MaxOccurrences {
			return nil, fmt.Errorf("%w: more than %d occurrences", booking.ErrInvalidRecurrenceRule, MaxOccurrences)
		}
		dates = append(dates, next)
	}
	return dates, nil
}

func stepper(freq model.Frequency) (func(time.Time, int) time.Time, error) {
	switch freq {
	case model.FrequencyWeekly:
		return func(t time.Time, k int) time.Time { return t.AddDate(0, 0, 7*k) }, nil
	case model.FrequencyBiweekly:
		return func(t time.Time, k int) time.Time { return t.AddDate(0, 0, 14*k) }, nil
	case model.FrequencyMonthly:
		return addMonths, nil
	}
	return nil, fmt.Errorf("%w: unknown frequency %q", booking.ErrInvalidRecurrenceRule, freq)
}

// addMonths moves t forward k calendar months from the original date so
// that a series starting on the 31st does not drift after February.
func addMonths(t time.Time, k int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(k), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// Plan validates every date through booking.Validate and returns the child
// bookings, unsaved. Occurrences are checked against each other as well as occ.
func Plan(parent *model.Booking, staff *model.User, svc *model.Service, dates []time.Time, occ booking.Occupancy) ([]model.Booking, error) {
	children := make([]model.Booking, 0, len(dates))
	for i, date := range dates {
		d, err := booking.Validate(booking.Request{Staff: staff, Service: svc, Start: date}, occ)
		if err != nil {
			return nil, &Error{Index: i, Date: date, Err: err}
		}

		parentID := parent.ID
		child := model.Booking{
			ShopID:             parent.ShopID,
			ServiceID:          parent.ServiceID,
			StaffID:            parent.StaffID,
			PetID:              parent.PetID,
			TutorID:            parent.TutorID,
			ClientName:         parent.ClientName,
			ClientPhone:        parent.ClientPhone,
			StartTime:          date,
			EndTime:            d.EndTime,
			Status:             model.StatusPending,
			TotalPriceCents:    d.PriceCents,
			RecurrenceParentID: &parentID,
		}
		children = append(children, child)
		occ.Add(child)
	}
	return children, nil
}

// UnitOfWork runs fn inside one transaction carried by ctx. Returning an
// error from fn rolls back every write made through ctx.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repository is the storage the expander reads and writes inside the transaction.
type Repository interface {
	ListStaffBookings(ctx context.Context, staffID int64, from, to time.Time) ([]model.Booking, error)
	ListStaffBlocks(ctx context.Context, staffID int64, from, to time.Time) ([]model.TimeBlock, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	SetRecurrence(ctx context.Context, bookingID int64, rule model.RecurrenceRule) error
}

// Expander drives date generation, validation and the atomic commit.
type Expander struct {
	uow    UnitOfWork
	repo   Repository
	logger zerolog.Logger
}

// NewExpander creates an expander.
func NewExpander(uow UnitOfWork, repo Repository, logger zerolog.Logger) *Expander {
	return &Expander{
		uow:    uow,
		repo:   repo,
		logger: logger.With().Str("component", "recurrence").Logger(),
	}
}

// Create expands parent by rule and persists all occurrences, or none.
func (e *Expander) Create(ctx context.Context, parent *model.Booking, staff *model.User, svc *model.Service, rule model.RecurrenceRule) ([]model.Booking, error) {
	if err := checkParent(parent); err != nil {
		return nil, err
	}

	dates, err := Dates(parent.StartTime, rule.Frequency, rule.EndDate)
	if err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return []model.Booking{}, nil
	}

	loc := parent.StartTime.Location()
	from := dayOf(dates[0], loc)
	to := dayOf(dates[len(dates)-1], loc).AddDate(0, 0, 1)

	var created []model.Booking
	err = e.uow.WithinTx(ctx, func(ctx context.Context) error {
		bookings, err := e.repo.ListStaffBookings(ctx, staff.ID, from, to)
		if err != nil {
			return fmt.Errorf("list bookings: %w", err)
		}
		blocks, err := e.repo.ListStaffBlocks(ctx, staff.ID, from, to)
		if err != nil {
			return fmt.Errorf("list time blocks: %w", err)
		}

		children, err := Plan(parent, staff, svc, dates, booking.Occupancy{Bookings: bookings, Blocks: blocks})
		if err != nil {
			return err
		}

		for i := range children {
			if err := e.repo.CreateBooking(ctx, &children[i]); err != nil {
				return fmt.Errorf("create occurrence %d: %w", i+1, err)
			}
		}
		if err := e.repo.SetRecurrence(ctx, parent.ID, rule); err != nil {
			return fmt.Errorf("store rule: %w", err)
		}
		created = children
		return nil
	})
	if err != nil {
		e.logger.Info().
			Int64("parent_id", parent.ID).
			Str("frequency", string(rule.Frequency)).
			Err(err).
			Msg("recurrence rejected")
		return nil, err
	}

	parent.Recurrence = &rule
	e.logger.Info().
		Int64("parent_id", parent.ID).
		Str("frequency", string(rule.Frequency)).
		Int("occurrences", len(created)).
		Msg("recurrence created")
	return created, nil
}

func checkParent(parent *model.Booking) error {
	switch {
	case parent.RecurrenceParentID != nil:
		return fmt.Errorf("%w: booking %d is itself an occurrence", booking.ErrInvalidRecurrenceRule, parent.ID)
	case parent.Recurrence != nil:
		return fmt.Errorf("%w: booking %d already has a recurrence", booking.ErrInvalidRecurrenceRule, parent.ID)
	case !parent.Occupies():
		return fmt.Errorf("%w: booking %d is %s", booking.ErrInvalidRecurrenceRule, parent.ID, parent.Status)
	}
	return nil
}
