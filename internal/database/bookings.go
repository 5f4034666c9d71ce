package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"petagenda/internal/model"
)

const bookingColumns = `id, shop_id, service_id, staff_id, pet_id, tutor_id, client_name, client_phone,
       start_time, end_time, status, total_price_cents, recurrence_parent_id,
       recurrence_frequency, recurrence_end_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) scanBooking(row rowScanner) (*model.Booking, error) {
	var (
		b                     model.Booking
		tutorID, parentID     sql.NullInt64
		clientName, phone     sql.NullString
		start, end            string
		status                string
		frequency, recurUntil sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.ShopID, &b.ServiceID, &b.StaffID, &b.PetID, &tutorID, &clientName, &phone,
		&start, &end, &status, &b.TotalPriceCents, &parentID,
		&frequency, &recurUntil, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if b.StartTime, err = db.parseTime(start); err != nil {
		return nil, err
	}
	if b.EndTime, err = db.parseTime(end); err != nil {
		return nil, err
	}
	b.Status = model.Status(status)
	if tutorID.Valid {
		b.TutorID = &tutorID.Int64
	}
	if parentID.Valid {
		b.RecurrenceParentID = &parentID.Int64
	}
	b.ClientName = clientName.String
	b.ClientPhone = phone.String
	if frequency.Valid && recurUntil.Valid {
		until, err := db.parseTime(recurUntil.String)
		if err != nil {
			return nil, err
		}
		b.Recurrence = &model.RecurrenceRule{Frequency: model.Frequency(frequency.String), EndDate: until}
	}
	return &b, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...interface{}) ([]model.Booking, error) {
	rows, err := db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		b, err := db.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// CreateBooking inserts b and fills its ID and timestamps.
func (db *DB) CreateBooking(ctx context.Context, b *model.Booking) error {
	if b == nil {
		return fmt.Errorf("booking is nil")
	}
	if b.Status == "" {
		b.Status = model.StatusPending
	}

	now := time.Now()
	res, err := db.conn(ctx).ExecContext(ctx, `
		INSERT INTO bookings (
			shop_id, service_id, staff_id, pet_id, tutor_id, client_name, client_phone,
			start_time, end_time, status, total_price_cents, recurrence_parent_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ShopID, b.ServiceID, b.StaffID, b.PetID, nullInt64(b.TutorID), b.ClientName, b.ClientPhone,
		formatTime(b.StartTime), formatTime(b.EndTime), string(b.Status), b.TotalPriceCents,
		nullInt64(b.RecurrenceParentID), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("booking id: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetBooking returns a booking by id or ErrNotFound.
func (db *DB) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	row := db.conn(ctx).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := db.scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

// UpdateBookingStatus sets the status of a booking.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status model.Status) error {
	res, err := db.conn(ctx).ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update booking %d status: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetRecurrence stores the rule on a parent booking.
func (db *DB) SetRecurrence(ctx context.Context, bookingID int64, rule model.RecurrenceRule) error {
	res, err := db.conn(ctx).ExecContext(ctx, `
		UPDATE bookings SET recurrence_frequency = ?, recurrence_end_date = ?, updated_at = ?
		WHERE id = ?`,
		string(rule.Frequency), formatTime(rule.EndDate), time.Now(), bookingID,
	)
	if err != nil {
		return fmt.Errorf("set recurrence on %d: %w", bookingID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	return nil
}

// ListStaffBookings returns PENDING/CONFIRMED bookings of a staff member overlapping [from, to).
func (db *DB) ListStaffBookings(ctx context.Context, staffID int64, from, to time.Time) ([]model.Booking, error) {
	return db.ListBookingsForStaff(ctx, []int64{staffID}, from, to)
}

// ListBookingsForStaff returns PENDING/CONFIRMED bookings of any of staffIDs overlapping [from, to).
func (db *DB) ListBookingsForStaff(ctx context.Context, staffIDs []int64, from, to time.Time) ([]model.Booking, error) {
	if len(staffIDs) == 0 {
		return nil, nil
	}

	args := int64Args(staffIDs)
	args = append(args, formatTime(to), formatTime(from), string(model.StatusPending), string(model.StatusConfirmed))
	bookings, err := db.queryBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE staff_id IN (`+placeholders(len(staffIDs))+`)
		AND start_time < ? AND end_time > ?
		AND status IN (?, ?)
		ORDER BY start_time`, args...)
	if err != nil {
		return nil, fmt.Errorf("list staff bookings: %w", err)
	}
	return bookings, nil
}

// ListBookingsBetween returns bookings of every status starting in [from, to).
func (db *DB) ListBookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	bookings, err := db.queryBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE start_time >= ? AND start_time < ?
		ORDER BY shop_id, start_time`,
		formatTime(from), formatTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// ListRecurrenceChildren returns the occurrences generated from a parent booking.
func (db *DB) ListRecurrenceChildren(ctx context.Context, parentID int64) ([]model.Booking, error) {
	return db.queryBookings(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE recurrence_parent_id = ?
		ORDER BY start_time`, parentID)
}

// CompleteElapsed moves CONFIRMED bookings that ended before now to COMPLETED.
// It returns the affected bookings so callers can publish events.
func (db *DB) CompleteElapsed(ctx context.Context, now time.Time) ([]model.Booking, error) {
	var done []model.Booking
	err := db.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		done, err = db.queryBookings(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE status = ? AND end_time <= ?`,
			string(model.StatusConfirmed), formatTime(now))
		if err != nil {
			return err
		}
		if len(done) == 0 {
			return nil
		}
		_, err = db.conn(ctx).ExecContext(ctx, `
			UPDATE bookings SET status = ?, updated_at = ?
			WHERE status = ? AND end_time <= ?`,
			string(model.StatusCompleted), now, string(model.StatusConfirmed), formatTime(now))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("complete elapsed bookings: %w", err)
	}
	for i := range done {
		done[i].Status = model.StatusCompleted
	}
	return done, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
