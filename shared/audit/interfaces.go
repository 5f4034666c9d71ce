package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"petagenda/internal/model"
)

// BookingSource provides the rows for an export.
type BookingSource interface {
	ListShops(ctx context.Context) ([]model.Shop, error)

	// ListBookingsBetween returns bookings of every status starting in [from, to).
	ListBookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error)

	GetService(ctx context.Context, id int64) (*model.Service, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	// AddSheet adds a new sheet and makes it current.
	AddSheet(name string) error

	// WriteHeader writes column headers to current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to current sheet.
	WriteRow(row []interface{}) error

	// Save writes the workbook to w.
	Save(w io.Writer) error

	// SaveToFile writes the workbook to disk.
	SaveToFile(path string) error

	Close() error
}

// Columns of every shop sheet, in order.
var Columns = []string{
	"ID", "Start", "End", "Status", "Service", "Staff",
	"Pet ID", "Tutor ID", "Client", "Phone", "Price", "Series parent",
}

// GenerateFilename creates a filename like "bookings_2024-01.xlsx".
func GenerateFilename(month time.Time) string {
	return fmt.Sprintf("bookings_%s.xlsx", month.Format("2006-01"))
}

// MonthRange returns the first instant of t's month and of the next one.
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}

// PreviousMonth returns the first instant of the month before now.
func PreviousMonth(now time.Time) time.Time {
	start, _ := MonthRange(now)
	return start.AddDate(0, -1, 0)
}
