package audit

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"petagenda/internal/model"
)

type fakeSource struct {
	shops    []model.Shop
	bookings []model.Booking
	from, to time.Time
}

func (f *fakeSource) ListShops(ctx context.Context) ([]model.Shop, error) {
	return f.shops, nil
}

func (f *fakeSource) ListBookingsBetween(ctx context.Context, from, to time.Time) ([]model.Booking, error) {
	f.from, f.to = from, to
	var out []model.Booking
	for _, b := range f.bookings {
		if !b.StartTime.Before(from) && b.StartTime.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeSource) GetService(ctx context.Context, id int64) (*model.Service, error) {
	if id == 3 {
		return &model.Service{ID: 3, Name: "Bath"}, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeSource) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if id == 11 {
		return &model.User{ID: 11, Name: "Ana"}, nil
	}
	return nil, errors.New("not found")
}

func TestExportMonth(t *testing.T) {
	tid := int64(50)
	at := func(m time.Month, d, h int) time.Time { return time.Date(2024, m, d, h, 0, 0, 0, time.UTC) }
	src := &fakeSource{
		shops: []model.Shop{{ID: 2, Name: "Cats/Dogs"}, {ID: 1, Name: "Happy Paws"}},
		bookings: []model.Booking{
			{ID: 1, ShopID: 1, ServiceID: 3, StaffID: 11, PetID: 9, TutorID: &tid, StartTime: at(1, 1, 10), EndTime: at(1, 1, 11), Status: model.StatusCancelled, TotalPriceCents: 4500},
			{ID: 2, ShopID: 1, ServiceID: 4, StaffID: 12, PetID: 9, StartTime: at(1, 31, 10), EndTime: at(1, 31, 11), Status: model.StatusCompleted},
			{ID: 3, ShopID: 1, ServiceID: 3, StaffID: 11, PetID: 9, StartTime: at(2, 1, 10), EndTime: at(2, 1, 11), Status: model.StatusPending},
		},
	}
	dir := t.TempDir()
	svc := NewService(&Config{Dir: dir}, src, nil, time.UTC, zerolog.New(io.Discard))

	path, err := svc.ExportMonth(context.Background(), at(1, 15, 0))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bookings_2024-01.xlsx"), path)
	assert.Equal(t, at(1, 1, 0), src.from)
	assert.Equal(t, at(2, 1, 0), src.to)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"1 Happy Paws", "2 Cats Dogs"}, f.GetSheetList())

	rows, err := f.GetRows("1 Happy Paws")
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two January bookings")
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"1", "2024-01-01 10:00", "2024-01-01 11:00", "CANCELLED", "Bath", "Ana", "9", "50", "", "", "45"}, rows[1][:11])
	assert.Equal(t, "#4", rows[2][4])
	assert.Equal(t, "#12", rows[2][5])

	empty, err := f.GetRows("2 Cats Dogs")
	require.NoError(t, err)
	assert.Len(t, empty, 1)
}

func TestMonthHelpers(t *testing.T) {
	now := time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), PreviousMonth(now))
	assert.Equal(t, "bookings_2024-02.xlsx", GenerateFilename(PreviousMonth(now)))

	from, to := MonthRange(now)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "a b (c)", SheetName("a:b [c]"))
	assert.Equal(t, "Sheet", SheetName("  "))
	assert.Len(t, []rune(SheetName("a very long shop name that exceeds the excel limit")), 31)
}

func TestWriteRow_RequiresSheetAndWidth(t *testing.T) {
	w := NewExcelizeWriter()
	defer w.Close()

	assert.Error(t, w.WriteRow([]interface{}{1}))
	require.NoError(t, w.AddSheet("s"))
	require.NoError(t, w.WriteHeader([]string{"a", "b"}))
	assert.Error(t, w.WriteRow([]interface{}{1}))
	assert.NoError(t, w.WriteRow([]interface{}{1, 2}))
	assert.Error(t, w.AddSheet("s"))
}
