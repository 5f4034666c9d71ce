package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petagenda/internal/interval"
)

func datetime(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func standardDay() DaySchedule {
	return DaySchedule{
		Start:      MustTimeOfDay("08:00"),
		BreakStart: MustTimeOfDay("12:00"),
		BreakEnd:   MustTimeOfDay("13:00"),
		End:        MustTimeOfDay("17:00"),
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(9*60+5), tod)
	assert.Equal(t, "09:05", tod.String())

	_, err = ParseTimeOfDay("9h05")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("25:00")
	assert.Error(t, err)
}

func TestTimeOfDay_On(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	day := time.Date(2024, 1, 1, 23, 59, 0, 0, loc)

	got := MustTimeOfDay("08:30").On(day)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 30, 0, 0, loc), got)
	assert.Equal(t, MustTimeOfDay("08:30"), ClockOf(got))
}

func TestDaySchedule_Validate(t *testing.T) {
	assert.NoError(t, standardDay().Validate())

	noBreak := DaySchedule{Start: 480, BreakStart: 1020, BreakEnd: 1020, End: 1020}
	assert.NoError(t, noBreak.Validate())

	bad := standardDay()
	bad.BreakStart = MustTimeOfDay("07:00")
	assert.Error(t, bad.Validate())

	bad = standardDay()
	bad.BreakEnd = MustTimeOfDay("11:00")
	assert.Error(t, bad.Validate())

	bad = standardDay()
	bad.End = MustTimeOfDay("12:30")
	assert.Error(t, bad.Validate())
}

func TestDaySchedule_Fits(t *testing.T) {
	ds := standardDay()
	monday := datetime(2024, 1, 1, 0, 0)

	tests := []struct {
		name  string
		start string
		dur   time.Duration
		want  bool
	}{
		{"opening", "08:00", time.Hour, true},
		{"ends at break", "11:00", time.Hour, true},
		{"straddles break", "11:30", time.Hour, false},
		{"inside break", "12:15", 30 * time.Minute, false},
		{"starts at break end", "13:00", time.Hour, true},
		{"ends at close", "16:00", time.Hour, true},
		{"past close", "16:30", time.Hour, false},
		{"before open", "07:30", time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := interval.New(MustTimeOfDay(tt.start).On(monday), tt.dur)
			assert.Equal(t, tt.want, ds.Fits(iv))
		})
	}
}

func TestWorkSchedule_Lookup(t *testing.T) {
	ws := WorkSchedule{time.Monday: standardDay()}

	ds, ok := ws.Lookup(time.Monday)
	assert.True(t, ok)
	assert.Equal(t, standardDay(), ds)

	_, ok = ws.Lookup(time.Sunday)
	assert.False(t, ok)

	var empty WorkSchedule
	_, ok = empty.Lookup(time.Monday)
	assert.False(t, ok)

	u := User{Schedule: ws}
	_, ok = u.ScheduleFor(datetime(2024, 1, 1, 10, 0))
	assert.True(t, ok, "2024-01-01 is a Monday")
}

func TestParseWeekday(t *testing.T) {
	wd, err := ParseWeekday("Monday")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, wd)
	assert.Equal(t, "monday", WeekdayName(wd))

	_, err = ParseWeekday("funday")
	assert.Error(t, err)
}
