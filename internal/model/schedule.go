package model

import (
	"fmt"
	"strings"
	"time"

	"petagenda/internal/interval"
)

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" (24-hour).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustTimeOfDay is ParseTimeOfDay for constants.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the zero-padded "HH:MM" form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On returns the instant at this time of day on the date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, day.Location())
}

// ClockOf extracts the time of day from a timestamp, dropping seconds.
func ClockOf(ts time.Time) TimeOfDay {
	return TimeOfDay(ts.Hour()*60 + ts.Minute())
}

// DaySchedule is one weekday of a staff member's working hours.
type DaySchedule struct {
	Start      TimeOfDay `json:"start"`
	BreakStart TimeOfDay `json:"break_start"`
	BreakEnd   TimeOfDay `json:"break_end"`
	End        TimeOfDay `json:"end"`
}

// Validate checks start <= break_start <= break_end <= end.
func (d DaySchedule) Validate() error {
	if d.Start > d.BreakStart {
		return fmt.Errorf("break_start %s is before start %s", d.BreakStart, d.Start)
	}
	if d.BreakStart > d.BreakEnd {
		return fmt.Errorf("break_end %s is before break_start %s", d.BreakEnd, d.BreakStart)
	}
	if d.BreakEnd > d.End {
		return fmt.Errorf("end %s is before break_end %s", d.End, d.BreakEnd)
	}
	return nil
}

// Morning returns [start, break_start] on the given day.
func (d DaySchedule) Morning(day time.Time) interval.Interval {
	return interval.Interval{Start: d.Start.On(day), End: d.BreakStart.On(day)}
}

// Afternoon returns [break_end, end] on the given day.
func (d DaySchedule) Afternoon(day time.Time) interval.Interval {
	return interval.Interval{Start: d.BreakEnd.On(day), End: d.End.On(day)}
}

// Fits reports whether iv lies entirely inside the morning or the afternoon
// sub-window of the day iv starts on. An interval straddling the break fits neither.
func (d DaySchedule) Fits(iv interval.Interval) bool {
	return d.Morning(iv.Start).Contains(iv) || d.Afternoon(iv.Start).Contains(iv)
}

// WorkSchedule maps weekdays to working hours. A missing weekday is a day off.
type WorkSchedule map[time.Weekday]DaySchedule

// Lookup returns the schedule for a weekday and whether the staff member works that day.
func (w WorkSchedule) Lookup(day time.Weekday) (DaySchedule, bool) {
	if w == nil {
		return DaySchedule{}, false
	}
	ds, ok := w[day]
	return ds, ok
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts lowercase or capitalized English weekday names.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
	return wd, nil
}

// WeekdayName returns the lowercase name used in schedule documents.
func WeekdayName(day time.Weekday) string {
	return strings.ToLower(day.String())
}
