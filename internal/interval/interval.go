// Package interval implements half-open time ranges and the overlap test used
// for every conflict check in the scheduler.
package interval

import (
	"fmt"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// New builds an interval of length d starting at start.
func New(start time.Time, d time.Duration) Interval {
	return Interval{Start: start, End: start.Add(d)}
}

// Valid reports whether Start < End.
func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether i and other share any instant.
// Touching endpoints do not overlap: [9:00,10:00) and [10:00,11:00) are disjoint.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains reports whether other lies within i, endpoints inclusive.
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format("2006-01-02 15:04"), i.End.Format("15:04"))
}

// Overlaps is the function form of Interval.Overlaps.
func Overlaps(a, b Interval) bool {
	return a.Overlaps(b)
}

// AnyOverlap returns the index of the first busy interval overlapping iv, or -1.
func AnyOverlap(iv Interval, busy []Interval) int {
	for idx, b := range busy {
		if iv.Overlaps(b) {
			return idx
		}
	}
	return -1
}
