package slots

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"petagenda/internal/booking"
	"petagenda/internal/model"
)

// Config is the business-day policy for candidate slots.
type Config struct {
	DayStart model.TimeOfDay
	DayEnd   model.TimeOfDay
	Stride   time.Duration
}

// DefaultConfig is 08:00-20:00 with a 15 minute stride.
func DefaultConfig() Config {
	return Config{
		DayStart: model.MustTimeOfDay("08:00"),
		DayEnd:   model.MustTimeOfDay("20:00"),
		Stride:   15 * time.Minute,
	}
}

// Validate checks the window is non-empty and the stride positive.
func (c Config) Validate() error {
	if c.DayEnd <= c.DayStart {
		return fmt.Errorf("day_end %s must be after day_start %s", c.DayEnd, c.DayStart)
	}
	if c.Stride <= 0 {
		return fmt.Errorf("slot stride must be positive, got %s", c.Stride)
	}
	return nil
}

// Slot is a bookable start time and the roster members free for it.
type Slot struct {
	StartTime time.Time
	EndTime   time.Time
	StaffIDs  []int64
}

// SlotInfo is the transport form of a slot.
type SlotInfo struct {
	Start    string  `json:"start"` // "10:00"
	End      string  `json:"end"`   // "11:00"
	StaffIDs []int64 `json:"staff_ids"`
}

// Input is the working set for one day's availability.
type Input struct {
	Day      time.Time
	Service  *model.Service
	Roster   []model.User
	Bookings []model.Booking
	Blocks   []model.TimeBlock
}

// Generator enumerates available slots for a day.
type Generator struct {
	cfg Config
}

// NewGenerator creates a new slot generator.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg}
}

// Config returns the generator's policy.
func (g *Generator) Config() Config {
	return g.cfg
}

// Slots yields available slots in ascending order. Each range over the
// returned sequence recomputes from the first candidate. Nothing is reserved.
func (g *Generator) Slots(in Input) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if len(in.Roster) == 0 || in.Service == nil {
			return
		}

		occ := booking.Occupancy{Bookings: in.Bookings, Blocks: in.Blocks}
		dayEnd := g.cfg.DayEnd.On(in.Day)

		for cursor := g.cfg.DayStart.On(in.Day); cursor.Before(dayEnd); cursor = cursor.Add(g.cfg.Stride) {
			end := booking.EndTime(cursor, in.Service)
			if end.After(dayEnd) {
				return
			}

			free := freeStaff(in, cursor, occ)
			if len(free) == 0 {
				continue
			}
			if !yield(Slot{StartTime: cursor, EndTime: end, StaffIDs: free}) {
				return
			}
		}
	}
}

// GenerateSlots collects Slots into a slice.
func (g *Generator) GenerateSlots(in Input) []Slot {
	return slices.Collect(g.Slots(in))
}

// AvailableSlots returns start times as zero-padded "HH:MM" strings.
func (g *Generator) AvailableSlots(in Input) []string {
	result := make([]string, 0)
	for s := range g.Slots(in) {
		result = append(result, s.StartTime.Format("15:04"))
	}
	return result
}

func freeStaff(in Input, start time.Time, occ booking.Occupancy) []int64 {
	var free []int64
	for i := range in.Roster {
		req := booking.Request{Staff: &in.Roster[i], Service: in.Service, Start: start}
		if _, err := booking.Validate(req, occ); err == nil {
			free = append(free, in.Roster[i].ID)
		}
	}
	return free
}

// ToSlotInfo converts slots to SlotInfo for transport.
func ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			Start:    s.StartTime.Format("15:04"),
			End:      s.EndTime.Format("15:04"),
			StaffIDs: s.StaffIDs,
		}
	}
	return result
}
