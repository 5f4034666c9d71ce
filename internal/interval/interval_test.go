package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(h, m int) time.Time {
	return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"touching end to start", Interval{at(9, 0), at(10, 0)}, Interval{at(10, 0), at(11, 0)}, false},
		{"partial overlap", Interval{at(10, 0), at(11, 0)}, Interval{at(10, 30), at(11, 30)}, true},
		{"contained", Interval{at(9, 0), at(12, 0)}, Interval{at(10, 0), at(10, 15)}, true},
		{"identical", Interval{at(9, 0), at(10, 0)}, Interval{at(9, 0), at(10, 0)}, true},
		{"disjoint", Interval{at(8, 0), at(9, 0)}, Interval{at(13, 0), at(14, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.a, tt.b))
			assert.Equal(t, tt.want, Overlaps(tt.b, tt.a), "overlap must be symmetric")
		})
	}
}

func TestOverlapsSymmetryGrid(t *testing.T) {
	var ivs []Interval
	for s := 0; s < 8; s++ {
		for l := 1; l <= 4; l++ {
			start := at(8, s*15)
			ivs = append(ivs, New(start, time.Duration(l*15)*time.Minute))
		}
	}
	for _, a := range ivs {
		for _, b := range ivs {
			assert.Equal(t, a.Overlaps(b), b.Overlaps(a), "%s vs %s", a, b)
		}
	}
}

func TestContains(t *testing.T) {
	window := Interval{at(8, 0), at(12, 0)}

	assert.True(t, window.Contains(Interval{at(8, 0), at(12, 0)}))
	assert.True(t, window.Contains(Interval{at(11, 0), at(12, 0)}))
	assert.False(t, window.Contains(Interval{at(11, 30), at(12, 30)}))
	assert.False(t, window.Contains(Interval{at(7, 45), at(8, 45)}))
}

func TestAnyOverlap(t *testing.T) {
	busy := []Interval{
		{at(9, 0), at(10, 0)},
		{at(11, 0), at(12, 0)},
	}

	assert.Equal(t, -1, AnyOverlap(Interval{at(10, 0), at(11, 0)}, busy))
	assert.Equal(t, 1, AnyOverlap(Interval{at(11, 30), at(12, 30)}, busy))
	assert.Equal(t, -1, AnyOverlap(Interval{at(10, 0), at(11, 0)}, nil))
}

func TestValid(t *testing.T) {
	assert.True(t, Interval{at(9, 0), at(9, 1)}.Valid())
	assert.False(t, Interval{at(9, 0), at(9, 0)}.Valid())
	assert.False(t, Interval{at(10, 0), at(9, 0)}.Valid())
}
