package schedule

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2026, 1, 28, h, m, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name       string
		start, end time.Time
		other      Interval
		want       bool
	}{
		{"contained", at(10, 30), at(11, 30), Interval{at(10, 0), at(12, 0)}, true},
		{"partial front", at(9, 30), at(10, 30), Interval{at(10, 0), at(11, 0)}, true},
		{"partial back", at(10, 30), at(11, 30), Interval{at(10, 0), at(11, 0)}, true},
		{"identical", at(10, 0), at(11, 0), Interval{at(10, 0), at(11, 0)}, true},
		{"back to back before", at(9, 0), at(10, 0), Interval{at(10, 0), at(11, 0)}, false},
		{"back to back after", at(11, 0), at(12, 0), Interval{at(10, 0), at(11, 0)}, false},
		{"disjoint", at(13, 0), at(14, 0), Interval{at(10, 0), at(11, 0)}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Overlaps(c.start, c.end, c.other); got != c.want {
				t.Fatalf("Overlaps = %v, want %v", got, c.want)
			}
		})
	}
}

func TestOverlapsAny(t *testing.T) {
	busy := []Interval{
		{at(9, 0), at(10, 0)},
		{at(14, 0), at(15, 0)},
	}
	if OverlapsAny(at(10, 0), at(11, 0), busy) {
		t.Error("adjacent interval should not overlap")
	}
	if !OverlapsAny(at(14, 30), at(16, 0), busy) {
		t.Error("expected overlap with afternoon interval")
	}
	if OverlapsAny(at(11, 0), at(12, 0), nil) {
		t.Error("no busy intervals should never overlap")
	}
}
