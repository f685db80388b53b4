package schedule

import (
	"testing"
	"time"
)

func TestDaySlots_Grid(t *testing.T) {
	day := time.Date(2025, 3, 3, 12, 34, 56, 0, time.UTC)
	slots := DaySlots(day, nil)

	if len(slots) != 14 {
		t.Fatalf("expected 14 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("first slot starts at %s, want 09:00", slots[0].Start)
	}
	last := slots[len(slots)-1]
	if !last.End.Equal(time.Date(2025, 3, 3, 16, 0, 0, 0, time.UTC)) {
		t.Fatalf("last slot ends at %s, want 16:00", last.End)
	}
	for i, s := range slots {
		if !s.Available {
			t.Errorf("slot %d should be available on an empty day", i)
		}
		if s.End.Sub(s.Start) != 30*time.Minute {
			t.Errorf("slot %d has width %s, want 30m", i, s.End.Sub(s.Start))
		}
	}
}

func TestDaySlots_BusyMarking(t *testing.T) {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	// 09:15-10:15 touches the 09:00, 09:30 and 10:00 slots.
	busy := []Interval{{
		Start: time.Date(2025, 3, 3, 9, 15, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 3, 10, 15, 0, 0, time.UTC),
	}}
	slots := DaySlots(day, busy)

	wantUnavailable := map[int]bool{0: true, 1: true, 2: true}
	for i, s := range slots {
		if want := wantUnavailable[i]; s.Available == want {
			t.Errorf("slot %d (%s) availability = %v, want %v", i, s.Start.Format("15:04"), s.Available, !want)
		}
	}
}

func TestDaySlots_AppointmentEndingOnBoundary(t *testing.T) {
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	// 09:00-09:30 occupies exactly the first slot; 09:30 slot stays free.
	busy := []Interval{{
		Start: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC),
	}}
	slots := DaySlots(day, busy)
	if slots[0].Available {
		t.Error("09:00 slot should be busy")
	}
	if !slots[1].Available {
		t.Error("09:30 slot should be free (half-open boundary)")
	}
}
