package schedule

import "time"

// Clinic work window for the day-view slot grid: 09:00-16:00 in 30-minute
// steps, which yields exactly 14 slots.
const (
	workdayStartHour = 9
	workdayEndHour   = 16
	slotStep         = 30 * time.Minute
)

type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
}

// DaySlots builds the slot grid for the calendar day containing date.
// A slot is unavailable when its [Start,End) window overlaps any busy
// interval under the half-open rule.
func DaySlots(date time.Time, busy []Interval) []Slot {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), workdayStartHour, 0, 0, 0, date.Location())
	dayEnd := time.Date(date.Year(), date.Month(), date.Day(), workdayEndHour, 0, 0, 0, date.Location())

	var slots []Slot
	for t := dayStart; t.Before(dayEnd); t = t.Add(slotStep) {
		end := t.Add(slotStep)
		slots = append(slots, Slot{
			Start:     t,
			End:       end,
			Available: !OverlapsAny(t, end, busy),
		})
	}
	return slots
}
