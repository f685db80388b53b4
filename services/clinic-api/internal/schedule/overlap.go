package schedule

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start,end) intersects [other.Start,other.End).
// Half-open semantics: back-to-back intervals where one ends exactly when
// the other starts do not overlap.
func Overlaps(start, end time.Time, other Interval) bool {
	return start.Before(other.End) && other.Start.Before(end)
}

// OverlapsAny reports whether [start,end) intersects any busy interval.
func OverlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b) {
			return true
		}
	}
	return false
}
