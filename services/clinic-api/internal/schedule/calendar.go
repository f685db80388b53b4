package schedule

import (
	"fmt"
	"time"

	"github.com/physioflow/physioflow/services/clinic-api/internal/model"
)

// View is the calendar granularity requested for projection.
type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
)

func ParseView(s string) (View, error) {
	if s == "" {
		return ViewDay, nil
	}
	v := View(s)
	switch v {
	case ViewDay, ViewWeek, ViewMonth:
		return v, nil
	}
	return "", fmt.Errorf("unknown calendar view %q", s)
}

// ViewRange resolves a reference date and view into the inclusive date range
// the calendar covers. The end instant is the last representable millisecond
// of the range's final day. Weeks start on Sunday; months account for
// variable length and leap years.
func ViewRange(date time.Time, view View) (time.Time, time.Time) {
	loc := date.Location()
	switch view {
	case ViewWeek:
		weekStart := date.AddDate(0, 0, -int(date.Weekday()))
		start := startOfDay(weekStart, loc)
		return start, endOfDay(start.AddDate(0, 0, 6), loc)
	case ViewMonth:
		start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, loc)
		lastDay := start.AddDate(0, 1, -1)
		return start, endOfDay(lastDay, loc)
	default:
		return startOfDay(date, loc), endOfDay(date, loc)
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
}

// EventColors is the display color pair for a calendar event.
type EventColors struct {
	Background string
	Border     string
}

// Colors derives the deterministic display colors for an appointment.
// Status-based colors override the type palette.
func Colors(typ model.AppointmentType, status model.AppointmentStatus) EventColors {
	return EventColors{
		Background: backgroundColor(typ, status),
		Border:     borderColor(status),
	}
}

func backgroundColor(typ model.AppointmentType, status model.AppointmentStatus) string {
	switch status {
	case model.StatusCancelled:
		return "#9CA3AF"
	case model.StatusNoShow:
		return "#EF4444"
	case model.StatusCompleted, model.StatusClosed:
		return "#10B981"
	}
	switch typ {
	case model.TypeEvaluation:
		return "#3B82F6"
	case model.TypeSession:
		return "#8B5CF6"
	case model.TypeReturn:
		return "#06B6D4"
	case model.TypeGroupClass:
		return "#F59E0B"
	case model.TypeUrgent:
		return "#EF4444"
	case model.TypeTeleconsult:
		return "#10B981"
	default:
		return "#6B7280"
	}
}

func borderColor(status model.AppointmentStatus) string {
	switch status {
	case model.StatusNoShow:
		return "#B91C1C"
	case model.StatusCancelled:
		return "#6B7280"
	case model.StatusCompleted, model.StatusClosed:
		return "#059669"
	default:
		return "#1F2937"
	}
}

// Summary aggregates a projected range for the calendar header.
type Summary struct {
	Total      int
	Scheduled  int
	Completed  int
	Revenue    float64
	FreeSlots  int
	UsedSlots  int
	SlotCounts bool
}

// Summarize computes the range statistics. Slots may be nil for week and
// month views; in that case the slot counters are omitted.
func Summarize(appts []model.Appointment, slots []Slot) Summary {
	s := Summary{Total: len(appts)}
	for _, a := range appts {
		switch a.Status {
		case model.StatusScheduled:
			s.Scheduled++
		case model.StatusCompleted, model.StatusClosed:
			s.Completed++
			if a.Value != nil {
				s.Revenue += *a.Value
			}
		}
	}
	if slots != nil {
		s.SlotCounts = true
		for _, slot := range slots {
			if slot.Available {
				s.FreeSlots++
			} else {
				s.UsedSlots++
			}
		}
	}
	return s
}
