package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/physioflow/physioflow/services/clinic-api/internal/model"
	"github.com/physioflow/physioflow/services/clinic-api/internal/schedule"
)

type calendarEvent struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	PatientID       string    `json:"patientId"`
	TherapistID     string    `json:"therapistId"`
	TherapistName   string    `json:"therapistName"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	Duration        int       `json:"duration"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	BackgroundColor string    `json:"backgroundColor"`
	BorderColor     string    `json:"borderColor"`
}

type timeSlot struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Available bool      `json:"available"`
}

type calendarSummary struct {
	TotalAppointments int     `json:"totalAppointments"`
	Scheduled         int     `json:"scheduled"`
	Completed         int     `json:"completed"`
	Revenue           float64 `json:"revenue"`
	BookedSlots       *int    `json:"bookedSlots,omitempty"`
	AvailableSlots    *int    `json:"availableSlots,omitempty"`
}

type dateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	View  string    `json:"view"`
}

// Calendar serves GET /api/v1/appointments/calendar: a date + view resolved
// into a bounded range, rendered events, day-view slot availability and
// summary statistics.
func (h *AppointmentHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	params := r.URL.Query()
	var details []fieldError

	date := time.Now().UTC()
	if raw := strings.TrimSpace(params.Get("date")); raw != "" {
		parsed, err := parseDateParam(raw)
		if err != nil {
			details = append(details, fieldError{"date", "must be a date or RFC 3339 timestamp"})
		} else {
			date = parsed.UTC()
		}
	}

	view, err := schedule.ParseView(params.Get("view"))
	if err != nil {
		details = append(details, fieldError{"view", err.Error()})
	}
	if len(details) > 0 {
		writeError(w, http.StatusBadRequest, "validation failed", details...)
		return
	}

	therapistID := strings.TrimSpace(params.Get("therapistId"))
	rangeStart, rangeEnd := schedule.ViewRange(date, view)

	items, err := h.store.ListInRange(r.Context(), rangeStart, rangeEnd, therapistID)
	if err != nil {
		h.internalError(w, r, "calendar fetch failed", err)
		return
	}

	events := make([]calendarEvent, 0, len(items))
	appts := make([]model.Appointment, 0, len(items))
	for _, it := range items {
		appts = append(appts, it.Appointment)
		colors := schedule.Colors(it.Type, it.Status)
		events = append(events, calendarEvent{
			ID:              it.ID,
			Title:           it.PatientName,
			PatientID:       it.PatientID,
			TherapistID:     it.TherapistID,
			TherapistName:   it.TherapistName,
			StartTime:       it.StartTime.UTC(),
			EndTime:         it.EndTime.UTC(),
			Duration:        it.DurationMinutes(),
			Type:            string(it.Type),
			Status:          string(it.Status),
			BackgroundColor: colors.Background,
			BorderColor:     colors.Border,
		})
	}

	var slots []schedule.Slot
	var slotDTOs []timeSlot
	if view == schedule.ViewDay {
		busy := make([]schedule.Interval, 0, len(items))
		for _, it := range items {
			busy = append(busy, schedule.Interval{Start: it.StartTime.UTC(), End: it.EndTime.UTC()})
		}
		slots = schedule.DaySlots(rangeStart, busy)
		slotDTOs = make([]timeSlot, 0, len(slots))
		for _, s := range slots {
			slotDTOs = append(slotDTOs, timeSlot{StartTime: s.Start, EndTime: s.End, Available: s.Available})
		}
	}

	sum := schedule.Summarize(appts, slots)
	summary := calendarSummary{
		TotalAppointments: sum.Total,
		Scheduled:         sum.Scheduled,
		Completed:         sum.Completed,
		Revenue:           sum.Revenue,
	}
	if sum.SlotCounts {
		summary.BookedSlots = &sum.UsedSlots
		summary.AvailableSlots = &sum.FreeSlots
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"dateRange": dateRange{Start: rangeStart, End: rangeEnd, View: string(view)},
		"events":    events,
		"timeSlots": slotDTOs,
		"summary":   summary,
	})
}
