package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/physioflow/physioflow/services/clinic-api/internal/model"
	"github.com/physioflow/physioflow/services/clinic-api/internal/outbox"
	"github.com/physioflow/physioflow/services/clinic-api/internal/schedule"
	"github.com/physioflow/physioflow/services/clinic-api/internal/storage"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// AppointmentStore is the persistence contract the handlers depend on.
// Satisfied by storage.AppointmentRepository; tests use an in-memory fake.
type AppointmentStore interface {
	Create(ctx context.Context, appt model.Appointment, evt outbox.Event) (model.Appointment, error)
	List(ctx context.Context, q storage.ListQuery) ([]storage.ListItem, int, error)
	ListInRange(ctx context.Context, from, to time.Time, therapistID string) ([]storage.ListItem, error)
	UpdateStatus(ctx context.Context, id string, next model.AppointmentStatus, evt outbox.Event) (model.Appointment, error)
}

// Directory resolves the externally owned patient and practitioner records.
type Directory interface {
	GetPatient(ctx context.Context, id string) (model.Patient, error)
	GetPractitioner(ctx context.Context, id string) (model.Practitioner, error)
}

type AppointmentHandler struct {
	store     AppointmentStore
	directory Directory
	logger    *slog.Logger
}

func NewAppointmentHandler(store AppointmentStore, directory Directory, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{store: store, directory: directory, logger: logger}
}

// Appointments serves GET (list) and POST (create) on /api/v1/appointments.
func (h *AppointmentHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type createAppointmentRequest struct {
	PatientID     string   `json:"patientId"`
	TherapistID   string   `json:"therapistId"`
	StartTime     string   `json:"startTime"`
	EndTime       string   `json:"endTime"`
	Type          string   `json:"type"`
	Status        string   `json:"status"`
	Value         *float64 `json:"value"`
	PaymentStatus string   `json:"paymentStatus"`
	Observations  string   `json:"observations"`
	SeriesID      string   `json:"seriesId"`
	SessionNumber *int     `json:"sessionNumber"`
	TotalSessions *int     `json:"totalSessions"`
}

type appointmentDTO struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patientId"`
	PatientName     string    `json:"patientName,omitempty"`
	TherapistID     string    `json:"therapistId"`
	TherapistName   string    `json:"therapistName,omitempty"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	Duration        int       `json:"duration"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	Value           *float64  `json:"value,omitempty"`
	PaymentStatus   string    `json:"paymentStatus"`
	Observations    string    `json:"observations,omitempty"`
	SeriesID        string    `json:"seriesId,omitempty"`
	SessionNumber   *int      `json:"sessionNumber,omitempty"`
	TotalSessions   *int      `json:"totalSessions,omitempty"`
	HasClinicalNote bool      `json:"hasClinicalNote"`
	HasAssessment   bool      `json:"hasAssessment"`
	CreatedAt       time.Time `json:"createdAt"`
}

func appointmentToDTO(a model.Appointment, patientName, therapistName string) appointmentDTO {
	return appointmentDTO{
		ID:            a.ID,
		PatientID:     a.PatientID,
		PatientName:   patientName,
		TherapistID:   a.TherapistID,
		TherapistName: therapistName,
		StartTime:     a.StartTime.UTC(),
		EndTime:       a.EndTime.UTC(),
		Duration:      a.DurationMinutes(),
		Type:          string(a.Type),
		Status:        string(a.Status),
		Value:         a.Value,
		PaymentStatus: string(a.PaymentStatus),
		Observations:  a.Observations,
		SeriesID:      a.SeriesID,
		SessionNumber: a.SessionNumber,
		TotalSessions: a.TotalSessions,
		CreatedAt:     a.CreatedAt.UTC(),
	}
}

func listItemToDTO(it storage.ListItem) appointmentDTO {
	dto := appointmentToDTO(it.Appointment, it.PatientName, it.TherapistName)
	dto.HasClinicalNote = it.HasClinicalNote
	dto.HasAssessment = it.HasAssessment
	return dto
}

func (h *AppointmentHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	req.PatientID = strings.TrimSpace(req.PatientID)
	req.TherapistID = strings.TrimSpace(req.TherapistID)
	req.SeriesID = strings.TrimSpace(req.SeriesID)

	var details []fieldError
	if req.PatientID == "" {
		details = append(details, fieldError{"patientId", "required"})
	}
	if req.TherapistID == "" {
		details = append(details, fieldError{"therapistId", "required"})
	}

	startTime, startErr := time.Parse(time.RFC3339, req.StartTime)
	if startErr != nil {
		details = append(details, fieldError{"startTime", "must be an RFC 3339 timestamp"})
	}
	endTime, endErr := time.Parse(time.RFC3339, req.EndTime)
	if endErr != nil {
		details = append(details, fieldError{"endTime", "must be an RFC 3339 timestamp"})
	} else if startErr == nil && !endTime.After(startTime) {
		details = append(details, fieldError{"endTime", "must be after startTime"})
	}

	apptType, err := model.ParseAppointmentType(req.Type)
	if err != nil {
		details = append(details, fieldError{"type", err.Error()})
	}

	status := model.StatusScheduled
	if req.Status != "" {
		if status, err = model.ParseAppointmentStatus(req.Status); err != nil {
			details = append(details, fieldError{"status", err.Error()})
		}
	}

	payment := model.PaymentPending
	if req.PaymentStatus != "" {
		if payment, err = model.ParsePaymentStatus(req.PaymentStatus); err != nil {
			details = append(details, fieldError{"paymentStatus", err.Error()})
		}
	}

	if req.Value != nil && *req.Value <= 0 {
		details = append(details, fieldError{"value", "must be a positive amount"})
	}
	if req.SeriesID != "" {
		if _, err := uuid.Parse(req.SeriesID); err != nil {
			details = append(details, fieldError{"seriesId", "must be a UUID"})
		}
	}
	if err := schedule.ValidateSeries(req.SessionNumber, req.TotalSessions); err != nil {
		details = append(details, fieldError{"sessionNumber", err.Error()})
	}

	if len(details) > 0 {
		writeError(w, http.StatusBadRequest, "validation failed", details...)
		return
	}

	ctx := r.Context()
	patient, err := h.directory.GetPatient(ctx, req.PatientID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		h.internalError(w, r, "patient lookup failed", err)
		return
	}
	therapist, err := h.directory.GetPractitioner(ctx, req.TherapistID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "therapist not found")
			return
		}
		h.internalError(w, r, "therapist lookup failed", err)
		return
	}

	appt := model.Appointment{
		ID:            uuid.NewString(),
		PatientID:     patient.ID,
		TherapistID:   therapist.ID,
		StartTime:     startTime.UTC(),
		EndTime:       endTime.UTC(),
		Type:          apptType,
		Status:        status,
		Value:         req.Value,
		PaymentStatus: payment,
		Observations:  strings.TrimSpace(req.Observations),
		SeriesID:      req.SeriesID,
		SessionNumber: req.SessionNumber,
		TotalSessions: req.TotalSessions,
	}

	evtPayload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"patient_id":     patient.ID,
		"patient_name":   patient.Name,
		"patient_phone":  patient.Phone,
		"patient_email":  patient.Email,
		"therapist_id":   therapist.ID,
		"therapist_name": therapist.Name,
		"type":           string(appt.Type),
		"start_time":     appt.StartTime.Format(time.RFC3339),
		"end_time":       appt.EndTime.Format(time.RFC3339),
	})
	if err != nil {
		h.internalError(w, r, "event payload build failed", err)
		return
	}

	created, err := h.store.Create(ctx, appt, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentScheduled,
		Payload:       evtPayload,
	})
	if err != nil {
		var conflict *storage.ConflictError
		if errors.As(err, &conflict) {
			writeError(w, http.StatusConflict, conflictMessage(conflict.Existing))
			return
		}
		h.internalError(w, r, "appointment create failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    appointmentToDTO(created, patient.Name, therapist.Name),
	})
}

func conflictMessage(c storage.Conflicting) string {
	window := fmt.Sprintf("%s–%s",
		c.Appointment.StartTime.UTC().Format("15:04"),
		c.Appointment.EndTime.UTC().Format("15:04"))
	if c.PatientName == "" {
		return "therapist already has an appointment " + window
	}
	return fmt.Sprintf("therapist already has an appointment with %s %s", c.PatientName, window)
}

type pagination struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalCount      int  `json:"totalCount"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

func (h *AppointmentHandler) list(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	var details []fieldError
	q := storage.ListQuery{
		PatientID:   strings.TrimSpace(params.Get("patientId")),
		TherapistID: strings.TrimSpace(params.Get("therapistId")),
	}

	if raw := params.Get("status"); raw != "" {
		status, err := model.ParseAppointmentStatus(raw)
		if err != nil {
			details = append(details, fieldError{"status", err.Error()})
		} else {
			q.Status = &status
		}
	}
	if raw := params.Get("type"); raw != "" {
		typ, err := model.ParseAppointmentType(raw)
		if err != nil {
			details = append(details, fieldError{"type", err.Error()})
		} else {
			q.Type = &typ
		}
	}
	if raw := params.Get("dateFrom"); raw != "" {
		t, err := parseDateParam(raw)
		if err != nil {
			details = append(details, fieldError{"dateFrom", "must be a date or RFC 3339 timestamp"})
		} else {
			q.From = &t
		}
	}
	if raw := params.Get("dateTo"); raw != "" {
		t, err := parseDateParam(raw)
		if err != nil {
			details = append(details, fieldError{"dateTo", "must be a date or RFC 3339 timestamp"})
		} else {
			q.To = &t
		}
	}

	sortBy, err := storage.ParseSortKey(params.Get("sortBy"))
	if err != nil {
		details = append(details, fieldError{"sortBy", err.Error()})
	}
	q.SortBy = sortBy
	switch params.Get("sortOrder") {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		details = append(details, fieldError{"sortOrder", "must be asc or desc"})
	}

	if len(details) > 0 {
		writeError(w, http.StatusBadRequest, "validation failed", details...)
		return
	}

	page := parsePositiveInt(params.Get("page"), 1)
	limit := parsePositiveInt(params.Get("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	q.Limit = limit
	q.Offset = (page - 1) * limit

	items, total, err := h.store.List(r.Context(), q)
	if err != nil {
		h.internalError(w, r, "appointment list failed", err)
		return
	}

	data := make([]appointmentDTO, 0, len(items))
	for _, it := range items {
		data = append(data, listItemToDTO(it))
	}

	totalPages := (total + limit - 1) / limit
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"pagination": pagination{
			Page:            page,
			Limit:           limit,
			TotalCount:      total,
			TotalPages:      totalPages,
			HasNextPage:     page < totalPages,
			HasPreviousPage: page > 1,
		},
	})
}

type updateStatusRequest struct {
	AppointmentID string `json:"appointmentId"`
	Status        string `json:"status"`
}

// UpdateStatus serves POST /api/v1/appointments/status. Transitions follow
// the lifecycle rules; anything else is rejected with 409.
func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "validation failed", fieldError{"appointmentId", "required"})
		return
	}
	next, err := model.ParseAppointmentStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", fieldError{"status", err.Error()})
		return
	}

	evtPayload, err := json.Marshal(map[string]any{
		"appointment_id": req.AppointmentID,
		"status":         string(next),
		"changed_at":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.internalError(w, r, "event payload build failed", err)
		return
	}

	updated, err := h.store.UpdateStatus(r.Context(), req.AppointmentID, next, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   req.AppointmentID,
		EventType:     outbox.EventAppointmentStatusChanged,
		Payload:       evtPayload,
	})
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		var transition *storage.TransitionError
		if errors.As(err, &transition) {
			writeError(w, http.StatusConflict, transition.Error())
			return
		}
		h.internalError(w, r, "status update failed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    appointmentToDTO(updated, "", ""),
	})
}

func (h *AppointmentHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "err", err, "method", r.Method, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// parseDateParam accepts either a calendar date (2006-01-02, midnight UTC)
// or a full RFC 3339 timestamp.
func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
