package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/physioflow/physioflow/services/clinic-api/internal/model"
	"github.com/physioflow/physioflow/services/clinic-api/internal/storage"
)

const (
	patientAna  = "7c9d6f1e-0b2a-4c3d-9e8f-101112131415"
	patientBeto = "8d0e7f2a-1c3b-4d4e-af90-212223242526"
	therapist1  = "9e1f8a3b-2d4c-4e5f-b0a1-313233343536"
)

func newTestHandler(store *fakeStore) *AppointmentHandler {
	dir := &fakeDirectory{
		patients: map[string]model.Patient{
			patientAna:  {ID: patientAna, Name: "Ana Souza", Phone: "+5511999990000", Email: "ana@example.com"},
			patientBeto: {ID: patientBeto, Name: "Beto Lima", Email: "beto@example.com"},
		},
		practitioners: map[string]model.Practitioner{
			therapist1: {ID: therapist1, Name: "Dr. Carla Mendes", Email: "carla@example.com"},
		},
	}
	return NewAppointmentHandler(store, dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func createBody(patientID, start, end string) string {
	return fmt.Sprintf(`{
		"patientId": %q,
		"therapistId": %q,
		"startTime": %q,
		"endTime": %q,
		"type": "evaluation"
	}`, patientID, therapist1, start, end)
}

func TestCreateAppointment_Success(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(store)

	rec := postJSON(t, h.Appointments, "/api/v1/appointments",
		createBody(patientAna, "2025-03-03T09:00:00Z", "2025-03-03T10:00:00Z"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool           `json:"success"`
		Data    appointmentDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.Data.Duration != 60 {
		t.Errorf("duration = %d, want 60", resp.Data.Duration)
	}
	if resp.Data.Status != "scheduled" {
		t.Errorf("status = %s, want scheduled (default)", resp.Data.Status)
	}
	if resp.Data.PaymentStatus != "pending" {
		t.Errorf("paymentStatus = %s, want pending (default)", resp.Data.PaymentStatus)
	}
	if resp.Data.PatientName != "Ana Souza" {
		t.Errorf("patientName = %s", resp.Data.PatientName)
	}
	if len(store.events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(store.events))
	}
}

func TestCreateAppointment_Conflict(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(store)

	rec := postJSON(t, h.Appointments, "/api/v1/appointments",
		createBody(patientAna, "2025-03-03T09:00:00Z", "2025-03-03T10:00:00Z"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed create failed: %d", rec.Code)
	}
	// fakeStore has no patient join; carry the name like the SQL query would.
	store.items[0].PatientName = "Ana Souza"

	rec = postJSON(t, h.Appointments, "/api/v1/appointments",
		createBody(patientBeto, "2025-03-03T09:30:00Z", "2025-03-03T10:30:00Z"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409; body %s", rec.Code, rec.Body.String())
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, want := range []string{"Ana Souza", "09:00", "10:00"} {
		if !strings.Contains(resp.Error, want) {
			t.Errorf("conflict message %q missing %q", resp.Error, want)
		}
	}
}

func TestCreateAppointment_BackToBack(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(store)

	first := postJSON(t, h.Appointments, "/api/v1/appointments",
		createBody(patientAna, "2025-03-03T10:00:00Z", "2025-03-03T11:00:00Z"))
	second := postJSON(t, h.Appointments, "/api/v1/appointments",
		createBody(patientBeto, "2025-03-03T11:00:00Z", "2025-03-03T12:00:00Z"))

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("back-to-back creates = %d, %d; want both 201", first.Code, second.Code)
	}
}

func TestCreateAppointment_CancelledDoesNotBlock(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(store)

	rec := postJSON(t, h.Appointments, "/api/v1/appointments",
		createBody(patientAna, "2025-03-03T10:00:00Z", "2025-03-03T11:00:00Z"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed create failed: %d", rec.Code)
	}
	store.items[0].Status = model.StatusCancelled

	rec = postJSON(t, h.Appointments, "/api/v1/appointments",
		createBody(patientBeto, "2025-03-03T10:00:00Z", "2025-03-03T11:00:00Z"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 over cancelled slot; body %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAppointment_Validation(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	body := fmt.Sprintf(`{
		"patientId": %q,
		"therapistId": %q,
		"startTime": "2025-03-03T10:00:00Z",
		"endTime": "2025-03-03T09:00:00Z",
		"type": "massage",
		"value": -50,
		"sessionNumber": 11,
		"totalSessions": 10
	}`, patientAna, therapist1)

	rec := postJSON(t, h.Appointments, "/api/v1/appointments", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	fields := map[string]bool{}
	for _, d := range resp.Details {
		fields[d.Field] = true
	}
	for _, want := range []string{"endTime", "type", "value", "sessionNumber"} {
		if !fields[want] {
			t.Errorf("missing validation detail for %s (got %v)", want, resp.Details)
		}
	}
}

func TestCreateAppointment_UnknownRefs(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	rec := postJSON(t, h.Appointments, "/api/v1/appointments",
		createBody("00000000-0000-0000-0000-000000000000", "2025-03-03T09:00:00Z", "2025-03-03T10:00:00Z"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown patient status = %d, want 404", rec.Code)
	}

	body := strings.Replace(
		createBody(patientAna, "2025-03-03T09:00:00Z", "2025-03-03T10:00:00Z"),
		therapist1, "00000000-0000-0000-0000-000000000001", 1)
	rec = postJSON(t, h.Appointments, "/api/v1/appointments", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown therapist status = %d, want 404", rec.Code)
	}
}

func seedListItems(store *fakeStore, n int) {
	base := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		store.items = append(store.items, storage.ListItem{
			Appointment: model.Appointment{
				ID:            fmt.Sprintf("appt-%03d", i),
				PatientID:     patientAna,
				TherapistID:   therapist1,
				StartTime:     start,
				EndTime:       start.Add(45 * time.Minute),
				Type:          model.TypeSession,
				Status:        model.StatusScheduled,
				PaymentStatus: model.PaymentPending,
				CreatedAt:     base,
			},
			PatientName:   "Ana Souza",
			TherapistName: "Dr. Carla Mendes",
		})
	}
}

func TestListAppointments_Pagination(t *testing.T) {
	store := &fakeStore{}
	seedListItems(store, 95)
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?limit=20&page=5", nil)
	rec := httptest.NewRecorder()
	h.Appointments(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Data       []appointmentDTO `json:"data"`
		Pagination pagination       `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	p := resp.Pagination
	if p.TotalCount != 95 || p.TotalPages != 5 {
		t.Errorf("totalCount/totalPages = %d/%d, want 95/5", p.TotalCount, p.TotalPages)
	}
	if p.HasNextPage {
		t.Error("page 5 of 5 should not have a next page")
	}
	if !p.HasPreviousPage {
		t.Error("page 5 should have a previous page")
	}
	if len(resp.Data) != 15 {
		t.Errorf("page 5 has %d items, want 15", len(resp.Data))
	}
	if len(resp.Data) > 0 && resp.Data[0].Duration != 45 {
		t.Errorf("duration = %d, want 45", resp.Data[0].Duration)
	}
}

func TestListAppointments_Defaults(t *testing.T) {
	store := &fakeStore{}
	seedListItems(store, 30)
	h := newTestHandler(store)

	// Bogus page and oversized limit fall back to page 1 / cap 100.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?page=0&limit=500", nil)
	rec := httptest.NewRecorder()
	h.Appointments(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Data       []appointmentDTO `json:"data"`
		Pagination pagination       `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination.Page != 1 || resp.Pagination.Limit != 100 {
		t.Errorf("page/limit = %d/%d, want 1/100", resp.Pagination.Page, resp.Pagination.Limit)
	}
	if len(resp.Data) != 30 {
		t.Errorf("got %d items, want all 30", len(resp.Data))
	}
}

func TestListAppointments_FiltersAndSort(t *testing.T) {
	store := &fakeStore{}
	seedListItems(store, 3)
	store.items[1].Status = model.StatusCancelled
	store.items[2].PatientName = "Beto Lima"
	store.items[2].PatientID = patientBeto
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?status=scheduled&sortBy=patientName&sortOrder=desc", nil)
	rec := httptest.NewRecorder()
	h.Appointments(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Data []appointmentDTO `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("filtered list has %d items, want 2", len(resp.Data))
	}
	if resp.Data[0].PatientName != "Beto Lima" {
		t.Errorf("desc patientName sort: first item is %s", resp.Data[0].PatientName)
	}
}

func TestListAppointments_BadParams(t *testing.T) {
	h := newTestHandler(&fakeStore{})

	for _, qs := range []string{"status=archived", "type=spa", "sortBy=value", "sortOrder=sideways", "dateFrom=yesterday"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments?"+qs, nil)
		rec := httptest.NewRecorder()
		h.Appointments(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", qs, rec.Code)
		}
	}
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	store := &fakeStore{}
	seedListItems(store, 1)
	h := newTestHandler(store)

	rec := postJSON(t, h.UpdateStatus, "/api/v1/appointments/status",
		`{"appointmentId": "appt-000", "status": "completed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("scheduled->completed status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, h.UpdateStatus, "/api/v1/appointments/status",
		`{"appointmentId": "appt-000", "status": "scheduled"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("completed->scheduled status = %d, want 409", rec.Code)
	}

	rec = postJSON(t, h.UpdateStatus, "/api/v1/appointments/status",
		`{"appointmentId": "missing", "status": "completed"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", rec.Code)
	}

	rec = postJSON(t, h.UpdateStatus, "/api/v1/appointments/status",
		`{"appointmentId": "appt-000", "status": "archived"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status value = %d, want 400", rec.Code)
	}
}
