package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/physioflow/physioflow/services/clinic-api/internal/model"
	"github.com/physioflow/physioflow/services/clinic-api/internal/outbox"
	"github.com/physioflow/physioflow/services/clinic-api/internal/schedule"
	"github.com/physioflow/physioflow/services/clinic-api/internal/storage"
)

// fakeStore is the in-memory AppointmentStore used by handler tests. It
// mirrors the repository semantics: conflict-checked create, filtered and
// sorted listing, lifecycle-enforced status updates.
type fakeStore struct {
	items  []storage.ListItem
	events []outbox.Event
}

func (f *fakeStore) Create(_ context.Context, appt model.Appointment, evt outbox.Event) (model.Appointment, error) {
	for _, it := range f.items {
		if it.TherapistID != appt.TherapistID || !it.Status.Blocking() {
			continue
		}
		if schedule.Overlaps(appt.StartTime, appt.EndTime, schedule.Interval{Start: it.StartTime, End: it.EndTime}) {
			return model.Appointment{}, &storage.ConflictError{Existing: storage.Conflicting{
				Appointment: it.Appointment,
				PatientName: it.PatientName,
			}}
		}
	}
	appt.CreatedAt = time.Now().UTC()
	appt.UpdatedAt = appt.CreatedAt
	f.items = append(f.items, storage.ListItem{Appointment: appt})
	f.events = append(f.events, evt)
	return appt, nil
}

func (f *fakeStore) List(_ context.Context, q storage.ListQuery) ([]storage.ListItem, int, error) {
	var matched []storage.ListItem
	for _, it := range f.items {
		if q.PatientID != "" && it.PatientID != q.PatientID {
			continue
		}
		if q.TherapistID != "" && it.TherapistID != q.TherapistID {
			continue
		}
		if q.Status != nil && it.Status != *q.Status {
			continue
		}
		if q.Type != nil && it.Type != *q.Type {
			continue
		}
		if q.From != nil && it.StartTime.Before(*q.From) {
			continue
		}
		if q.To != nil && it.StartTime.After(*q.To) {
			continue
		}
		matched = append(matched, it)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		var less bool
		switch q.SortBy {
		case storage.SortCreatedAt:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		case storage.SortPatientName:
			less = matched[i].PatientName < matched[j].PatientName
		default:
			less = matched[i].StartTime.Before(matched[j].StartTime)
		}
		if q.Desc {
			return !less
		}
		return less
	})

	total := len(matched)
	if q.Offset >= total {
		return nil, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return matched[q.Offset:end], total, nil
}

func (f *fakeStore) ListInRange(_ context.Context, from, to time.Time, therapistID string) ([]storage.ListItem, error) {
	var out []storage.ListItem
	for _, it := range f.items {
		switch it.Status {
		case model.StatusScheduled, model.StatusCompleted, model.StatusClosed:
		default:
			continue
		}
		if therapistID != "" && it.TherapistID != therapistID {
			continue
		}
		if it.StartTime.Before(from) || it.StartTime.After(to) {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, next model.AppointmentStatus, evt outbox.Event) (model.Appointment, error) {
	for i := range f.items {
		if f.items[i].ID != id {
			continue
		}
		if !f.items[i].Status.CanTransition(next) {
			return model.Appointment{}, &storage.TransitionError{From: f.items[i].Status, To: next}
		}
		f.items[i].Status = next
		f.items[i].UpdatedAt = time.Now().UTC()
		f.events = append(f.events, evt)
		return f.items[i].Appointment, nil
	}
	return model.Appointment{}, storage.ErrNotFound
}

type fakeDirectory struct {
	patients      map[string]model.Patient
	practitioners map[string]model.Practitioner
}

func (f *fakeDirectory) GetPatient(_ context.Context, id string) (model.Patient, error) {
	p, ok := f.patients[id]
	if !ok {
		return model.Patient{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeDirectory) GetPractitioner(_ context.Context, id string) (model.Practitioner, error) {
	p, ok := f.practitioners[id]
	if !ok {
		return model.Practitioner{}, storage.ErrNotFound
	}
	return p, nil
}
