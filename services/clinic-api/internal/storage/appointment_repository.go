package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/physioflow/physioflow/libs/db"
	"github.com/physioflow/physioflow/services/clinic-api/internal/model"
	"github.com/physioflow/physioflow/services/clinic-api/internal/outbox"
)

type AppointmentRepository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outboxRepo: outboxRepo}
}

// ListItem is an appointment enriched with the joined patient/practitioner
// names and the clinical-record existence flags used by list responses.
type ListItem struct {
	model.Appointment
	PatientName     string
	TherapistName   string
	HasClinicalNote bool
	HasAssessment   bool
}

type SortKey string

const (
	SortStartTime   SortKey = "startTime"
	SortCreatedAt   SortKey = "createdAt"
	SortPatientName SortKey = "patientName"
)

func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortStartTime, nil
	}
	k := SortKey(s)
	switch k {
	case SortStartTime, SortCreatedAt, SortPatientName:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

func (k SortKey) column() string {
	switch k {
	case SortCreatedAt:
		return "a.created_at"
	case SortPatientName:
		return "p.name"
	default:
		return "a.start_time"
	}
}

type ListQuery struct {
	PatientID   string
	TherapistID string
	Status      *model.AppointmentStatus
	Type        *model.AppointmentType
	From        *time.Time
	To          *time.Time
	SortBy      SortKey
	Desc        bool
	Limit       int
	Offset      int
}

const listColumns = `
	a.id::text, a.patient_id::text, a.therapist_id::text, a.start_time, a.end_time,
	a.type, a.status, a.value, a.payment_status, COALESCE(a.observations, ''),
	COALESCE(a.series_id::text, ''), a.session_number, a.total_sessions,
	a.created_at, a.updated_at, p.name, t.name,
	EXISTS (SELECT 1 FROM clinical_notes n WHERE n.appointment_id = a.id),
	EXISTS (SELECT 1 FROM assessments s WHERE s.appointment_id = a.id)`

func scanListItem(row pgx.Row) (ListItem, error) {
	var it ListItem
	var typ, status, payment string
	err := row.Scan(
		&it.ID,
		&it.PatientID,
		&it.TherapistID,
		&it.StartTime,
		&it.EndTime,
		&typ,
		&status,
		&it.Value,
		&payment,
		&it.Observations,
		&it.SeriesID,
		&it.SessionNumber,
		&it.TotalSessions,
		&it.CreatedAt,
		&it.UpdatedAt,
		&it.PatientName,
		&it.TherapistName,
		&it.HasClinicalNote,
		&it.HasAssessment,
	)
	if err != nil {
		return ListItem{}, err
	}
	it.Type = model.AppointmentType(typ)
	it.Status = model.AppointmentStatus(status)
	it.PaymentStatus = model.PaymentStatus(payment)
	return it, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Create inserts a conflict-checked appointment and its outbox event in one
// transaction. The overlap query runs first so the 409 can name the blocking
// patient; the exclusion constraint on (therapist_id, time range) closes the
// race window left between check and insert.
func (r *AppointmentRepository) Create(ctx context.Context, appt model.Appointment, evt outbox.Event) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := r.findConflicting(ctx, tx, appt.TherapistID, appt.StartTime, appt.EndTime, "")
	if err != nil {
		return model.Appointment{}, err
	}
	if existing != nil {
		return model.Appointment{}, &ConflictError{Existing: *existing}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, therapist_id, start_time, end_time, type, status,
			 value, payment_status, observations, series_id, session_number, total_sessions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::uuid, $12, $13)
		RETURNING created_at, updated_at
	`, appt.ID, appt.PatientID, appt.TherapistID, appt.StartTime, appt.EndTime,
		string(appt.Type), string(appt.Status), appt.Value, string(appt.PaymentStatus),
		appt.Observations, appt.SeriesID, appt.SessionNumber, appt.TotalSessions,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		if isExclusion(err) {
			// Lost the race to a concurrent insert; report it as the conflict.
			_ = tx.Rollback(ctx)
			if existing, ferr := r.FindConflicting(ctx, appt.TherapistID, appt.StartTime, appt.EndTime, ""); ferr == nil && existing != nil {
				return model.Appointment{}, &ConflictError{Existing: *existing}
			}
			return model.Appointment{}, &ConflictError{Existing: Conflicting{Appointment: appt}}
		}
		return model.Appointment{}, err
	}

	if err := r.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// FindConflicting returns the first active appointment for the therapist
// whose [start_time, end_time) interval overlaps [start, end), or nil.
// excludeID skips one appointment id, for reuse by update flows.
func (r *AppointmentRepository) FindConflicting(ctx context.Context, therapistID string, start, end time.Time, excludeID string) (*Conflicting, error) {
	return r.findConflicting(ctx, r.pool, therapistID, start, end, excludeID)
}

func (r *AppointmentRepository) findConflicting(ctx context.Context, q querier, therapistID string, start, end time.Time, excludeID string) (*Conflicting, error) {
	var c Conflicting
	var typ, status, payment string
	err := q.QueryRow(ctx, `
		SELECT a.id::text, a.patient_id::text, a.therapist_id::text, a.start_time, a.end_time,
			a.type, a.status, a.payment_status, p.name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.therapist_id = $1
			AND a.status IN ('scheduled', 'completed')
			AND a.start_time < $3
			AND a.end_time > $2
			AND ($4 = '' OR a.id::text <> $4)
		LIMIT 1
	`, therapistID, start, end, excludeID).Scan(
		&c.Appointment.ID,
		&c.Appointment.PatientID,
		&c.Appointment.TherapistID,
		&c.Appointment.StartTime,
		&c.Appointment.EndTime,
		&typ,
		&status,
		&payment,
		&c.PatientName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Appointment.Type = model.AppointmentType(typ)
	c.Appointment.Status = model.AppointmentStatus(status)
	c.Appointment.PaymentStatus = model.PaymentStatus(payment)
	return &c, nil
}

// ListInRange returns the calendar-visible appointments (scheduled,
// completed, closed) starting within [from, to], soonest first.
func (r *AppointmentRepository) ListInRange(ctx context.Context, from, to time.Time, therapistID string) ([]ListItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+listColumns+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN practitioners t ON t.id = a.therapist_id
		WHERE a.status IN ('scheduled', 'completed', 'closed')
			AND a.start_time >= $1
			AND a.start_time <= $2
			AND ($3 = '' OR a.therapist_id::text = $3)
		ORDER BY a.start_time ASC
	`, from, to, therapistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		it, err := scanListItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

// List applies the AND-combined filters, sorts by the whitelisted key and
// returns one page plus the unpaginated total.
func (r *AppointmentRepository) List(ctx context.Context, q ListQuery) ([]ListItem, int, error) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.PatientID != "" {
		add("a.patient_id::text = $%d", q.PatientID)
	}
	if q.TherapistID != "" {
		add("a.therapist_id::text = $%d", q.TherapistID)
	}
	if q.Status != nil {
		add("a.status = $%d", string(*q.Status))
	}
	if q.Type != nil {
		add("a.type = $%d", string(*q.Type))
	}
	if q.From != nil {
		add("a.start_time >= $%d", *q.From)
	}
	if q.To != nil {
		add("a.start_time <= $%d", *q.To)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT count(*) FROM appointments a "+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT%s
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN practitioners t ON t.id = a.therapist_id
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, listColumns, where, q.SortBy.column(), dir, len(args)+1, len(args)+2)
	args = append(args, limit, q.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []ListItem
	for rows.Next() {
		it, err := scanListItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return items, total, nil
}

// UpdateStatus moves an appointment to next after checking the lifecycle
// rules under a row lock, and records the outbox event in the same
// transaction.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, next model.AppointmentStatus, evt outbox.Event) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var appt model.Appointment
	var typ, status, payment string
	err = tx.QueryRow(ctx, `
		SELECT id::text, patient_id::text, therapist_id::text, start_time, end_time,
			type, status, value, payment_status, COALESCE(observations, ''),
			COALESCE(series_id::text, ''), session_number, total_sessions, created_at, updated_at
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&appt.ID, &appt.PatientID, &appt.TherapistID, &appt.StartTime, &appt.EndTime,
		&typ, &status, &appt.Value, &payment, &appt.Observations,
		&appt.SeriesID, &appt.SessionNumber, &appt.TotalSessions, &appt.CreatedAt, &appt.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, ErrNotFound
	}
	if err != nil {
		return model.Appointment{}, err
	}
	appt.Type = model.AppointmentType(typ)
	appt.Status = model.AppointmentStatus(status)
	appt.PaymentStatus = model.PaymentStatus(payment)

	if !appt.Status.CanTransition(next) {
		return model.Appointment{}, &TransitionError{From: appt.Status, To: next}
	}

	if err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, string(next)).Scan(&appt.UpdatedAt); err != nil {
		return model.Appointment{}, err
	}
	appt.Status = next

	if err := r.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// MarkPaid flips the payment status to paid. Driven by the billing
// collaborator's payment events; unknown ids are ignored (the event may
// concern an appointment deleted by another system).
func (r *AppointmentRepository) MarkPaid(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET payment_status = 'paid', updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
