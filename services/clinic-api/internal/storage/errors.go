package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/physioflow/physioflow/services/clinic-api/internal/model"
)

var ErrNotFound = errors.New("not found")

// Conflicting describes the existing booking that blocked a candidate
// interval. The patient name is carried so callers can build the 409 message.
type Conflicting struct {
	Appointment model.Appointment
	PatientName string
}

type ConflictError struct {
	Existing Conflicting
}

func (e *ConflictError) Error() string {
	a := e.Existing.Appointment
	return fmt.Sprintf("therapist already booked from %s to %s",
		a.StartTime.Format("15:04"), a.EndTime.Format("15:04"))
}

type TransitionError struct {
	From model.AppointmentStatus
	To   model.AppointmentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}

// isExclusion reports whether err is a violation of the appointments
// no-overlap exclusion constraint (pg error 23P01).
func isExclusion(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}
