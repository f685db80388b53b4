package model

import (
	"fmt"
	"math"
	"time"
)

// AppointmentType classifies what kind of visit an appointment is.
type AppointmentType string

const (
	TypeEvaluation  AppointmentType = "evaluation"
	TypeSession     AppointmentType = "session"
	TypeReturn      AppointmentType = "return"
	TypeGroupClass  AppointmentType = "group_class"
	TypeUrgent      AppointmentType = "urgent"
	TypeTeleconsult AppointmentType = "teleconsult"
)

func ParseAppointmentType(s string) (AppointmentType, error) {
	t := AppointmentType(s)
	switch t {
	case TypeEvaluation, TypeSession, TypeReturn, TypeGroupClass, TypeUrgent, TypeTeleconsult:
		return t, nil
	}
	return "", fmt.Errorf("unknown appointment type %q", s)
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusClosed    AppointmentStatus = "closed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	st := AppointmentStatus(s)
	switch st {
	case StatusScheduled, StatusCompleted, StatusClosed, StatusCancelled, StatusNoShow:
		return st, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

// Blocking reports whether an appointment in this status occupies the
// practitioner's time for conflict detection. Cancelled and no-show
// appointments never block a new booking.
func (s AppointmentStatus) Blocking() bool {
	return s == StatusScheduled || s == StatusCompleted
}

// Terminal reports whether no further transition is allowed out of s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled || s == StatusNoShow
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step: scheduled -> completed -> closed, or scheduled -> cancelled/no_show.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	switch s {
	case StatusScheduled:
		return next == StatusCompleted || next == StatusCancelled || next == StatusNoShow
	case StatusCompleted:
		return next == StatusClosed
	}
	return false
}

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	p := PaymentStatus(s)
	switch p {
	case PaymentPaid, PaymentPending:
		return p, nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

// Appointment is the scheduling core's persisted record. Patient and
// Practitioner are owned elsewhere; only their ids are stored here.
type Appointment struct {
	ID            string
	PatientID     string
	TherapistID   string
	StartTime     time.Time
	EndTime       time.Time
	Type          AppointmentType
	Status        AppointmentStatus
	Value         *float64
	PaymentStatus PaymentStatus
	Observations  string
	SeriesID      string
	SessionNumber *int
	TotalSessions *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DurationMinutes is the appointment length in whole minutes, rounded.
func (a Appointment) DurationMinutes() int {
	return int(math.Round(a.EndTime.Sub(a.StartTime).Minutes()))
}

// Patient is a read-only projection of the externally owned patient record.
type Patient struct {
	ID    string
	Name  string
	Phone string
	Email string
}

// Practitioner is a read-only projection of the externally owned
// practitioner record.
type Practitioner struct {
	ID    string
	Name  string
	Email string
}
