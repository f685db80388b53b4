package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types published by clinic-api. Messaging and analytics consume them.
const (
	EventAppointmentScheduled     = "clinic.appointment.scheduled.v1"
	EventAppointmentStatusChanged = "clinic.appointment.status_changed.v1"
)
