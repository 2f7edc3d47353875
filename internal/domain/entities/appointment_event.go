package entities

import (
	"time"
)

// AppointmentEventType represents the type of appointment change event
type AppointmentEventType string

const (
	AppointmentEventTypeInsert AppointmentEventType = "insert"
)

// AppointmentEvent is an insert notification emitted by the store layer. It
// carries the newly inserted row in its raw base-table shape; subscribers
// normalize it before delivery.
type AppointmentEvent struct {
	ID          string               `json:"id"`
	EventType   AppointmentEventType `json:"event_type"`
	Table       string               `json:"table"`
	TherapistID string               `json:"therapist_id"`
	Row         BaseRow              `json:"row"`
	Timestamp   time.Time            `json:"timestamp"`
}

// NewInsertEvent creates an insert event for a freshly stored row.
func NewInsertEvent(eventID string, row BaseRow) *AppointmentEvent {
	return &AppointmentEvent{
		ID:          eventID,
		EventType:   AppointmentEventTypeInsert,
		Table:       "appointments",
		TherapistID: row.TherapistID,
		Row:         row,
		Timestamp:   time.Now(),
	}
}
