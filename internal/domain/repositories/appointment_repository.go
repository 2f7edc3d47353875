package repositories

import (
	"context"

	"github.com/clinicdesk/scheduling-backend/internal/domain/entities"
)

// AppointmentRepository defines the interface for appointment data operations.
// Implementations hold no locks and provide no cross-call atomicity; each
// operation maps to a single statement against the external store.
type AppointmentRepository interface {
	// Create combines date and time into one persisted instant, inserts the
	// appointment with initial status pending, and returns the normalized
	// result of the insert.
	Create(ctx context.Context, patientID, doctorID, date, timeOfDay string) (*entities.Appointment, error)

	// GetByID retrieves an appointment by ID
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)

	// ListByDoctor retrieves a doctor's appointments from the enriched view,
	// ordered ascending by scheduled instant. No appointments is an empty
	// slice, not an error.
	ListByDoctor(ctx context.Context, doctorID string) ([]*entities.Appointment, error)

	// ListByPatient retrieves a patient's appointments from the base table,
	// same ordering contract as ListByDoctor.
	ListByPatient(ctx context.Context, patientID string) ([]*entities.Appointment, error)

	// UpdateStatus validates the change against the current persisted status
	// through the transition guard and writes the new status. After it
	// returns nil, a subsequent read reflects the new status.
	UpdateStatus(ctx context.Context, id string, status entities.AppointmentStatus) error
}
