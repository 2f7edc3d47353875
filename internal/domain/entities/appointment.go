package entities

import (
	"time"

	apperrors "github.com/clinicdesk/scheduling-backend/pkg/errors"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// IsValid reports whether s is one of the four defined statuses
func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed,
		AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

// Appointment is the canonical appointment record consumed by all callers,
// independent of which storage shape it was read from. Date and Time carry
// the scheduled instant as separate display components; they are either both
// set or both empty.
type Appointment struct {
	ID        string            `json:"id"`
	PatientID string            `json:"patient_id"`
	DoctorID  string            `json:"doctor_id"`
	Status    AppointmentStatus `json:"status"`
	Date      string            `json:"date"` // YYYY-MM-DD
	Time      string            `json:"time"` // HH:MM:SS
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	// Enrichment fields are display-only and may be absent. Placeholder
	// substitution is a presentation concern, not done here.
	PatientName    string `json:"patient_name,omitempty"`
	Username       string `json:"username,omitempty"`
	Reason         string `json:"reason,omitempty"`
	DoctorName     string `json:"doctor_name,omitempty"`
	Specialization string `json:"specialization,omitempty"`
}

// NewAppointment constructs an Appointment, rejecting empty participant IDs
// and statuses outside the defined set.
func NewAppointment(id, patientID, doctorID string, status AppointmentStatus) (*Appointment, error) {
	if patientID == "" {
		return nil, apperrors.NewValidationError("patient_id is required")
	}
	if doctorID == "" {
		return nil, apperrors.NewValidationError("doctor_id is required")
	}
	if !status.IsValid() {
		return nil, apperrors.NewValidationError("status must be one of pending, confirmed, completed, cancelled")
	}
	return &Appointment{
		ID:        id,
		PatientID: patientID,
		DoctorID:  doctorID,
		Status:    status,
	}, nil
}
