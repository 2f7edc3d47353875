package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/scheduling-backend/internal/domain/entities"
	"github.com/clinicdesk/scheduling-backend/internal/domain/providers"
	"github.com/clinicdesk/scheduling-backend/internal/domain/repositories"
	apperrors "github.com/clinicdesk/scheduling-backend/pkg/errors"
)

// AppointmentService exposes the appointment operations consumed by the
// presentation layer. All errors surface to the caller unmodified; no retries
// happen here.
type AppointmentService struct {
	repo     repositories.AppointmentRepository
	eventBus providers.EventBus
}

// NewAppointmentService creates a new appointment service. eventBus may be
// nil, in which case created appointments are not announced to subscribers.
func NewAppointmentService(repo repositories.AppointmentRepository, eventBus providers.EventBus) *AppointmentService {
	return &AppointmentService{
		repo:     repo,
		eventBus: eventBus,
	}
}

// CreateAppointment creates a pending appointment scheduled at the given
// date (YYYY-MM-DD) and time (HH:MM:SS) and announces the insert on the
// doctor's event channel.
func (s *AppointmentService) CreateAppointment(ctx context.Context, patientID, doctorID, date, timeOfDay string) (*entities.Appointment, error) {
	if patientID == "" {
		return nil, apperrors.NewValidationError("patient_id is required")
	}
	if doctorID == "" {
		return nil, apperrors.NewValidationError("doctor_id is required")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, apperrors.NewValidationError("date must be formatted as YYYY-MM-DD")
	}
	if _, err := time.Parse("15:04:05", timeOfDay); err != nil {
		return nil, apperrors.NewValidationError("time must be formatted as HH:MM:SS")
	}

	appointment, err := s.repo.Create(ctx, patientID, doctorID, date, timeOfDay)
	if err != nil {
		return nil, err
	}

	s.publishInsert(ctx, appointment)
	return appointment, nil
}

// ListDoctorAppointments returns a doctor's appointments, ascending by
// scheduled instant. No appointments is an empty slice, not an error.
func (s *AppointmentService) ListDoctorAppointments(ctx context.Context, doctorID string) ([]*entities.Appointment, error) {
	if doctorID == "" {
		return nil, apperrors.NewValidationError("doctor_id is required")
	}
	return s.repo.ListByDoctor(ctx, doctorID)
}

// ListPatientAppointments returns a patient's appointments, same ordering
// contract as ListDoctorAppointments.
func (s *AppointmentService) ListPatientAppointments(ctx context.Context, patientID string) ([]*entities.Appointment, error) {
	if patientID == "" {
		return nil, apperrors.NewValidationError("patient_id is required")
	}
	return s.repo.ListByPatient(ctx, patientID)
}

// UpdateAppointmentStatus applies a status change through the transition
// guard. Callers re-read if they need the updated record.
func (s *AppointmentService) UpdateAppointmentStatus(ctx context.Context, id string, status entities.AppointmentStatus) error {
	if id == "" {
		return apperrors.NewValidationError("id is required")
	}
	if !status.IsValid() {
		return apperrors.NewValidationError("status must be one of pending, confirmed, completed, cancelled")
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

// publishInsert emits the stored row on the doctor's channel. The create has
// already succeeded; a publish failure is logged, not surfaced.
func (s *AppointmentService) publishInsert(ctx context.Context, appointment *entities.Appointment) {
	if s.eventBus == nil {
		return
	}

	row := entities.BaseRow{
		ID:              appointment.ID,
		PatientID:       appointment.PatientID,
		TherapistID:     appointment.DoctorID,
		Status:          string(appointment.Status),
		AppointmentDate: appointment.Date + "T" + appointment.Time,
		CreatedAt:       appointment.CreatedAt,
		UpdatedAt:       appointment.UpdatedAt,
	}
	event := entities.NewInsertEvent(uuid.New().String(), row)

	channel := providers.GetDoctorChannel(appointment.DoctorID)
	if err := s.eventBus.Publish(ctx, channel, event); err != nil {
		log.Error().
			Str("channel", channel).
			Str("appointment_id", appointment.ID).
			Err(err).
			Msg("failed to publish appointment insert event")
	}
}
