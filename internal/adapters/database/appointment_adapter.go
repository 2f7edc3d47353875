package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/clinicdesk/scheduling-backend/internal/domain/entities"
	"github.com/clinicdesk/scheduling-backend/internal/domain/repositories"
	"github.com/clinicdesk/scheduling-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinicdesk/scheduling-backend/pkg/errors"
)

const (
	appointmentsTable = "appointments"
	doctorViewName    = "v_doctor_appointments"

	// combinedLayout is how date and time are recombined into the single
	// persisted appointment_date instant, and how scanned timestamps are
	// re-encoded for normalization.
	combinedLayout = "2006-01-02T15:04:05"
)

// AppointmentAdapter implements the AppointmentRepository interface against
// the base appointments table and the enriched doctor view.
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create inserts a new pending appointment and returns the normalized result
// of the insert.
func (a *AppointmentAdapter) Create(ctx context.Context, patientID, doctorID, date, timeOfDay string) (*entities.Appointment, error) {
	if patientID == "" {
		return nil, apperrors.NewValidationError("patient_id is required")
	}
	if doctorID == "" {
		return nil, apperrors.NewValidationError("doctor_id is required")
	}

	scheduledAt, err := time.Parse(combinedLayout, date+"T"+timeOfDay)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("malformed date/time %q %q: use YYYY-MM-DD and HH:MM:SS", date, timeOfDay))
	}

	record := goqu.Record{
		"id":               uuid.New().String(),
		"patient_id":       patientID,
		"therapist_id":     doctorID,
		"appointment_date": scheduledAt,
		"status":           entities.AppointmentStatusPending,
	}

	query, args, err := a.db.Insert(appointmentsTable).
		Rows(record).
		Returning("id", "patient_id", "therapist_id", "status", "appointment_date", "notes", "created_at", "updated_at").
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build insert query", err)
	}

	row, err := scanBaseRow(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewStorageError("insert returned no row", nil)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create appointment", err)
	}

	return entities.NormalizeRow(row)
}

// GetByID retrieves an appointment by ID from the base table
func (a *AppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(
		"id", "patient_id", "therapist_id", "status", "appointment_date",
		"notes", "created_at", "updated_at",
	).From(appointmentsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	row, err := scanBaseRow(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to get appointment", err)
	}

	return entities.NormalizeRow(row)
}

// ListByDoctor retrieves a doctor's appointments from the enriched view,
// ordered ascending by scheduled instant
func (a *AppointmentAdapter) ListByDoctor(ctx context.Context, doctorID string) ([]*entities.Appointment, error) {
	query, args, err := a.db.Select(
		"id", "patient_id", "therapist_id", "status", "appointment_date",
		"appointment_day", "appointment_time", "created_at", "updated_at",
		"display_patient_name", "display_username", "reason", "doctor_name", "specialization",
	).From(doctorViewName).
		Where(goqu.Ex{"therapist_id": doctorID}).
		Order(goqu.I("appointment_date").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list doctor appointments", err)
	}
	defer rows.Close()

	appointments := []*entities.Appointment{}
	for rows.Next() {
		viewRow, err := scanViewRow(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to scan appointment row", err)
		}
		appointment, err := entities.NormalizeRow(viewRow)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to iterate appointment rows", err)
	}

	return appointments, nil
}

// ListByPatient retrieves a patient's appointments from the base table,
// ordered ascending by scheduled instant
func (a *AppointmentAdapter) ListByPatient(ctx context.Context, patientID string) ([]*entities.Appointment, error) {
	query, args, err := a.db.Select(
		"id", "patient_id", "therapist_id", "status", "appointment_date",
		"notes", "created_at", "updated_at",
	).From(appointmentsTable).
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("appointment_date").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list patient appointments", err)
	}
	defer rows.Close()

	appointments := []*entities.Appointment{}
	for rows.Next() {
		baseRow, err := scanBaseRow(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to scan appointment row", err)
		}
		appointment, err := entities.NormalizeRow(baseRow)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to iterate appointment rows", err)
	}

	return appointments, nil
}

// UpdateStatus validates the requested change against the current persisted
// status and writes the new status. Reading then writing without a lock means
// a concurrent conflicting update can win in between; the store's
// last-write-wins ordering resolves it.
func (a *AppointmentAdapter) UpdateStatus(ctx context.Context, id string, status entities.AppointmentStatus) error {
	query, args, err := a.db.Select("status").
		From(appointmentsTable).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build status query", err)
	}

	var current entities.AppointmentStatus
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(&current)
	if err == sql.ErrNoRows {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}
	if err != nil {
		return apperrors.NewStorageError("failed to read appointment status", err)
	}

	target, err := entities.RequestTransition(current, status)
	if err != nil {
		return err
	}
	if target == current {
		// Idempotent re-request, nothing to write.
		return nil
	}

	query, args, err = a.db.Update(appointmentsTable).
		Set(goqu.Record{
			"status":     target,
			"updated_at": time.Now(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageError("failed to update appointment status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewStorageError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", id))
	}

	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanBaseRow scans one base-table row
func scanBaseRow(rows rowScanner) (entities.BaseRow, error) {
	var r entities.BaseRow
	var appointmentDate sql.NullTime
	var status, notes sql.NullString

	err := rows.Scan(
		&r.ID,
		&r.PatientID,
		&r.TherapistID,
		&status,
		&appointmentDate,
		&notes,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return entities.BaseRow{}, err
	}

	r.Status = status.String
	r.Notes = notes.String
	if appointmentDate.Valid {
		r.AppointmentDate = appointmentDate.Time.Format(combinedLayout)
	}
	return r, nil
}

// scanViewRow scans one enriched view row from a result set
func scanViewRow(rows *sql.Rows) (entities.ViewRow, error) {
	var r entities.ViewRow
	var appointmentDate sql.NullTime
	var status, day, timeOfDay sql.NullString
	var displayPatientName, displayUsername, reason, doctorName, specialization sql.NullString

	err := rows.Scan(
		&r.ID,
		&r.PatientID,
		&r.TherapistID,
		&status,
		&appointmentDate,
		&day,
		&timeOfDay,
		&r.CreatedAt,
		&r.UpdatedAt,
		&displayPatientName,
		&displayUsername,
		&reason,
		&doctorName,
		&specialization,
	)
	if err != nil {
		return entities.ViewRow{}, err
	}

	r.Status = status.String
	r.AppointmentDay = day.String
	r.AppointmentTime = timeOfDay.String
	r.DisplayPatientName = displayPatientName.String
	r.DisplayUsername = displayUsername.String
	r.Reason = reason.String
	r.DoctorName = doctorName.String
	r.Specialization = specialization.String
	if appointmentDate.Valid {
		r.AppointmentDate = appointmentDate.Time.Format(combinedLayout)
	}
	return r, nil
}
