package database_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/scheduling-backend/internal/adapters/database"
	"github.com/clinicdesk/scheduling-backend/internal/domain/entities"
	"github.com/clinicdesk/scheduling-backend/internal/domain/repositories"
	"github.com/clinicdesk/scheduling-backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinicdesk/scheduling-backend/pkg/errors"
)

func setupAdapter(t *testing.T) (repositories.AppointmentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := database.NewAppointmentAdapter(postgres.NewClientFromDB(mockDB))
	return adapter, mock, func() { mockDB.Close() }
}

var baseColumns = []string{
	"id", "patient_id", "therapist_id", "status", "appointment_date",
	"notes", "created_at", "updated_at",
}

var viewColumns = []string{
	"id", "patient_id", "therapist_id", "status", "appointment_date",
	"appointment_day", "appointment_time", "created_at", "updated_at",
	"display_patient_name", "display_username", "reason", "doctor_name", "specialization",
}

func TestAppointmentAdapter_Create(t *testing.T) {
	t.Run("inserts a pending appointment and returns the normalized record", func(t *testing.T) {
		adapter, mock, cleanup := setupAdapter(t)
		defer cleanup()

		scheduledAt := time.Date(2025, 10, 30, 14, 0, 0, 0, time.Local)
		now := time.Now()
		mock.ExpectQuery(`INSERT INTO "appointments"`).
			WillReturnRows(sqlmock.NewRows(baseColumns).AddRow(
				"appt_123", "patient_001", "doctor_001", "pending",
				scheduledAt, nil, now, now,
			))

		appointment, err := adapter.Create(context.Background(), "patient_001", "doctor_001", "2025-10-30", "14:00:00")
		require.NoError(t, err)

		assert.Equal(t, "appt_123", appointment.ID)
		assert.Equal(t, "patient_001", appointment.PatientID)
		assert.Equal(t, "doctor_001", appointment.DoctorID)
		assert.Equal(t, entities.AppointmentStatusPending, appointment.Status)
		assert.Equal(t, "2025-10-30", appointment.Date)
		assert.Equal(t, "14:00:00", appointment.Time)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects malformed date before touching the database", func(t *testing.T) {
		adapter, mock, cleanup := setupAdapter(t)
		defer cleanup()

		_, err := adapter.Create(context.Background(), "patient_001", "doctor_001", "30/10/2025", "14:00:00")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects empty participant ids", func(t *testing.T) {
		adapter, _, cleanup := setupAdapter(t)
		defer cleanup()

		_, err := adapter.Create(context.Background(), "", "doctor_001", "2025-10-30", "14:00:00")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

		_, err = adapter.Create(context.Background(), "patient_001", "", "2025-10-30", "14:00:00")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})
}

func TestAppointmentAdapter_GetByID(t *testing.T) {
	t.Run("returns the normalized appointment", func(t *testing.T) {
		adapter, mock, cleanup := setupAdapter(t)
		defer cleanup()

		scheduledAt := time.Date(2025, 10, 30, 14, 0, 0, 0, time.Local)
		now := time.Now()
		mock.ExpectQuery(`SELECT .+ FROM "appointments" WHERE \("id" = 'appt_123'\)`).
			WillReturnRows(sqlmock.NewRows(baseColumns).AddRow(
				"appt_123", "patient_001", "doctor_001", "confirmed",
				scheduledAt, "follow-up", now, now,
			))

		appointment, err := adapter.GetByID(context.Background(), "appt_123")
		require.NoError(t, err)

		assert.Equal(t, entities.AppointmentStatusConfirmed, appointment.Status)
		assert.Equal(t, "follow-up", appointment.Reason)
	})

	t.Run("maps a missing row to not found", func(t *testing.T) {
		adapter, mock, cleanup := setupAdapter(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT .+ FROM "appointments" WHERE \("id" = 'missing'\)`).
			WillReturnError(sql.ErrNoRows)

		appointment, err := adapter.GetByID(context.Background(), "missing")
		assert.Nil(t, appointment)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}

func TestAppointmentAdapter_ListByDoctor(t *testing.T) {
	t.Run("reads from the enriched view", func(t *testing.T) {
		adapter, mock, cleanup := setupAdapter(t)
		defer cleanup()

		now := time.Now()
		mock.ExpectQuery(`SELECT .+ FROM "v_doctor_appointments" WHERE \("therapist_id" = 'doctor_001'\)`).
			WillReturnRows(sqlmock.NewRows(viewColumns).
				AddRow("appt_1", "patient_001", "doctor_001", "pending",
					time.Date(2025, 10, 30, 9, 0, 0, 0, time.Local), "2025-10-30", "09:00:00",
					now, now, "Adah O.", "adah_o", "follow-up", "Dr. Eze", "Cardiology").
				AddRow("appt_2", "patient_002", "doctor_001", "confirmed",
					time.Date(2025, 10, 30, 14, 0, 0, 0, time.Local), "2025-10-30", "14:00:00",
					now, now, nil, nil, nil, nil, nil))

		appointments, err := adapter.ListByDoctor(context.Background(), "doctor_001")
		require.NoError(t, err)
		require.Len(t, appointments, 2)

		assert.Equal(t, "Adah O.", appointments[0].PatientName)
		assert.Equal(t, "Dr. Eze", appointments[0].DoctorName)
		assert.Equal(t, "09:00:00", appointments[0].Time)

		assert.Empty(t, appointments[1].PatientName)
		assert.Equal(t, "14:00:00", appointments[1].Time)
	})

	t.Run("returns an empty slice when the doctor has no appointments", func(t *testing.T) {
		adapter, mock, cleanup := setupAdapter(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT .+ FROM "v_doctor_appointments" WHERE \("therapist_id" = 'doctor_999'\)`).
			WillReturnRows(sqlmock.NewRows(viewColumns))

		appointments, err := adapter.ListByDoctor(context.Background(), "doctor_999")
		require.NoError(t, err)
		assert.NotNil(t, appointments)
		assert.Empty(t, appointments)
	})
}

func TestAppointmentAdapter_ListByPatient(t *testing.T) {
	adapter, mock, cleanup := setupAdapter(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery(`SELECT .+ FROM "appointments" WHERE \("patient_id" = 'patient_001'\)`).
		WillReturnRows(sqlmock.NewRows(baseColumns).
			AddRow("appt_1", "patient_001", "doctor_001", "pending",
				time.Date(2025, 10, 30, 14, 0, 0, 0, time.Local), nil, now, now))

	appointments, err := adapter.ListByPatient(context.Background(), "patient_001")
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, "doctor_001", appointments[0].DoctorID)
}

func TestAppointmentAdapter_UpdateStatus(t *testing.T) {
	t.Run("writes an allowed transition", func(t *testing.T) {
		adapter, mock, cleanup := setupAdapter(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT "status" FROM "appointments" WHERE \("id" = 'appt_123'\)`).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
		mock.ExpectExec(`UPDATE "appointments"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := adapter.UpdateStatus(context.Background(), "appt_123", entities.AppointmentStatusConfirmed)
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips the write when the status is already the requested one", func(t *testing.T) {
		adapter, mock, cleanup := setupAdapter(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT "status" FROM "appointments" WHERE \("id" = 'appt_123'\)`).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("confirmed"))

		err := adapter.UpdateStatus(context.Background(), "appt_123", entities.AppointmentStatusConfirmed)
		require.NoError(t, err)

		// No UPDATE expected.
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a disallowed transition without writing", func(t *testing.T) {
		adapter, mock, cleanup := setupAdapter(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT "status" FROM "appointments" WHERE \("id" = 'appt_123'\)`).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))

		err := adapter.UpdateStatus(context.Background(), "appt_123", entities.AppointmentStatusPending)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidTransition))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps a missing appointment to not found", func(t *testing.T) {
		adapter, mock, cleanup := setupAdapter(t)
		defer cleanup()

		mock.ExpectQuery(`SELECT "status" FROM "appointments" WHERE \("id" = 'missing'\)`).
			WillReturnError(sql.ErrNoRows)

		err := adapter.UpdateStatus(context.Background(), "missing", entities.AppointmentStatusConfirmed)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}
