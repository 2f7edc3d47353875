package entities

import (
	"time"

	apperrors "github.com/clinicdesk/scheduling-backend/pkg/errors"
)

// RawRow is the tagged union of the two storage shapes an appointment record
// can arrive in. The set is sealed: only ViewRow and BaseRow implement it.
type RawRow interface {
	rawRow()
}

// ViewRow is the enriched read-view shape (v_doctor_appointments). It carries
// precomputed day/time fields and display-prefixed enrichment columns.
type ViewRow struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patient_id"`
	TherapistID     string    `json:"therapist_id"`
	Status          string    `json:"status"`
	AppointmentDate string    `json:"appointment_date"`
	AppointmentDay  string    `json:"appointment_day"`
	AppointmentTime string    `json:"appointment_time"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	DisplayPatientName string `json:"display_patient_name"`
	DisplayUsername    string `json:"display_username"`
	Reason             string `json:"reason"`
	DoctorName         string `json:"doctor_name"`
	Specialization     string `json:"specialization"`

	// Legacy unprefixed columns, still emitted by older view definitions.
	PatientName     string `json:"patient_name"`
	PatientUsername string `json:"patient_username"`
	Notes           string `json:"notes"`
}

func (ViewRow) rawRow() {}

// BaseRow is the base table shape (appointments). It carries a single combined
// timestamp and legacy unprefixed enrichment columns.
type BaseRow struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patient_id"`
	TherapistID     string    `json:"therapist_id"`
	Status          string    `json:"status"`
	AppointmentDate string    `json:"appointment_date"`
	Notes           string    `json:"notes"`
	PatientName     string    `json:"patient_name"`
	PatientUsername string    `json:"patient_username"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (BaseRow) rawRow() {}

// combinedTimestampLayouts are the accepted encodings for the combined
// appointment_date column across the base table, the view, and event payloads.
var combinedTimestampLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999-07",
}

// NormalizeRow converts a raw record of either shape into exactly one
// canonical Appointment. Every fallback path is handled by a dedicated
// per-field resolver so the precedence order stays enumerable.
func NormalizeRow(row RawRow) (*Appointment, error) {
	switch r := row.(type) {
	case ViewRow:
		return normalizeView(r)
	case *ViewRow:
		return normalizeView(*r)
	case BaseRow:
		return normalizeBase(r)
	case *BaseRow:
		return normalizeBase(*r)
	default:
		return nil, apperrors.NewInternalError("unknown raw row shape", nil)
	}
}

func normalizeView(r ViewRow) (*Appointment, error) {
	if err := requireFields(r.ID, r.PatientID, r.TherapistID); err != nil {
		return nil, err
	}
	status, err := resolveStatus(r.Status)
	if err != nil {
		return nil, err
	}
	date, timeOfDay, err := resolveSchedule(r.AppointmentDay, r.AppointmentTime, r.AppointmentDate)
	if err != nil {
		return nil, err
	}
	return &Appointment{
		ID:        r.ID,
		PatientID: r.PatientID,
		// therapist_id is the internal clinician-assignment column; it is
		// renamed unconditionally on the way out.
		DoctorID:       r.TherapistID,
		Status:         status,
		Date:           date,
		Time:           timeOfDay,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		PatientName:    firstNonEmpty(r.DisplayPatientName, r.PatientName),
		Username:       firstNonEmpty(r.DisplayUsername, r.PatientUsername),
		Reason:         firstNonEmpty(r.Reason, r.Notes),
		DoctorName:     r.DoctorName,
		Specialization: r.Specialization,
	}, nil
}

// firstNonEmpty resolves enrichment fields: display-prefixed value first,
// legacy fallback second, else absent.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func normalizeBase(r BaseRow) (*Appointment, error) {
	if err := requireFields(r.ID, r.PatientID, r.TherapistID); err != nil {
		return nil, err
	}
	status, err := resolveStatus(r.Status)
	if err != nil {
		return nil, err
	}
	// Base rows never carry precomputed day/time fields.
	date, timeOfDay, err := resolveSchedule("", "", r.AppointmentDate)
	if err != nil {
		return nil, err
	}
	return &Appointment{
		ID:          r.ID,
		PatientID:   r.PatientID,
		DoctorID:    r.TherapistID,
		Status:      status,
		Date:        date,
		Time:        timeOfDay,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		PatientName: r.PatientName,
		Username:    r.PatientUsername,
		Reason:      r.Notes,
	}, nil
}

func requireFields(id, patientID, therapistID string) error {
	if id == "" {
		return apperrors.NewStructuralError("id", "missing required field")
	}
	if patientID == "" {
		return apperrors.NewStructuralError("patient_id", "missing required field")
	}
	if therapistID == "" {
		return apperrors.NewStructuralError("therapist_id", "missing required field")
	}
	return nil
}

// resolveSchedule resolves the date/time pair in strict precedence order:
// precomputed day+time when both are present, otherwise decomposition of the
// combined timestamp, otherwise an empty pair as the explicit unknown
// sentinel. The result is never a partial pair.
func resolveSchedule(day, timeOfDay, combined string) (string, string, error) {
	if day != "" && timeOfDay != "" {
		return day, timeOfDay, nil
	}
	if combined == "" {
		return "", "", nil
	}
	ts, err := parseCombinedTimestamp(combined)
	if err != nil {
		return "", "", apperrors.NewStructuralError("appointment_date", "malformed timestamp: "+combined)
	}
	local := ts.Local()
	return local.Format("2006-01-02"), local.Format("15:04:05"), nil
}

func parseCombinedTimestamp(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range combinedTimestampLayouts {
		// Zone-less layouts are interpreted in local time so that
		// decomposing and recombining a timestamp is lossless.
		ts, err := time.ParseInLocation(layout, value, time.Local)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// resolveStatus defaults an absent status to pending and rejects free text.
func resolveStatus(raw string) (AppointmentStatus, error) {
	if raw == "" {
		return AppointmentStatusPending, nil
	}
	status := AppointmentStatus(raw)
	if !status.IsValid() {
		return "", apperrors.NewStructuralError("status", "not a defined status: "+raw)
	}
	return status, nil
}
