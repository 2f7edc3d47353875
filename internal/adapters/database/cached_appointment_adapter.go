package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/scheduling-backend/internal/domain/entities"
	"github.com/clinicdesk/scheduling-backend/internal/domain/providers"
	"github.com/clinicdesk/scheduling-backend/internal/domain/repositories"
	"github.com/clinicdesk/scheduling-backend/internal/infrastructure/observability"
)

// CachedAppointmentAdapter wraps an AppointmentRepository with read caching
// for the two list operations. Writes invalidate the affected list keys
// before returning, so a read after a successful write never sees a stale
// status. GetByID is deliberately not cached.
type CachedAppointmentAdapter struct {
	adapter    repositories.AppointmentRepository
	cache      providers.CacheProvider
	ttlSeconds int
	metrics    *observability.Metrics
}

// NewCachedAppointmentAdapter creates a new cached appointment adapter.
// metrics may be nil.
func NewCachedAppointmentAdapter(adapter repositories.AppointmentRepository, cache providers.CacheProvider, ttlSeconds int, metrics *observability.Metrics) repositories.AppointmentRepository {
	return &CachedAppointmentAdapter{
		adapter:    adapter,
		cache:      cache,
		ttlSeconds: ttlSeconds,
		metrics:    metrics,
	}
}

func doctorListCacheKey(doctorID string) string {
	return fmt.Sprintf("appointments:doctor:list:%s", doctorID)
}

func patientListCacheKey(patientID string) string {
	return fmt.Sprintf("appointments:patient:list:%s", patientID)
}

// Create delegates to the underlying adapter and invalidates both list keys
func (a *CachedAppointmentAdapter) Create(ctx context.Context, patientID, doctorID, date, timeOfDay string) (*entities.Appointment, error) {
	appointment, err := a.adapter.Create(ctx, patientID, doctorID, date, timeOfDay)
	if err != nil {
		return nil, err
	}
	a.invalidate(ctx, appointment.DoctorID, appointment.PatientID)
	return appointment, nil
}

// GetByID is a pass-through; single-record reads back the status guard and
// must always see the persisted value.
func (a *CachedAppointmentAdapter) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	return a.adapter.GetByID(ctx, id)
}

// ListByDoctor retrieves a doctor's appointments with caching
func (a *CachedAppointmentAdapter) ListByDoctor(ctx context.Context, doctorID string) ([]*entities.Appointment, error) {
	return a.cachedList(ctx, doctorListCacheKey(doctorID), func() ([]*entities.Appointment, error) {
		return a.adapter.ListByDoctor(ctx, doctorID)
	})
}

// ListByPatient retrieves a patient's appointments with caching
func (a *CachedAppointmentAdapter) ListByPatient(ctx context.Context, patientID string) ([]*entities.Appointment, error) {
	return a.cachedList(ctx, patientListCacheKey(patientID), func() ([]*entities.Appointment, error) {
		return a.adapter.ListByPatient(ctx, patientID)
	})
}

// UpdateStatus delegates to the underlying adapter and invalidates the list
// keys of the affected doctor and patient
func (a *CachedAppointmentAdapter) UpdateStatus(ctx context.Context, id string, status entities.AppointmentStatus) error {
	if err := a.adapter.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	appointment, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		// The write succeeded; dropping the whole namespace is not worth it
		// for a read that just failed. The entries age out with the TTL.
		log.Warn().Err(err).Str("appointment_id", id).Msg("could not resolve appointment for cache invalidation")
		return nil
	}
	a.invalidate(ctx, appointment.DoctorID, appointment.PatientID)
	return nil
}

func (a *CachedAppointmentAdapter) cachedList(ctx context.Context, cacheKey string, fetch func() ([]*entities.Appointment, error)) ([]*entities.Appointment, error) {
	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var appointments []*entities.Appointment
		if unmarshalErr := json.Unmarshal(cached, &appointments); unmarshalErr == nil {
			if a.metrics != nil {
				observability.RecordCacheHit(ctx, a.metrics, cacheKey)
			}
			return appointments, nil
		} else {
			log.Warn().Str("cache_key", cacheKey).Err(unmarshalErr).Msg("failed to unmarshal cached appointment list")
		}
	}

	if a.metrics != nil {
		observability.RecordCacheMiss(ctx, a.metrics, cacheKey)
	}

	appointments, err := fetch()
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(appointments); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, a.ttlSeconds); err != nil {
			log.Warn().Str("cache_key", cacheKey).Err(err).Msg("failed to cache appointment list")
		}
	}

	return appointments, nil
}

func (a *CachedAppointmentAdapter) invalidate(ctx context.Context, doctorID, patientID string) {
	for _, key := range []string{doctorListCacheKey(doctorID), patientListCacheKey(patientID)} {
		if err := a.cache.Delete(ctx, key); err != nil {
			log.Warn().Str("cache_key", key).Err(err).Msg("failed to invalidate appointment list cache")
		}
	}
}
