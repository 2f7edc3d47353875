package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/scheduling-backend/internal/application/services"
	"github.com/clinicdesk/scheduling-backend/internal/domain/entities"
	"github.com/clinicdesk/scheduling-backend/internal/domain/providers"
	apperrors "github.com/clinicdesk/scheduling-backend/pkg/errors"
)

// fanoutEventBus delivers published events to channel subscribers in memory.
type fanoutEventBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan *entities.AppointmentEvent
}

func newFanoutEventBus() *fanoutEventBus {
	return &fanoutEventBus{subscribers: make(map[string][]chan *entities.AppointmentEvent)}
}

func (b *fanoutEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	b.mu.Lock()
	channels := append([]chan *entities.AppointmentEvent(nil), b.subscribers[channel]...)
	b.mu.Unlock()

	for _, ch := range channels {
		ch <- event
	}
	return nil
}

func (b *fanoutEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan *entities.AppointmentEvent, 10)
	b.subscribers[channel] = append(b.subscribers[channel], ch)
	return ch, nil
}

func (b *fanoutEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers[channel] {
		close(ch)
	}
	delete(b.subscribers, channel)
	return nil
}

func (b *fanoutEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, channels := range b.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	b.subscribers = make(map[string][]chan *entities.AppointmentEvent)
	return nil
}

func insertEventFor(doctorID, appointmentID string) *entities.AppointmentEvent {
	return entities.NewInsertEvent("evt_"+appointmentID, entities.BaseRow{
		ID:              appointmentID,
		PatientID:       "patient_001",
		TherapistID:     doctorID,
		Status:          "pending",
		AppointmentDate: "2025-10-30T14:00:00",
	})
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestInsertNotifier_Subscribe(t *testing.T) {
	t.Run("delivers a normalized appointment once per insert", func(t *testing.T) {
		bus := newFanoutEventBus()
		notifier := services.NewInsertNotifier(bus)

		var mu sync.Mutex
		var received []*entities.Appointment

		sub, err := notifier.Subscribe(context.Background(), "doctor_001", func(a *entities.Appointment) {
			mu.Lock()
			received = append(received, a)
			mu.Unlock()
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		channel := providers.GetDoctorChannel("doctor_001")
		require.NoError(t, bus.Publish(context.Background(), channel, insertEventFor("doctor_001", "appt_1")))

		waitFor(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(received) == 1
		})

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "appt_1", received[0].ID)
		assert.Equal(t, "doctor_001", received[0].DoctorID)
		assert.Equal(t, "2025-10-30", received[0].Date)
		assert.Equal(t, "14:00:00", received[0].Time)
	})

	t.Run("ignores inserts for other doctors", func(t *testing.T) {
		bus := newFanoutEventBus()
		notifier := services.NewInsertNotifier(bus)

		var mu sync.Mutex
		var count int

		sub, err := notifier.Subscribe(context.Background(), "doctor_001", func(*entities.Appointment) {
			mu.Lock()
			count++
			mu.Unlock()
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		// An event for another doctor arriving on this channel must still be
		// filtered out by the row's assignment field.
		channel := providers.GetDoctorChannel("doctor_001")
		require.NoError(t, bus.Publish(context.Background(), channel, insertEventFor("doctor_002", "appt_x")))
		require.NoError(t, bus.Publish(context.Background(), channel, insertEventFor("doctor_001", "appt_1")))

		waitFor(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return count == 1
		})

		// No second delivery sneaks in.
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, count)
	})

	t.Run("stops delivering after unsubscribe", func(t *testing.T) {
		bus := newFanoutEventBus()
		notifier := services.NewInsertNotifier(bus)

		var mu sync.Mutex
		var count int

		sub, err := notifier.Subscribe(context.Background(), "doctor_001", func(*entities.Appointment) {
			mu.Lock()
			count++
			mu.Unlock()
		})
		require.NoError(t, err)

		sub.Unsubscribe()
		select {
		case <-sub.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("delivery loop did not stop after unsubscribe")
		}

		channel := providers.GetDoctorChannel("doctor_001")
		require.NoError(t, bus.Publish(context.Background(), channel, insertEventFor("doctor_001", "appt_late")))

		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 0, count)
	})

	t.Run("a panicking callback does not end the subscription", func(t *testing.T) {
		bus := newFanoutEventBus()
		notifier := services.NewInsertNotifier(bus)

		var mu sync.Mutex
		var delivered []string

		sub, err := notifier.Subscribe(context.Background(), "doctor_001", func(a *entities.Appointment) {
			mu.Lock()
			delivered = append(delivered, a.ID)
			mu.Unlock()
			if a.ID == "appt_bad" {
				panic("callback failure")
			}
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		channel := providers.GetDoctorChannel("doctor_001")
		require.NoError(t, bus.Publish(context.Background(), channel, insertEventFor("doctor_001", "appt_bad")))
		require.NoError(t, bus.Publish(context.Background(), channel, insertEventFor("doctor_001", "appt_good")))

		waitFor(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(delivered) == 2
		})

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"appt_bad", "appt_good"}, delivered)
	})

	t.Run("drops events that fail normalization", func(t *testing.T) {
		bus := newFanoutEventBus()
		notifier := services.NewInsertNotifier(bus)

		var mu sync.Mutex
		var count int

		sub, err := notifier.Subscribe(context.Background(), "doctor_001", func(*entities.Appointment) {
			mu.Lock()
			count++
			mu.Unlock()
		})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		malformed := entities.NewInsertEvent("evt_bad", entities.BaseRow{
			ID:          "appt_bad",
			PatientID:   "patient_001",
			TherapistID: "doctor_001",
			Status:      "rescheduled",
		})
		channel := providers.GetDoctorChannel("doctor_001")
		require.NoError(t, bus.Publish(context.Background(), channel, malformed))
		require.NoError(t, bus.Publish(context.Background(), channel, insertEventFor("doctor_001", "appt_good")))

		waitFor(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return count == 1
		})
	})

	t.Run("validates inputs", func(t *testing.T) {
		notifier := services.NewInsertNotifier(newFanoutEventBus())

		_, err := notifier.Subscribe(context.Background(), "", func(*entities.Appointment) {})
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

		_, err = notifier.Subscribe(context.Background(), "doctor_001", nil)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("subscription ends when the context is cancelled", func(t *testing.T) {
		bus := newFanoutEventBus()
		notifier := services.NewInsertNotifier(bus)

		ctx, cancel := context.WithCancel(context.Background())
		sub, err := notifier.Subscribe(ctx, "doctor_001", func(*entities.Appointment) {})
		require.NoError(t, err)

		cancel()
		select {
		case <-sub.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("delivery loop did not stop after context cancel")
		}
	})
}
