package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/clinicdesk/scheduling-backend/internal/api/handlers"
	"github.com/clinicdesk/scheduling-backend/internal/application/services"
	"github.com/clinicdesk/scheduling-backend/internal/domain/entities"
	"github.com/clinicdesk/scheduling-backend/internal/domain/providers"
)

// MockEventBus for testing
type MockEventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *entities.AppointmentEvent
	published   []*entities.AppointmentEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscribers: make(map[string][]chan *entities.AppointmentEvent),
		published:   make([]*entities.AppointmentEvent, 0),
	}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	m.mu.Lock()
	m.published = append(m.published, event)
	channels := append([]chan *entities.AppointmentEvent(nil), m.subscribers[channel]...)
	m.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.AppointmentEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	m.mu.Lock()
	subs := m.subscribers
	m.subscribers = make(map[string][]chan *entities.AppointmentEvent)
	m.mu.Unlock()
	for _, channels := range subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	return nil
}

func TestSSEHandler_StreamDoctorAppointments(t *testing.T) {
	t.Run("should establish SSE connection", func(t *testing.T) {
		eventBus := NewMockEventBus()
		handler := handlers.NewSSEHandler(services.NewInsertNotifier(eventBus))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req := httptest.NewRequest("GET", "/api/stream/doctors/doctor_001/appointments", nil)
		req.SetPathValue("id", "doctor_001")
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			handler.StreamDoctorAppointments(w, req)
			close(done)
		}()

		// Wait a bit for connection to establish
		time.Sleep(100 * time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not exit after cancel")
		}

		result := w.Result()
		if result.Header.Get("Content-Type") != "text/event-stream" {
			t.Errorf("Expected Content-Type text/event-stream, got %s", result.Header.Get("Content-Type"))
		}
		if result.Header.Get("Cache-Control") != "no-cache" {
			t.Errorf("Expected Cache-Control no-cache, got %s", result.Header.Get("Cache-Control"))
		}
		if !strings.Contains(w.Body.String(), "event: connected") {
			t.Error("Expected initial connected event")
		}
	})

	t.Run("should stream insert events for the doctor", func(t *testing.T) {
		eventBus := NewMockEventBus()
		handler := handlers.NewSSEHandler(services.NewInsertNotifier(eventBus))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req := httptest.NewRequest("GET", "/api/stream/doctors/doctor_002/appointments", nil)
		req.SetPathValue("id", "doctor_002")
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			handler.StreamDoctorAppointments(w, req)
			close(done)
		}()

		// Wait for the subscription to register
		time.Sleep(100 * time.Millisecond)

		event := entities.NewInsertEvent("evt_1", entities.BaseRow{
			ID:              "appt_1",
			PatientID:       "patient_001",
			TherapistID:     "doctor_002",
			Status:          "pending",
			AppointmentDate: "2025-10-30T14:00:00",
		})
		channel := providers.GetDoctorChannel("doctor_002")
		eventBus.Publish(context.Background(), channel, event)

		// Wait for the event to be written to the stream
		time.Sleep(200 * time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not exit after cancel")
		}

		body := w.Body.String()
		if !strings.Contains(body, "event: insert") {
			t.Errorf("Expected insert event in stream, got: %s", body)
		}
		if !strings.Contains(body, `"id":"appt_1"`) {
			t.Errorf("Expected normalized appointment in stream, got: %s", body)
		}
		if !strings.Contains(body, `"doctor_id":"doctor_002"`) {
			t.Errorf("Expected doctor_id field in stream, got: %s", body)
		}
	})

	t.Run("should reject a request without a doctor id", func(t *testing.T) {
		eventBus := NewMockEventBus()
		handler := handlers.NewSSEHandler(services.NewInsertNotifier(eventBus))

		req := httptest.NewRequest("GET", "/api/stream/doctors//appointments", nil)
		w := httptest.NewRecorder()

		handler.StreamDoctorAppointments(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("should track connected clients", func(t *testing.T) {
		eventBus := NewMockEventBus()
		handler := handlers.NewSSEHandler(services.NewInsertNotifier(eventBus))

		if handler.GetClientCount() != 0 {
			t.Errorf("Expected 0 clients, got %d", handler.GetClientCount())
		}

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest("GET", "/api/stream/doctors/doctor_003/appointments", nil)
		req.SetPathValue("id", "doctor_003")
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			handler.StreamDoctorAppointments(w, req)
			close(done)
		}()

		time.Sleep(100 * time.Millisecond)
		if handler.GetClientCount() != 1 {
			t.Errorf("Expected 1 client, got %d", handler.GetClientCount())
		}

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not exit after cancel")
		}

		if handler.GetClientCount() != 0 {
			t.Errorf("Expected 0 clients after disconnect, got %d", handler.GetClientCount())
		}
	})
}
