package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/scheduling-backend/internal/application/services"
	"github.com/clinicdesk/scheduling-backend/internal/domain/entities"
)

// AppointmentNotifier is the subscription surface the SSE handler consumes
type AppointmentNotifier interface {
	Subscribe(ctx context.Context, doctorID string, onInsert func(*entities.Appointment)) (*services.Subscription, error)
}

// SSEHandler streams newly created appointments to doctors over
// Server-Sent Events
type SSEHandler struct {
	notifier AppointmentNotifier

	mu          sync.RWMutex
	clientCount int
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(notifier AppointmentNotifier) *SSEHandler {
	return &SSEHandler{
		notifier: notifier,
	}
}

// StreamDoctorAppointments handles SSE connections for a doctor's incoming
// appointments
// GET /api/stream/doctors/{id}/appointments
func (h *SSEHandler) StreamDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	doctorID := r.PathValue("id")
	if doctorID == "" {
		respondWithError(w, http.StatusBadRequest, "doctor ID is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := make(chan *entities.Appointment, 10)
	sub, err := h.notifier.Subscribe(r.Context(), doctorID, func(appointment *entities.Appointment) {
		select {
		case clientChan <- appointment:
		default:
			// Client channel full, skip event
		}
	})
	if err != nil {
		log.Error().Str("doctor_id", doctorID).Err(err).Msg("failed to subscribe to appointment inserts")
		respondWithError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	defer sub.Unsubscribe()

	h.trackClient(1)
	defer h.trackClient(-1)

	// Send initial connection event
	h.sendEvent(w, "connected", map[string]interface{}{
		"doctor_id": doctorID,
		"timestamp": time.Now(),
	})
	flusher.Flush()

	// Keep connection alive and send events
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("doctor_id", doctorID).Msg("client disconnected from appointment stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case appointment := <-clientChan:
			if appointment == nil {
				continue
			}
			h.sendEvent(w, "insert", appointment)
			flusher.Flush()
		}
	}
}

// sendEvent sends an SSE event to the client
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal SSE event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

func (h *SSEHandler) trackClient(delta int) {
	h.mu.Lock()
	h.clientCount += delta
	h.mu.Unlock()
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientCount
}
