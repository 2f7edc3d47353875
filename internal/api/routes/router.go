package routes

import (
	"net/http"

	"github.com/clinicdesk/scheduling-backend/internal/api/handlers"
	"github.com/clinicdesk/scheduling-backend/internal/api/middleware"
	"github.com/clinicdesk/scheduling-backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	appointmentHandler *handlers.AppointmentHandler
	sseHandler         *handlers.SSEHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router. sseHandler may be nil when the streaming
// endpoint is served by the dedicated SSE server instead.
func NewRouter(
	appointmentHandler *handlers.AppointmentHandler,
	sseHandler *handlers.SSEHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		appointmentHandler: appointmentHandler,
		sseHandler:         sseHandler,
		metrics:            metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Appointment endpoints
	r.mux.HandleFunc("POST /api/appointments", r.appointmentHandler.CreateAppointment)
	r.mux.HandleFunc("PATCH /api/appointments/{id}/status", r.appointmentHandler.UpdateAppointmentStatus)
	r.mux.HandleFunc("GET /api/doctors/{id}/appointments", r.appointmentHandler.ListDoctorAppointments)
	r.mux.HandleFunc("GET /api/patients/{id}/appointments", r.appointmentHandler.ListPatientAppointments)

	// Streaming endpoint
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/doctors/{id}/appointments", r.sseHandler.StreamDoctorAppointments)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS wraps everything so headers are present on every response.
	var handler http.Handler = r.mux
	handler = middleware.Compression(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
