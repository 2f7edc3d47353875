package providers

import (
	"context"

	"github.com/clinicdesk/scheduling-backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// appointment change events
type EventBus interface {
	// Publish publishes an event to all subscribers of a channel
	Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error

	// Subscribe subscribes to events on a channel. The returned channel is
	// closed when ctx is cancelled or the bus shuts down.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error)

	// Unsubscribe drops all subscribers of a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelDoctorPrefix is the prefix for per-doctor insert channels
	EventChannelDoctorPrefix = "appointments:doctor:"
)

// GetDoctorChannel returns the insert-event channel for a specific doctor
func GetDoctorChannel(doctorID string) string {
	return EventChannelDoctorPrefix + doctorID
}
