package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/scheduling-backend/internal/domain/entities"
	"github.com/clinicdesk/scheduling-backend/internal/domain/providers"
	apperrors "github.com/clinicdesk/scheduling-backend/pkg/errors"
)

// InsertNotifier delivers newly created appointments to registered callbacks.
// Each qualifying insert event is delivered exactly once per subscription,
// normalized; events for other doctors are dropped without invoking the
// callback. Delivery runs on a per-subscription goroutine, so one slow or
// failing callback never blocks another subscriber or new registrations.
type InsertNotifier struct {
	bus providers.EventBus
}

// NewInsertNotifier creates a new insert notifier on top of an event bus
func NewInsertNotifier(bus providers.EventBus) *InsertNotifier {
	return &InsertNotifier{bus: bus}
}

// Subscription is the unsubscribe handle returned by Subscribe. Releasing it
// stops further delivery; deliveries already dispatched are not retracted.
type Subscription struct {
	doctorID string
	cancel   context.CancelFunc
	done     chan struct{}
}

// Unsubscribe releases the subscription. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.cancel()
}

// Done is closed once the delivery loop has fully stopped
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe registers interest in newly created appointments for a doctor.
// onInsert is invoked once per qualifying insert with the normalized record.
// The subscription also ends when ctx is cancelled.
func (n *InsertNotifier) Subscribe(ctx context.Context, doctorID string, onInsert func(*entities.Appointment)) (*Subscription, error) {
	if doctorID == "" {
		return nil, apperrors.NewValidationError("doctor_id is required")
	}
	if onInsert == nil {
		return nil, apperrors.NewValidationError("onInsert callback is required")
	}

	subCtx, cancel := context.WithCancel(ctx)
	events, err := n.bus.Subscribe(subCtx, providers.GetDoctorChannel(doctorID))
	if err != nil {
		cancel()
		return nil, err
	}

	sub := &Subscription{
		doctorID: doctorID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go n.deliver(subCtx, doctorID, events, onInsert, sub.done)

	return sub, nil
}

func (n *InsertNotifier) deliver(ctx context.Context, doctorID string, events <-chan *entities.AppointmentEvent, onInsert func(*entities.Appointment), done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.EventType != entities.AppointmentEventTypeInsert {
				continue
			}
			// The channel is already scoped per doctor; the filter still
			// checks the clinician-assignment field on the row itself.
			if event.TherapistID != doctorID {
				continue
			}

			appointment, err := entities.NormalizeRow(event.Row)
			if err != nil {
				log.Error().
					Str("doctor_id", doctorID).
					Str("event_id", event.ID).
					Err(err).
					Msg("dropping insert event that failed normalization")
				continue
			}

			invokeCallback(doctorID, event.ID, onInsert, appointment)
		}
	}
}

// invokeCallback isolates a callback failure to the single delivery; a panic
// does not tear down the subscription.
func invokeCallback(doctorID, eventID string, onInsert func(*entities.Appointment), appointment *entities.Appointment) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("doctor_id", doctorID).
				Str("event_id", eventID).
				Interface("panic", r).
				Msg("appointment insert callback panicked")
		}
	}()
	onInsert(appointment)
}
