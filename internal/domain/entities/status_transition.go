package entities

import (
	apperrors "github.com/clinicdesk/scheduling-backend/pkg/errors"
)

// allowedTransitions enumerates every direct status transition. Completed and
// cancelled are terminal and have no outgoing edges.
var allowedTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending:   {AppointmentStatusConfirmed, AppointmentStatusCancelled},
	AppointmentStatusConfirmed: {AppointmentStatusCompleted, AppointmentStatusCancelled},
	AppointmentStatusCompleted: {},
	AppointmentStatusCancelled: {},
}

// RequestTransition validates a status change against the state machine and
// returns the status to persist. Re-requesting the current status succeeds as
// a no-op, guarding against duplicate submissions. Persistence is the
// repository's responsibility; this has no side effects.
func RequestTransition(current, requested AppointmentStatus) (AppointmentStatus, error) {
	if !current.IsValid() {
		return "", apperrors.NewValidationError("current status is not a defined status: " + string(current))
	}
	if !requested.IsValid() {
		return "", apperrors.NewValidationError("requested status is not a defined status: " + string(requested))
	}

	if current == requested {
		return current, nil
	}

	for _, next := range allowedTransitions[current] {
		if next == requested {
			return requested, nil
		}
	}

	return "", apperrors.NewInvalidTransitionError(string(current), string(requested))
}
