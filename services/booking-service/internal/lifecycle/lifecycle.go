// Package lifecycle holds the appointment status graph.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var edges = map[model.Status][]model.Status{
	model.StatusPending: {
		model.StatusConfirmed,
		model.StatusCancelled,
	},
	model.StatusConfirmed: {
		model.StatusCompleted,
		model.StatusInProgress,
		model.StatusCheckedIn,
		model.StatusCancelled,
		model.StatusNoShow,
	},
}

var known = map[model.Status]bool{
	model.StatusPending:    true,
	model.StatusConfirmed:  true,
	model.StatusInProgress: true,
	model.StatusCheckedIn:  true,
	model.StatusCompleted:  true,
	model.StatusCancelled:  true,
	model.StatusNoShow:     true,
}

// Initial is the status of every new appointment.
const Initial = model.StatusPending

func Known(s model.Status) bool {
	return known[s]
}

func Terminal(s model.Status) bool {
	return s == model.StatusCancelled || s == model.StatusCompleted || s == model.StatusNoShow
}

// Allowed lists the statuses reachable from s in one step.
func Allowed(s model.Status) []model.Status {
	return append([]model.Status(nil), edges[s]...)
}

// Check returns nil when from -> to is an edge. Same-state requests are rejected.
func Check(from, to model.Status) error {
	if !Known(to) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	for _, next := range edges[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Effect names the notification a transition triggers.
type Effect string

const (
	EffectNone      Effect = ""
	EffectConfirmed Effect = "confirmed"
	EffectCancelled Effect = "cancelled"
)

func EffectOf(to model.Status) Effect {
	switch to {
	case model.StatusConfirmed:
		return EffectConfirmed
	case model.StatusCancelled:
		return EffectCancelled
	default:
		return EffectNone
	}
}
