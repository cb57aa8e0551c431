package booking

import (
	"context"
	"errors"
	"strings"

	"github.com/salonbook/bookingengine/services/booking-service/internal/events"
	"github.com/salonbook/bookingengine/services/booking-service/internal/lifecycle"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"github.com/salonbook/bookingengine/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TransitionStatus moves an appointment along one lifecycle edge. Moving to
// CANCELLED this way records the business as the initiator; use Cancel to
// name the initiator explicitly.
func (e *Engine) TransitionStatus(ctx context.Context, id string, to model.Status) (model.Appointment, error) {
	return e.transition(ctx, strings.TrimSpace(id), to, model.InitiatorBusiness, "")
}

// Cancel moves an appointment to CANCELLED on behalf of initiator.
func (e *Engine) Cancel(ctx context.Context, id string, initiator model.Initiator, reason string) (model.Appointment, error) {
	if !initiator.Valid() {
		return model.Appointment{}, newError(KindInvalidRequest, nil, "initiator must be customer or business, got %q", initiator)
	}
	return e.transition(ctx, strings.TrimSpace(id), model.StatusCancelled, initiator, strings.TrimSpace(reason))
}

func (e *Engine) transition(ctx context.Context, id string, to model.Status, initiator model.Initiator, reason string) (model.Appointment, error) {
	ctx, span := e.tracer.Start(ctx, "booking.TransitionStatus", trace.WithAttributes(
		attribute.String("appointment.id", id),
		attribute.String("appointment.status_to", string(to)),
	))
	defer span.End()

	updated, from, err := e.applyTransition(ctx, id, to, initiator, reason)
	e.metrics.transitioned(ctx, to, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		return model.Appointment{}, err
	}

	e.logger.InfoContext(ctx, "appointment status changed",
		"appointment_id", updated.ID,
		"from", from,
		"to", updated.Status,
		"initiator", initiator,
	)
	evtInitiator := model.Initiator("")
	if lifecycle.EffectOf(to) == lifecycle.EffectCancelled {
		evtInitiator = initiator
	}
	e.dispatcher.Dispatch(ctx, events.ForTransition(from, updated, evtInitiator, e.now()))
	return updated, nil
}

func (e *Engine) applyTransition(ctx context.Context, id string, to model.Status, initiator model.Initiator, reason string) (model.Appointment, model.Status, error) {
	if id == "" {
		return model.Appointment{}, "", newError(KindInvalidRequest, nil, "appointment id is required")
	}
	current, err := e.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, "", err
	}
	if err := lifecycle.Check(current.Status, to); err != nil {
		return model.Appointment{}, "", newError(KindInvalidTransition, err, "cannot move appointment %s from %s to %s", id, current.Status, to)
	}

	change := storage.StatusChange{}
	if to == model.StatusCancelled {
		change = storage.StatusChange{CancelledBy: string(initiator), CancelReason: reason}
	}
	updated, err := e.store.UpdateStatus(ctx, id, current.Status, to, change)
	switch {
	case err == nil:
		return updated, current.Status, nil
	case errors.Is(err, storage.ErrStatusChanged):
		return model.Appointment{}, "", newError(KindConcurrencyConflict, err, "appointment %s changed status concurrently", id)
	case errors.Is(err, storage.ErrNotFound):
		return model.Appointment{}, "", newError(KindAppointmentNotFound, nil, "appointment %s not found", id)
	default:
		return model.Appointment{}, "", storageError(err)
	}
}
