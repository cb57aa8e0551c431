// Package events defines what the booking engine announces after a commit.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

// Type doubles as the Kafka topic name.
type Type string

const (
	TypeBookingCreated         Type = "booking.appointment.created.v1"
	TypeAppointmentConfirmed   Type = "booking.appointment.confirmed.v1"
	TypeAppointmentCancelled   Type = "booking.appointment.cancelled.v1"
	TypeAppointmentStatusMoved Type = "booking.appointment.status_changed.v1"
)

// Topics is every topic the notification worker subscribes to.
var Topics = []Type{
	TypeBookingCreated,
	TypeAppointmentConfirmed,
	TypeAppointmentCancelled,
	TypeAppointmentStatusMoved,
}

type Event struct {
	ID             string          `json:"event_id"`
	Type           Type            `json:"event_type"`
	OccurredAt     time.Time       `json:"occurred_at"`
	Appointment    Appointment     `json:"appointment"`
	PreviousStatus model.Status    `json:"previous_status,omitempty"`
	Initiator      model.Initiator `json:"initiator,omitempty"`
}

// Appointment is the wire form of model.Appointment.
type Appointment struct {
	ID           string       `json:"appointment_id"`
	BusinessID   string       `json:"business_id"`
	ServiceID    string       `json:"service_id"`
	StaffID      string       `json:"staff_id"`
	ClientID     string       `json:"client_id,omitempty"`
	Guest        *model.Guest `json:"guest,omitempty"`
	Status       model.Status `json:"status"`
	Date         string       `json:"date"`
	StartTime    string       `json:"start_time"`
	EndTime      string       `json:"end_time"`
	StartAt      time.Time    `json:"start_at"`
	EndAt        time.Time    `json:"end_at"`
	Price        string       `json:"price"`
	Currency     string       `json:"currency"`
	DurationMins int          `json:"duration_minutes"`
	Notes        string       `json:"notes,omitempty"`
	CancelReason string       `json:"cancel_reason,omitempty"`
}

func FromModel(a model.Appointment) Appointment {
	return Appointment{
		ID:           a.ID,
		BusinessID:   a.BusinessID,
		ServiceID:    a.ServiceID,
		StaffID:      a.StaffID,
		ClientID:     a.ClientID,
		Guest:        a.Guest,
		Status:       a.Status,
		Date:         a.Date,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		StartAt:      a.StartAt.UTC(),
		EndAt:        a.EndAt.UTC(),
		Price:        a.Price.StringFixed(2),
		Currency:     a.Currency,
		DurationMins: a.DurationMins,
		Notes:        a.Notes,
		CancelReason: a.CancelReason,
	}
}

func (a Appointment) Model() model.Appointment {
	price, _ := decimal.NewFromString(a.Price)
	return model.Appointment{
		ID:           a.ID,
		BusinessID:   a.BusinessID,
		ServiceID:    a.ServiceID,
		StaffID:      a.StaffID,
		ClientID:     a.ClientID,
		Guest:        a.Guest,
		Status:       a.Status,
		Date:         a.Date,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		StartAt:      a.StartAt,
		EndAt:        a.EndAt,
		Price:        price,
		Currency:     a.Currency,
		DurationMins: a.DurationMins,
		Notes:        a.Notes,
		CancelReason: a.CancelReason,
	}
}

func New(t Type, appt model.Appointment, now time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		OccurredAt:  now.UTC(),
		Appointment: FromModel(appt),
	}
}

// ForTransition picks the event type for a status change.
func ForTransition(from model.Status, appt model.Appointment, initiator model.Initiator, now time.Time) Event {
	t := TypeAppointmentStatusMoved
	switch appt.Status {
	case model.StatusConfirmed:
		t = TypeAppointmentConfirmed
	case model.StatusCancelled:
		t = TypeAppointmentCancelled
	}
	evt := New(t, appt, now)
	evt.PreviousStatus = from
	evt.Initiator = initiator
	return evt
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(raw []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(raw, &e)
	return e, err
}

// Dispatcher hands committed events to whatever delivers notifications.
// Dispatch must not block on delivery and never fails the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, evt Event)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, evt Event)

func (f DispatcherFunc) Dispatch(ctx context.Context, evt Event) { f(ctx, evt) }

// Discard drops every event.
var Discard Dispatcher = DispatcherFunc(func(context.Context, Event) {})
