package events

import (
	"testing"
	"time"

	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

func TestForTransitionPicksType(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	appt := model.Appointment{ID: "a1", Status: model.StatusCancelled, Price: decimal.RequireFromString("35.5")}

	evt := ForTransition(model.StatusPending, appt, model.InitiatorCustomer, now)
	if evt.Type != TypeAppointmentCancelled || evt.PreviousStatus != model.StatusPending || evt.Initiator != model.InitiatorCustomer {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.ID == "" {
		t.Fatal("expected event id")
	}
	if evt.Appointment.Price != "35.50" {
		t.Fatalf("expected fixed two-decimal price, got %q", evt.Appointment.Price)
	}

	appt.Status = model.StatusCompleted
	if ForTransition(model.StatusConfirmed, appt, "", now).Type != TypeAppointmentStatusMoved {
		t.Fatal("completion should be a generic status change")
	}
}

func TestEventWireRoundTripKeepsGuestAndPrice(t *testing.T) {
	appt := model.Appointment{
		ID:    "a1",
		Guest: &model.Guest{Name: "Ada", Email: "ada@example.com", Phone: "+100"},
		Price: decimal.RequireFromString("12.00"),
	}
	raw, err := New(TypeBookingCreated, appt, time.Now()).Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	evt, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	back := evt.Appointment.Model()
	if back.Guest == nil || back.Guest.Email != "ada@example.com" || !back.Price.Equal(appt.Price) {
		t.Fatalf("lost data: %+v", back)
	}
}
