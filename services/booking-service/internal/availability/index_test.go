package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/salonbook/bookingengine/services/booking-service/internal/clock"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
)

type fakeLister struct {
	appts []model.Appointment
	err   error
	from  *time.Time
	to    *time.Time
}

func (f fakeLister) FindBookedIntervals(_ context.Context, _ string, from, to time.Time, _ []string) ([]model.Appointment, error) {
	if f.from != nil {
		*f.from, *f.to = from, to
	}
	return f.appts, f.err
}

func TestBusyIntervalsGroupsByStaff(t *testing.T) {
	store := fakeLister{appts: []model.Appointment{
		{ID: "1", StaffID: "a", Date: "2026-05-04", StartTime: "11:00", EndTime: "11:30", Status: model.StatusConfirmed},
		{ID: "2", StaffID: "a", Date: "2026-05-04", StartTime: "09:00", EndTime: "09:45", Status: model.StatusPending},
		{ID: "3", StaffID: "b", Date: "2026-05-04", StartTime: "09:00", EndTime: "10:00", Status: model.StatusCancelled},
		{ID: "4", StaffID: "x", Date: "2026-05-04", StartTime: "09:00", EndTime: "10:00", Status: model.StatusPending},
	}}
	ix := NewIndex(store, clock.New())

	busy, err := ix.BusyIntervals(context.Background(), "biz", "2026-05-04", "Europe/Berlin", []string{"a", "b"})
	if err != nil {
		t.Fatalf("BusyIntervals: %v", err)
	}
	if len(busy) != 2 {
		t.Fatalf("expected entries for a and b only, got %v", busy)
	}
	if len(busy["b"]) != 0 {
		t.Fatal("cancelled appointments must not block")
	}
	if len(busy["a"]) != 2 {
		t.Fatalf("expected two intervals for a, got %d", len(busy["a"]))
	}
	// Berlin is UTC+2 in May; sorted by start.
	if want := time.Date(2026, 5, 4, 7, 0, 0, 0, time.UTC); !busy["a"][0].Start.Equal(want) {
		t.Fatalf("first interval start %s, want %s", busy["a"][0].Start.UTC(), want)
	}
}

func TestBusyIntervalsPropagatesStoreErrors(t *testing.T) {
	ix := NewIndex(fakeLister{err: errors.New("db down")}, clock.New())
	if _, err := ix.BusyIntervals(context.Background(), "biz", "2026-05-04", "UTC", []string{"a"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestAppointmentIntervalCrossingMidnight(t *testing.T) {
	ix := NewIndex(fakeLister{}, clock.New())
	got, err := ix.AppointmentInterval(model.Appointment{Date: "2026-05-04", StartTime: "23:30", EndTime: "00:30", DurationMins: 60}, "UTC")
	if err != nil {
		t.Fatalf("AppointmentInterval: %v", err)
	}
	if got.End.Sub(got.Start) != time.Hour {
		t.Fatalf("expected one hour, got %s", got.End.Sub(got.Start))
	}
}

func TestBusyIntervalsIncludesBookingFromPreviousDay(t *testing.T) {
	var from, to time.Time
	store := fakeLister{
		appts: []model.Appointment{
			{ID: "late", StaffID: "a", Date: "2026-03-07", StartTime: "23:30", EndTime: "00:30", DurationMins: 60, Status: model.StatusConfirmed},
		},
		from: &from,
		to:   &to,
	}
	ix := NewIndex(store, clock.New())

	// 2026-03-08 is 23 hours long in New York.
	busy, err := ix.BusyIntervals(context.Background(), "biz", "2026-03-08", "America/New_York", []string{"a"})
	if err != nil {
		t.Fatalf("BusyIntervals: %v", err)
	}
	if want := time.Date(2026, 3, 8, 5, 0, 0, 0, time.UTC); !from.Equal(want) {
		t.Fatalf("window start %s, want %s", from.UTC(), want)
	}
	if to.Sub(from) != 23*time.Hour {
		t.Fatalf("window length %s, want 23h", to.Sub(from))
	}
	if len(busy["a"]) != 1 {
		t.Fatalf("expected the overnight booking, got %v", busy["a"])
	}
	if want := time.Date(2026, 3, 8, 5, 30, 0, 0, time.UTC); !busy["a"][0].End.Equal(want) {
		t.Fatalf("overnight booking ends %s, want %s", busy["a"][0].End.UTC(), want)
	}
}

func TestBusyIntervalsRejectsBadDate(t *testing.T) {
	ix := NewIndex(fakeLister{}, clock.New())
	if _, err := ix.BusyIntervals(context.Background(), "biz", "2026-13-40", "UTC", []string{"a"}); err == nil {
		t.Fatal("expected error for invalid date")
	}
}
