package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	first, err := s.CreateAppointment(ctx, testAppointment("staff-a", start, 30))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.GetAppointment(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.StartAt.Equal(start) || !got.Price.Equal(decimal.RequireFromString("25")) || got.ClientID != "client-1" || got.Guest != nil {
		t.Fatalf("stored appointment differs: %+v", got)
	}

	if _, err := s.CreateAppointment(ctx, testAppointment("staff-a", start.Add(15*time.Minute), 30)); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if _, err := s.CreateAppointment(ctx, testAppointment("staff-a", start.Add(30*time.Minute), 30)); err != nil {
		t.Fatalf("adjacent booking: %v", err)
	}
	if _, err := s.CreateAppointment(ctx, testAppointment("staff-b", start, 30)); err != nil {
		t.Fatalf("other staff: %v", err)
	}

	booked, err := s.FindBookedIntervals(ctx, "biz-1", start, start.Add(24*time.Hour), []string{"staff-a"})
	if err != nil {
		t.Fatalf("find booked: %v", err)
	}
	if len(booked) != 2 || !booked[0].StartAt.Before(booked[1].StartAt) {
		t.Fatalf("expected two bookings in start order, got %+v", booked)
	}
}

func TestSQLiteStoreGuestAndCancel(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	appt := testAppointment("staff-a", start, 30)
	appt.ClientID = ""
	appt.Guest = &model.Guest{Name: "Pat", Email: "pat@example.com", Phone: "555-0100"}
	created, err := s.CreateAppointment(ctx, appt)
	if err != nil {
		t.Fatalf("create guest booking: %v", err)
	}

	got, err := s.UpdateStatus(ctx, created.ID, model.StatusPending, model.StatusCancelled, StatusChange{CancelledBy: "business", CancelReason: "closed"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != model.StatusCancelled || got.CancelledBy != model.InitiatorBusiness || got.CancelReason != "closed" {
		t.Fatalf("cancel metadata not stored: %+v", got)
	}
	if got.Guest == nil || got.Guest.Email != "pat@example.com" {
		t.Fatalf("guest lost: %+v", got.Guest)
	}
	if _, err := s.CreateAppointment(ctx, testAppointment("staff-a", start, 30)); err != nil {
		t.Fatalf("rebook cancelled slot: %v", err)
	}
}

func TestSQLiteStoreUpdateStatusCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	a, err := s.CreateAppointment(ctx, testAppointment("staff-a", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 30))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.UpdateStatus(ctx, a.ID, model.StatusConfirmed, model.StatusCompleted, StatusChange{}); !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged, got %v", err)
	}
	if _, err := s.UpdateStatus(ctx, "missing", model.StatusPending, model.StatusConfirmed, StatusChange{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, err := s.UpdateStatus(ctx, a.ID, model.StatusPending, model.StatusConfirmed, StatusChange{})
	if err != nil || got.Status != model.StatusConfirmed {
		t.Fatalf("confirm: %+v %v", got, err)
	}
}

func TestSQLiteStoreIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	appt := testAppointment("staff-a", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 30)
	appt.IdempotencyKey = "key-1"

	created, err := s.CreateAppointment(ctx, appt)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	found, err := s.FindByIdempotencyKey(ctx, "biz-1", "key-1")
	if err != nil || found.ID != created.ID {
		t.Fatalf("lookup by key: %+v %v", found, err)
	}
	if _, err := s.FindByIdempotencyKey(ctx, "biz-2", "key-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("keys must be scoped per business, got %v", err)
	}

	appt.StaffID = "staff-b"
	if _, err := s.CreateAppointment(ctx, appt); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestSQLiteStoreConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateAppointment(ctx, testAppointment("staff-a", start, 45)); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if success != 1 {
		t.Fatalf("expected exactly one winner, got %d", success)
	}
}

func TestSQLiteStoreCatalog(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	catalog := Catalog{
		Businesses: []model.Business{{ID: "biz-1", Name: "Studio", Timezone: "America/New_York", Currency: "USD"}},
		Services: []model.Service{
			{ID: "svc-1", BusinessID: "biz-1", Name: "Cut", DurationMins: 30, Price: decimal.RequireFromString("40.50"), Active: true},
			{ID: "svc-2", BusinessID: "biz-1", Name: "Colour", DurationMins: 90, Price: decimal.RequireFromString("120"), Active: true},
		},
		Staff: []CatalogStaff{
			{Member: model.StaffMember{ID: "s-2", BusinessID: "biz-1", Active: true}, ServiceIDs: []string{"svc-1"}},
			{Member: model.StaffMember{ID: "s-1", BusinessID: "biz-1", Active: true}, ServiceIDs: []string{"svc-1", "svc-2"}},
			{Member: model.StaffMember{ID: "s-3", BusinessID: "biz-1", Active: false}, ServiceIDs: []string{"svc-1"}},
			{Member: model.StaffMember{ID: "s-4", BusinessID: "biz-1", Active: true}, ServiceIDs: []string{"svc-2"}},
		},
		Clients: []model.Client{{ID: "c-1", Name: "Kim", Email: "kim@example.com"}},
	}
	if err := s.Load(ctx, catalog); err != nil {
		t.Fatalf("load: %v", err)
	}
	// Reloading keeps listing order.
	if err := s.Load(ctx, catalog); err != nil {
		t.Fatalf("reload: %v", err)
	}

	staff, err := s.ListActiveStaffForService(ctx, "biz-1", "svc-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(staff) != 2 || staff[0].ID != "s-2" || staff[1].ID != "s-1" {
		t.Fatalf("unexpected staff: %+v", staff)
	}

	svc, err := s.GetService(ctx, "svc-1")
	if err != nil || svc.DurationMins != 30 || !svc.Price.Equal(decimal.RequireFromString("40.5")) {
		t.Fatalf("service: %+v %v", svc, err)
	}
	if b, err := s.GetBusiness(ctx, "biz-1"); err != nil || b.Timezone != "America/New_York" {
		t.Fatalf("business: %+v %v", b, err)
	}
	if c, err := s.GetClient(ctx, "c-1"); err != nil || c.Email != "kim@example.com" {
		t.Fatalf("client: %+v %v", c, err)
	}
	if _, err := s.GetStaff(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreFindsIntervalsSpanningMidnight(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	late := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	if _, err := s.CreateAppointment(ctx, testAppointment("staff-a", late, 60)); err != nil {
		t.Fatalf("create: %v", err)
	}

	nextDay := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	booked, err := s.FindBookedIntervals(ctx, "biz-1", nextDay, nextDay.Add(24*time.Hour), []string{"staff-a"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(booked) != 1 || booked[0].Date != "2026-03-10" {
		t.Fatalf("expected the previous day's booking, got %+v", booked)
	}
}
