package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/salonbook/bookingengine/services/booking-service/internal/events"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"github.com/salonbook/bookingengine/services/booking-service/internal/storage"
	"github.com/shopspring/decimal"
)

type sent struct {
	channel   Channel
	recipient string
	template  string
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sent
	failFor map[string]error
	panicOn string
}

func (f *fakeNotifier) record(ch Channel, recipient, tpl string) error {
	if recipient == f.panicOn {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{ch, recipient, tpl})
	return f.failFor[recipient]
}

func (f *fakeNotifier) SendEmail(_ context.Context, tpl, recipient string, _ map[string]any) error {
	return f.record(ChannelEmail, recipient, tpl)
}

func (f *fakeNotifier) CreateInAppNotification(_ context.Context, userID, kind string, _ map[string]any) error {
	return f.record(ChannelInApp, userID, kind)
}

func (f *fakeNotifier) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		out = append(out, string(s.channel)+":"+s.recipient)
	}
	sort.Strings(out)
	return out
}

type countingReporter struct {
	mu     sync.Mutex
	failed int
	total  int
}

func (r *countingReporter) Report(_ context.Context, _ events.Event, out Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total++
	if out.Err != nil {
		r.failed++
	}
}

func testDirectory() *storage.MemoryDirectory {
	d := storage.NewMemoryDirectory()
	d.PutBusiness(model.Business{ID: "biz-1", Name: "Cut & Co", Timezone: "UTC", OwnerUserID: "owner-user", OwnerEmail: "owner@example.com"})
	d.PutService(model.Service{ID: "svc-1", BusinessID: "biz-1", Name: "Trim", DurationMins: 30, Active: true})
	d.PutStaff(model.StaffMember{ID: "staff-a", BusinessID: "biz-1", Name: "Ana", Email: "ana@example.com", UserID: "ana-user", Active: true}, "svc-1")
	d.PutClient(model.Client{ID: "client-1", Name: "Cleo", Email: "cleo@example.com"})
	return d
}

func registeredAppointment(status model.Status) model.Appointment {
	start := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	return model.Appointment{
		ID: "appt-1", BusinessID: "biz-1", ServiceID: "svc-1", StaffID: "staff-a", ClientID: "client-1",
		Status: status, Date: "2026-03-10", StartTime: "10:00", EndTime: "10:30",
		StartAt: start, EndAt: start.Add(30 * time.Minute),
		Price: decimal.RequireFromString("25"), Currency: "USD", DurationMins: 30,
	}
}

func newTestCoordinator(n Notifier, r Reporter) *Coordinator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(testDirectory(), n, r, logger, CoordinatorConfig{DeliveryTimeout: time.Second})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFanoutConfirmedReachesEveryone(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestCoordinator(n, nil)
	now := time.Now()

	evt := events.ForTransition(model.StatusPending, registeredAppointment(model.StatusConfirmed), model.InitiatorBusiness, now)
	outcomes := c.Fanout(context.Background(), evt)
	if len(outcomes) != 4 {
		t.Fatalf("expected 4 deliveries, got %d", len(outcomes))
	}
	want := []string{
		"email:ana@example.com",
		"email:cleo@example.com",
		"email:owner@example.com",
		"in_app:client-1",
	}
	if got := n.recipients(); !equalStrings(got, want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
}

func TestFanoutCancelledGoesToCounterparty(t *testing.T) {
	cases := []struct {
		name      string
		initiator model.Initiator
		guest     bool
		want      []string
	}{
		{"customer cancels", model.InitiatorCustomer, false, []string{"email:ana@example.com", "email:owner@example.com", "in_app:client-1"}},
		{"business cancels", model.InitiatorBusiness, false, []string{"email:cleo@example.com", "in_app:client-1"}},
		{"business cancels guest", model.InitiatorBusiness, true, []string{"email:guest@example.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := &fakeNotifier{}
			c := newTestCoordinator(n, nil)
			appt := registeredAppointment(model.StatusCancelled)
			if tc.guest {
				appt.ClientID = ""
				appt.Guest = &model.Guest{Name: "Gus", Email: "guest@example.com", Phone: "555"}
			}
			c.Fanout(context.Background(), events.ForTransition(model.StatusConfirmed, appt, tc.initiator, time.Now()))
			if got := n.recipients(); !equalStrings(got, tc.want) {
				t.Fatalf("recipients = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFanoutIsolatesFailuresAndPanics(t *testing.T) {
	n := &fakeNotifier{
		failFor: map[string]error{"owner@example.com": errors.New("smtp down")},
		panicOn: "ana@example.com",
	}
	r := &countingReporter{}
	c := newTestCoordinator(n, r)

	evt := events.ForTransition(model.StatusPending, registeredAppointment(model.StatusConfirmed), model.InitiatorBusiness, time.Now())
	outcomes := c.Fanout(context.Background(), evt)

	if len(outcomes) != 4 {
		t.Fatalf("expected 4 outcomes, got %d", len(outcomes))
	}
	if r.total != 4 || r.failed != 2 {
		t.Fatalf("reporter saw total=%d failed=%d, want 4 and 2", r.total, r.failed)
	}
	// The healthy customer deliveries still went out.
	got := n.recipients()
	if !equalStrings(got, []string{"email:cleo@example.com", "email:owner@example.com", "in_app:client-1"}) {
		t.Fatalf("unexpected deliveries: %v", got)
	}
}

func TestFanoutIgnoresOtherStatusChanges(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestCoordinator(n, nil)
	evt := events.ForTransition(model.StatusConfirmed, registeredAppointment(model.StatusCompleted), "", time.Now())
	if out := c.Fanout(context.Background(), evt); len(out) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(out))
	}
}

func TestPlanSendsOneEmailPerAddress(t *testing.T) {
	n := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := testDirectory()
	d.PutBusiness(model.Business{ID: "biz-1", Name: "Solo", Timezone: "UTC", OwnerUserID: "ana-user", OwnerEmail: "Ana@Example.com"})
	c := NewCoordinator(d, n, nil, logger, CoordinatorConfig{DeliveryTimeout: time.Second})

	evt := events.ForTransition(model.StatusPending, registeredAppointment(model.StatusConfirmed), model.InitiatorBusiness, time.Now())
	plan := c.Plan(context.Background(), evt)
	if len(plan) != 3 {
		t.Fatalf("expected customer email, shared owner/staff email and customer in-app, got %+v", plan)
	}
	for _, del := range plan {
		if del.Role == RoleStaff {
			t.Fatalf("owner already covers the shared address: %+v", del)
		}
	}

	c.Fanout(context.Background(), evt)
	want := []string{"email:Ana@Example.com", "email:cleo@example.com", "in_app:client-1"}
	if got := n.recipients(); !equalStrings(got, want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
}

func TestPlanSkipsMissingAddresses(t *testing.T) {
	n := &fakeNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := testDirectory()
	d.PutBusiness(model.Business{ID: "biz-1", Name: "No Owner Email", Timezone: "UTC"})
	c := NewCoordinator(d, n, nil, logger, CoordinatorConfig{})

	evt := events.New(events.TypeBookingCreated, registeredAppointment(model.StatusPending), time.Now())
	plan := c.Plan(context.Background(), evt)
	for _, del := range plan {
		if del.Role == RoleOwner {
			t.Fatalf("owner without email should be skipped: %+v", del)
		}
	}
	if len(plan) != 2 {
		t.Fatalf("expected customer and staff deliveries, got %d", len(plan))
	}
}

func TestAsyncDispatcherRunsDetachedFromRequest(t *testing.T) {
	n := &fakeNotifier{}
	d := NewAsyncDispatcher(newTestCoordinator(n, nil), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	d.Dispatch(ctx, events.New(events.TypeBookingCreated, registeredAppointment(model.StatusPending), time.Now()))
	cancel()

	closeCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	if err := d.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := len(n.recipients()); got != 3 {
		t.Fatalf("expected 3 deliveries after request ctx cancel, got %d", got)
	}
}

func TestHandlePayload(t *testing.T) {
	n := &fakeNotifier{}
	c := newTestCoordinator(n, nil)

	evt := events.New(events.TypeBookingCreated, registeredAppointment(model.StatusPending), time.Now())
	raw, err := evt.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := c.HandlePayload(context.Background(), raw); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := len(n.recipients()); got != 3 {
		t.Fatalf("expected 3 deliveries, got %d", got)
	}
	if err := c.HandlePayload(context.Background(), []byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
}
