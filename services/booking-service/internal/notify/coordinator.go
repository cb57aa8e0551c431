package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/salonbook/bookingengine/services/booking-service/internal/events"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleStaff    Role = "staff"
)

// Directory resolves the people an appointment concerns.
type Directory interface {
	GetBusiness(ctx context.Context, id string) (model.Business, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	GetStaff(ctx context.Context, id string) (model.StaffMember, error)
	GetClient(ctx context.Context, id string) (model.Client, error)
}

// Delivery is one message on one channel to one recipient. Recipient is an
// email address for ChannelEmail and a user id for ChannelInApp.
type Delivery struct {
	Channel   Channel
	Role      Role
	Recipient string
	Template  string
	Data      map[string]any
}

type Outcome struct {
	Delivery Delivery
	Err      error
	Took     time.Duration
}

func (o Outcome) Status() string {
	if o.Err != nil {
		return "failed"
	}
	return "sent"
}

type Coordinator struct {
	dir      Directory
	notifier Notifier
	reporter Reporter
	logger   *slog.Logger
	timeout  time.Duration
}

type CoordinatorConfig struct {
	// DeliveryTimeout bounds each delivery independently.
	DeliveryTimeout time.Duration
}

func NewCoordinator(dir Directory, notifier Notifier, reporter Reporter, logger *slog.Logger, cfg CoordinatorConfig) *Coordinator {
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Coordinator{
		dir:      dir,
		notifier: notifier,
		reporter: reporter,
		logger:   logger,
		timeout:  cfg.DeliveryTimeout,
	}
}

// Fanout attempts every delivery evt calls for, concurrently. A failing or
// panicking delivery never stops the others; failures are logged and
// reported, never returned.
func (c *Coordinator) Fanout(ctx context.Context, evt events.Event) []Outcome {
	deliveries := c.Plan(ctx, evt)
	if len(deliveries) == 0 {
		return nil
	}

	outcomes := make([]Outcome, len(deliveries))
	var wg sync.WaitGroup
	for i, d := range deliveries {
		wg.Add(1)
		go func(i int, d Delivery) {
			defer wg.Done()
			outcomes[i] = c.deliver(ctx, d)
		}(i, d)
	}
	wg.Wait()

	for _, out := range outcomes {
		c.reporter.Report(ctx, evt, out)
		if out.Err != nil {
			c.logger.ErrorContext(ctx, "notification delivery failed",
				"event_id", evt.ID,
				"event_type", evt.Type,
				"appointment_id", evt.Appointment.ID,
				"channel", out.Delivery.Channel,
				"role", out.Delivery.Role,
				"template", out.Delivery.Template,
				"err", out.Err,
			)
			continue
		}
		c.logger.InfoContext(ctx, "notification delivered",
			"event_id", evt.ID,
			"appointment_id", evt.Appointment.ID,
			"channel", out.Delivery.Channel,
			"role", out.Delivery.Role,
		)
	}
	return outcomes
}

func (c *Coordinator) deliver(ctx context.Context, d Delivery) (out Outcome) {
	out.Delivery = d
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("notify: %s delivery panicked: %v", d.Channel, r)
		}
		out.Took = time.Since(start)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch d.Channel {
	case ChannelEmail:
		out.Err = c.notifier.SendEmail(ctx, d.Template, d.Recipient, d.Data)
	case ChannelInApp:
		out.Err = c.notifier.CreateInAppNotification(ctx, d.Recipient, d.Template, d.Data)
	default:
		out.Err = fmt.Errorf("notify: unknown channel %q", d.Channel)
	}
	return out
}

type recipient struct {
	email  string
	userID string
}

// Plan lists the deliveries for evt:
//
//	created:   customer receipt, owner and staff heads-up
//	confirmed: customer, owner and staff email; in-app for a registered client
//	cancelled: the counterparty of the initiator by email; in-app for a registered client
//
// Recipients without an address are skipped.
func (c *Coordinator) Plan(ctx context.Context, evt events.Event) []Delivery {
	appt := evt.Appointment.Model()

	var template string
	switch evt.Type {
	case events.TypeBookingCreated:
		template = TemplateBookingReceived
	case events.TypeAppointmentConfirmed:
		template = TemplateAppointmentConfirmed
	case events.TypeAppointmentCancelled:
		template = TemplateAppointmentCancelled
	default:
		return nil
	}

	data := map[string]any{
		"appointment_id": appt.ID,
		"business_name":  "",
		"service_name":   "",
		"staff_name":     "",
		"customer_name":  "",
		"date":           appt.Date,
		"start_time":     appt.StartTime,
		"end_time":       appt.EndTime,
		"price":          evt.Appointment.Price,
		"currency":       appt.Currency,
		"initiator":      string(evt.Initiator),
		"reason":         appt.CancelReason,
	}

	var customer, owner, staff recipient
	if biz, err := c.dir.GetBusiness(ctx, appt.BusinessID); err == nil {
		data["business_name"] = biz.Name
		owner = recipient{email: biz.OwnerEmail, userID: biz.OwnerUserID}
	} else {
		c.logger.WarnContext(ctx, "notify: business lookup failed", "business_id", appt.BusinessID, "err", err)
	}
	if svc, err := c.dir.GetService(ctx, appt.ServiceID); err == nil {
		data["service_name"] = svc.Name
	}
	if st, err := c.dir.GetStaff(ctx, appt.StaffID); err == nil {
		data["staff_name"] = st.Name
		staff = recipient{email: st.Email, userID: st.UserID}
	} else {
		c.logger.WarnContext(ctx, "notify: staff lookup failed", "staff_id", appt.StaffID, "err", err)
	}
	if appt.Registered() {
		if cl, err := c.dir.GetClient(ctx, appt.ClientID); err == nil {
			data["customer_name"] = cl.Name
			customer = recipient{email: cl.Email, userID: cl.ID}
		} else {
			c.logger.WarnContext(ctx, "notify: client lookup failed", "client_id", appt.ClientID, "err", err)
			customer = recipient{userID: appt.ClientID}
		}
	} else if appt.Guest != nil {
		data["customer_name"] = appt.Guest.Name
		customer = recipient{email: appt.Guest.Email}
	}

	// One delivery per channel and address; the first role listed keeps it.
	var out []Delivery
	seen := make(map[string]bool)
	add := func(ch Channel, role Role, to, tpl string) {
		key := string(ch) + ":" + strings.ToLower(strings.TrimSpace(to))
		if to == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Delivery{Channel: ch, Role: role, Recipient: to, Template: tpl, Data: data})
	}
	email := func(role Role, r recipient, tpl string) { add(ChannelEmail, role, r.email, tpl) }
	inApp := func(role Role, r recipient, kind string) { add(ChannelInApp, role, r.userID, kind) }

	switch evt.Type {
	case events.TypeBookingCreated:
		email(RoleCustomer, customer, TemplateBookingReceived)
		email(RoleOwner, owner, TemplateBookingNew)
		email(RoleStaff, staff, TemplateBookingNew)
	case events.TypeAppointmentConfirmed:
		email(RoleCustomer, customer, template)
		email(RoleOwner, owner, template)
		email(RoleStaff, staff, template)
		if appt.Registered() {
			inApp(RoleCustomer, customer, template)
		}
	case events.TypeAppointmentCancelled:
		if evt.Initiator == model.InitiatorBusiness {
			email(RoleCustomer, customer, template)
		} else {
			email(RoleOwner, owner, template)
			email(RoleStaff, staff, template)
		}
		if appt.Registered() {
			inApp(RoleCustomer, customer, template)
		}
	}
	return out
}
