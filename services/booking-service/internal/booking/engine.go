// Package booking reserves appointment slots and drives their status lifecycle.
package booking

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/salonbook/bookingengine/services/booking-service/internal/availability"
	"github.com/salonbook/bookingengine/services/booking-service/internal/clock"
	"github.com/salonbook/bookingengine/services/booking-service/internal/events"
	"github.com/salonbook/bookingengine/services/booking-service/internal/lifecycle"
	"github.com/salonbook/bookingengine/services/booking-service/internal/locks"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"github.com/salonbook/bookingengine/services/booking-service/internal/policy"
	"github.com/salonbook/bookingengine/services/booking-service/internal/scheduling"
	"github.com/salonbook/bookingengine/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store persists appointments. CreateAppointment must re-check the staff
// member's intervals atomically with the insert and return
// storage.ErrSlotTaken when it loses.
type Store interface {
	availability.BookedLister
	CreateAppointment(ctx context.Context, appt model.Appointment) (model.Appointment, error)
	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	FindByIdempotencyKey(ctx context.Context, businessID, key string) (model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, from, to model.Status, change storage.StatusChange) (model.Appointment, error)
}

type Directory interface {
	GetBusiness(ctx context.Context, id string) (model.Business, error)
	GetService(ctx context.Context, id string) (model.Service, error)
	ListActiveStaffForService(ctx context.Context, businessID, serviceID string) ([]model.StaffMember, error)
	GetStaff(ctx context.Context, id string) (model.StaffMember, error)
	GetClient(ctx context.Context, id string) (model.Client, error)
}

type Options struct {
	Policy     policy.Policy
	Locker     locks.Locker
	Dispatcher events.Dispatcher
	Hours      scheduling.Provider
	Clock      *clock.Adapter
	Now        func() time.Time
}

type Engine struct {
	store      Store
	dir        Directory
	clock      *clock.Adapter
	index      *availability.Index
	policy     policy.Policy
	locker     locks.Locker
	dispatcher events.Dispatcher
	hours      scheduling.Provider
	logger     *slog.Logger
	validate   *validator.Validate
	now        func() time.Time
	tracer     trace.Tracer
	metrics    *metrics
}

func NewEngine(store Store, dir Directory, logger *slog.Logger, opts Options) (*Engine, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Policy == nil {
		opts.Policy = policy.FirstAvailable{}
	}
	if opts.Locker == nil {
		opts.Locker = locks.Noop{}
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = events.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Engine{
		store:      store,
		dir:        dir,
		clock:      opts.Clock,
		index:      availability.NewIndex(store, opts.Clock),
		policy:     opts.Policy,
		locker:     opts.Locker,
		dispatcher: opts.Dispatcher,
		hours:      opts.Hours,
		logger:     logger,
		validate:   v,
		now:        opts.Now,
		tracer:     otel.Tracer("booking-service/booking"),
		metrics:    m,
	}, nil
}

// Book reserves a slot and returns the PENDING appointment. A repeated
// idempotency key for the same business returns the original appointment.
// BookingCreated is dispatched after the commit and after any lock is released.
func (e *Engine) Book(ctx context.Context, req BookRequest) (model.Appointment, error) {
	ctx, span := e.tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("business.id", req.BusinessID),
		attribute.String("service.id", req.ServiceID),
		attribute.Bool("booking.explicit_staff", strings.TrimSpace(req.StaffID) != ""),
	))
	defer span.End()

	appt, replayed, err := e.book(ctx, req)
	e.metrics.booked(ctx, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		e.logger.InfoContext(ctx, "booking rejected", "kind", KindOf(err), "business_id", req.BusinessID, "err", err)
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.String("appointment.id", appt.ID), attribute.String("staff.id", appt.StaffID))
	if replayed {
		span.SetAttributes(attribute.Bool("booking.idempotent_replay", true))
		return appt, nil
	}

	e.logger.InfoContext(ctx, "appointment booked",
		"appointment_id", appt.ID,
		"business_id", appt.BusinessID,
		"staff_id", appt.StaffID,
		"date", appt.Date,
		"start_time", appt.StartTime,
	)
	e.dispatcher.Dispatch(ctx, events.New(events.TypeBookingCreated, appt, e.now()))
	return appt, nil
}

func (e *Engine) book(ctx context.Context, req BookRequest) (model.Appointment, bool, error) {
	req.normalize()
	if err := e.validate.Struct(req); err != nil {
		return model.Appointment{}, false, validationError(err)
	}
	if err := req.checkCustomer(e.validate); err != nil {
		return model.Appointment{}, false, err
	}

	if req.IdempotencyKey != "" {
		existing, err := e.store.FindByIdempotencyKey(ctx, req.BusinessID, req.IdempotencyKey)
		switch {
		case err == nil:
			return existing, true, nil
		case !errors.Is(err, storage.ErrNotFound):
			return model.Appointment{}, false, storageError(err)
		}
	}

	svc, biz, err := e.loadServiceAndBusiness(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		return model.Appointment{}, false, err
	}
	if req.ClientID != "" {
		if _, err := e.dir.GetClient(ctx, req.ClientID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return model.Appointment{}, false, newError(KindInvalidRequest, nil, "client %s not found", req.ClientID)
			}
			return model.Appointment{}, false, storageError(err)
		}
	}

	start, err := e.clock.ToInstant(req.Date, req.StartTime, biz.Timezone)
	if err != nil {
		return model.Appointment{}, false, newError(KindInvalidRequest, err, "cannot resolve %s %s", req.Date, req.StartTime)
	}
	end := e.clock.AddMinutes(start, svc.DurationMins)
	candidate := availability.Interval{Start: start, End: end}
	startLocal, _ := e.clock.LocalClock(start, biz.Timezone)
	endLocal, _ := e.clock.LocalClock(end, biz.Timezone)

	release, err := e.locker.Acquire(ctx, locks.Key(biz.ID, req.Date))
	if err != nil {
		return model.Appointment{}, false, newError(KindStorageUnavailable, err, "could not serialise booking")
	}
	defer release()

	staffIDs, err := e.candidateStaff(ctx, req.BusinessID, req.ServiceID, req.StaffID)
	if err != nil {
		return model.Appointment{}, false, err
	}
	busy, err := e.index.BusyIntervals(ctx, biz.ID, req.Date, biz.Timezone, staffIDs)
	if err != nil {
		return model.Appointment{}, false, storageError(err)
	}
	free := availability.FreeStaff(candidate, busy, staffIDs)
	explicit := req.StaffID != ""
	if len(free) == 0 {
		if explicit {
			return model.Appointment{}, false, newError(KindSlotUnavailable, nil, "staff %s is busy at %s %s", req.StaffID, req.Date, startLocal)
		}
		return model.Appointment{}, false, newError(KindNoStaffAvailable, nil, "no staff free for %s at %s %s", svc.Name, req.Date, startLocal)
	}

	appt := model.Appointment{
		BusinessID:     biz.ID,
		ServiceID:      svc.ID,
		ClientID:       req.ClientID,
		Guest:          req.Guest,
		Status:         lifecycle.Initial,
		Date:           req.Date,
		StartTime:      startLocal,
		EndTime:        endLocal,
		StartAt:        start.UTC(),
		EndAt:          end.UTC(),
		Price:          svc.Price,
		Currency:       biz.Currency,
		DurationMins:   svc.DurationMins,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	}
	if appt.Currency == "" {
		appt.Currency = "USD"
	}

	// One retry: the first loss may leave another free staff member for auto-assignment.
	for attempt := 0; ; attempt++ {
		staffID, ok := e.policy.Pick(candidates(free, busy))
		if !ok {
			return model.Appointment{}, false, newError(KindConcurrencyConflict, nil, "every free staff member was taken concurrently")
		}
		appt.StaffID = staffID

		created, err := e.store.CreateAppointment(ctx, appt)
		switch {
		case err == nil:
			return created, false, nil
		case errors.Is(err, storage.ErrSlotTaken):
			e.metrics.conflict(ctx)
			e.logger.InfoContext(ctx, "lost commit-time slot check", "staff_id", staffID, "attempt", attempt+1)
			if explicit {
				return model.Appointment{}, false, newError(KindSlotUnavailable, err, "staff %s was booked concurrently", staffID)
			}
			if attempt >= 1 {
				return model.Appointment{}, false, newError(KindConcurrencyConflict, err, "slot taken concurrently after retry")
			}
			free = without(free, staffID)
		case errors.Is(err, storage.ErrDuplicateKey):
			existing, ferr := e.store.FindByIdempotencyKey(ctx, req.BusinessID, req.IdempotencyKey)
			if ferr != nil {
				return model.Appointment{}, false, storageError(ferr)
			}
			return existing, true, nil
		default:
			return model.Appointment{}, false, storageError(err)
		}
	}
}

func (e *Engine) loadServiceAndBusiness(ctx context.Context, businessID, serviceID string) (model.Service, model.Business, error) {
	svc, err := e.dir.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Service{}, model.Business{}, newError(KindServiceNotFound, nil, "service %s not found", serviceID)
		}
		return model.Service{}, model.Business{}, storageError(err)
	}
	if svc.BusinessID != businessID || !svc.Active {
		return model.Service{}, model.Business{}, newError(KindServiceNotFound, nil, "service %s not offered by business %s", serviceID, businessID)
	}
	if svc.DurationMins <= 0 {
		return model.Service{}, model.Business{}, newError(KindServiceNotFound, nil, "service %s has no duration", serviceID)
	}

	biz, err := e.dir.GetBusiness(ctx, businessID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Service{}, model.Business{}, newError(KindServiceNotFound, nil, "business %s not found", businessID)
		}
		return model.Service{}, model.Business{}, storageError(err)
	}
	if _, err := e.clock.Location(biz.Timezone); err != nil {
		return model.Service{}, model.Business{}, newError(KindInvalidTimezone, err, "business %s", businessID)
	}
	return svc, biz, nil
}

// candidateStaff lists the active qualified staff to consider, in directory
// order. An explicit staff member who is unknown, inactive or unqualified is
// reported as SlotUnavailable.
func (e *Engine) candidateStaff(ctx context.Context, businessID, serviceID, explicit string) ([]string, error) {
	staff, err := e.dir.ListActiveStaffForService(ctx, businessID, serviceID)
	if err != nil {
		return nil, storageError(err)
	}
	ids := make([]string, 0, len(staff))
	for _, s := range staff {
		if explicit != "" && s.ID != explicit {
			continue
		}
		ids = append(ids, s.ID)
	}
	if explicit != "" && len(ids) == 0 {
		return nil, newError(KindSlotUnavailable, nil, "staff %s cannot perform service %s", explicit, serviceID)
	}
	return ids, nil
}

func candidates(free []string, busy map[string][]availability.Interval) []policy.Candidate {
	out := make([]policy.Candidate, 0, len(free))
	for _, id := range free {
		out = append(out, policy.Candidate{StaffID: id, Load: availability.BusyCount(busy, id)})
	}
	return out
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func storageError(err error) error {
	return newError(KindStorageUnavailable, err, "storage operation failed")
}

// Get returns one appointment by id.
func (e *Engine) Get(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := e.store.GetAppointment(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.Appointment{}, newError(KindAppointmentNotFound, nil, "appointment %s not found", id)
		}
		return model.Appointment{}, storageError(err)
	}
	return appt, nil
}
