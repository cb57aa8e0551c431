package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/salonbook/bookingengine/services/booking-service/internal/clock"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
)

// BookedLister is the slice of the appointment store the index reads from.
// FindBookedIntervals returns the non-cancelled appointments of staffIDs whose
// absolute interval overlaps [from, to), whatever calendar date they were booked on.
type BookedLister interface {
	FindBookedIntervals(ctx context.Context, businessID string, from, to time.Time, staffIDs []string) ([]model.Appointment, error)
}

// Index turns a business day's non-cancelled appointments into busy intervals per staff member.
type Index struct {
	store BookedLister
	clock *clock.Adapter
}

func NewIndex(store BookedLister, clk *clock.Adapter) *Index {
	return &Index{store: store, clock: clk}
}

// BusyIntervals loads every booked interval touching the business-local day and
// groups them by staff id. Bookings from the previous day that run past midnight
// are included. Every requested staff id is present in the result, possibly with
// an empty list.
func (ix *Index) BusyIntervals(ctx context.Context, businessID, date, tz string, staffIDs []string) (map[string][]Interval, error) {
	out := make(map[string][]Interval, len(staffIDs))
	for _, id := range staffIDs {
		out[id] = nil
	}
	if len(staffIDs) == 0 {
		return out, nil
	}

	dayStart, dayEnd, err := ix.clock.DayBounds(date, tz)
	if err != nil {
		return nil, err
	}
	appts, err := ix.store.FindBookedIntervals(ctx, businessID, dayStart, dayEnd, staffIDs)
	if err != nil {
		return nil, err
	}
	for _, a := range appts {
		if a.Status == model.StatusCancelled {
			continue
		}
		if _, wanted := out[a.StaffID]; !wanted {
			continue
		}
		iv, err := ix.AppointmentInterval(a, tz)
		if err != nil {
			return nil, err
		}
		out[a.StaffID] = append(out[a.StaffID], iv)
	}
	for id := range out {
		SortByStart(out[id])
	}
	return out, nil
}

// AppointmentInterval rebuilds the absolute interval from the stored date and wall-clock strings.
// When the end does not fall after the start (the booking crosses midnight) the stored
// duration decides the end instead.
func (ix *Index) AppointmentInterval(a model.Appointment, tz string) (Interval, error) {
	start, err := ix.clock.ToInstant(a.Date, a.StartTime, tz)
	if err != nil {
		return Interval{}, fmt.Errorf("appointment %s start: %w", a.ID, err)
	}
	end, err := ix.clock.ToInstant(a.Date, a.EndTime, tz)
	if err != nil {
		return Interval{}, fmt.Errorf("appointment %s end: %w", a.ID, err)
	}
	if !end.After(start) {
		if a.DurationMins > 0 {
			end = ix.clock.AddMinutes(start, a.DurationMins)
		} else {
			end = end.AddDate(0, 0, 1)
		}
	}
	return Interval{Start: start, End: end}, nil
}
