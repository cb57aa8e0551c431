package booking

import (
	"context"
	"sort"
	"time"

	"github.com/salonbook/bookingengine/services/booking-service/internal/availability"
)

// Slot is one bookable start time and the staff free for the whole service.
type Slot struct {
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	StaffIDs  []string `json:"staff_ids"`
}

// Slots lists the bookable starts for a service on a date within working
// hours. Past starts are omitted.
func (e *Engine) Slots(ctx context.Context, req SlotsRequest) ([]Slot, error) {
	if err := e.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	svc, biz, err := e.loadServiceAndBusiness(ctx, req.BusinessID, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if e.hours == nil {
		return nil, newError(KindInvalidRequest, nil, "working hours are not configured")
	}
	cfg, err := e.hours.GetAvailabilityConfig(ctx, biz.ID, req.Date, biz.Timezone)
	if err != nil {
		return nil, newError(KindInvalidRequest, err, "cannot resolve working hours for %s", req.Date)
	}
	if !cfg.IsWorking {
		return []Slot{}, nil
	}

	staffIDs, err := e.candidateStaff(ctx, biz.ID, svc.ID, req.StaffID)
	if err != nil {
		return nil, err
	}
	busy, err := e.index.BusyIntervals(ctx, biz.ID, req.Date, biz.Timezone, staffIDs)
	if err != nil {
		return nil, storageError(err)
	}

	perStaff := availability.SlotsForStaff(cfg.Window, svc.DurationMins, cfg.SlotStepMinutes, busy, staffIDs, e.now())
	byStart := make(map[time.Time][]string)
	for _, id := range staffIDs {
		for _, start := range perStaff[id] {
			byStart[start] = append(byStart[start], id)
		}
	}
	starts := make([]time.Time, 0, len(byStart))
	for s := range byStart {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := make([]Slot, 0, len(starts))
	for _, s := range starts {
		startLocal, _ := e.clock.LocalClock(s, biz.Timezone)
		endLocal, _ := e.clock.LocalClock(e.clock.AddMinutes(s, svc.DurationMins), biz.Timezone)
		out = append(out, Slot{StartTime: startLocal, EndTime: endLocal, StaffIDs: byStart[s]})
	}
	return out, nil
}
