// Package scheduling answers when a business is open for booking.
package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/salonbook/bookingengine/services/booking-service/internal/availability"
	"github.com/salonbook/bookingengine/services/booking-service/internal/clock"
)

type AvailabilityConfig struct {
	IsWorking       bool
	Window          availability.Interval
	SlotStepMinutes int
}

type Provider interface {
	GetAvailabilityConfig(ctx context.Context, businessID, date, tz string) (AvailabilityConfig, error)
}

// WorkingHours applies the same opening hours to every business.
type WorkingHours struct {
	clock  *clock.Adapter
	open   string
	close  string
	step   int
	closed map[time.Weekday]bool
}

type HoursConfig struct {
	Open            string // "HH:MM"
	Close           string // "HH:MM"
	SlotStepMinutes int
	ClosedDays      []string // weekday names, e.g. "sunday"
}

func NewWorkingHours(clk *clock.Adapter, cfg HoursConfig) (*WorkingHours, error) {
	if cfg.Open == "" {
		cfg.Open = "09:00"
	}
	if cfg.Close == "" {
		cfg.Close = "18:00"
	}
	if cfg.SlotStepMinutes <= 0 {
		cfg.SlotStepMinutes = 15
	}
	oh, om, err := clock.ParseClock(cfg.Open)
	if err != nil {
		return nil, err
	}
	ch, cm, err := clock.ParseClock(cfg.Close)
	if err != nil {
		return nil, err
	}
	if ch*60+cm <= oh*60+om {
		return nil, fmt.Errorf("closing time %s must be after opening time %s", cfg.Close, cfg.Open)
	}

	closed := make(map[time.Weekday]bool)
	for _, name := range cfg.ClosedDays {
		day, ok := parseWeekday(name)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		closed[day] = true
	}
	return &WorkingHours{clock: clk, open: cfg.Open, close: cfg.Close, step: cfg.SlotStepMinutes, closed: closed}, nil
}

func (w *WorkingHours) GetAvailabilityConfig(_ context.Context, _ string, date, tz string) (AvailabilityConfig, error) {
	start, err := w.clock.ToInstant(date, w.open, tz)
	if err != nil {
		return AvailabilityConfig{}, err
	}
	end, err := w.clock.ToInstant(date, w.close, tz)
	if err != nil {
		return AvailabilityConfig{}, err
	}
	day, _ := time.Parse(clock.DateLayout, date)
	return AvailabilityConfig{
		IsWorking:       !w.closed[day.Weekday()],
		Window:          availability.Interval{Start: start, End: end},
		SlotStepMinutes: w.step,
	}, nil
}

func parseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name || strings.ToLower(d.String()[:3]) == name {
			return d, true
		}
	}
	return 0, false
}
