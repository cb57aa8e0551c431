// Package clock converts between a business's wall-clock time and absolute instants.
package clock

import (
	"errors"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // IANA database for hosts without /usr/share/zoneinfo
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidClock    = errors.New("invalid local time")
)

// Adapter resolves IANA zone names once and caches the *time.Location.
type Adapter struct {
	mu    sync.RWMutex
	cache map[string]*time.Location
}

func New() *Adapter {
	return &Adapter{cache: make(map[string]*time.Location)}
}

func (a *Adapter) Location(tz string) (*time.Location, error) {
	if tz == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTimezone)
	}
	a.mu.RLock()
	loc, ok := a.cache[tz]
	a.mu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	a.mu.Lock()
	a.cache[tz] = loc
	a.mu.Unlock()
	return loc, nil
}

// ToInstant resolves date ("2006-01-02") and localTime ("15:04") in zone tz.
// Wall times inside a DST gap or overlap resolve the way time.Date does.
func (a *Adapter) ToInstant(date, localTime, tz string) (time.Time, error) {
	loc, err := a.Location(tz)
	if err != nil {
		return time.Time{}, err
	}
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	h, m, err := ParseClock(localTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc), nil
}

func (a *Adapter) AddMinutes(t time.Time, minutes int) time.Time {
	return t.Add(time.Duration(minutes) * time.Minute)
}

// LocalClock renders t as "HH:MM" in zone tz.
func (a *Adapter) LocalClock(t time.Time, tz string) (string, error) {
	loc, err := a.Location(tz)
	if err != nil {
		return "", err
	}
	return t.In(loc).Format(ClockLayout), nil
}

// DayBounds returns [midnight, next midnight) of date in tz. On DST days the span is 23 or 25h.
func (a *Adapter) DayBounds(date, tz string) (time.Time, time.Time, error) {
	start, err := a.ToInstant(date, "00:00", tz)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	loc, _ := a.Location(tz)
	local := start.In(loc)
	end := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
	return start, end, nil
}

// ParseClock parses a strict 24-hour "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil || len(s) != len(ClockLayout) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return t.Hour(), t.Minute(), nil
}

func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
