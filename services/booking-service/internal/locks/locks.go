// Package locks serialises booking attempts that compete for the same
// business day.
package locks

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("locks: not acquired")

// Locker hands out exclusive leases on a key. The returned release func is
// safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Key builds the lock key for one business day.
func Key(businessID, date string) string {
	return "booking:" + businessID + ":" + date
}

// Noop never blocks. It is used when no lock backend is configured and the
// store's own commit-time check is the only guard.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
