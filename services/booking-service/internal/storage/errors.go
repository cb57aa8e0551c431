package storage

import "errors"

var (
	ErrNotFound = errors.New("storage: not found")
	// ErrSlotTaken means the staff member already holds an overlapping, non-cancelled appointment at commit time.
	ErrSlotTaken = errors.New("storage: slot taken")
	// ErrStatusChanged means a compare-and-set status update lost to a concurrent writer.
	ErrStatusChanged = errors.New("storage: status changed concurrently")
	// ErrDuplicateKey means the idempotency key was already used for this business.
	ErrDuplicateKey = errors.New("storage: duplicate idempotency key")
)

// StatusChange carries the columns written alongside a status update.
type StatusChange struct {
	CancelledBy  string
	CancelReason string
}
