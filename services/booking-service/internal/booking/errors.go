package booking

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindServiceNotFound     Kind = "service_not_found"
	KindSlotUnavailable     Kind = "slot_unavailable"
	KindNoStaffAvailable    Kind = "no_staff_available"
	KindGuestInfoRequired   Kind = "guest_info_required"
	KindInvalidTransition   Kind = "invalid_transition"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindStorageUnavailable  Kind = "storage_unavailable"
	KindInvalidRequest      Kind = "invalid_request"
	KindAppointmentNotFound Kind = "appointment_not_found"
	KindInvalidTimezone     Kind = "invalid_timezone"
)

// Error is what every Engine operation returns on failure. Kind is stable
// and safe to show to callers; Err is the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrSlotUnavailable) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrServiceNotFound     = &Error{Kind: KindServiceNotFound, Message: "service not found"}
	ErrSlotUnavailable     = &Error{Kind: KindSlotUnavailable, Message: "requested staff member is not available"}
	ErrNoStaffAvailable    = &Error{Kind: KindNoStaffAvailable, Message: "no staff member is available"}
	ErrGuestInfoRequired   = &Error{Kind: KindGuestInfoRequired, Message: "guest contact details required"}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict, Message: "slot was taken concurrently"}
	ErrStorageUnavailable  = &Error{Kind: KindStorageUnavailable, Message: "storage unavailable"}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
	ErrAppointmentNotFound = &Error{Kind: KindAppointmentNotFound, Message: "appointment not found"}
	ErrInvalidTimezone     = &Error{Kind: KindInvalidTimezone, Message: "business timezone is invalid"}
)

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
