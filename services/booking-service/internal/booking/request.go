package booking

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
)

// BookRequest asks for one service at one local date and time. StaffID is
// optional; when empty a free qualified staff member is chosen. Exactly one
// of ClientID or Guest identifies the customer.
type BookRequest struct {
	BusinessID     string       `json:"business_id" validate:"required,max=64"`
	ServiceID      string       `json:"service_id" validate:"required,max=64"`
	StaffID        string       `json:"staff_id,omitempty" validate:"max=64"`
	Date           string       `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime      string       `json:"start_time" validate:"required,datetime=15:04"`
	ClientID       string       `json:"client_id,omitempty" validate:"max=64"`
	Guest          *model.Guest `json:"guest,omitempty"`
	Notes          string       `json:"notes,omitempty" validate:"max=1000"`
	IdempotencyKey string       `json:"-" validate:"max=128"`
}

type SlotsRequest struct {
	BusinessID string `json:"business_id" validate:"required,max=64"`
	ServiceID  string `json:"service_id" validate:"required,max=64"`
	StaffID    string `json:"staff_id,omitempty" validate:"max=64"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
}

func (r *BookRequest) normalize() {
	r.BusinessID = strings.TrimSpace(r.BusinessID)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.StaffID = strings.TrimSpace(r.StaffID)
	r.Date = strings.TrimSpace(r.Date)
	r.StartTime = strings.TrimSpace(r.StartTime)
	r.ClientID = strings.TrimSpace(r.ClientID)
	r.Notes = strings.TrimSpace(r.Notes)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
	if r.Guest != nil {
		r.Guest.Name = strings.TrimSpace(r.Guest.Name)
		r.Guest.Email = strings.TrimSpace(r.Guest.Email)
		r.Guest.Phone = strings.TrimSpace(r.Guest.Phone)
		if r.Guest.Empty() {
			r.Guest = nil
		}
	}
}

// checkCustomer enforces that a booking is either registered or guest, never
// both and never neither, with all guest contact fields present.
func (r *BookRequest) checkCustomer(v *validator.Validate) error {
	switch {
	case r.ClientID != "" && r.Guest != nil:
		return newError(KindGuestInfoRequired, nil, "booking must be for a registered client or a guest, not both")
	case r.ClientID == "" && r.Guest == nil:
		return newError(KindGuestInfoRequired, nil, "guest name, email and phone are required without a client id")
	case r.Guest != nil && !r.Guest.Complete():
		return newError(KindGuestInfoRequired, nil, "guest name, email and phone are all required")
	case r.Guest != nil:
		if err := v.Var(r.Guest.Email, "email"); err != nil {
			return newError(KindGuestInfoRequired, nil, "guest email %q is not a valid address", r.Guest.Email)
		}
	}
	return nil
}

// validationError flattens validator output into one InvalidRequest error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newError(KindInvalidRequest, err, "request could not be validated")
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "datetime":
			parts = append(parts, fmt.Sprintf("%s must match %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return newError(KindInvalidRequest, nil, "%s", strings.Join(parts, "; "))
}
