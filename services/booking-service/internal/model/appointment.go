package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCheckedIn  Status = "CHECKED_IN"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusNoShow     Status = "NO_SHOW"
)

// Initiator is who asked for a cancellation.
type Initiator string

const (
	InitiatorCustomer Initiator = "customer"
	InitiatorBusiness Initiator = "business"
)

func (i Initiator) Valid() bool {
	return i == InitiatorCustomer || i == InitiatorBusiness
}

// Guest identifies an anonymous customer. All three fields are required.
type Guest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (g Guest) Complete() bool {
	return g.Name != "" && g.Email != "" && g.Phone != ""
}

func (g Guest) Empty() bool {
	return g.Name == "" && g.Email == "" && g.Phone == ""
}

// Appointment is one booked service occupancy. Date, StartTime and EndTime are
// the business-local wall clock values the customer asked for; StartAt/EndAt are
// the absolute instants derived from them.
type Appointment struct {
	ID             string
	BusinessID     string
	ServiceID      string
	StaffID        string
	ClientID       string
	Guest          *Guest
	Status         Status
	Date           string
	StartTime      string
	EndTime        string
	StartAt        time.Time
	EndAt          time.Time
	Price          decimal.Decimal
	Currency       string
	DurationMins   int
	Notes          string
	CancelledBy    Initiator
	CancelReason   string
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Registered reports whether the appointment belongs to an authenticated client.
func (a Appointment) Registered() bool {
	return a.ClientID != ""
}

// CustomerEmail is the email of whoever booked, registered or guest.
func (a Appointment) CustomerEmail(client *Client) string {
	if a.Guest != nil {
		return a.Guest.Email
	}
	if client != nil {
		return client.Email
	}
	return ""
}
