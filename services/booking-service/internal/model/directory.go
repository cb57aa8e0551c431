package model

import "github.com/shopspring/decimal"

type Business struct {
	ID          string
	Name        string
	Timezone    string
	Currency    string
	OwnerUserID string
	OwnerEmail  string
}

type Service struct {
	ID           string
	BusinessID   string
	Name         string
	DurationMins int
	Price        decimal.Decimal
	Active       bool
}

type StaffMember struct {
	ID         string
	BusinessID string
	Name       string
	Email      string
	UserID     string
	Active     bool
}

type Client struct {
	ID    string
	Name  string
	Email string
}
