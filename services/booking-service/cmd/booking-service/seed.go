package main

import (
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
	"github.com/salonbook/bookingengine/services/booking-service/internal/storage"
	"github.com/shopspring/decimal"
)

const demoBusinessID = "demo-salon"

func demoCatalog() storage.Catalog {
	return storage.Catalog{
		Businesses: []model.Business{{
			ID:          demoBusinessID,
			Name:        "Demo Salon",
			Timezone:    "America/New_York",
			Currency:    "USD",
			OwnerUserID: "demo-owner",
			OwnerEmail:  "owner@demo-salon.test",
		}},
		Services: []model.Service{
			{ID: "haircut", BusinessID: demoBusinessID, Name: "Haircut", DurationMins: 30, Price: decimal.RequireFromString("35.00"), Active: true},
			{ID: "colour", BusinessID: demoBusinessID, Name: "Colour", DurationMins: 90, Price: decimal.RequireFromString("120.00"), Active: true},
		},
		Staff: []storage.CatalogStaff{
			{Member: model.StaffMember{ID: "alex", BusinessID: demoBusinessID, Name: "Alex", Email: "alex@demo-salon.test", UserID: "user-alex", Active: true}, ServiceIDs: []string{"haircut", "colour"}},
			{Member: model.StaffMember{ID: "sam", BusinessID: demoBusinessID, Name: "Sam", Email: "sam@demo-salon.test", UserID: "user-sam", Active: true}, ServiceIDs: []string{"haircut"}},
		},
		Clients: []model.Client{{ID: "client-demo", Name: "Dana", Email: "dana@example.test"}},
	}
}
