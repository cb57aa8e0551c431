package storage

import "github.com/salonbook/bookingengine/services/booking-service/internal/model"

// Catalog is a batch of directory records, used to seed a store.
type Catalog struct {
	Businesses []model.Business
	Services   []model.Service
	Staff      []CatalogStaff
	Clients    []model.Client
}

// CatalogStaff is a staff member with the services they may perform.
type CatalogStaff struct {
	Member     model.StaffMember
	ServiceIDs []string
}

func (d *MemoryDirectory) Load(c Catalog) {
	for _, b := range c.Businesses {
		d.PutBusiness(b)
	}
	for _, s := range c.Services {
		d.PutService(s)
	}
	for _, s := range c.Staff {
		d.PutStaff(s.Member, s.ServiceIDs...)
	}
	for _, cl := range c.Clients {
		d.PutClient(cl)
	}
}
