package storage

import (
	"context"
	"sync"

	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
)

// MemoryDirectory is an in-process business/service/staff catalog. Staff are
// listed in the order they were added.
type MemoryDirectory struct {
	mu         sync.RWMutex
	businesses map[string]model.Business
	services   map[string]model.Service
	staff      map[string]model.StaffMember
	staffOrder []string
	qualified  map[string]map[string]bool // staff id -> service ids
	clients    map[string]model.Client
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		businesses: make(map[string]model.Business),
		services:   make(map[string]model.Service),
		staff:      make(map[string]model.StaffMember),
		qualified:  make(map[string]map[string]bool),
		clients:    make(map[string]model.Client),
	}
}

func (d *MemoryDirectory) PutBusiness(b model.Business) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.businesses[b.ID] = b
}

func (d *MemoryDirectory) PutService(s model.Service) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[s.ID] = s
}

// PutStaff adds or replaces a staff member and the services they may perform.
func (d *MemoryDirectory) PutStaff(s model.StaffMember, serviceIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.staff[s.ID]; !exists {
		d.staffOrder = append(d.staffOrder, s.ID)
	}
	d.staff[s.ID] = s
	q := make(map[string]bool, len(serviceIDs))
	for _, id := range serviceIDs {
		q[id] = true
	}
	d.qualified[s.ID] = q
}

func (d *MemoryDirectory) PutClient(c model.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[c.ID] = c
}

func (d *MemoryDirectory) GetBusiness(_ context.Context, id string) (model.Business, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.businesses[id]
	if !ok {
		return model.Business{}, ErrNotFound
	}
	return b, nil
}

func (d *MemoryDirectory) GetService(_ context.Context, id string) (model.Service, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.services[id]
	if !ok {
		return model.Service{}, ErrNotFound
	}
	return s, nil
}

func (d *MemoryDirectory) ListActiveStaffForService(_ context.Context, businessID, serviceID string) ([]model.StaffMember, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []model.StaffMember
	for _, id := range d.staffOrder {
		s := d.staff[id]
		if s.BusinessID == businessID && s.Active && d.qualified[id][serviceID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (d *MemoryDirectory) GetStaff(_ context.Context, id string) (model.StaffMember, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.staff[id]
	if !ok {
		return model.StaffMember{}, ErrNotFound
	}
	return s, nil
}

func (d *MemoryDirectory) GetClient(_ context.Context, id string) (model.Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.clients[id]
	if !ok {
		return model.Client{}, ErrNotFound
	}
	return c, nil
}
