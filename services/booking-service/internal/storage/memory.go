package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salonbook/bookingengine/services/booking-service/internal/model"
)

// MemoryStore is a process-local appointment store. CreateAppointment and
// UpdateStatus run under one mutex, which gives the same check-and-write
// atomicity as the Postgres store within a single process.
type MemoryStore struct {
	mu    sync.Mutex
	appts map[string]model.Appointment
	order []string
	idem  map[string]string
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appts: make(map[string]model.Appointment),
		idem:  make(map[string]string),
		now:   time.Now,
	}
}

func (s *MemoryStore) FindBookedIntervals(_ context.Context, businessID string, from, to time.Time, staffIDs []string) ([]model.Appointment, error) {
	wanted := make(map[string]bool, len(staffIDs))
	for _, id := range staffIDs {
		wanted[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Appointment
	for _, id := range s.order {
		a := s.appts[id]
		if a.BusinessID != businessID || a.Status == model.StatusCancelled || !wanted[a.StaffID] {
			continue
		}
		if !a.StartAt.Before(to) || !a.EndAt.After(from) {
			continue
		}
		out = append(out, cloneAppointment(a))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *MemoryStore) CreateAppointment(_ context.Context, appt model.Appointment) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if appt.IdempotencyKey != "" {
		if _, ok := s.idem[idemKey(appt.BusinessID, appt.IdempotencyKey)]; ok {
			return model.Appointment{}, ErrDuplicateKey
		}
	}
	for _, id := range s.order {
		other := s.appts[id]
		if other.StaffID != appt.StaffID || other.Status == model.StatusCancelled {
			continue
		}
		if appt.StartAt.Before(other.EndAt) && other.StartAt.Before(appt.EndAt) {
			return model.Appointment{}, ErrSlotTaken
		}
	}

	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := s.now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	appt = cloneAppointment(appt)
	s.appts[appt.ID] = appt
	s.order = append(s.order, appt.ID)
	if appt.IdempotencyKey != "" {
		s.idem[idemKey(appt.BusinessID, appt.IdempotencyKey)] = appt.ID
	}
	return cloneAppointment(appt), nil
}

func (s *MemoryStore) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return cloneAppointment(a), nil
}

func (s *MemoryStore) FindByIdempotencyKey(_ context.Context, businessID, key string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.idem[idemKey(businessID, key)]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return cloneAppointment(s.appts[id]), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, from, to model.Status, change StatusChange) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	if a.Status != from {
		return model.Appointment{}, ErrStatusChanged
	}
	a.Status = to
	if to == model.StatusCancelled {
		a.CancelledBy = model.Initiator(change.CancelledBy)
		a.CancelReason = change.CancelReason
	}
	a.UpdatedAt = s.now().UTC()
	s.appts[id] = a
	return cloneAppointment(a), nil
}

// All returns every stored appointment in creation order.
func (s *MemoryStore) All() []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Appointment, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneAppointment(s.appts[id]))
	}
	return out
}

func idemKey(businessID, key string) string {
	return businessID + "\x00" + key
}

// cloneAppointment copies the guest so callers never share it with the store.
func cloneAppointment(a model.Appointment) model.Appointment {
	if a.Guest != nil {
		g := *a.Guest
		a.Guest = &g
	}
	return a
}
