// Package storetest provides an in-memory Store with the same guard
// semantics as the SQL implementation, for handler and planner tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/P-juuny/tsp-prob/dispatch/store"
)

type Store struct {
	mu      sync.Mutex
	parcels map[int64]*store.Parcel
	deleted map[int64]bool

	// NextTargets records SetNext*Target calls by side name.
	NextTargets map[string]int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		parcels:     make(map[int64]*store.Parcel),
		deleted:     make(map[int64]bool),
		NextTargets: make(map[string]int64),
	}
}

// Put inserts or replaces a parcel.
func (s *Store) Put(p store.Parcel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.parcels[p.ID] = &cp
}

// Delete soft-deletes a parcel.
func (s *Store) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[id] = true
}

// Snapshot returns a copy of the parcel for assertions.
func (s *Store) Snapshot(id int64) (store.Parcel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok {
		return store.Parcel{}, false
	}
	return *p, true
}

func (s *Store) GetParcel(ctx context.Context, id int64) (*store.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok || s.deleted[id] {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func sameDay(t *time.Time, today time.Time) bool {
	if t == nil {
		return false
	}
	end := today.AddDate(0, 0, 1)
	return !t.Before(today) && t.Before(end)
}

func (s *Store) collect(match func(*store.Parcel) bool) []store.Parcel {
	var out []store.Parcel
	for id, p := range s.parcels {
		if s.deleted[id] {
			continue
		}
		if match(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) PickupPending(ctx context.Context, driverID int, today time.Time) ([]store.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(p *store.Parcel) bool {
		return p.Status == store.StatusPickupPending &&
			p.PickupDriverID != nil && *p.PickupDriverID == driverID &&
			p.PickupScheduledDate != nil && !p.PickupScheduledDate.After(today)
	}), nil
}

func (s *Store) LastPickupCompleted(ctx context.Context, driverID int, today time.Time) (*store.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *store.Parcel
	for id, p := range s.parcels {
		if s.deleted[id] || p.PickupDriverID == nil || *p.PickupDriverID != driverID {
			continue
		}
		if !sameDay(p.PickupCompletedAt, today) {
			continue
		}
		if last == nil || p.PickupCompletedAt.After(*last.PickupCompletedAt) {
			last = p
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (s *Store) AssignPickupDriver(ctx context.Context, id int64, driverID int, scheduledDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok || s.deleted[id] || p.PickupDriverID != nil || p.Status != store.StatusPickupPending {
		return store.ErrConflict
	}
	p.PickupDriverID = &driverID
	p.PickupScheduledDate = &scheduledDate
	return nil
}

func (s *Store) CompletePickup(ctx context.Context, id int64, driverID int, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok || s.deleted[id] || p.Status != store.StatusPickupPending ||
		p.PickupDriverID == nil || *p.PickupDriverID != driverID {
		return store.ErrConflict
	}
	p.Status = store.StatusPickupCompleted
	p.PickupCompletedAt = &completedAt
	return nil
}

func (s *Store) PickupProgress(ctx context.Context, today time.Time) (store.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var prog store.Progress
	for id, p := range s.parcels {
		if s.deleted[id] || p.PickupDriverID == nil {
			continue
		}
		if p.Status == store.StatusPickupPending &&
			p.PickupScheduledDate != nil && !p.PickupScheduledDate.After(today) {
			prog.Remaining++
		}
		if sameDay(p.PickupCompletedAt, today) {
			prog.CompletedCount++
		}
	}
	return prog, nil
}

func (s *Store) SetNextPickupTarget(ctx context.Context, driverID int, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NextTargets["pickup"] = id
	return nil
}

func (s *Store) DeliveryPending(ctx context.Context, driverID int, today time.Time) ([]store.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(func(p *store.Parcel) bool {
		return p.Status == store.StatusDeliveryPending &&
			p.DeliveryDriverID != nil && *p.DeliveryDriverID == driverID
	}), nil
}

func (s *Store) LastDeliveryCompleted(ctx context.Context, driverID int, today time.Time) (*store.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *store.Parcel
	for id, p := range s.parcels {
		if s.deleted[id] || p.DeliveryDriverID == nil || *p.DeliveryDriverID != driverID {
			continue
		}
		if !sameDay(p.DeliveryCompletedAt, today) {
			continue
		}
		if last == nil || p.DeliveryCompletedAt.After(*last.DeliveryCompletedAt) {
			last = p
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (s *Store) ImportDeliveries(ctx context.Context, today time.Time) ([]store.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Parcel
	for id, p := range s.parcels {
		if s.deleted[id] || p.Status != store.StatusPickupCompleted || p.DeliveryDriverID != nil {
			continue
		}
		if !sameDay(p.PickupCompletedAt, today) {
			continue
		}
		p.Status = store.StatusDeliveryPending
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UnassignedDeliveries(ctx context.Context, today time.Time) ([]store.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.collect(func(p *store.Parcel) bool {
		return p.Status == store.StatusDeliveryPending && p.DeliveryDriverID == nil &&
			sameDay(p.PickupCompletedAt, today)
	})
	return out, nil
}

func (s *Store) AssignDeliveryDriver(ctx context.Context, id int64, driverID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok || s.deleted[id] || p.Status != store.StatusDeliveryPending || p.DeliveryDriverID != nil {
		return store.ErrConflict
	}
	p.DeliveryDriverID = &driverID
	return nil
}

func (s *Store) CompleteDelivery(ctx context.Context, id int64, driverID int, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok || s.deleted[id] || p.Status != store.StatusDeliveryPending ||
		p.DeliveryDriverID == nil || *p.DeliveryDriverID != driverID {
		return store.ErrConflict
	}
	p.Status = store.StatusDeliveryCompleted
	p.DeliveryCompletedAt = &completedAt
	return nil
}

func (s *Store) SetNextDeliveryTarget(ctx context.Context, driverID int, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NextTargets["delivery"] = id
	return nil
}
