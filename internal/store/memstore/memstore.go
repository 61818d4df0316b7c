// Package memstore is an in-process Store implementation guarded by a
// sync.RWMutex, scanning slices rather than issuing SQL. It backs the
// reservation-service unit tests and `tablekeepd serve` with
// STORE_DRIVER=memory.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tablekeep/reservation-engine/internal/internaltypes"
	"github.com/tablekeep/reservation-engine/internal/model"
	"github.com/tablekeep/reservation-engine/internal/store"
)

// Store is an in-memory, mutex-guarded implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	restaurants  map[string]model.Restaurant
	sectors      map[string]model.Sector
	tables       map[string]model.Table
	reservations map[string]model.Reservation
	idempotency  map[string]model.IdempotencyRecord
}

func New() *Store {
	return &Store{
		restaurants:  make(map[string]model.Restaurant),
		sectors:      make(map[string]model.Sector),
		tables:       make(map[string]model.Table),
		reservations: make(map[string]model.Reservation),
		idempotency:  make(map[string]model.IdempotencyRecord),
	}
}

// Seed helpers, used by tests to populate the store directly.

func (s *Store) PutRestaurant(r model.Restaurant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restaurants[r.ID] = r
}

func (s *Store) PutSector(sec model.Sector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sectors[sec.ID] = sec
}

func (s *Store) PutTable(t model.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.ID] = t
}

func (s *Store) GetRestaurant(ctx context.Context, id string) (model.Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.restaurants[id]
	if !ok {
		return model.Restaurant{}, internaltypes.ErrNotFound
	}
	return r, nil
}

func (s *Store) GetSector(ctx context.Context, id string) (model.Sector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.sectors[id]
	if !ok {
		return model.Sector{}, internaltypes.ErrNotFound
	}
	return sec, nil
}

func (s *Store) TablesBySector(ctx context.Context, sectorID string) ([]model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Table
	for _, t := range s.tables {
		if t.SectorID == sectorID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TableByID(ctx context.Context, id string) (model.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[id]
	if !ok {
		return model.Table{}, internaltypes.ErrNotFound
	}
	return t, nil
}

func (s *Store) ReservationsByDay(ctx context.Context, restaurantID string, date time.Time, tz string, sectorID *string) ([]model.Reservation, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc).UTC()
	dayEnd := dayStart.AddDate(0, 0, 1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.RestaurantID != restaurantID || !r.Status.Active() {
			continue
		}
		if sectorID != nil && r.SectorID != *sectorID {
			continue
		}
		start := r.Start.UTC()
		if !start.Before(dayStart) && start.Before(dayEnd) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (s *Store) Overlapping(ctx context.Context, tableIDs []string, start, end time.Time, excludeReservationID *string) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlappingLocked(tableIDs, start, end, excludeReservationID), nil
}

func (s *Store) overlappingLocked(tableIDs []string, start, end time.Time, excludeReservationID *string) []model.Reservation {
	want := make(map[string]bool, len(tableIDs))
	for _, id := range tableIDs {
		want[id] = true
	}
	var out []model.Reservation
	for _, r := range s.reservations {
		if !r.Status.Active() {
			continue
		}
		if excludeReservationID != nil && r.ID == *excludeReservationID {
			continue
		}
		if !r.Overlaps(start, end) {
			continue
		}
		shares := false
		for _, id := range r.TableIDs {
			if want[id] {
				shares = true
				break
			}
		}
		if shares {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) OverlappingRestaurant(ctx context.Context, restaurantID string, start, end time.Time, excludeReservationID *string) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.RestaurantID != restaurantID || !r.Status.Active() {
			continue
		}
		if excludeReservationID != nil && r.ID == *excludeReservationID {
			continue
		}
		if r.Overlaps(start, end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) CreateReservation(ctx context.Context, r model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r
	return nil
}

func (s *Store) UpdateReservation(ctx context.Context, id string, patch store.ReservationPatch) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, internaltypes.ErrNotFound
	}
	if patch.SectorID != nil {
		r.SectorID = *patch.SectorID
	}
	if patch.TableIDs != nil {
		r.TableIDs = patch.TableIDs
	}
	if patch.PartySize != nil {
		r.PartySize = *patch.PartySize
	}
	if patch.Start != nil {
		r.Start = *patch.Start
	}
	if patch.End != nil {
		r.End = *patch.End
	}
	if patch.Status != nil {
		r.Status = *patch.Status
	}
	if patch.ExpiresAt != nil {
		r.ExpiresAt = *patch.ExpiresAt
	}
	if patch.Customer != nil {
		r.Customer = *patch.Customer
	}
	if patch.Notes != nil {
		r.Notes = *patch.Notes
	}
	r.UpdatedAt = patch.UpdatedAt
	s.reservations[id] = r
	return r, nil
}

func (s *Store) CancelReservation(ctx context.Context, id string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return internaltypes.ErrNotFound
	}
	if r.Status == model.StatusCancelled {
		return nil
	}
	r.Status = model.StatusCancelled
	r.ExpiresAt = nil
	r.UpdatedAt = updatedAt
	s.reservations[id] = r
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, internaltypes.ErrNotFound
	}
	return r, nil
}

func (s *Store) PendingReservationsAll(ctx context.Context) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reservation
	for _, r := range s.reservations {
		if r.Status == model.StatusPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) GetIdempotency(ctx context.Context, key string) (model.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idempotency[key]
	if !ok {
		return model.IdempotencyRecord{}, internaltypes.ErrNotFound
	}
	return rec, nil
}

func (s *Store) PutIdempotency(ctx context.Context, key string, payload []byte, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.idempotency[key]; exists {
		return nil // first writer wins
	}
	s.idempotency[key] = model.IdempotencyRecord{Key: key, Payload: payload, CreatedAt: now}
	return nil
}
