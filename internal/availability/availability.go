// Package availability implements the per-day feasibility report:
// generate the 15-minute slot grid for a day, then decide per-slot
// whether partySize can be seated, purely in memory against a single
// pre-loaded reservation list.
package availability

import (
	"context"
	"time"

	"github.com/tablekeep/reservation-engine/internal/assign"
	"github.com/tablekeep/reservation-engine/internal/internaltypes"
	"github.com/tablekeep/reservation-engine/internal/model"
	"github.com/tablekeep/reservation-engine/internal/policy"
	"github.com/tablekeep/reservation-engine/internal/store"
)

// Clock lets tests fix "now"; production wires time.Now.
type Clock func() time.Time

type Service struct {
	Store store.Store
	Now   Clock
}

func New(s store.Store) *Service {
	return &Service{Store: s, Now: time.Now}
}

// Compute returns a SlotReport for every slot in the day's grid.
func (svc *Service) Compute(ctx context.Context, restaurantID, sectorID string, date time.Time, partySize int) ([]model.SlotReport, time.Duration, error) {
	rest, err := svc.Store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		if err == internaltypes.ErrNotFound {
			return nil, 0, internaltypes.NotFound("restaurant not found")
		}
		return nil, 0, err
	}
	if _, err := svc.Store.GetSector(ctx, sectorID); err != nil {
		if err == internaltypes.ErrNotFound {
			return nil, 0, internaltypes.NotFound("sector not found")
		}
		return nil, 0, err
	}
	tables, err := svc.Store.TablesBySector(ctx, sectorID)
	if err != nil {
		return nil, 0, err
	}

	sid := sectorID
	reservations, err := svc.Store.ReservationsByDay(ctx, restaurantID, date, rest.Timezone, &sid)
	if err != nil {
		return nil, 0, err
	}

	maxDur := policy.MaxDuration(rest)
	slots := policy.DaySlots(rest, date, maxDur)
	duration := policy.Duration(partySize, rest.DurationRules, rest.DefaultDurationMin)

	now := svc.Now()
	var out []model.SlotReport
	for _, s := range slots {
		if s.Before(now) {
			continue
		}
		if !policy.WithinShift(rest, s) {
			continue
		}
		end := s.Add(duration)
		overlaps := func(tableIDs []string) bool {
			return anyOverlap(reservations, tableIDs, s, end)
		}
		if ids, ok := assign.Assign(tables, partySize, overlaps); ok {
			out = append(out, model.SlotReport{Start: s, Available: true, Tables: ids})
			continue
		}
		out = append(out, model.SlotReport{Start: s, Available: false, Reason: "no_capacity"})
	}
	return out, duration, nil
}

func anyOverlap(reservations []model.Reservation, tableIDs []string, start, end time.Time) bool {
	want := make(map[string]bool, len(tableIDs))
	for _, id := range tableIDs {
		want[id] = true
	}
	for _, r := range reservations {
		if !r.Overlaps(start, end) {
			continue
		}
		for _, id := range r.TableIDs {
			if want[id] {
				return true
			}
		}
	}
	return false
}
