// Package lock defines the distributed-lock contract the reservation
// engine uses to serialize writers over sector/restaurant + 15-minute
// slot keys. Concrete backends live in subpackages: redislock for
// production, memlock for tests and single-process deployments.
package lock

import (
	"context"
	"sort"
	"time"
)

// DefaultTTL bounds how long a stranded lock (owner crashed) can block
// the slot it guards.
const DefaultTTL = 30 * time.Second

const slotGrid = 15 * time.Minute

// Handle releases every slot key it was constructed from. Implementations
// must make Release idempotent and safe to call on any exit path.
type Handle interface {
	Release(ctx context.Context) error
}

// Manager acquires mutual exclusion over the 15-minute slots covered by
// [start, end) for a sector or a restaurant. Acquisition is fail-fast:
// partial success is always rolled back before returning an error.
type Manager interface {
	AcquireSectorLocks(ctx context.Context, sectorID string, start, end time.Time) (Handle, error)
	AcquireRestaurantLocks(ctx context.Context, restaurantID string, start, end time.Time) (Handle, error)
}

// SlotInstants returns the sorted sequence of 15-minute grid instants s
// with start <= s < end, canonicalized to UTC. Sorting the keys is what
// rules out deadlock between two acquirers whose intervals intersect.
func SlotInstants(start, end time.Time) []time.Time {
	start = start.UTC()
	end = end.UTC()
	first := start.Truncate(slotGrid)
	var out []time.Time
	for t := first; t.Before(end); t = t.Add(slotGrid) {
		if !t.Before(start) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// SectorKey formats the per-slot lock key for a sector, canonical UTC
// ISO-8601 so two writers with different local representations of the
// same slot compute the same key.
func SectorKey(sectorID string, slot time.Time) string {
	return "sector:" + sectorID + ":slot:" + slot.UTC().Format(time.RFC3339)
}

// RestaurantKey formats the per-slot lock key for a restaurant.
func RestaurantKey(restaurantID string, slot time.Time) string {
	return "restaurant:" + restaurantID + ":slot:" + slot.UTC().Format(time.RFC3339)
}
