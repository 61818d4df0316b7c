// Package store defines the persistence contract the reservation engine
// requires: restaurants/sectors/tables lookups, day and overlap queries
// over reservations, and idempotency-record caching. The store is the
// source of truth; it does not itself guarantee non-overlap between
// active reservations — that is the caller's job under the lock manager.
package store

import (
	"context"
	"time"

	"github.com/tablekeep/reservation-engine/internal/model"
)

// ReservationPatch carries the fields Update may change; a nil pointer
// means "leave unchanged".
type ReservationPatch struct {
	SectorID  *string
	TableIDs  []string
	PartySize *int
	Start     *time.Time
	End       *time.Time
	Status    *model.Status
	ExpiresAt **time.Time
	Customer  *model.Customer
	Notes     *string
	UpdatedAt time.Time
}

// Store is the full persistence contract the core requires.
type Store interface {
	GetRestaurant(ctx context.Context, id string) (model.Restaurant, error)
	GetSector(ctx context.Context, id string) (model.Sector, error)
	TablesBySector(ctx context.Context, sectorID string) ([]model.Table, error)
	TableByID(ctx context.Context, id string) (model.Table, error)

	// ReservationsByDay returns active reservations whose Start lies
	// within [local midnight of date in tz, that instant + 24h),
	// optionally filtered to a single sector. On a DST-change day this
	// window differs from the local calendar day by the shifted hour.
	ReservationsByDay(ctx context.Context, restaurantID string, date time.Time, tz string, sectorID *string) ([]model.Reservation, error)

	// Overlapping returns active reservations overlapping [start, end)
	// sharing any of tableIDs, excluding excludeReservationID if set.
	Overlapping(ctx context.Context, tableIDs []string, start, end time.Time, excludeReservationID *string) ([]model.Reservation, error)

	// OverlappingRestaurant is the restaurant-scoped analogue used for
	// guest-cap enforcement.
	OverlappingRestaurant(ctx context.Context, restaurantID string, start, end time.Time, excludeReservationID *string) ([]model.Reservation, error)

	CreateReservation(ctx context.Context, r model.Reservation) error
	UpdateReservation(ctx context.Context, id string, patch ReservationPatch) (model.Reservation, error)
	CancelReservation(ctx context.Context, id string, updatedAt time.Time) error
	GetReservation(ctx context.Context, id string) (model.Reservation, error)

	// PendingReservationsAll returns every PENDING reservation, for the
	// TTL sweep.
	PendingReservationsAll(ctx context.Context) ([]model.Reservation, error)

	GetIdempotency(ctx context.Context, key string) (model.IdempotencyRecord, error)
	PutIdempotency(ctx context.Context, key string, payload []byte, now time.Time) error
}
