// Package reservation implements the reservation lifecycle orchestration:
// create, update, cancel, approve, reject and TTL expiry. It composes
// internal/policy, internal/lock, internal/assign and internal/store
// through a single control flow: validation -> lock -> assign -> store.
package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tablekeep/reservation-engine/internal/assign"
	"github.com/tablekeep/reservation-engine/internal/internaltypes"
	"github.com/tablekeep/reservation-engine/internal/lock"
	"github.com/tablekeep/reservation-engine/internal/model"
	"github.com/tablekeep/reservation-engine/internal/policy"
	"github.com/tablekeep/reservation-engine/internal/store"
)

// Clock lets tests fix "now"; production wires time.Now.
type Clock func() time.Time

// IDGen lets tests fix generated ids; production wires uuid.NewString.
type IDGen func() string

type Service struct {
	Store   store.Store
	Locks   lock.Manager
	Now     Clock
	NewID   IDGen
	// TestMode disables the "start must not be in the past" check in
	// the advance-booking policy, for scenarios that construct fixed
	// past-dated fixtures.
	TestMode bool
}

func New(s store.Store, l lock.Manager) *Service {
	return &Service{Store: s, Locks: l, Now: time.Now, NewID: uuid.NewString}
}

// lookupErr distinguishes a genuine missing row from an underlying store
// failure, so a transient database error is never reported to the
// caller as a 404.
func lookupErr(err error, msg string) error {
	if err == internaltypes.ErrNotFound {
		return internaltypes.NotFound(msg)
	}
	return internaltypes.Internal(msg, err)
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	RestaurantID string
	SectorID     string
	PartySize    int
	Start        time.Time
	Customer     model.Customer
	Notes        string
}

// Create validates, locks, assigns and persists a new reservation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Reservation, error) {
	rest, err := s.Store.GetRestaurant(ctx, req.RestaurantID)
	if err != nil {
		return model.Reservation{}, lookupErr(err, "restaurant not found")
	}
	if _, err := s.Store.GetSector(ctx, req.SectorID); err != nil {
		return model.Reservation{}, lookupErr(err, "sector not found")
	}

	if !policy.WithinShift(rest, req.Start) {
		return model.Reservation{}, internaltypes.OutsideServiceWindow("start is outside any shift")
	}

	now := s.Now()
	if err := policy.ValidateAdvanceBooking(rest.AdvanceBooking, now, req.Start, s.TestMode); err != nil {
		return model.Reservation{}, err
	}

	duration := policy.Duration(req.PartySize, rest.DurationRules, rest.DefaultDurationMin)
	end := req.Start.Add(duration)

	if shiftEnd, ok := policy.ShiftEnd(rest, req.Start); !ok || end.After(shiftEnd) {
		return model.Reservation{}, internaltypes.OutsideServiceWindow("reservation would span past the shift end")
	}

	var restaurantHandle lock.Handle
	if rest.MaxGuestsPerSlot > 0 {
		h, err := s.Locks.AcquireRestaurantLocks(ctx, req.RestaurantID, req.Start, end)
		if err != nil {
			return model.Reservation{}, err
		}
		restaurantHandle = h
		defer restaurantHandle.Release(ctx)
	}

	sectorHandle, err := s.Locks.AcquireSectorLocks(ctx, req.SectorID, req.Start, end)
	if err != nil {
		return model.Reservation{}, err
	}
	defer sectorHandle.Release(ctx)

	if rest.MaxGuestsPerSlot > 0 {
		existing, err := s.Store.OverlappingRestaurant(ctx, req.RestaurantID, req.Start, end, nil)
		if err != nil {
			return model.Reservation{}, internaltypes.Internal("overlap query failed", err)
		}
		sum := req.PartySize
		for _, r := range existing {
			sum += r.PartySize
		}
		if sum > rest.MaxGuestsPerSlot {
			return model.Reservation{}, internaltypes.NoCapacity("restaurant guest cap reached")
		}
	}

	if _, err := s.expirePending(ctx, now); err != nil {
		return model.Reservation{}, internaltypes.Internal("expire sweep failed", err)
	}

	tables, err := s.Store.TablesBySector(ctx, req.SectorID)
	if err != nil {
		return model.Reservation{}, internaltypes.Internal("load tables failed", err)
	}
	overlapFn := s.overlapFunc(ctx, req.Start, end, nil)
	tableIDs, ok := assign.Assign(tables, req.PartySize, overlapFn)
	if !ok {
		return model.Reservation{}, internaltypes.NoCapacity("no table or combination available")
	}

	status := model.StatusConfirmed
	var expiresAt *time.Time
	if rest.LargeGroupThreshold > 0 && req.PartySize >= rest.LargeGroupThreshold && rest.PendingHoldTTLMin > 0 {
		status = model.StatusPending
		t := now.Add(time.Duration(rest.PendingHoldTTLMin) * time.Minute)
		expiresAt = &t
	}

	r := model.Reservation{
		ID:           s.NewID(),
		RestaurantID: req.RestaurantID,
		SectorID:     req.SectorID,
		TableIDs:     tableIDs,
		PartySize:    req.PartySize,
		Start:        req.Start,
		End:          end,
		Status:       status,
		ExpiresAt:    expiresAt,
		Customer:     req.Customer,
		Notes:        req.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.CreateReservation(ctx, r); err != nil {
		return model.Reservation{}, internaltypes.Internal("persist reservation failed", err)
	}
	return r, nil
}

// overlapFunc closes over the interval and exclusion to give assign.Assign
// a live overlap predicate against the store.
func (s *Service) overlapFunc(ctx context.Context, start, end time.Time, excludeID *string) assign.OverlapFunc {
	return func(tableIDs []string) bool {
		rs, err := s.Store.Overlapping(ctx, tableIDs, start, end, excludeID)
		if err != nil {
			// A failed overlap check must never silently report "free":
			// treat it as an occupied table so assignment fails closed.
			return true
		}
		return len(rs) > 0
	}
}

// UpdateRequest carries the fields an update may change; nil means
// "leave unchanged".
type UpdateRequest struct {
	SectorID  *string
	PartySize *int
	Start     *time.Time
	Customer  *model.Customer
	Notes     *string
}

// Update re-validates and, if the sector/party/time changed, re-assigns
// tables before persisting the patch.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (model.Reservation, error) {
	current, err := s.Store.GetReservation(ctx, id)
	if err != nil {
		return model.Reservation{}, lookupErr(err, "reservation not found")
	}
	if current.Status == model.StatusCancelled {
		return model.Reservation{}, internaltypes.InvalidFormat("cannot update a cancelled reservation")
	}

	rest, err := s.Store.GetRestaurant(ctx, current.RestaurantID)
	if err != nil {
		return model.Reservation{}, lookupErr(err, "restaurant not found")
	}

	sectorID := current.SectorID
	if req.SectorID != nil {
		sectorID = *req.SectorID
	}
	partySize := current.PartySize
	if req.PartySize != nil {
		partySize = *req.PartySize
	}
	start := current.Start
	timeChanged := false
	if req.Start != nil {
		start = *req.Start
		timeChanged = true
	}

	now := s.Now()
	if timeChanged {
		if !policy.WithinShift(rest, start) {
			return model.Reservation{}, internaltypes.OutsideServiceWindow("start is outside any shift")
		}
		if err := policy.ValidateAdvanceBooking(rest.AdvanceBooking, now, start, s.TestMode); err != nil {
			return model.Reservation{}, err
		}
	}

	duration := policy.Duration(partySize, rest.DurationRules, rest.DefaultDurationMin)
	end := start.Add(duration)
	if shiftEnd, ok := policy.ShiftEnd(rest, start); !ok || end.After(shiftEnd) {
		return model.Reservation{}, internaltypes.OutsideServiceWindow("reservation would span past the shift end")
	}

	var restaurantHandle lock.Handle
	if rest.MaxGuestsPerSlot > 0 {
		h, err := s.Locks.AcquireRestaurantLocks(ctx, current.RestaurantID, start, end)
		if err != nil {
			return model.Reservation{}, err
		}
		restaurantHandle = h
		defer restaurantHandle.Release(ctx)
	}

	sectorHandle, err := s.Locks.AcquireSectorLocks(ctx, sectorID, start, end)
	if err != nil {
		return model.Reservation{}, err
	}
	defer sectorHandle.Release(ctx)

	if rest.MaxGuestsPerSlot > 0 {
		existing, err := s.Store.OverlappingRestaurant(ctx, current.RestaurantID, start, end, &id)
		if err != nil {
			return model.Reservation{}, internaltypes.Internal("overlap query failed", err)
		}
		sum := partySize
		for _, r := range existing {
			sum += r.PartySize
		}
		if sum > rest.MaxGuestsPerSlot {
			return model.Reservation{}, internaltypes.NoCapacity("restaurant guest cap reached")
		}
	}

	needsReassign := req.SectorID != nil || req.PartySize != nil || timeChanged
	tableIDs := current.TableIDs
	if needsReassign {
		tables, err := s.Store.TablesBySector(ctx, sectorID)
		if err != nil {
			return model.Reservation{}, internaltypes.Internal("load tables failed", err)
		}
		overlapFn := s.overlapFunc(ctx, start, end, &id)
		ids, ok := assign.Assign(tables, partySize, overlapFn)
		if !ok {
			return model.Reservation{}, internaltypes.NoCapacity("no table or combination available")
		}
		tableIDs = ids
	}

	customer := current.Customer
	if req.Customer != nil {
		customer = *req.Customer
	}
	notes := current.Notes
	if req.Notes != nil {
		notes = *req.Notes
	}

	patch := store.ReservationPatch{
		SectorID:  &sectorID,
		TableIDs:  tableIDs,
		PartySize: &partySize,
		Start:     &start,
		End:       &end,
		Customer:  &customer,
		Notes:     &notes,
		UpdatedAt: now,
	}
	updated, err := s.Store.UpdateReservation(ctx, id, patch)
	if err != nil {
		return model.Reservation{}, internaltypes.Internal("persist update failed", err)
	}
	return updated, nil
}

// Cancel is idempotent: cancelling a cancelled reservation is a no-op.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if _, err := s.Store.GetReservation(ctx, id); err != nil {
		return lookupErr(err, "reservation not found")
	}
	if err := s.Store.CancelReservation(ctx, id, s.Now()); err != nil {
		return internaltypes.Internal("cancel failed", err)
	}
	return nil
}

// Approve transitions a non-expired PENDING hold to CONFIRMED.
func (s *Service) Approve(ctx context.Context, id string) (model.Reservation, error) {
	r, err := s.Store.GetReservation(ctx, id)
	if err != nil {
		return model.Reservation{}, lookupErr(err, "reservation not found")
	}
	if r.Status != model.StatusPending {
		return model.Reservation{}, internaltypes.InvalidFormat("reservation is not pending")
	}
	now := s.Now()
	if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
		return model.Reservation{}, internaltypes.Conflict("pending hold has already expired")
	}
	confirmed := model.StatusConfirmed
	var nilTime *time.Time
	patch := store.ReservationPatch{Status: &confirmed, ExpiresAt: &nilTime, UpdatedAt: now}
	return s.Store.UpdateReservation(ctx, id, patch)
}

// Reject transitions a PENDING hold to CANCELLED.
func (s *Service) Reject(ctx context.Context, id string) (model.Reservation, error) {
	r, err := s.Store.GetReservation(ctx, id)
	if err != nil {
		return model.Reservation{}, lookupErr(err, "reservation not found")
	}
	if r.Status != model.StatusPending {
		return model.Reservation{}, internaltypes.InvalidFormat("reservation is not pending")
	}
	cancelled := model.StatusCancelled
	var nilTime *time.Time
	patch := store.ReservationPatch{Status: &cancelled, ExpiresAt: &nilTime, UpdatedAt: s.Now()}
	return s.Store.UpdateReservation(ctx, id, patch)
}

// ExpirePending is the admin-triggerable sweep: every PENDING reservation
// past its expiresAt transitions to CANCELLED.
func (s *Service) ExpirePending(ctx context.Context) (int, error) {
	return s.expirePending(ctx, s.Now())
}

func (s *Service) expirePending(ctx context.Context, now time.Time) (int, error) {
	pending, err := s.Store.PendingReservationsAll(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range pending {
		if r.ExpiresAt != nil && r.ExpiresAt.Before(now) {
			if err := s.Store.CancelReservation(ctx, r.ID, now); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}
