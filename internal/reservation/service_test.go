package reservation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/reservation-engine/internal/internaltypes"
	"github.com/tablekeep/reservation-engine/internal/lock/memlock"
	"github.com/tablekeep/reservation-engine/internal/model"
	"github.com/tablekeep/reservation-engine/internal/store/memstore"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return tm
}

// newFixture builds restaurant R1 / sector S1 / tables T1,T2 matching a
// small two-shift restaurant with duration rules and a large-group
// pending hold policy.
func newFixture(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	st.PutRestaurant(model.Restaurant{
		ID:       "R1",
		Timezone: "America/Argentina/Buenos_Aires",
		Shifts: []model.Shift{
			{Start: "12:00", End: "16:00"},
			{Start: "20:00", End: "23:45"},
		},
		DefaultDurationMin: 90,
		DurationRules: []model.DurationRule{
			{MaxPartySize: 2, Minutes: 75},
			{MaxPartySize: 4, Minutes: 90},
			{MaxPartySize: 8, Minutes: 120},
			{MaxPartySize: 999, Minutes: 150},
		},
		LargeGroupThreshold: 8,
		PendingHoldTTLMin:   30,
	})
	st.PutSector(model.Sector{ID: "S1", RestaurantID: "R1", Name: "Main Hall"})
	st.PutTable(model.Table{ID: "T1", SectorID: "S1", MinSize: 2, MaxSize: 4})
	st.PutTable(model.Table{ID: "T2", SectorID: "S1", MinSize: 2, MaxSize: 4})

	svc := New(st, memlock.New())
	svc.TestMode = true
	return svc, st
}

func TestCreateHappyPath(t *testing.T) {
	svc, _ := newFixture(t)
	start := mustParse(t, "2025-09-08T20:00:00-03:00")

	r, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 2, Start: start,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, r.Status)
	assert.True(t, r.End.Equal(mustParse(t, "2025-09-08T21:15:00-03:00")))
	assert.Len(t, r.TableIDs, 1)
}

// An overlapping request must not share a table with the first.
func TestOverlappingRequestGetsDifferentTableOrFails(t *testing.T) {
	svc, _ := newFixture(t)
	start := mustParse(t, "2025-09-08T20:00:00-03:00")

	first, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 2, Start: start,
	})
	require.NoError(t, err)

	second, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 2, Start: start.Add(15 * time.Minute),
	})
	if err != nil {
		assert.Equal(t, internaltypes.KindNoCapacity, internaltypes.KindOf(err))
		return
	}
	for _, id := range second.TableIDs {
		assert.NotContains(t, first.TableIDs, id)
	}
}

// Adjacent reservations on the same table pool both succeed.
func TestAdjacentReservationsBothSucceed(t *testing.T) {
	svc, _ := newFixture(t)
	start := mustParse(t, "2025-09-08T20:00:00-03:00")

	r1, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 2, Start: start,
	})
	require.NoError(t, err)

	r2, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 2, Start: r1.End,
	})
	require.NoError(t, err)
	assert.True(t, r1.End.Equal(r2.Start))
}

// Concurrent creates for a two-table sector — the sector lock is
// fail-fast with no retry, so whichever goroutine wins the slot lock
// first holds it for its whole critical section and every contender
// that arrives meanwhile is turned away immediately with no capacity.
// A contender that arrives after the lock is released can still take
// the second table, so one or two of the three succeed, and no two
// successful reservations may ever share a table.
func TestConcurrentCreatesRespectCapacity(t *testing.T) {
	svc, _ := newFixture(t)
	start := mustParse(t, "2025-09-08T20:00:00-03:00")

	var wg sync.WaitGroup
	results := make([]model.Reservation, 3)
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := svc.Create(context.Background(), CreateRequest{
				RestaurantID: "R1", SectorID: "S1", PartySize: 2, Start: start,
			})
			results[i] = r
			errs[i] = err
		}(i)
	}
	wg.Wait()

	successes := 0
	usedTables := map[string]bool{}
	for i, err := range errs {
		if err == nil {
			successes++
			for _, tid := range results[i].TableIDs {
				assert.False(t, usedTables[tid], "table %s assigned to more than one reservation", tid)
				usedTables[tid] = true
			}
		} else {
			assert.Equal(t, internaltypes.KindNoCapacity, internaltypes.KindOf(err))
		}
	}
	assert.LessOrEqual(t, successes, 2)
	assert.GreaterOrEqual(t, successes, 1)
}

// A large group creates a PENDING hold that expires after its TTL.
func TestLargeGroupPendingAndExpiry(t *testing.T) {
	svc, st := newFixture(t)
	start := mustParse(t, "2025-09-08T20:00:00-03:00")

	fixedNow := start.Add(-time.Hour)
	svc.Now = func() time.Time { return fixedNow }

	r, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 8, Start: start,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, r.Status)
	require.NotNil(t, r.ExpiresAt)
	assert.True(t, r.ExpiresAt.Equal(fixedNow.Add(30*time.Minute)))

	svc.Now = func() time.Time { return fixedNow.Add(31 * time.Minute) }
	n, err := svc.ExpirePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	updated, err := st.GetReservation(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, updated.Status)
	assert.Nil(t, updated.ExpiresAt)
}

// An expired pending hold never transitions to CONFIRMED via Approve.
func TestApproveRejectsExpiredHold(t *testing.T) {
	svc, _ := newFixture(t)
	start := mustParse(t, "2025-09-08T20:00:00-03:00")
	fixedNow := start.Add(-time.Hour)
	svc.Now = func() time.Time { return fixedNow }

	r, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 8, Start: start,
	})
	require.NoError(t, err)

	svc.Now = func() time.Time { return fixedNow.Add(31 * time.Minute) }
	_, err = svc.Approve(context.Background(), r.ID)
	assert.Error(t, err)
}

// Table-combination assignment, then a follow-up request is rejected.
func TestCombinationAssignmentThenNoCapacity(t *testing.T) {
	svc, _ := newFixture(t)
	start := mustParse(t, "2025-09-08T20:00:00-03:00")

	r, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 8, Start: start,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"T1", "T2"}, r.TableIDs)

	_, err = svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 8, Start: start,
	})
	assert.Equal(t, internaltypes.KindNoCapacity, internaltypes.KindOf(err))
}

// Cancellation is idempotent.
func TestCancelIsIdempotent(t *testing.T) {
	svc, _ := newFixture(t)
	start := mustParse(t, "2025-09-08T20:00:00-03:00")
	r, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 2, Start: start,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), r.ID))
	require.NoError(t, svc.Cancel(context.Background(), r.ID))
}

// After cancellation, the freed table is available again.
func TestCancellationFreesTable(t *testing.T) {
	svc, _ := newFixture(t)
	start := mustParse(t, "2025-09-08T20:00:00-03:00")

	r, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 8, Start: start,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), r.ID))

	_, err = svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 8, Start: start,
	})
	assert.NoError(t, err)
}

func TestOutsideServiceWindowRejected(t *testing.T) {
	svc, _ := newFixture(t)
	start := mustParse(t, "2025-09-08T18:00:00-03:00")
	_, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 2, Start: start,
	})
	assert.Equal(t, internaltypes.KindOutsideServiceWindow, internaltypes.KindOf(err))
}

func TestUpdateRejectsCancelled(t *testing.T) {
	svc, _ := newFixture(t)
	start := mustParse(t, "2025-09-08T20:00:00-03:00")
	r, err := svc.Create(context.Background(), CreateRequest{
		RestaurantID: "R1", SectorID: "S1", PartySize: 2, Start: start,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background(), r.ID))

	newSize := 3
	_, err = svc.Update(context.Background(), r.ID, UpdateRequest{PartySize: &newSize})
	assert.Equal(t, internaltypes.KindInvalidFormat, internaltypes.KindOf(err))
}

// Open Question decision: updating partySize upward re-checks the guest
// cap using the new size minus the reservation's own self-overlap.
func TestUpdateEnlargingPartySizeRespectsGuestCap(t *testing.T) {
	st := memstore.New()
	st.PutRestaurant(model.Restaurant{
		ID:                 "R2",
		Timezone:           "UTC",
		DefaultDurationMin: 60,
		MaxGuestsPerSlot:   10,
	})
	st.PutSector(model.Sector{ID: "S2", RestaurantID: "R2"})
	st.PutTable(model.Table{ID: "TA", SectorID: "S2", MinSize: 1, MaxSize: 20})

	svc := New(st, memlock.New())
	svc.TestMode = true
	start := time.Date(2025, 9, 8, 12, 0, 0, 0, time.UTC)

	r, err := svc.Create(context.Background(), CreateRequest{RestaurantID: "R2", SectorID: "S2", PartySize: 6, Start: start})
	require.NoError(t, err)

	bigger := 11
	_, err = svc.Update(context.Background(), r.ID, UpdateRequest{PartySize: &bigger})
	assert.Equal(t, internaltypes.KindNoCapacity, internaltypes.KindOf(err))

	ok := 10
	updated, err := svc.Update(context.Background(), r.ID, UpdateRequest{PartySize: &ok})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.PartySize)
}
