package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablekeep/reservation-engine/internal/model"
	"github.com/tablekeep/reservation-engine/internal/store"
)

func fixture() *Store {
	s := New()
	s.PutRestaurant(model.Restaurant{ID: "R1", Timezone: "UTC"})
	s.PutSector(model.Sector{ID: "S1", RestaurantID: "R1"})
	s.PutTable(model.Table{ID: "T1", SectorID: "S1", MinSize: 2, MaxSize: 4})
	s.PutTable(model.Table{ID: "T2", SectorID: "S1", MinSize: 2, MaxSize: 4})
	return s
}

func TestGetRestaurantNotFound(t *testing.T) {
	s := New()
	_, err := s.GetRestaurant(context.Background(), "nope")
	assert.Error(t, err)
}

func TestTablesBySectorSortedByID(t *testing.T) {
	s := fixture()
	tables, err := s.TablesBySector(context.Background(), "S1")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "T1", tables[0].ID)
	assert.Equal(t, "T2", tables[1].ID)
}

func TestCreateAndGetReservation(t *testing.T) {
	s := fixture()
	start := time.Date(2025, 9, 8, 20, 0, 0, 0, time.UTC)
	r := model.Reservation{ID: "res1", RestaurantID: "R1", SectorID: "S1", TableIDs: []string{"T1"}, PartySize: 2, Start: start, End: start.Add(time.Hour), Status: model.StatusConfirmed}
	require.NoError(t, s.CreateReservation(context.Background(), r))

	got, err := s.GetReservation(context.Background(), "res1")
	require.NoError(t, err)
	assert.Equal(t, r.PartySize, got.PartySize)
}

func TestOverlappingExcludesCancelledAndSelf(t *testing.T) {
	s := fixture()
	start := time.Date(2025, 9, 8, 20, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	active := model.Reservation{ID: "a", RestaurantID: "R1", SectorID: "S1", TableIDs: []string{"T1"}, Start: start, End: end, Status: model.StatusConfirmed}
	cancelled := model.Reservation{ID: "b", RestaurantID: "R1", SectorID: "S1", TableIDs: []string{"T1"}, Start: start, End: end, Status: model.StatusCancelled}
	require.NoError(t, s.CreateReservation(context.Background(), active))
	require.NoError(t, s.CreateReservation(context.Background(), cancelled))

	rs, err := s.Overlapping(context.Background(), []string{"T1"}, start, end, nil)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "a", rs[0].ID)

	excl := "a"
	rs, err = s.Overlapping(context.Background(), []string{"T1"}, start, end, &excl)
	require.NoError(t, err)
	assert.Len(t, rs, 0)
}

func TestOverlappingRestaurantSumsPartySize(t *testing.T) {
	s := fixture()
	start := time.Date(2025, 9, 8, 20, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	r1 := model.Reservation{ID: "a", RestaurantID: "R1", SectorID: "S1", TableIDs: []string{"T1"}, PartySize: 3, Start: start, End: end, Status: model.StatusConfirmed}
	r2 := model.Reservation{ID: "b", RestaurantID: "R1", SectorID: "S1", TableIDs: []string{"T2"}, PartySize: 4, Start: start, End: end, Status: model.StatusConfirmed}
	require.NoError(t, s.CreateReservation(context.Background(), r1))
	require.NoError(t, s.CreateReservation(context.Background(), r2))

	rs, err := s.OverlappingRestaurant(context.Background(), "R1", start, end, nil)
	require.NoError(t, err)
	sum := 0
	for _, r := range rs {
		sum += r.PartySize
	}
	assert.Equal(t, 7, sum)
}

func TestUpdateReservationPatchesOnlySetFields(t *testing.T) {
	s := fixture()
	start := time.Date(2025, 9, 8, 20, 0, 0, 0, time.UTC)
	r := model.Reservation{ID: "res1", RestaurantID: "R1", SectorID: "S1", TableIDs: []string{"T1"}, PartySize: 2, Notes: "window seat", Start: start, End: start.Add(time.Hour), Status: model.StatusConfirmed}
	require.NoError(t, s.CreateReservation(context.Background(), r))

	newSize := 4
	updated, err := s.UpdateReservation(context.Background(), "res1", store.ReservationPatch{PartySize: &newSize, UpdatedAt: start})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.PartySize)
	assert.Equal(t, "window seat", updated.Notes)
}

func TestCancelReservationIsIdempotent(t *testing.T) {
	s := fixture()
	start := time.Date(2025, 9, 8, 20, 0, 0, 0, time.UTC)
	expires := start.Add(30 * time.Minute)
	r := model.Reservation{ID: "res1", RestaurantID: "R1", SectorID: "S1", TableIDs: []string{"T1"}, Start: start, End: start.Add(time.Hour), Status: model.StatusPending, ExpiresAt: &expires}
	require.NoError(t, s.CreateReservation(context.Background(), r))

	require.NoError(t, s.CancelReservation(context.Background(), "res1", start.Add(time.Minute)))
	require.NoError(t, s.CancelReservation(context.Background(), "res1", start.Add(2*time.Minute)))

	got, err := s.GetReservation(context.Background(), "res1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Nil(t, got.ExpiresAt)
}

func TestPendingReservationsAll(t *testing.T) {
	s := fixture()
	start := time.Date(2025, 9, 8, 20, 0, 0, 0, time.UTC)
	pending := model.Reservation{ID: "a", RestaurantID: "R1", SectorID: "S1", TableIDs: []string{"T1"}, Start: start, End: start.Add(time.Hour), Status: model.StatusPending}
	confirmed := model.Reservation{ID: "b", RestaurantID: "R1", SectorID: "S1", TableIDs: []string{"T2"}, Start: start, End: start.Add(time.Hour), Status: model.StatusConfirmed}
	require.NoError(t, s.CreateReservation(context.Background(), pending))
	require.NoError(t, s.CreateReservation(context.Background(), confirmed))

	rs, err := s.PendingReservationsAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "a", rs[0].ID)
}

func TestPutIdempotencyFirstWriterWins(t *testing.T) {
	s := New()
	now := time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.PutIdempotency(context.Background(), "k1", []byte("first"), now))
	require.NoError(t, s.PutIdempotency(context.Background(), "k1", []byte("second"), now))

	rec, err := s.GetIdempotency(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), rec.Payload)
}

func TestReservationsByDayFiltersToLocalCalendarDay(t *testing.T) {
	s := fixture()
	// 23:30 UTC on the 7th is still the 8th in UTC+1, but the store's day
	// filter here runs in UTC, so use UTC boundaries directly.
	inDay := time.Date(2025, 9, 8, 12, 0, 0, 0, time.UTC)
	outOfDay := time.Date(2025, 9, 9, 0, 30, 0, 0, time.UTC)
	require.NoError(t, s.CreateReservation(context.Background(), model.Reservation{ID: "a", RestaurantID: "R1", SectorID: "S1", TableIDs: []string{"T1"}, Start: inDay, End: inDay.Add(time.Hour), Status: model.StatusConfirmed}))
	require.NoError(t, s.CreateReservation(context.Background(), model.Reservation{ID: "b", RestaurantID: "R1", SectorID: "S1", TableIDs: []string{"T2"}, Start: outOfDay, End: outOfDay.Add(time.Hour), Status: model.StatusConfirmed}))

	rs, err := s.ReservationsByDay(context.Background(), "R1", time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC), "UTC", nil)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "a", rs[0].ID)
}
