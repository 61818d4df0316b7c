package memlock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tablekeep/reservation-engine/internal/internaltypes"
)

func TestAcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	m := New()
	start := time.Now()
	end := start.Add(30 * time.Minute)

	h1, err := m.AcquireSectorLocks(ctx, "s1", start, end)
	assert.NoError(t, err)
	defer h1.Release(ctx)

	_, err = m.AcquireSectorLocks(ctx, "s1", start, end)
	assert.Equal(t, internaltypes.KindNoCapacity, internaltypes.KindOf(err))
}

func TestReleaseFreesLocks(t *testing.T) {
	ctx := context.Background()
	m := New()
	start := time.Now()
	end := start.Add(15 * time.Minute)

	h1, err := m.AcquireSectorLocks(ctx, "s1", start, end)
	assert.NoError(t, err)
	assert.NoError(t, h1.Release(ctx))

	h2, err := m.AcquireSectorLocks(ctx, "s1", start, end)
	assert.NoError(t, err)
	assert.NoError(t, h2.Release(ctx))
}

func TestPartialAcquisitionRollsBack(t *testing.T) {
	ctx := context.Background()
	m := New()
	start := time.Now()

	// Hold just the second slot of a two-slot interval.
	mid := start.Add(15 * time.Minute)
	held, err := m.AcquireSectorLocks(ctx, "s1", mid, mid.Add(15*time.Minute))
	assert.NoError(t, err)
	defer held.Release(ctx)

	_, err = m.AcquireSectorLocks(ctx, "s1", start, start.Add(30*time.Minute))
	assert.Error(t, err)

	// The first slot must have been rolled back: a fresh acquire of just
	// that slot should succeed.
	h, err := m.AcquireSectorLocks(ctx, "s1", start, start.Add(15*time.Minute))
	assert.NoError(t, err)
	assert.NoError(t, h.Release(ctx))
}

func TestRestaurantAndSectorKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	m := New()
	start := time.Now()
	end := start.Add(15 * time.Minute)

	h1, err := m.AcquireSectorLocks(ctx, "s1", start, end)
	assert.NoError(t, err)
	defer h1.Release(ctx)

	h2, err := m.AcquireRestaurantLocks(ctx, "s1", start, end)
	assert.NoError(t, err)
	defer h2.Release(ctx)
}
