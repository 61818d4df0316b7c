// Package redislock implements lock.Manager against Redis, following the
// SET-NX/TTL + Lua-scripted conditional delete pattern the
// iliyamo-cinema-seat-reservation token-bucket middleware uses for
// atomic read-modify-write against Redis
// (internal/middleware/ratelimit.go). Acquire is a per-key
// "SET key token NX PX ttl"; release/rollback is an atomic
// "GET, compare, DEL" Lua script so a lock is only ever removed by
// whoever's token is currently stored, guarding against releasing a
// lock some other holder re-acquired after our TTL expired.
package redislock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tablekeep/reservation-engine/internal/internaltypes"
	"github.com/tablekeep/reservation-engine/internal/lock"
)

// compareAndDelete deletes KEYS[1] iff its current value equals ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
else
	return 0
end
`)

// Manager implements lock.Manager against a *redis.Client.
type Manager struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client) *Manager {
	return &Manager{rdb: rdb, ttl: lock.DefaultTTL}
}

func NewWithTTL(rdb *redis.Client, ttl time.Duration) *Manager {
	return &Manager{rdb: rdb, ttl: ttl}
}

func (m *Manager) AcquireSectorLocks(ctx context.Context, sectorID string, start, end time.Time) (lock.Handle, error) {
	keys := make([]string, 0)
	for _, s := range lock.SlotInstants(start, end) {
		keys = append(keys, lock.SectorKey(sectorID, s))
	}
	return m.acquire(ctx, keys)
}

func (m *Manager) AcquireRestaurantLocks(ctx context.Context, restaurantID string, start, end time.Time) (lock.Handle, error) {
	keys := make([]string, 0)
	for _, s := range lock.SlotInstants(start, end) {
		keys = append(keys, lock.RestaurantKey(restaurantID, s))
	}
	return m.acquire(ctx, keys)
}

// acquire walks keys in their already-sorted order (lock.SlotInstants
// sorts them), setting each with NX+TTL. Any failure rolls back every
// key acquired so far before returning: NoCapacity when a key is already
// held, Internal when Redis itself returns an error.
func (m *Manager) acquire(ctx context.Context, keys []string) (lock.Handle, error) {
	token := uuid.NewString()
	acquired := make([]string, 0, len(keys))

	for _, k := range keys {
		ok, err := m.rdb.SetNX(ctx, k, token, m.ttl).Result()
		if err != nil {
			m.rollback(ctx, acquired, token)
			return nil, internaltypes.Internal("lock acquire failed", err)
		}
		if !ok {
			m.rollback(ctx, acquired, token)
			return nil, internaltypes.NoCapacity("lock busy")
		}
		acquired = append(acquired, k)
	}

	return &handle{m: m, keys: acquired, token: token}, nil
}

func (m *Manager) rollback(ctx context.Context, keys []string, token string) {
	for _, k := range keys {
		_ = compareAndDelete.Run(ctx, m.rdb, []string{k}, token).Err()
	}
}

type handle struct {
	m       *Manager
	keys    []string
	token   string
	release bool
}

func (h *handle) Release(ctx context.Context) error {
	if h.release {
		return nil
	}
	h.release = true
	var firstErr error
	for _, k := range h.keys {
		if err := compareAndDelete.Run(ctx, h.m.rdb, []string{k}, h.token).Err(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return internaltypes.Internal("lock release failed", firstErr)
	}
	return nil
}
