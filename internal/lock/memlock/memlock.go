// Package memlock is an in-process Manager backed by a mutex-guarded map
// of token-guarded, TTL-expiring entries. It is used by service-layer
// tests and by single-process deployments where a Redis instance would
// be overkill.
package memlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tablekeep/reservation-engine/internal/internaltypes"
	"github.com/tablekeep/reservation-engine/internal/lock"
)

type entry struct {
	token   string
	expires time.Time
}

// Manager implements lock.Manager entirely in memory.
type Manager struct {
	mu   sync.Mutex
	held map[string]entry
	ttl  time.Duration
}

func New() *Manager {
	return &Manager{held: make(map[string]entry), ttl: lock.DefaultTTL}
}

func NewWithTTL(ttl time.Duration) *Manager {
	return &Manager{held: make(map[string]entry), ttl: ttl}
}

func (m *Manager) AcquireSectorLocks(ctx context.Context, sectorID string, start, end time.Time) (lock.Handle, error) {
	keys := make([]string, 0)
	for _, s := range lock.SlotInstants(start, end) {
		keys = append(keys, lock.SectorKey(sectorID, s))
	}
	return m.acquire(keys)
}

func (m *Manager) AcquireRestaurantLocks(ctx context.Context, restaurantID string, start, end time.Time) (lock.Handle, error) {
	keys := make([]string, 0)
	for _, s := range lock.SlotInstants(start, end) {
		keys = append(keys, lock.RestaurantKey(restaurantID, s))
	}
	return m.acquire(keys)
}

func (m *Manager) acquire(keys []string) (lock.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	token := uuid.NewString()
	acquired := make([]string, 0, len(keys))

	for _, k := range keys {
		if e, ok := m.held[k]; ok && e.expires.After(now) {
			m.rollback(acquired, token)
			return nil, internaltypes.NoCapacity("lock busy")
		}
		m.held[k] = entry{token: token, expires: now.Add(m.ttl)}
		acquired = append(acquired, k)
	}

	return &handle{m: m, keys: acquired, token: token}, nil
}

// rollback deletes only the keys this attempt itself set, and only if
// they still carry our token (conditional delete by value equality).
func (m *Manager) rollback(keys []string, token string) {
	for _, k := range keys {
		if e, ok := m.held[k]; ok && e.token == token {
			delete(m.held, k)
		}
	}
}

func (m *Manager) release(keys []string, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollback(keys, token)
}

type handle struct {
	m     *Manager
	keys  []string
	token string
	once  sync.Once
}

func (h *handle) Release(ctx context.Context) error {
	h.once.Do(func() { h.m.release(h.keys, h.token) })
	return nil
}
