// Package lease implements the per-instance soft-TTL manager: leases are
// created alongside a registration, renewed on heartbeat, and swept by a
// background eviction loop once they go stale.
package lease

import (
	"sync"
	"time"

	"github.com/artemis-registry/artemis/model"
)

// Manager tracks one Lease per live instance key. All operations are
// thread-safe; a single RWMutex guards the map since lease operations are
// cheap and the eviction sweep needs a consistent view of the whole
// table.
type Manager struct {
	mu     sync.RWMutex
	leases map[model.InstanceKey]model.Lease
	ttl    time.Duration
	now    func() time.Time
}

// NewManager returns a Manager that gives every lease it creates the TTL
// defaultTTL.
func NewManager(defaultTTL time.Duration) *Manager {
	return &Manager{
		leases: make(map[model.InstanceKey]model.Lease),
		ttl:    defaultTTL,
		now:    time.Now,
	}
}

// Create installs a fresh lease for key with creation and renewal both
// set to now.
func (m *Manager) Create(key model.InstanceKey) {
	now := m.now()
	m.mu.Lock()
	m.leases[key] = model.Lease{Key: key, CreatedAt: now, RenewedAt: now, TTL: m.ttl}
	m.mu.Unlock()
}

// Renew updates the lease's renewal time to now and reports whether the
// lease existed. A renewed lease is valid even if it had already expired
// (renewal revives); a lease removed via Remove cannot be renewed and
// Renew returns false.
func (m *Manager) Renew(key model.InstanceKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[key]
	if !ok {
		return false
	}
	l.RenewedAt = m.now()
	m.leases[key] = l
	return true
}

// IsValid reports whether key has a non-expired lease.
func (m *Manager) IsValid(key model.InstanceKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leases[key]
	if !ok {
		return false
	}
	return !l.Expired(m.now())
}

// Remove deletes the lease for key, returning the prior value and
// whether it existed. Once removed, key never appears in a subsequent
// ExpiredKeys result.
func (m *Manager) Remove(key model.InstanceKey) (model.Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[key]
	if ok {
		delete(m.leases, key)
	}
	return l, ok
}

// ExpiredKeys returns every key whose lease has gone stale as of now.
func (m *Manager) ExpiredKeys() []model.InstanceKey {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.InstanceKey
	for k, l := range m.leases {
		if l.Expired(now) {
			out = append(out, k)
		}
	}
	return out
}

// StartEviction launches a background goroutine that, every
// sweepInterval, removes every expired lease and invokes onEvict exactly
// once per evicted key. It returns a stop function; calling it halts the
// sweep and is safe to call more than once.
func (m *Manager) StartEviction(sweepInterval time.Duration, onEvict func(model.InstanceKey)) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				for _, key := range m.ExpiredKeys() {
					if _, ok := m.Remove(key); ok {
						onEvict(key)
					}
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}
