// Package cache implements the versioned discovery cache: a
// service-keyed snapshot store with a monotonic revision counter and a
// pure delta function, grounded on the source's
// artemis-server/src/cache/versioned.rs.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/artemis-registry/artemis/model"
)

// Cache holds one Service snapshot per lower-cased service ID, plus a
// monotonic revision R that every mutating call increments by exactly
// one.
type Cache struct {
	mu       sync.RWMutex
	services map[string]model.Service
	version  int64
}

// New returns an empty Cache with version 0.
func New() *Cache {
	return &Cache{services: make(map[string]model.Service)}
}

func normalize(id string) string { return strings.ToLower(id) }

// Update replaces the snapshot for svc.ServiceID and bumps the revision.
func (c *Cache) Update(svc model.Service) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[normalize(svc.ServiceID)] = svc
	return atomic.AddInt64(&c.version, 1)
}

// Remove deletes the snapshot for serviceID and bumps the revision,
// regardless of whether an entry was present.
func (c *Cache) Remove(serviceID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.services, normalize(serviceID))
	return atomic.AddInt64(&c.version, 1)
}

// Clear empties the cache and bumps the revision.
func (c *Cache) Clear() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = make(map[string]model.Service)
	return atomic.AddInt64(&c.version, 1)
}

// Get returns a cloned snapshot for serviceID (case-insensitive) and
// whether it was present.
func (c *Cache) Get(serviceID string) (model.Service, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	svc, ok := c.services[normalize(serviceID)]
	if !ok {
		return model.Service{}, false
	}
	return svc.Clone(), true
}

// GetAll returns cloned snapshots of every cached service.
func (c *Cache) GetAll() []model.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Service, 0, len(c.services))
	for _, svc := range c.services {
		out = append(out, svc.Clone())
	}
	return out
}

// Version returns the current revision.
func (c *Cache) Version() int64 {
	return atomic.LoadInt64(&c.version)
}

// ComputeDelta is a pure function independent of any Cache instance: it
// pairs services by ID and instances by InstanceID, producing New for
// instances absent from old, Delete for instances absent from new, and
// Change for instances present in both but differing. Services with no
// differences are omitted from the result. Ordering within a service's
// change list is unspecified.
func ComputeDelta(old, next []model.Service) map[string][]model.InstanceChange {
	oldByID := indexServices(old)
	newByID := indexServices(next)

	result := make(map[string][]model.InstanceChange)
	ids := make(map[string]struct{}, len(oldByID)+len(newByID))
	for id := range oldByID {
		ids[id] = struct{}{}
	}
	for id := range newByID {
		ids[id] = struct{}{}
	}

	for id := range ids {
		oldSvc := oldByID[id]
		newSvc := newByID[id]
		changes := diffInstances(oldSvc.Instances, newSvc.Instances)
		if len(changes) > 0 {
			result[id] = changes
		}
	}
	return result
}

func indexServices(svcs []model.Service) map[string]model.Service {
	out := make(map[string]model.Service, len(svcs))
	for _, s := range svcs {
		out[normalize(s.ServiceID)] = s
	}
	return out
}

func diffInstances(oldInst, newInst []model.Instance) []model.InstanceChange {
	oldByID := make(map[string]model.Instance, len(oldInst))
	for _, i := range oldInst {
		oldByID[i.InstanceID] = i
	}
	newByID := make(map[string]model.Instance, len(newInst))
	for _, i := range newInst {
		newByID[i.InstanceID] = i
	}

	var out []model.InstanceChange
	for id, ni := range newByID {
		if oi, ok := oldByID[id]; !ok {
			out = append(out, model.InstanceChange{Instance: ni, Type: model.ChangeNew})
		} else if !oi.Equal(ni) {
			out = append(out, model.InstanceChange{Instance: ni, Type: model.ChangeUpdate})
		}
	}
	for id, oi := range oldByID {
		if _, ok := newByID[id]; !ok {
			out = append(out, model.InstanceChange{Instance: oi, Type: model.ChangeDelete})
		}
	}
	return out
}
