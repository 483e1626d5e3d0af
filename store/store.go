// Package store implements the in-memory registry: the authoritative,
// sharded index of every live instance, keyed by its InstanceKey. The
// registry exclusively owns all live instances; every other component
// reaches them only through this package's accessors.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/artemis-registry/artemis/model"
)

const shardCount = 32

type shard struct {
	mu        sync.RWMutex
	instances map[model.InstanceKey]model.Instance
}

// Store is the sharded, concurrency-safe registry of live instances.
// Reads and writes to distinct shards never contend; a shard is selected
// by hashing the instance key's service ID, so concurrent registrations
// across services fully parallelize.
type Store struct {
	shards [shardCount]*shard
}

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{instances: make(map[model.InstanceKey]model.Instance)}
	}
	return s
}

func (s *Store) shardFor(key model.InstanceKey) *shard {
	h := fnv32(key.ServiceKey())
	return s.shards[h%shardCount]
}

func fnv32(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Register stores inst under its key, fully replacing any prior value
// for that key.
func (s *Store) Register(inst model.Instance) {
	sh := s.shardFor(inst.InstanceKey)
	sh.mu.Lock()
	sh.instances[inst.InstanceKey] = inst
	sh.mu.Unlock()
}

// Remove deletes the instance at key, returning the prior value and
// whether one was present.
func (s *Store) Remove(key model.InstanceKey) (model.Instance, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	inst, ok := sh.instances[key]
	if ok {
		delete(sh.instances, key)
	}
	return inst, ok
}

// GetByService returns every instance whose service ID matches (case
// insensitive), in no particular order.
func (s *Store) GetByService(serviceID string) []model.Instance {
	target := strings.ToLower(serviceID)
	sh := s.shards[fnv32(target)%shardCount]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	var out []model.Instance
	for _, inst := range sh.instances {
		if strings.ToLower(inst.Service) == target {
			out = append(out, inst)
		}
	}
	return out
}

// GetByGroup returns every instance for a service restricted to a group
// and, optionally, a region.
func (s *Store) GetByGroup(serviceID, group, region string) []model.Instance {
	var out []model.Instance
	for _, inst := range s.GetByService(serviceID) {
		if inst.Group != group {
			continue
		}
		if region != "" && inst.Region != region {
			continue
		}
		out = append(out, inst)
	}
	return out
}

// GetAll returns every instance across all services.
func (s *Store) GetAll() []model.Instance {
	var out []model.Instance
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, inst := range sh.instances {
			out = append(out, inst)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Count returns the total number of live instances.
func (s *Store) Count() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.instances)
		sh.mu.RUnlock()
	}
	return n
}

// GetAllServices groups every live instance into Service snapshots, one
// per distinct lower-cased service ID, sorted by ID for stable output.
func (s *Store) GetAllServices() []model.Service {
	byID := make(map[string]*model.Service)
	for _, inst := range s.GetAll() {
		key := strings.ToLower(inst.Service)
		svc, ok := byID[key]
		if !ok {
			svc = &model.Service{ServiceID: inst.Service}
			byID[key] = svc
		}
		svc.Instances = append(svc.Instances, inst)
	}
	out := make([]model.Service, 0, len(byID))
	for _, svc := range byID {
		out = append(out, *svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
	return out
}
