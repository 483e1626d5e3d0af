// Package artemis assembles the registry store, lease manager, change
// bus, versioned cache, discovery pipeline, and replication worker into
// the public operations of spec §4.11: Register, Heartbeat, Unregister,
// GetService, GetServices, GetServicesDelta, GetInstancesByGroup, and
// their replication-sourced counterparts that skip the outbound
// replication queue to prevent loops.
package artemis

import (
	"log/slog"
	"time"

	"github.com/artemis-registry/artemis/apierr"
	"github.com/artemis-registry/artemis/cache"
	"github.com/artemis-registry/artemis/changebus"
	"github.com/artemis-registry/artemis/cluster"
	"github.com/artemis-registry/artemis/filter"
	"github.com/artemis-registry/artemis/lease"
	"github.com/artemis-registry/artemis/model"
	"github.com/artemis-registry/artemis/replication"
	"github.com/artemis-registry/artemis/store"
)

// Registry is the assembled public surface of the core.
type Registry struct {
	store      *store.Store
	leases     *lease.Manager
	changes    *changebus.Bus
	cache      *cache.Cache
	chain      *filter.Chain
	membership *cluster.Membership
	repl       *replication.Worker
	logger     *slog.Logger

	stopEviction func()

	// onChange, if set, observes every InstanceChange regardless of
	// changebus subscription state. The session manager's multi-subscriber
	// fan-out is wired in through this hook rather than through the
	// single-subscriber change bus (see DESIGN.md on why the two tables
	// stay separate).
	onChange func(model.InstanceChange)
}

// OnChange registers fn to observe every InstanceChange the registry
// produces. Intended for wiring the session manager's broadcast; only
// one observer is supported; a later call replaces the prior one.
func (r *Registry) OnChange(fn func(model.InstanceChange)) {
	r.onChange = fn
}

func (r *Registry) notify(change model.InstanceChange) {
	if r.onChange != nil {
		r.onChange(change)
	}
}

// Options configures a new Registry.
type Options struct {
	LeaseTTL       time.Duration
	SweepInterval  time.Duration
	Chain          *filter.Chain
	Membership     *cluster.Membership
	Replication    *replication.Worker
	Logger         *slog.Logger
}

// New assembles a Registry from its component parts and starts the
// lease-eviction background loop.
func New(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Chain == nil {
		opts.Chain = filter.NewChain(opts.Logger, filter.StatusFilter{})
	}
	r := &Registry{
		store:      store.New(),
		leases:     lease.NewManager(opts.LeaseTTL),
		changes:    changebus.New(),
		cache:      cache.New(),
		chain:      opts.Chain,
		membership: opts.Membership,
		repl:       opts.Replication,
		logger:     opts.Logger,
	}
	sweep := opts.SweepInterval
	if sweep <= 0 {
		sweep = 5 * time.Second
	}
	r.stopEviction = r.leases.StartEviction(sweep, r.onLeaseExpired)
	return r
}

// Close stops the background eviction loop and, if configured, the
// replication worker.
func (r *Registry) Close() {
	if r.stopEviction != nil {
		r.stopEviction()
	}
	if r.repl != nil {
		r.repl.Stop()
	}
}

func (r *Registry) onLeaseExpired(key model.InstanceKey) {
	inst, ok := r.store.Remove(key)
	if !ok {
		return
	}
	r.changes.PublishUnregister(key, inst)
	r.notify(model.InstanceChange{Instance: inst, Type: model.ChangeDelete, Timestamp: time.Now()})
	r.refreshCache(key.Service)
	r.logger.Info("lease expired, instance evicted", "service", key.Service, "instance", key.InstanceID)
}

func (r *Registry) refreshCache(serviceID string) {
	instances := r.store.GetByService(serviceID)
	if len(instances) == 0 {
		r.cache.Remove(serviceID)
		return
	}
	r.cache.Update(model.Service{ServiceID: serviceID, Instances: instances})
}

// Register stores each instance, creates its lease, publishes a New
// change, refreshes the cache, and (unless this call originated from
// replication) enqueues a replication Register event. It never fails as
// a whole; there is nothing currently validated per-instance that would
// produce a per-item failure, so the returned slice is always empty, but
// the signature is kept to match spec §4.11's contract.
func (r *Registry) Register(instances []model.Instance) []model.InstanceKey {
	return r.register(instances, true)
}

// RegisterFromReplication has identical local effects to Register but
// never enqueues further replication events, preventing loops.
func (r *Registry) RegisterFromReplication(instances []model.Instance) []model.InstanceKey {
	return r.register(instances, false)
}

func (r *Registry) register(instances []model.Instance, replicate bool) []model.InstanceKey {
	for _, inst := range instances {
		r.store.Register(inst)
		r.leases.Create(inst.InstanceKey)
		r.changes.PublishRegister(inst)
		r.notify(model.InstanceChange{Instance: inst, Type: model.ChangeNew, Timestamp: time.Now()})
		r.refreshCache(inst.Service)
		if replicate && r.repl != nil {
			r.repl.EnqueueRegister(inst)
		}
	}
	return nil
}

// Heartbeat renews each key's lease, returning the subset for which
// renewal failed because the key does not exist.
func (r *Registry) Heartbeat(keys []model.InstanceKey) []model.InstanceKey {
	return r.heartbeat(keys, true)
}

// HeartbeatFromReplication has identical local effects but never
// enqueues replication.
func (r *Registry) HeartbeatFromReplication(keys []model.InstanceKey) []model.InstanceKey {
	return r.heartbeat(keys, false)
}

func (r *Registry) heartbeat(keys []model.InstanceKey, replicate bool) []model.InstanceKey {
	var failed []model.InstanceKey
	for _, key := range keys {
		if !r.leases.Renew(key) {
			failed = append(failed, key)
			continue
		}
		if replicate && r.repl != nil {
			r.repl.EnqueueHeartbeat(key)
		}
	}
	return failed
}

// Unregister removes each key from the store; when present it also
// removes the lease, publishes a Delete change, refreshes the cache, and
// enqueues replication. Always reports success — absence of a key is not
// an error.
func (r *Registry) Unregister(keys []model.InstanceKey) {
	r.unregister(keys, true)
}

// UnregisterFromReplication has identical local effects but never
// enqueues replication.
func (r *Registry) UnregisterFromReplication(keys []model.InstanceKey) {
	r.unregister(keys, false)
}

func (r *Registry) unregister(keys []model.InstanceKey, replicate bool) {
	for _, key := range keys {
		inst, ok := r.store.Remove(key)
		if !ok {
			continue
		}
		r.leases.Remove(key)
		r.changes.PublishUnregister(key, inst)
		r.notify(model.InstanceChange{Instance: inst, Type: model.ChangeDelete, Timestamp: time.Now()})
		r.refreshCache(key.Service)
		if replicate && r.repl != nil {
			r.repl.EnqueueUnregister(key)
		}
	}
}

// GetService consults the cache, building it lazily on miss from the
// store, then runs the filter chain against a clone. Absence (no
// instances at all for the service ID) is reported as apierr.KindNotFound
// — the sole discovery case that is not best-effort.
func (r *Registry) GetService(cfg model.DiscoveryConfig) (model.Service, error) {
	svc, ok := r.cache.Get(cfg.ServiceID)
	if !ok {
		instances := r.store.GetByService(cfg.ServiceID)
		if len(instances) == 0 {
			return model.Service{}, apierr.New(apierr.KindNotFound, "GetService", nil)
		}
		svc = model.Service{ServiceID: cfg.ServiceID, Instances: instances}
		r.cache.Update(svc)
		svc = svc.Clone()
	}
	r.chain.Apply(&svc, cfg)
	return svc, nil
}

// GetServices returns the full cache snapshot.
func (r *Registry) GetServices() []model.Service {
	return r.cache.GetAll()
}

// GetServicesDelta returns the current snapshot and revision when
// sinceRevision is stale; an empty snapshot at the current revision when
// the caller is already up to date.
func (r *Registry) GetServicesDelta(sinceRevision int64) ([]model.Service, int64) {
	current := r.cache.Version()
	if sinceRevision >= current {
		return nil, current
	}
	return r.cache.GetAll(), current
}

// GetInstancesByGroup delegates to the store.
func (r *Registry) GetInstancesByGroup(service, group, region string) []model.Instance {
	return r.store.GetByGroup(service, group, region)
}

// Store exposes the underlying store for status/assembly wiring that
// needs direct counts.
func (r *Registry) Store() *store.Store { return r.store }

// Cache exposes the underlying cache for status/assembly wiring.
func (r *Registry) Cache() *cache.Cache { return r.cache }

// Leases exposes the underlying lease manager.
func (r *Registry) Leases() *lease.Manager { return r.leases }

// ChangeBus exposes the single-subscriber change bus, e.g. for a
// transport layer that wants to feed it into the session manager.
func (r *Registry) ChangeBus() *changebus.Bus { return r.changes }
