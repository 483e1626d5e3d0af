// Package status implements the read-only status aggregator, grounded
// on the source's artemis-server/src/status/service_impl.rs: a
// projection over the registry store, cache, cluster membership, and
// replication worker with no mutation path of its own. New also accepts
// the lease manager, but Report carries no lease figures.
package status

import (
	"github.com/artemis-registry/artemis/cache"
	"github.com/artemis-registry/artemis/cluster"
	"github.com/artemis-registry/artemis/lease"
	"github.com/artemis-registry/artemis/model"
	"github.com/artemis-registry/artemis/store"
)

// RetryQueueDepther is satisfied by *replication.Worker; kept as a
// narrow interface so this package does not import replication.
type RetryQueueDepther interface {
	RetryQueueDepth() int
}

// Report is the read-only snapshot returned by Status.
type Report struct {
	NodeID              string              `json:"nodeId"`
	RegisteredInstances int                 `json:"registeredInstances"`
	CacheRevision       int64               `json:"cacheRevision"`
	ClusterNodes        []model.ClusterNode `json:"clusterNodes"`
	ReplicationRetryDepth int               `json:"replicationRetryDepth"`
}

// Aggregator produces Reports on demand.
type Aggregator struct {
	nodeID       string
	store        *store.Store
	leaseManager *lease.Manager
	cache        *cache.Cache
	membership   *cluster.Membership
	retryDepth   RetryQueueDepther
}

// New returns an Aggregator wired to the core components. retryDepth may
// be nil if replication is disabled.
func New(nodeID string, st *store.Store, lm *lease.Manager, c *cache.Cache, mem *cluster.Membership, retryDepth RetryQueueDepther) *Aggregator {
	return &Aggregator{nodeID: nodeID, store: st, leaseManager: lm, cache: c, membership: mem, retryDepth: retryDepth}
}

// Status returns the current Report.
func (a *Aggregator) Status() Report {
	depth := 0
	if a.retryDepth != nil {
		depth = a.retryDepth.RetryQueueDepth()
	}
	return Report{
		NodeID:                a.nodeID,
		RegisteredInstances:   a.store.Count(),
		CacheRevision:         a.cache.Version(),
		ClusterNodes:          a.membership.HealthyNodes(),
		ReplicationRetryDepth: depth,
	}
}
