// Package cluster implements the membership tracker, grounded on
// other_examples' internal cluster registry (heartbeat-driven health,
// reconciliation against a backing store) adapted to the
// heartbeat-health contract of spec §4.8.
package cluster

import (
	"sync"
	"time"

	"github.com/artemis-registry/artemis/model"
)

// ExpiryInterval is the fixed staleness threshold spec §4.8 mandates for
// CheckExpired: a node whose last heartbeat is older than this is
// reported as expired.
const ExpiryInterval = 30 * time.Second

// Membership tracks peer nodes with heartbeat-based health. The
// replication worker's recipient set is derived solely from
// HealthyPeers.
type Membership struct {
	mu      sync.RWMutex
	nodes   map[string]model.ClusterNode
	selfID  string
	now     func() time.Time
}

// NewMembership returns an empty Membership table. selfID identifies the
// local node so HealthyPeers can exclude it from HealthyNodes.
func NewMembership(selfID string) *Membership {
	return &Membership{nodes: make(map[string]model.ClusterNode), selfID: selfID, now: time.Now}
}

// Register inserts node, replacing any prior entry with the same
// NodeID.
func (m *Membership) Register(node model.ClusterNode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[node.NodeID] = node
}

// Heartbeat updates the node's last-heartbeat time to now and
// transitions its status to Up if it was Down or Unknown. Reports
// whether the node existed.
func (m *Membership) Heartbeat(nodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.nodes[nodeID]
	if !ok {
		return false
	}
	node.LastHeartbeat = m.now()
	node.Status = model.NodeUp
	m.nodes[nodeID] = node
	return true
}

// MarkDown sets node's status to Down without removing it.
func (m *Membership) MarkDown(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.nodes[nodeID]
	if !ok {
		return
	}
	node.Status = model.NodeDown
	m.nodes[nodeID] = node
}

// HealthyNodes returns every node, including self, whose status is Up.
func (m *Membership) HealthyNodes() []model.ClusterNode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ClusterNode
	for _, n := range m.nodes {
		if n.Status == model.NodeUp {
			out = append(out, n)
		}
	}
	return out
}

// HealthyPeers returns HealthyNodes minus the local node.
func (m *Membership) HealthyPeers() []model.ClusterNode {
	all := m.HealthyNodes()
	out := all[:0:0]
	for _, n := range all {
		if n.NodeID != m.selfID {
			out = append(out, n)
		}
	}
	return out
}

// CheckExpired returns the IDs of every node whose last heartbeat is
// older than ExpiryInterval, marking them Down as a side effect so
// subsequent HealthyNodes calls exclude them.
func (m *Membership) CheckExpired() []string {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []string
	for id, n := range m.nodes {
		if now.Sub(n.LastHeartbeat) > ExpiryInterval {
			n.Status = model.NodeDown
			m.nodes[id] = n
			expired = append(expired, id)
		}
	}
	return expired
}

// Get returns the node registered under nodeID, if any.
func (m *Membership) Get(nodeID string) (model.ClusterNode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[nodeID]
	return n, ok
}

// StartExpiryLoop runs CheckExpired on a fixed 10s tick for the process
// lifetime; it returns a stop function.
func (m *Membership) StartExpiryLoop(onExpire func(nodeID string)) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				for _, id := range m.CheckExpired() {
					if onExpire != nil {
						onExpire(id)
					}
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}
