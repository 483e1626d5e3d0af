// Package loadbalancer implements single-instance selection over a
// discovery result, grounded on the source's
// artemis-server/src/discovery/load_balancer.rs.
package loadbalancer

import (
	"math/rand"
	"sync/atomic"

	"github.com/artemis-registry/artemis/model"
)

// Strategy selects among the balancer's supported algorithms.
type Strategy string

const (
	Random    Strategy = "RANDOM"
	RoundRobin Strategy = "ROUND_ROBIN"
)

// Balancer selects a single instance from a candidate list. RoundRobin
// state is a shared atomic counter across all calls to the same
// Balancer, matching the source's single counter per load balancer
// instance.
type Balancer struct {
	counter uint64
}

// New returns a Balancer with its round-robin counter at zero.
func New() *Balancer {
	return &Balancer{}
}

// Select picks one instance from instances per strategy. An empty list
// always yields ok=false; a non-empty list always yields ok=true.
func (b *Balancer) Select(instances []model.Instance, strategy Strategy) (model.Instance, bool) {
	if len(instances) == 0 {
		return model.Instance{}, false
	}
	switch strategy {
	case RoundRobin:
		idx := atomic.AddUint64(&b.counter, 1) - 1
		return instances[int(idx%uint64(len(instances)))], true
	default:
		return instances[rand.Intn(len(instances))], true
	}
}
