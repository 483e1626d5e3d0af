// Package routing implements the routing engine's group-selection
// strategies, grounded on the source's
// artemis-server/src/routing/strategy.rs.
package routing

import (
	"sync"
	"sync/atomic"

	"github.com/artemis-registry/artemis/model"
)

// Strategy selects a single target group ID from a rule's ordered group
// list given a request context.
type Strategy interface {
	Select(groups []model.RouteGroup, ctx model.RouteContext) (groupID string, ok bool)
}

// WeightedRoundRobin selects a group proportionally to its configured
// weight. Each distinct rule gets its own atomic position counter, keyed
// by the caller-supplied ruleID, so concurrent rules do not interfere
// with one another's distribution.
type WeightedRoundRobin struct {
	mu       sync.Mutex
	counters map[string]*uint64
}

// NewWeightedRoundRobin returns a strategy with no per-rule counters yet
// allocated; they are created lazily on first use of a given ruleID.
func NewWeightedRoundRobin() *WeightedRoundRobin {
	return &WeightedRoundRobin{counters: make(map[string]*uint64)}
}

func (w *WeightedRoundRobin) counterFor(ruleID string) *uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.counters[ruleID]
	if !ok {
		c = new(uint64)
		w.counters[ruleID] = c
	}
	return c
}

// SelectForRule is the entry point the routing engine uses; it threads
// the rule's own ID through so the per-rule counter is correctly scoped.
func (w *WeightedRoundRobin) SelectForRule(ruleID string, groups []model.RouteGroup) (string, bool) {
	totalWeight := 0
	for _, g := range groups {
		totalWeight += g.Weight
	}
	if totalWeight <= 0 {
		return "", false
	}
	counter := w.counterFor(ruleID)
	position := int(atomic.AddUint64(counter, 1)-1) % totalWeight

	cumulative := 0
	for _, g := range groups {
		cumulative += g.Weight
		if position < cumulative {
			return g.GroupID, true
		}
	}
	// Unreachable given totalWeight > 0 and position < totalWeight, but
	// fall back to the last group rather than panic.
	return groups[len(groups)-1].GroupID, true
}

// Select implements Strategy using an unscoped, ad-hoc rule ID; engine.go
// calls SelectForRule directly so per-rule counters stay correctly keyed.
func (w *WeightedRoundRobin) Select(groups []model.RouteGroup, _ model.RouteContext) (string, bool) {
	return w.SelectForRule("", groups)
}

// CloseByVisit scans groups in order, returning the first whose region
// matches the client's region; failing that, the first whose zone
// matches; failing that, the first group.
type CloseByVisit struct{}

// NewCloseByVisit returns a stateless CloseByVisit strategy.
func NewCloseByVisit() *CloseByVisit { return &CloseByVisit{} }

func (c *CloseByVisit) Select(groups []model.RouteGroup, ctx model.RouteContext) (string, bool) {
	if len(groups) == 0 {
		return "", false
	}
	if ctx.Region != "" {
		for _, g := range groups {
			if g.Region == ctx.Region {
				return g.GroupID, true
			}
		}
	}
	if ctx.Zone != "" {
		for _, g := range groups {
			if g.Zone == ctx.Zone {
				return g.GroupID, true
			}
		}
	}
	return groups[0].GroupID, true
}
