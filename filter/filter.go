// Package filter implements the discovery filter chain, grounded on the
// source's artemis-server/src/discovery/filter.rs. StatusFilter mirrors
// the original's only implemented filter; ManagementFilter, CanaryFilter,
// and GroupRoutingFilter have no Rust precedent and are authored directly
// from spec §4.5.
package filter

import (
	"log/slog"

	"github.com/artemis-registry/artemis/model"
	"github.com/artemis-registry/artemis/routing"
)

// Filter mutates a Service snapshot in place, typically by retaining a
// subset of its instances. A filter error is logged by the chain and
// does not halt discovery; the chain continues with whatever the filter
// managed to produce.
type Filter interface {
	Apply(svc *model.Service, cfg model.DiscoveryConfig) error
	Name() string
}

// Chain applies an ordered sequence of filters to a cloned Service
// snapshot.
type Chain struct {
	filters []Filter
	logger  *slog.Logger
}

// NewChain returns a Chain that applies filters in the given order.
func NewChain(logger *slog.Logger, filters ...Filter) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{filters: filters, logger: logger}
}

// Apply runs every filter in order against svc, which the caller must
// have already cloned: filters are free to mutate it.
func (c *Chain) Apply(svc *model.Service, cfg model.DiscoveryConfig) {
	for _, f := range c.filters {
		if err := f.Apply(svc, cfg); err != nil {
			c.logger.Warn("discovery filter failed, continuing with partial result",
				"filter", f.Name(), "service", svc.ServiceID, "error", err)
		}
	}
}

// StatusFilter retains only instances whose status is Up.
type StatusFilter struct{}

func (StatusFilter) Name() string { return "status" }

func (StatusFilter) Apply(svc *model.Service, _ model.DiscoveryConfig) error {
	out := svc.Instances[:0:0]
	for _, inst := range svc.Instances {
		if inst.Status == model.StatusUp {
			out = append(out, inst)
		}
	}
	svc.Instances = out
	return nil
}

// PullOutChecker reports whether a specific instance (or its host
// server) has been administratively pulled out of rotation. Its CRUD and
// persistence live outside the core (spec §1); the filter only consults
// it.
type PullOutChecker interface {
	IsPulledOut(inst model.Instance) bool
}

// ZoneDownChecker reports whether a zone has been administratively
// marked down.
type ZoneDownChecker interface {
	IsZoneDown(region, zone string) bool
}

// ManagementFilter drops instances that are either individually pulled
// out or whose zone is administratively down.
type ManagementFilter struct {
	PullOut  PullOutChecker
	ZoneDown ZoneDownChecker
}

func (ManagementFilter) Name() string { return "management" }

func (m ManagementFilter) Apply(svc *model.Service, _ model.DiscoveryConfig) error {
	out := svc.Instances[:0:0]
	for _, inst := range svc.Instances {
		if m.PullOut != nil && m.PullOut.IsPulledOut(inst) {
			continue
		}
		if m.ZoneDown != nil && m.ZoneDown.IsZoneDown(inst.Region, inst.Zone) {
			continue
		}
		out = append(out, inst)
	}
	svc.Instances = out
	return nil
}

// CanaryConfig is the active canary configuration for a service, if any.
type CanaryConfig struct {
	Active    bool
	Whitelist map[string]bool
}

// CanaryLookup resolves the active CanaryConfig for a service. Its CRUD
// and persistence live outside the core.
type CanaryLookup interface {
	CanaryFor(serviceID string) (CanaryConfig, bool)
}

// CanaryFilter retains canary-tagged instances for whitelisted client
// IPs and drops them for everyone else. Absent configuration is the
// identity transform.
type CanaryFilter struct {
	Lookup CanaryLookup
}

func (CanaryFilter) Name() string { return "canary" }

func (c CanaryFilter) Apply(svc *model.Service, cfg model.DiscoveryConfig) error {
	if c.Lookup == nil {
		return nil
	}
	canary, ok := c.Lookup.CanaryFor(svc.ServiceID)
	if !ok || !canary.Active {
		return nil
	}
	allowed := canary.Whitelist[cfg.ClientIP]
	out := svc.Instances[:0:0]
	for _, inst := range svc.Instances {
		isCanary := inst.Metadata["canary"] == "true"
		if allowed {
			if isCanary {
				out = append(out, inst)
			}
		} else if !isCanary {
			out = append(out, inst)
		}
	}
	svc.Instances = out
	return nil
}

// RouteRuleLookup resolves the active RouteRule for a service, if any.
type RouteRuleLookup interface {
	RouteRuleFor(serviceID string) (model.RouteRule, bool)
}

// GroupRoutingFilter delegates to the routing engine when the service
// has an active RouteRule.
type GroupRoutingFilter struct {
	Rules  RouteRuleLookup
	Engine *routing.Engine
}

func (GroupRoutingFilter) Name() string { return "group_routing" }

func (g GroupRoutingFilter) Apply(svc *model.Service, cfg model.DiscoveryConfig) error {
	if g.Rules == nil || g.Engine == nil {
		return nil
	}
	rule, ok := g.Rules.RouteRuleFor(svc.ServiceID)
	if !ok {
		return nil
	}
	ctx := model.RouteContext{Region: cfg.RegionID, Zone: cfg.ZoneID}
	svc.Instances = g.Engine.Apply(svc.Instances, rule, ctx)
	return nil
}
