// Package model defines the data types shared across the registry core:
// instance identity and lifecycle, leases, service snapshots, cluster
// membership, routing rules, and the change events published to push
// subscribers. Every other package (store, lease, cache, filter, routing,
// replication, session) operates on these types without importing one
// another's internals.
package model

import (
	"strconv"
	"time"
)

// InstanceStatus is the lifecycle state of a registered Instance.
type InstanceStatus string

const (
	StatusUp            InstanceStatus = "UP"
	StatusDown          InstanceStatus = "DOWN"
	StatusStarting      InstanceStatus = "STARTING"
	StatusUnhealthy     InstanceStatus = "UNHEALTHY"
	StatusOutOfService  InstanceStatus = "OUT_OF_SERVICE"
)

// InstanceKey is the canonical identity of a registered instance. Keys are
// compared field-by-field with one exception: Service is normalized to
// lower case at the cache and discovery boundaries (§3 of the data model),
// so "FooBar" and "foobar" key the same cached snapshot. The key itself
// stores whatever case the caller supplied.
type InstanceKey struct {
	Region     string `json:"regionId"`
	Zone       string `json:"zoneId"`
	Service    string `json:"serviceId"`
	Group      string `json:"groupId,omitempty"`
	InstanceID string `json:"instanceId"`
}

// ServiceKey returns the lower-cased service ID used for cache and
// discovery lookups.
func (k InstanceKey) ServiceKey() string { return normalizeService(k.Service) }

func normalizeService(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Instance is a registered network endpoint. It is created by Register,
// mutated only by a subsequent full-replacement Register on the same key,
// and destroyed by Unregister or lease expiry.
type Instance struct {
	InstanceKey
	IP              string            `json:"ip"`
	Port            int               `json:"port"`
	URL             string            `json:"url"`
	Protocol        string            `json:"protocol,omitempty"`
	HealthCheckURL  string            `json:"healthCheckUrl,omitempty"`
	Status          InstanceStatus    `json:"status"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy, used whenever a snapshot crosses a boundary
// that must not let the caller mutate registry-owned state (filter chain
// input, cache reads).
func (i Instance) Clone() Instance {
	c := i
	if i.Metadata != nil {
		c.Metadata = make(map[string]string, len(i.Metadata))
		for k, v := range i.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// Equal reports whether two instances carry the same observable value,
// used by cache delta computation to distinguish Change from no-op.
func (i Instance) Equal(o Instance) bool {
	if i.InstanceKey != o.InstanceKey || i.IP != o.IP || i.Port != o.Port ||
		i.URL != o.URL || i.Protocol != o.Protocol ||
		i.HealthCheckURL != o.HealthCheckURL || i.Status != o.Status {
		return false
	}
	if len(i.Metadata) != len(o.Metadata) {
		return false
	}
	for k, v := range i.Metadata {
		if ov, ok := o.Metadata[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Lease is the soft-TTL holder for a single live instance. Exactly one
// lease exists per live instance.
type Lease struct {
	Key        InstanceKey
	CreatedAt  time.Time
	RenewedAt  time.Time
	TTL        time.Duration
}

// Expired reports whether the lease has gone stale as of now.
func (l Lease) Expired(now time.Time) bool {
	return now.Sub(l.RenewedAt) > l.TTL
}

// Service is a derived, cached projection of every instance sharing a
// service ID. It is rebuilt atomically whenever the underlying instance
// set changes for that service.
type Service struct {
	ServiceID string            `json:"serviceId"`
	Instances []Instance        `json:"instances"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Clone deep-copies the service so callers (the filter chain, in
// particular) can mutate the returned value freely.
func (s Service) Clone() Service {
	c := Service{ServiceID: s.ServiceID}
	if s.Instances != nil {
		c.Instances = make([]Instance, len(s.Instances))
		for i, inst := range s.Instances {
			c.Instances[i] = inst.Clone()
		}
	}
	if s.Metadata != nil {
		c.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// ChangeType classifies an InstanceChange event.
type ChangeType string

const (
	ChangeNew    ChangeType = "NEW"
	ChangeUpdate ChangeType = "CHANGE"
	ChangeDelete ChangeType = "DELETE"
)

// InstanceChange is emitted on every mutation for push delivery via the
// change bus and, fanned out further, the session manager.
type InstanceChange struct {
	Instance  Instance   `json:"instance"`
	Type      ChangeType `json:"changeType"`
	Timestamp time.Time  `json:"timestamp"`
}

// NodeStatus is the health state of a peer in the cluster membership
// table.
type NodeStatus string

const (
	NodeUp      NodeStatus = "UP"
	NodeDown    NodeStatus = "DOWN"
	NodeUnknown NodeStatus = "UNKNOWN"
)

// ClusterNode is one entry in the membership table. Inserting a node with
// a nodeID already present replaces the prior entry.
type ClusterNode struct {
	NodeID        string     `json:"nodeId"`
	Address       string     `json:"address"`
	Port          int        `json:"port"`
	Status        NodeStatus `json:"status"`
	LastHeartbeat time.Time  `json:"lastHeartbeat"`
}

// BaseURL renders the node's HTTP address in the `http://host:port`
// format the spec requires for peer replication requests.
func (n ClusterNode) BaseURL() string {
	return "http://" + n.Address + ":" + strconv.Itoa(n.Port)
}

// RouteStrategy selects which routing algorithm a RouteRule uses.
type RouteStrategy string

const (
	StrategyWeightedRoundRobin RouteStrategy = "WEIGHTED_ROUND_ROBIN"
	StrategyCloseByVisit       RouteStrategy = "CLOSE_BY_VISIT"
)

// RouteGroup is a weighted, optionally geo-tagged subset of a service.
// Per the core's resolution of the source's group/route-rule-group
// mismatch (see DESIGN.md), Region and Zone are always present on this
// type; an empty string means "unconstrained" rather than "absent".
type RouteGroup struct {
	GroupID string `json:"groupId"`
	Weight  int    `json:"weight"`
	Region  string `json:"region,omitempty"`
	Zone    string `json:"zone,omitempty"`
}

// RouteRule binds a service to a routing strategy over an ordered list of
// groups.
type RouteRule struct {
	RuleID   string        `json:"ruleId"`
	Service  string        `json:"serviceId"`
	Strategy RouteStrategy `json:"strategy"`
	Groups   []RouteGroup  `json:"groups"`
}

// RouteContext carries the requesting client's location for
// locality-aware strategies.
type RouteContext struct {
	Region string
	Zone   string
}

// DiscoveryConfig parameterizes a discovery read: which service, and the
// caller's own location for the filter chain and routing engine.
type DiscoveryConfig struct {
	ServiceID string
	RegionID  string
	ZoneID    string
	ClientIP  string
}
