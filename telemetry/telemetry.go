// Package telemetry builds OpenTelemetry counters and span helpers for
// discovery and replication calls, grounded on the source's
// artemis-server/src/telemetry module. The registry, discovery pipeline,
// and replication worker do not call into this package; counters are
// incremented and spans opened only by code that holds a *Telemetry.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the registration, heartbeat, replication-failure, and
// discovery-request counters, plus the tracer used by the span helpers.
type Telemetry struct {
	tracer trace.Tracer

	Registrations      metric.Int64Counter
	Heartbeats         metric.Int64Counter
	ReplicationFailures metric.Int64Counter
	DiscoveryRequests  metric.Int64Counter
}

// New builds a Telemetry instance using the global OTel providers. The
// caller is responsible for configuring an SDK meter/tracer provider
// before calling this (or leaving the no-op default in place for tests).
func New(meterName string) (*Telemetry, error) {
	meter := otel.Meter(meterName)
	tracer := otel.Tracer(meterName)

	registrations, err := meter.Int64Counter("artemis.registrations",
		metric.WithDescription("Total instance registrations processed"))
	if err != nil {
		return nil, err
	}
	heartbeats, err := meter.Int64Counter("artemis.heartbeats",
		metric.WithDescription("Total heartbeats processed"))
	if err != nil {
		return nil, err
	}
	replicationFailures, err := meter.Int64Counter("artemis.replication_failures",
		metric.WithDescription("Total permanently failed replication events"))
	if err != nil {
		return nil, err
	}
	discoveryRequests, err := meter.Int64Counter("artemis.discovery_requests",
		metric.WithDescription("Total discovery reads served"))
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		tracer:              tracer,
		Registrations:       registrations,
		Heartbeats:          heartbeats,
		ReplicationFailures: replicationFailures,
		DiscoveryRequests:   discoveryRequests,
	}, nil
}

// StartDiscoverySpan opens a span around a single discovery call.
func (t *Telemetry) StartDiscoverySpan(ctx context.Context, serviceID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "discovery.get_service", trace.WithAttributes())
}

// StartReplicationSpan opens a span around a single replication flush.
func (t *Telemetry) StartReplicationSpan(ctx context.Context, peerID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "replication.flush", trace.WithAttributes())
}
