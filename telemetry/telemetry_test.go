package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsAllCounters(t *testing.T) {
	tel, err := New("artemis-test")
	require.NoError(t, err)
	assert.NotNil(t, tel.Registrations)
	assert.NotNil(t, tel.Heartbeats)
	assert.NotNil(t, tel.ReplicationFailures)
	assert.NotNil(t, tel.DiscoveryRequests)
}

func TestStartDiscoverySpanReturnsUsableSpan(t *testing.T) {
	tel, err := New("artemis-test")
	require.NoError(t, err)

	ctx, span := tel.StartDiscoverySpan(context.Background(), "orders")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}

func TestStartReplicationSpanReturnsUsableSpan(t *testing.T) {
	tel, err := New("artemis-test")
	require.NoError(t, err)

	ctx, span := tel.StartReplicationSpan(context.Background(), "peer-1")
	require.NotNil(t, ctx)
	require.NotNil(t, span)
	span.End()
}

func TestCountersAcceptIncrements(t *testing.T) {
	tel, err := New("artemis-test")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		tel.Registrations.Add(context.Background(), 1)
		tel.Heartbeats.Add(context.Background(), 1)
		tel.ReplicationFailures.Add(context.Background(), 1)
		tel.DiscoveryRequests.Add(context.Background(), 1)
	})
}
