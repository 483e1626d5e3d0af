package cluster

import (
	"context"
	"testing"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHealthServerStartsServing(t *testing.T) {
	h := NewHealthServer("artemis.registry")
	resp, err := h.healthSrv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "artemis.registry"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestSetDownThenSetUpTogglesStatus(t *testing.T) {
	h := NewHealthServer("artemis.registry")

	h.SetDown()
	resp, err := h.healthSrv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "artemis.registry"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	h.SetUp()
	resp, err = h.healthSrv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "artemis.registry"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestServerReturnsUnderlyingGRPCServer(t *testing.T) {
	h := NewHealthServer("artemis.registry")
	assert.NotNil(t, h.Server())
}
