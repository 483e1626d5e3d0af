package cluster

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes the standard gRPC health-checking protocol on the
// node's gRPC listener, backed by grpc-go's own pre-generated protobuf
// stubs (no hand-authored .proto/codegen needed). Peers and orchestration
// platforms poll this instead of parsing the JSON status endpoint. Its
// serving status is whatever SetUp/SetDown last set; it is not tied to
// the Membership table.
type HealthServer struct {
	grpcServer *grpc.Server
	healthSrv  *health.Server
	serviceName string
}

// NewHealthServer registers a health.Server for serviceName (empty
// string means the overall-server health, per the health-checking
// protocol's convention) against a fresh grpc.Server and starts it
// SERVING.
func NewHealthServer(serviceName string) *HealthServer {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{grpcServer: gs, healthSrv: hs, serviceName: serviceName}
}

// SetUp marks the node healthy for serving.
func (h *HealthServer) SetUp() {
	h.healthSrv.SetServingStatus(h.serviceName, healthpb.HealthCheckResponse_SERVING)
}

// SetDown marks the node unhealthy, e.g. while CheckExpired's peer list
// goes stale or during graceful shutdown.
func (h *HealthServer) SetDown() {
	h.healthSrv.SetServingStatus(h.serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Server returns the underlying grpc.Server so the caller can Serve it
// on a net.Listener alongside the HTTP transport.
func (h *HealthServer) Server() *grpc.Server {
	return h.grpcServer
}
