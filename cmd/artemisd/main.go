// Command artemisd runs a single registry node: it loads configuration,
// assembles the core registry, cluster membership, replication worker,
// and HTTP/WebSocket transport, then serves until an interrupt or
// termination signal arrives.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	artemis "github.com/artemis-registry/artemis"
	"github.com/artemis-registry/artemis/cluster"
	"github.com/artemis-registry/artemis/config"
	"github.com/artemis-registry/artemis/filter"
	"github.com/artemis-registry/artemis/health"
	"github.com/artemis-registry/artemis/model"
	"github.com/artemis-registry/artemis/replication"
	"github.com/artemis-registry/artemis/routing"
	"github.com/artemis-registry/artemis/session"
	"github.com/artemis-registry/artemis/status"
	"github.com/artemis-registry/artemis/telemetry"
	transporthttp "github.com/artemis-registry/artemis/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.NodeID == "" {
		cfg.NodeID = defaultNodeID()
	}

	if _, err := telemetry.New("artemis-registry"); err != nil {
		logger.Warn("telemetry initialization failed, continuing without it", "error", err)
	}

	membership := cluster.NewMembership(cfg.NodeID)
	for _, peer := range cfg.Cluster.Peers {
		membership.Register(model.ClusterNode{NodeID: peer, Address: peer, Status: model.NodeUp, LastHeartbeat: time.Now()})
	}
	stopExpiry := membership.StartExpiryLoop(func(nodeID string) {
		logger.Warn("cluster peer expired", "node_id", nodeID)
	})
	defer stopExpiry()

	shutdownProbes := make(chan struct{})
	defer close(shutdownProbes)

	var mirror replication.Mirror
	if cfg.Replication.RedisURL != "" {
		rm, err := replication.NewRedisMirror(replication.RedisOptions{URL: cfg.Replication.RedisURL}, logger)
		if err != nil {
			logger.Warn("redis replication mirror unavailable, continuing without it", "error", err)
		} else {
			mirror = rm
			defer rm.Close()
		}
	}

	replCfg := replication.Config{
		Enabled:         cfg.Replication.Enabled,
		TimeoutSecs:     cfg.Replication.TimeoutSecs,
		BatchSize:       cfg.Replication.BatchSize,
		BatchIntervalMs: cfg.Replication.BatchIntervalMs,
		MaxRetries:      cfg.Replication.MaxRetries,
	}
	replWorker := replication.NewWorker(replCfg, membership, logger, mirror)
	replWorker.Start()

	if len(cfg.Cluster.EtcdEndpoints) > 0 {
		eb, err := cluster.NewEtcdBackstop(cfg.Cluster.EtcdEndpoints, "artemis", 30, nil, logger)
		if err != nil {
			logger.Warn("etcd cluster backstop unavailable, continuing with heartbeat-only membership", "error", err)
		} else {
			defer eb.Close()

			selfNode := model.ClusterNode{
				NodeID:        cfg.NodeID,
				Address:       listenHost(cfg.ListenAddress),
				Port:          listenPort(cfg.ListenAddress),
				Status:        model.NodeUp,
				LastHeartbeat: time.Now(),
			}
			leaseCtx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := eb.Lease(leaseCtx, selfNode); err != nil {
				logger.Warn("etcd lease publish failed", "error", err)
			}
			go runEtcdPeerSync(leaseCtx, eb, membership, cfg.NodeID, logger)
		}
	}

	healthServer := cluster.NewHealthServer("artemis.registry")
	if grpcListener, err := net.Listen("tcp", cfg.GRPCHealthAddress); err != nil {
		logger.Warn("grpc health listener unavailable, continuing without it", "error", err)
	} else {
		go func() {
			if err := healthServer.Server().Serve(grpcListener); err != nil {
				logger.Warn("grpc health server stopped", "error", err)
			}
		}()
		defer healthServer.Server().GracefulStop()
	}
	go runPeerHealthProbe(shutdownProbes, membership, healthServer)

	chain := filter.NewChain(logger,
		filter.StatusFilter{},
		filter.ManagementFilter{PullOut: noopPullOutChecker{}, ZoneDown: noopZoneDownChecker{}},
		filter.CanaryFilter{Lookup: noopCanaryLookup{}},
		filter.GroupRoutingFilter{Rules: noopRouteRuleLookup{}, Engine: routing.NewEngine()},
	)

	reg := artemis.New(artemis.Options{
		LeaseTTL:      cfg.LeaseTTL(),
		SweepInterval: cfg.LeaseCleanupInterval(),
		Chain:         chain,
		Membership:    membership,
		Replication:   replWorker,
		Logger:        logger,
	})
	defer reg.Close()

	sessions := session.NewManager(logger)
	statusAggregator := status.New(cfg.NodeID, reg.Store(), reg.Leases(), reg.Cache(), membership, replWorker)

	server := transporthttp.NewServer(reg, sessions, membership, logger)
	server.Router.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statusAggregator.Status())
	})

	httpServer := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: server.Router,
	}

	go func() {
		logger.Info("artemis registry node listening", "address", cfg.ListenAddress, "node_id", cfg.NodeID)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func defaultNodeID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "artemis-node"
	}
	return host
}

// listenHost and listenPort split a "host:port" listen address for
// publication into etcd, where Address and Port are tracked separately
// on model.ClusterNode.
func listenHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}

// runEtcdPeerSync periodically merges nodes discovered via the etcd
// backstop into the local membership table, so a node that rejoins the
// cluster after a restart is picked up even before it ever heartbeats
// this process directly.
func runEtcdPeerSync(ctx context.Context, backstop *cluster.EtcdBackstop, membership *cluster.Membership, selfID string, logger *slog.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			peers, err := backstop.Peers(ctx)
			if err != nil {
				logger.Warn("etcd peer discovery failed", "error", err)
				continue
			}
			for _, peer := range peers {
				if peer.NodeID != selfID {
					membership.Register(peer)
				}
			}
		}
	}
}

// runPeerHealthProbe dials every healthy peer's TCP address on a fixed
// interval and reflects the combined result onto the gRPC health server,
// so orchestration platforms polling the standard health-checking
// protocol see this node go NOT_SERVING when it has lost its peers
// rather than only when the process itself is down.
func runPeerHealthProbe(done <-chan struct{}, membership *cluster.Membership, healthServer *cluster.HealthServer) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			peers := membership.HealthyPeers()
			if len(peers) == 0 {
				healthServer.SetUp()
				continue
			}
			results := make([]health.Result, 0, len(peers))
			for _, peer := range peers {
				results = append(results, health.NetworkCheck(nil, peer.Address, peer.Port))
			}
			if health.Combine(results...).IsUnhealthy() {
				healthServer.SetDown()
			} else {
				healthServer.SetUp()
			}
		}
	}
}

// The following no-op lookups give the filter chain concrete,
// always-permissive implementations when no management/canary/routing
// backend has been configured; an operator wires real ones by replacing
// these at assembly time.

type noopPullOutChecker struct{}

func (noopPullOutChecker) IsPulledOut(model.Instance) bool { return false }

type noopZoneDownChecker struct{}

func (noopZoneDownChecker) IsZoneDown(region, zone string) bool { return false }

type noopCanaryLookup struct{}

func (noopCanaryLookup) CanaryFor(serviceID string) (filter.CanaryConfig, bool) {
	return filter.CanaryConfig{}, false
}

type noopRouteRuleLookup struct{}

func (noopRouteRuleLookup) RouteRuleFor(serviceID string) (model.RouteRule, bool) {
	return model.RouteRule{}, false
}
