package cluster

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/artemis-registry/artemis/model"
)

// EtcdTLS mirrors the teacher SDK's TLS configuration shape for the etcd
// client connection.
type EtcdTLS struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

func (t *EtcdTLS) clientConfig() (*tls.Config, error) {
	if t == nil || !t.Enabled {
		return nil, nil
	}
	if t.CertFile == "" || t.KeyFile == "" || t.CAFile == "" {
		return nil, fmt.Errorf("etcd TLS requires cert_file, key_file, and ca_file")
	}
	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}
	caData, err := os.ReadFile(t.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caData) {
		return nil, fmt.Errorf("parse CA certificate")
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// EtcdBackstop leases ClusterNode rows into etcd under
// /artemis/cluster/<nodeID> as a second, cluster-wide pruning mechanism
// behind the in-memory expiry sweep: a node that crashes without a clean
// shutdown disappears from etcd once its lease times out, even if no
// surviving peer ever calls CheckExpired against it. This is optional
// and off by default — the registry core is in-memory only per spec §6.
type EtcdBackstop struct {
	client    *clientv3.Client
	namespace string
	ttl       int64
	logger    *slog.Logger

	mu        sync.Mutex
	leaseID   clientv3.LeaseID
	cancelKA  context.CancelFunc
}

// NewEtcdBackstop dials endpoints and returns a backstop client scoped to
// namespace, leasing keys with the given ttl (seconds).
func NewEtcdBackstop(endpoints []string, namespace string, ttlSeconds int64, tlsCfg *EtcdTLS, logger *slog.Logger) (*EtcdBackstop, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("etcd backstop requires at least one endpoint")
	}
	if namespace == "" {
		namespace = "artemis"
	}
	if ttlSeconds <= 0 {
		ttlSeconds = 30
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg := clientv3.Config{Endpoints: endpoints, DialTimeout: 5 * time.Second}
	if tlsCfg != nil && tlsCfg.Enabled {
		tc, err := tlsCfg.clientConfig()
		if err != nil {
			return nil, err
		}
		cfg.TLS = tc
	}

	cli, err := clientv3.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Get(ctx, "health-check"); err != nil {
		cli.Close()
		return nil, fmt.Errorf("etcd connectivity check failed: %w", err)
	}

	return &EtcdBackstop{client: cli, namespace: namespace, ttl: ttlSeconds, logger: logger}, nil
}

func (b *EtcdBackstop) key(nodeID string) string {
	return fmt.Sprintf("/%s/cluster/%s", b.namespace, nodeID)
}

// Lease publishes node under a TTL'd etcd lease and starts a background
// goroutine renewing it at ttl/3 until ctx is canceled or Close is
// called.
func (b *EtcdBackstop) Lease(ctx context.Context, node model.ClusterNode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancelKA != nil {
		b.cancelKA()
	}

	grant, err := b.client.Grant(ctx, b.ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}

	if _, err := b.client.Put(ctx, b.key(node.NodeID), string(data), clientv3.WithLease(grant.ID)); err != nil {
		return fmt.Errorf("put node: %w", err)
	}

	b.leaseID = grant.ID
	kaCtx, cancel := context.WithCancel(ctx)
	b.cancelKA = cancel
	go b.keepalive(kaCtx, grant.ID)
	return nil
}

func (b *EtcdBackstop) keepalive(ctx context.Context, leaseID clientv3.LeaseID) {
	ticker := time.NewTicker(time.Duration(b.ttl) * time.Second / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.client.KeepAliveOnce(ctx, leaseID); err != nil {
				b.logger.Warn("etcd lease renewal failed", "error", err)
				return
			}
		}
	}
}

// Peers lists every ClusterNode currently leased in etcd under this
// namespace, independent of the local in-memory membership table.
func (b *EtcdBackstop) Peers(ctx context.Context) ([]model.ClusterNode, error) {
	resp, err := b.client.Get(ctx, fmt.Sprintf("/%s/cluster/", b.namespace), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	out := make([]model.ClusterNode, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var node model.ClusterNode
		if err := json.Unmarshal(kv.Value, &node); err != nil {
			b.logger.Warn("skipping malformed etcd node entry", "key", string(kv.Key), "error", err)
			continue
		}
		out = append(out, node)
	}
	return out, nil
}

// Close cancels the keepalive goroutine and closes the etcd client.
func (b *EtcdBackstop) Close() error {
	b.mu.Lock()
	if b.cancelKA != nil {
		b.cancelKA()
	}
	b.mu.Unlock()
	return b.client.Close()
}
