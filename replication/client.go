package replication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/artemis-registry/artemis/model"
)

// MarkerHeader is the sentinel header every outbound replication request
// carries. Peers reject replication requests missing it with 400, and
// requests carrying it are applied locally without enqueuing further
// replication events — the sole loop-prevention mechanism (spec §9; do
// not weaken it).
const MarkerHeader = "X-Artemis-Replication"

// PeerClient issues replication batch and single-event requests against
// a peer node over HTTP.
type PeerClient struct {
	httpClient *http.Client
}

// NewPeerClient returns a PeerClient with the given request timeout.
func NewPeerClient(timeout time.Duration) *PeerClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PeerClient{httpClient: &http.Client{Timeout: timeout}}
}

// batchRegisterBody/batchHeartbeatBody/batchUnregisterBody mirror the
// §6 wire bodies used by the non-replication endpoints, reused here for
// the /replication/registry/batch-* family.
type batchRegisterBody struct {
	Instances []model.Instance `json:"instances"`
}
type batchKeysBody struct {
	InstanceKeys []model.InstanceKey `json:"instanceKeys"`
}

func (c *PeerClient) post(ctx context.Context, peer model.ClusterNode, path string, body any) (statusCode int, err error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal replication payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peer.BaseURL()+path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("build replication request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(MarkerHeader, "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// SendBatch POSTs a batch of events of a single kind to peer.
func (c *PeerClient) SendBatch(ctx context.Context, peer model.ClusterNode, kind EventKind, instances []model.Instance, keys []model.InstanceKey) (int, error) {
	switch kind {
	case EventRegister:
		return c.post(ctx, peer, "/replication/registry/batch-register", batchRegisterBody{Instances: instances})
	case EventHeartbeat:
		return c.post(ctx, peer, "/replication/registry/batch-heartbeat", batchKeysBody{InstanceKeys: keys})
	default:
		return c.post(ctx, peer, "/replication/registry/batch-unregister", batchKeysBody{InstanceKeys: keys})
	}
}

// SendSingle POSTs a single event (from the retry queue) to peer.
func (c *PeerClient) SendSingle(ctx context.Context, peer model.ClusterNode, ev SingleEvent) (int, error) {
	switch ev.Kind {
	case EventRegister:
		return c.post(ctx, peer, "/replication/registry/register", batchRegisterBody{Instances: []model.Instance{ev.Instance}})
	case EventHeartbeat:
		return c.post(ctx, peer, "/replication/registry/heartbeat", batchKeysBody{InstanceKeys: []model.InstanceKey{ev.Key}})
	default:
		return c.post(ctx, peer, "/replication/registry/unregister", batchKeysBody{InstanceKeys: []model.InstanceKey{ev.Key}})
	}
}

// classifyRetryable implements the error taxonomy of spec §4.9/§7:
// connection errors and timeouts (transport-level err != nil) and 5xx /
// 408 / 429 status codes are retryable; other 4xx responses are
// permanent.
func classifyRetryable(err error, statusCode int) bool {
	if err != nil {
		// Any transport-level failure (timeout, connection refused, DNS
		// failure) is retryable; only an HTTP response with a
		// non-retryable status is permanent.
		return true
	}
	return statusCode >= 500 || statusCode == 408 || statusCode == 429
}
