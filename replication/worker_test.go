package replication

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artemis-registry/artemis/cluster"
	"github.com/artemis-registry/artemis/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registerPeer(t *testing.T, m *cluster.Membership, srv *httptest.Server) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	m.Register(model.ClusterNode{NodeID: "peer-1", Address: u.Hostname(), Port: port, Status: model.NodeUp})
}

func TestBackoffForIsExactPowerOfTwoSeconds(t *testing.T) {
	assert.Equal(t, time.Second, backoffFor(0))
	assert.Equal(t, 2*time.Second, backoffFor(1))
	assert.Equal(t, 4*time.Second, backoffFor(2))
	assert.Equal(t, 8*time.Second, backoffFor(3))
}

func TestEnqueueRegisterFlushesAtBatchSize(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := cluster.NewMembership("self")
	registerPeer(t, m, srv)

	cfg := Config{Enabled: true, TimeoutSecs: 2, BatchSize: 2, BatchIntervalMs: 60000, MaxRetries: 5}
	w := NewWorker(cfg, m, discardLogger(), nil)

	w.EnqueueRegister(model.Instance{})
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
	w.EnqueueRegister(model.Instance{})

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&hits) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFlushOnNoHealthyPeersIsANoop(t *testing.T) {
	m := cluster.NewMembership("self")
	cfg := Config{Enabled: true, TimeoutSecs: 1, BatchSize: 1, BatchIntervalMs: 60000, MaxRetries: 5}
	w := NewWorker(cfg, m, discardLogger(), nil)

	assert.NotPanics(t, func() {
		w.EnqueueRegister(model.Instance{})
	})
}

func TestDisabledWorkerDropsEnqueuedEvents(t *testing.T) {
	m := cluster.NewMembership("self")
	cfg := Config{Enabled: false, BatchSize: 1}
	w := NewWorker(cfg, m, discardLogger(), nil)

	w.EnqueueRegister(model.Instance{})
	assert.Equal(t, 0, w.RetryQueueDepth())
}

func TestFailedBatchFansOutToRetryQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := cluster.NewMembership("self")
	registerPeer(t, m, srv)

	cfg := Config{Enabled: true, TimeoutSecs: 2, BatchSize: 1, BatchIntervalMs: 60000, MaxRetries: 5}
	w := NewWorker(cfg, m, discardLogger(), nil)

	w.EnqueueRegister(model.Instance{InstanceKey: model.InstanceKey{InstanceID: "i-1"}})

	require.Eventually(t, func() bool {
		return w.RetryQueueDepth() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProcessRetryQueueDrainsDueItemsAndRequeuesOnContinuedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := cluster.NewMembership("self")
	registerPeer(t, m, srv)
	peer, _ := m.Get("peer-1")

	cfg := Config{Enabled: true, TimeoutSecs: 2, BatchSize: 1, BatchIntervalMs: 60000, MaxRetries: 5}
	w := NewWorker(cfg, m, discardLogger(), nil)

	w.retryQueue = []RetryItem{{
		Peer:          peer,
		Event:         SingleEvent{Kind: EventRegister, Instance: model.Instance{}},
		Attempt:       0,
		EarliestRetry: time.Now().Add(-time.Second),
	}}

	w.processRetryQueue()

	require.Len(t, w.retryQueue, 1)
	assert.Equal(t, 1, w.retryQueue[0].Attempt)
}

func TestProcessRetryQueueDropsItemAtMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := cluster.NewMembership("self")
	registerPeer(t, m, srv)
	peer, _ := m.Get("peer-1")

	cfg := Config{Enabled: true, TimeoutSecs: 2, BatchSize: 1, BatchIntervalMs: 60000, MaxRetries: 1}
	w := NewWorker(cfg, m, discardLogger(), nil)

	w.retryQueue = []RetryItem{{
		Peer:          peer,
		Event:         SingleEvent{Kind: EventRegister},
		Attempt:       0,
		EarliestRetry: time.Now().Add(-time.Second),
	}}

	w.processRetryQueue()

	assert.Empty(t, w.retryQueue)
}

func TestProcessRetryQueueSkipsItemsNotYetDue(t *testing.T) {
	m := cluster.NewMembership("self")
	cfg := Config{Enabled: true, TimeoutSecs: 1, BatchSize: 1, MaxRetries: 5}
	w := NewWorker(cfg, m, discardLogger(), nil)

	w.retryQueue = []RetryItem{{
		Peer:          model.ClusterNode{NodeID: "peer-1"},
		Event:         SingleEvent{Kind: EventRegister},
		Attempt:       0,
		EarliestRetry: time.Now().Add(time.Hour),
	}}

	w.processRetryQueue()

	assert.Len(t, w.retryQueue, 1)
}

func TestStopIsSafeToCallTwice(t *testing.T) {
	m := cluster.NewMembership("self")
	cfg := DefaultConfig()
	w := NewWorker(cfg, m, discardLogger(), nil)
	w.Start()
	assert.NotPanics(t, func() {
		w.Stop()
		w.Stop()
	})
}
