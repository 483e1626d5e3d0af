// Package replication implements the asynchronous cluster-replication
// worker: three independent batching buffers, per-peer batched delivery,
// per-event fan-out into a FIFO retry queue on batch failure, and
// exponential backoff up to a configured attempt ceiling. Grounded on
// the source's artemis-server/src/replication/worker.rs, including its
// unit-test-established exact backoff and drop semantics.
package replication

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/artemis-registry/artemis/cluster"
	"github.com/artemis-registry/artemis/model"
)

// EventKind distinguishes the three buffer types.
type EventKind int

const (
	EventRegister EventKind = iota
	EventHeartbeat
	EventUnregister
)

// SingleEvent is one replication event as carried by the retry queue,
// after a batch has been exploded into its constituents.
type SingleEvent struct {
	Kind     EventKind
	Instance model.Instance
	Key      model.InstanceKey
}

// RetryItem is one retry-queue entry: an event destined for a specific
// peer, its attempt count, and the time at which it becomes eligible for
// its next attempt.
type RetryItem struct {
	Peer          model.ClusterNode
	Event         SingleEvent
	Attempt       int
	EarliestRetry time.Time
}

// Config parameterizes the worker per the environment inputs of spec §6.
type Config struct {
	Enabled          bool
	TimeoutSecs      int
	BatchSize        int
	BatchIntervalMs  int
	MaxRetries       int
}

// DefaultConfig returns sane defaults matching the spec's recognized
// option ranges.
func DefaultConfig() Config {
	return Config{Enabled: true, TimeoutSecs: 5, BatchSize: 50, BatchIntervalMs: 1000, MaxRetries: 5}
}

// Mirror receives a copy of every retry-queue insertion and removal so
// the queue can be inspected externally (Redis). Optional. The Worker
// only writes to it and never loads items back from it.
type Mirror interface {
	SaveRetryItem(peerID string, item RetryItem)
	RemoveRetryItem(peerID string, item RetryItem)
}

// Worker batches and replicates local writes to every healthy peer,
// retrying failed batches per-event with exponential backoff.
type Worker struct {
	cfg        Config
	membership *cluster.Membership
	peerClient *PeerClient
	logger     *slog.Logger
	mirror     Mirror

	bufMu         sync.Mutex
	registerBuf   []model.Instance
	heartbeatBuf  []model.InstanceKey
	unregisterBuf []model.InstanceKey

	retryMu    sync.Mutex
	retryQueue []RetryItem

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewWorker returns a Worker wired to membership for its peer set.
func NewWorker(cfg Config, membership *cluster.Membership, logger *slog.Logger, mirror Mirror) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:        cfg,
		membership: membership,
		peerClient: NewPeerClient(time.Duration(cfg.TimeoutSecs) * time.Second),
		logger:     logger,
		mirror:     mirror,
		stopCh:     make(chan struct{}),
	}
}

// EnqueueRegister buffers a register event, flushing immediately if the
// buffer has reached BatchSize.
func (w *Worker) EnqueueRegister(inst model.Instance) {
	if !w.cfg.Enabled {
		return
	}
	w.bufMu.Lock()
	w.registerBuf = append(w.registerBuf, inst)
	full := len(w.registerBuf) >= w.cfg.BatchSize
	w.bufMu.Unlock()
	if full {
		go w.flush(EventRegister)
	}
}

// EnqueueHeartbeat buffers a heartbeat event.
func (w *Worker) EnqueueHeartbeat(key model.InstanceKey) {
	if !w.cfg.Enabled {
		return
	}
	w.bufMu.Lock()
	w.heartbeatBuf = append(w.heartbeatBuf, key)
	full := len(w.heartbeatBuf) >= w.cfg.BatchSize
	w.bufMu.Unlock()
	if full {
		go w.flush(EventHeartbeat)
	}
}

// EnqueueUnregister buffers an unregister event.
func (w *Worker) EnqueueUnregister(key model.InstanceKey) {
	if !w.cfg.Enabled {
		return
	}
	w.bufMu.Lock()
	w.unregisterBuf = append(w.unregisterBuf, key)
	full := len(w.unregisterBuf) >= w.cfg.BatchSize
	w.bufMu.Unlock()
	if full {
		go w.flush(EventUnregister)
	}
}

// Start launches the batch-interval timer and the 1s retry-queue drain
// timer. Both run for the process lifetime until Stop is called.
func (w *Worker) Start() {
	if !w.cfg.Enabled {
		return
	}
	go func() {
		ticker := time.NewTicker(time.Duration(w.cfg.BatchIntervalMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.flush(EventRegister)
				w.flush(EventHeartbeat)
				w.flush(EventUnregister)
			}
		}
	}()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.processRetryQueue()
			}
		}
	}()
}

// Stop halts both background loops. Safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *Worker) takeBuffer(kind EventKind) (instances []model.Instance, keys []model.InstanceKey) {
	w.bufMu.Lock()
	defer w.bufMu.Unlock()
	switch kind {
	case EventRegister:
		instances, w.registerBuf = w.registerBuf, nil
	case EventHeartbeat:
		keys, w.heartbeatBuf = w.heartbeatBuf, nil
	default:
		keys, w.unregisterBuf = w.unregisterBuf, nil
	}
	return
}

func (w *Worker) flush(kind EventKind) {
	instances, keys := w.takeBuffer(kind)
	if len(instances) == 0 && len(keys) == 0 {
		return
	}
	peers := w.membership.HealthyPeers()
	if len(peers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.cfg.TimeoutSecs)*time.Second)
	defer cancel()

	for _, peer := range peers {
		status, err := w.peerClient.SendBatch(ctx, peer, kind, instances, keys)
		if err == nil && status >= 200 && status < 300 {
			continue
		}
		if !classifyRetryable(err, status) {
			w.logger.Warn("replication batch permanently failed, dropping",
				"peer", peer.NodeID, "kind", kind, "status", status, "error", err)
			continue
		}
		w.fanOutToRetryQueue(peer, kind, instances, keys)
	}
}

// backoffFor returns the 2^attempt-second delay property 5 requires for
// an item enqueued with the given attempt number (0-indexed).
func backoffFor(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

func (w *Worker) fanOutToRetryQueue(peer model.ClusterNode, kind EventKind, instances []model.Instance, keys []model.InstanceKey) {
	now := time.Now()
	earliest := now.Add(backoffFor(0))
	w.retryMu.Lock()
	defer w.retryMu.Unlock()
	switch kind {
	case EventRegister:
		for _, inst := range instances {
			w.enqueueRetryLocked(RetryItem{Peer: peer, Event: SingleEvent{Kind: kind, Instance: inst}, Attempt: 0, EarliestRetry: earliest})
		}
	default:
		for _, key := range keys {
			w.enqueueRetryLocked(RetryItem{Peer: peer, Event: SingleEvent{Kind: kind, Key: key}, Attempt: 0, EarliestRetry: earliest})
		}
	}
}

// enqueueRetryLocked must be called with retryMu held.
func (w *Worker) enqueueRetryLocked(item RetryItem) {
	w.retryQueue = append(w.retryQueue, item)
	if w.mirror != nil {
		w.mirror.SaveRetryItem(item.Peer.NodeID, item)
	}
}

// processRetryQueue drains every item whose EarliestRetry has passed, in
// FIFO order, retrying each against its peer as a single-event request.
func (w *Worker) processRetryQueue() {
	now := time.Now()

	w.retryMu.Lock()
	var due []RetryItem
	var remaining []RetryItem
	for _, item := range w.retryQueue {
		if !item.EarliestRetry.After(now) {
			due = append(due, item)
		} else {
			remaining = append(remaining, item)
		}
	}
	w.retryQueue = remaining
	w.retryMu.Unlock()

	if len(due) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(w.cfg.TimeoutSecs)*time.Second)
	defer cancel()

	for _, item := range due {
		status, err := w.peerClient.SendSingle(ctx, item.Peer, item.Event)
		if w.mirror != nil {
			w.mirror.RemoveRetryItem(item.Peer.NodeID, item)
		}
		if err == nil && status >= 200 && status < 300 {
			continue
		}
		if !classifyRetryable(err, status) {
			w.logger.Warn("replication retry permanently failed, dropping", "peer", item.Peer.NodeID, "error", err)
			continue
		}
		w.retryAgain(item)
	}
}

func (w *Worker) retryAgain(item RetryItem) {
	next := item.Attempt + 1
	maxAttempts := w.cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if next >= maxAttempts {
		w.logger.Warn("replication item reached max attempts, dropping", "peer", item.Peer.NodeID, "attempts", next)
		return
	}
	reEnqueued := RetryItem{Peer: item.Peer, Event: item.Event, Attempt: next, EarliestRetry: time.Now().Add(backoffFor(next))}
	w.retryMu.Lock()
	w.enqueueRetryLocked(reEnqueued)
	w.retryMu.Unlock()
}

// RetryQueueDepth returns the number of items currently pending retry,
// for the status aggregator.
func (w *Worker) RetryQueueDepth() int {
	w.retryMu.Lock()
	defer w.retryMu.Unlock()
	return len(w.retryQueue)
}
