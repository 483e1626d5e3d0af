package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror copies the retry queue into Redis lists
// (artemis:retry:<peer>) and offers PublishChange/SubscribeChanges over a
// Redis pub/sub channel. The mirrored lists are only written: nothing in
// this package reads them back into a Worker's queue after a restart.
// RedisMirror does not observe registry changes itself; only payloads
// passed to PublishChange are published. Adapted from the teacher's
// queue.RedisClient (Push=LPush, Publish/Subscribe=redis pub/sub).
type RedisMirror struct {
	client *redis.Client
	logger *slog.Logger
}

// RedisOptions mirrors the teacher's queue.RedisOptions shape.
type RedisOptions struct {
	URL          string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// NewRedisMirror parses opts.URL and returns a connected mirror.
func NewRedisMirror(opts RedisOptions, logger *slog.Logger) (*RedisMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parsed, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opts.ConnectTimeout > 0 {
		parsed.DialTimeout = opts.ConnectTimeout
	}
	if opts.ReadTimeout > 0 {
		parsed.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		parsed.WriteTimeout = opts.WriteTimeout
	}
	client := redis.NewClient(parsed)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisMirror{client: client, logger: logger}, nil
}

func retryKey(peerID string) string { return fmt.Sprintf("artemis:retry:%s", peerID) }

// SaveRetryItem pushes item onto the peer's retry list. Implements
// replication.Mirror.
func (m *RedisMirror) SaveRetryItem(peerID string, item RetryItem) {
	data, err := json.Marshal(item)
	if err != nil {
		m.logger.Warn("failed to marshal retry item for mirror", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.client.LPush(ctx, retryKey(peerID), data).Err(); err != nil {
		m.logger.Warn("failed to mirror retry item", "peer", peerID, "error", err)
	}
}

// RemoveRetryItem pops the oldest mirrored item for peerID. The
// mirror is a best-effort snapshot, not an authoritative queue, so exact
// item identity is not tracked — a pop keeps the mirror roughly in sync
// with the in-memory queue's size.
func (m *RedisMirror) RemoveRetryItem(peerID string, _ RetryItem) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.client.RPop(ctx, retryKey(peerID)).Err(); err != nil && err != redis.Nil {
		m.logger.Warn("failed to pop mirrored retry item", "peer", peerID, "error", err)
	}
}

// PublishChangeChannel is the Redis pub/sub channel InstanceChange
// events are republished to.
const PublishChangeChannel = "artemis:changes"

// PublishChange publishes a JSON-encoded payload (typically a marshaled
// model.InstanceChange) to the shared change channel.
func (m *RedisMirror) PublishChange(ctx context.Context, payload []byte) error {
	return m.client.Publish(ctx, PublishChangeChannel, payload).Err()
}

// SubscribeChanges returns a channel of raw payloads published to the
// change channel. It closes the returned channel when ctx is canceled.
func (m *RedisMirror) SubscribeChanges(ctx context.Context) <-chan []byte {
	sub := m.client.Subscribe(ctx, PublishChangeChannel)
	out := make(chan []byte)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close closes the underlying Redis client.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
