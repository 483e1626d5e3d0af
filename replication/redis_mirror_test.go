package replication

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artemis-registry/artemis/model"
)

func setupTestMirror(t *testing.T) (*RedisMirror, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	mirror, err := NewRedisMirror(RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mirror.Close()
		mr.Close()
	})
	return mirror, mr
}

func TestNewRedisMirrorRejectsUnparsableURL(t *testing.T) {
	_, err := NewRedisMirror(RedisOptions{URL: "not-a-url"}, nil)
	assert.Error(t, err)
}

func TestSaveRetryItemPushesToPeerList(t *testing.T) {
	mirror, mr := setupTestMirror(t)
	item := RetryItem{Peer: model.ClusterNode{NodeID: "peer-1"}, Attempt: 0}
	mirror.SaveRetryItem("peer-1", item)

	n, err := mr.List(retryKey("peer-1"))
	require.NoError(t, err)
	assert.Len(t, n, 1)
}

func TestRemoveRetryItemPopsFromPeerList(t *testing.T) {
	mirror, mr := setupTestMirror(t)
	item := RetryItem{Peer: model.ClusterNode{NodeID: "peer-1"}}
	mirror.SaveRetryItem("peer-1", item)
	mirror.RemoveRetryItem("peer-1", item)

	n, err := mr.List(retryKey("peer-1"))
	require.NoError(t, err)
	assert.Empty(t, n)
}

func TestRemoveRetryItemOnEmptyListDoesNotError(t *testing.T) {
	mirror, _ := setupTestMirror(t)
	assert.NotPanics(t, func() {
		mirror.RemoveRetryItem("ghost-peer", RetryItem{})
	})
}

func TestPublishAndSubscribeChangesRoundTrip(t *testing.T) {
	mirror, _ := setupTestMirror(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	received := mirror.SubscribeChanges(ctx)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, mirror.PublishChange(ctx, []byte(`{"hello":"world"}`)))

	select {
	case payload := <-received:
		assert.Equal(t, `{"hello":"world"}`, string(payload))
	case <-time.After(time.Second):
		t.Fatal("expected a published change")
	}
}
