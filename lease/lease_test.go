package lease

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artemis-registry/artemis/model"
)

func TestCreateAndIsValid(t *testing.T) {
	m := NewManager(30 * time.Second)
	k := model.InstanceKey{Service: "orders", InstanceID: "i-1"}
	m.Create(k)
	assert.True(t, m.IsValid(k))
}

func TestRenewRevivesExpiredLease(t *testing.T) {
	fakeNow := time.Now()
	m := NewManager(5 * time.Second)
	m.now = func() time.Time { return fakeNow }

	k := model.InstanceKey{Service: "orders", InstanceID: "i-1"}
	m.Create(k)

	fakeNow = fakeNow.Add(10 * time.Second)
	assert.False(t, m.IsValid(k))

	require.True(t, m.Renew(k))
	assert.True(t, m.IsValid(k))
}

func TestRenewUnknownKeyFails(t *testing.T) {
	m := NewManager(30 * time.Second)
	assert.False(t, m.Renew(model.InstanceKey{Service: "ghost", InstanceID: "i-1"}))
}

func TestRemoveThenRenewFails(t *testing.T) {
	m := NewManager(30 * time.Second)
	k := model.InstanceKey{Service: "orders", InstanceID: "i-1"}
	m.Create(k)

	_, ok := m.Remove(k)
	require.True(t, ok)
	assert.False(t, m.Renew(k))
}

func TestExpiredKeys(t *testing.T) {
	fakeNow := time.Now()
	m := NewManager(5 * time.Second)
	m.now = func() time.Time { return fakeNow }

	alive := model.InstanceKey{Service: "orders", InstanceID: "alive"}
	stale := model.InstanceKey{Service: "orders", InstanceID: "stale"}
	m.Create(alive)
	m.Create(stale)

	fakeNow = fakeNow.Add(10 * time.Second)
	m.Renew(alive)

	expired := m.ExpiredKeys()
	require.Len(t, expired, 1)
	assert.Equal(t, stale, expired[0])
}

func TestStartEvictionInvokesCallbackOnce(t *testing.T) {
	fakeNow := time.Now()
	m := NewManager(10 * time.Millisecond)
	m.now = func() time.Time { return fakeNow }

	k := model.InstanceKey{Service: "orders", InstanceID: "i-1"}
	m.Create(k)
	fakeNow = fakeNow.Add(time.Second)

	evicted := make(chan model.InstanceKey, 1)
	stop := m.StartEviction(5*time.Millisecond, func(key model.InstanceKey) {
		evicted <- key
	})
	defer stop()

	select {
	case got := <-evicted:
		assert.Equal(t, k, got)
	case <-time.After(2 * time.Second):
		t.Fatal("eviction callback was not invoked in time")
	}

	stop()
}
