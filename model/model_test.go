package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceKeyServiceKeyNormalizesCase(t *testing.T) {
	k := InstanceKey{Service: "FooBar"}
	assert.Equal(t, "foobar", k.ServiceKey())
}

func TestInstanceCloneIsIndependent(t *testing.T) {
	original := Instance{
		InstanceKey: InstanceKey{Service: "orders", InstanceID: "i-1"},
		Metadata:    map[string]string{"canary": "true"},
	}
	clone := original.Clone()
	clone.Metadata["canary"] = "false"

	assert.Equal(t, "true", original.Metadata["canary"])
	assert.Equal(t, "false", clone.Metadata["canary"])
}

func TestInstanceEqual(t *testing.T) {
	a := Instance{InstanceKey: InstanceKey{InstanceID: "i-1"}, IP: "10.0.0.1", Status: StatusUp}
	b := a
	assert.True(t, a.Equal(b))

	b.Status = StatusDown
	assert.False(t, a.Equal(b))

	a.Metadata = map[string]string{"zone": "a"}
	b = a
	b.Metadata = map[string]string{"zone": "b"}
	assert.False(t, a.Equal(b))
}

func TestLeaseExpired(t *testing.T) {
	now := time.Now()
	l := Lease{RenewedAt: now.Add(-10 * time.Second), TTL: 5 * time.Second}
	assert.True(t, l.Expired(now))

	l.TTL = 30 * time.Second
	assert.False(t, l.Expired(now))
}

func TestServiceClone(t *testing.T) {
	svc := Service{
		ServiceID: "orders",
		Instances: []Instance{{InstanceKey: InstanceKey{InstanceID: "i-1"}}},
	}
	clone := svc.Clone()
	clone.Instances[0].IP = "mutated"

	assert.Empty(t, svc.Instances[0].IP)
	assert.Equal(t, "mutated", clone.Instances[0].IP)
}

func TestClusterNodeBaseURL(t *testing.T) {
	n := ClusterNode{Address: "10.0.0.5", Port: 8761}
	require.Equal(t, "http://10.0.0.5:8761", n.BaseURL())

	zero := ClusterNode{Address: "localhost", Port: 0}
	require.Equal(t, "http://localhost:0", zero.BaseURL())
}
