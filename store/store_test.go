package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artemis-registry/artemis/model"
)

func key(service, instanceID string) model.InstanceKey {
	return model.InstanceKey{Service: service, InstanceID: instanceID}
}

func TestRegisterAndGetByServiceIsCaseInsensitive(t *testing.T) {
	s := New()
	s.Register(model.Instance{InstanceKey: key("Orders", "i-1")})

	found := s.GetByService("orders")
	require.Len(t, found, 1)
	assert.Equal(t, "i-1", found[0].InstanceID)
}

func TestRemoveReturnsPriorValue(t *testing.T) {
	s := New()
	k := key("orders", "i-1")
	s.Register(model.Instance{InstanceKey: k, IP: "10.0.0.1"})

	inst, ok := s.Remove(k)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", inst.IP)

	_, ok = s.Remove(k)
	assert.False(t, ok)
}

func TestGetByGroupFiltersGroupAndRegion(t *testing.T) {
	s := New()
	s.Register(model.Instance{InstanceKey: model.InstanceKey{Service: "orders", InstanceID: "i-1", Group: "canary", Region: "us-east"}})
	s.Register(model.Instance{InstanceKey: model.InstanceKey{Service: "orders", InstanceID: "i-2", Group: "canary", Region: "us-west"}})
	s.Register(model.Instance{InstanceKey: model.InstanceKey{Service: "orders", InstanceID: "i-3", Group: "stable", Region: "us-east"}})

	got := s.GetByGroup("orders", "canary", "us-east")
	require.Len(t, got, 1)
	assert.Equal(t, "i-1", got[0].InstanceID)

	got = s.GetByGroup("orders", "canary", "")
	assert.Len(t, got, 2)
}

func TestGetAllServicesSortedByID(t *testing.T) {
	s := New()
	s.Register(model.Instance{InstanceKey: key("zeta", "i-1")})
	s.Register(model.Instance{InstanceKey: key("alpha", "i-2")})

	svcs := s.GetAllServices()
	require.Len(t, svcs, 2)
	assert.Equal(t, "alpha", svcs[0].ServiceID)
	assert.Equal(t, "zeta", svcs[1].ServiceID)
}

func TestCountReflectsRegistrationsAndRemovals(t *testing.T) {
	s := New()
	s.Register(model.Instance{InstanceKey: key("orders", "i-1")})
	s.Register(model.Instance{InstanceKey: key("orders", "i-2")})
	assert.Equal(t, 2, s.Count())

	s.Remove(key("orders", "i-1"))
	assert.Equal(t, 1, s.Count())
}

func TestConcurrentRegistrationsAcrossServicesDoNotRace(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Register(model.Instance{InstanceKey: key("svc-"+string(rune('a'+n%26)), "instance")})
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Count(), 50)
}
