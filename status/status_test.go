package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artemis-registry/artemis/cache"
	"github.com/artemis-registry/artemis/cluster"
	"github.com/artemis-registry/artemis/lease"
	"github.com/artemis-registry/artemis/model"
	"github.com/artemis-registry/artemis/store"
)

type fakeRetryDepther struct{ depth int }

func (f fakeRetryDepther) RetryQueueDepth() int { return f.depth }

func TestStatusComposesAcrossComponents(t *testing.T) {
	st := store.New()
	st.Register(model.Instance{InstanceKey: model.InstanceKey{Service: "orders", InstanceID: "i-1"}})
	lm := lease.NewManager(0)
	c := cache.New()
	c.Update(model.Service{ServiceID: "orders"})
	mem := cluster.NewMembership("self")
	mem.Register(model.ClusterNode{NodeID: "peer-1", Status: model.NodeUp})

	agg := New("self", st, lm, c, mem, fakeRetryDepther{depth: 3})
	report := agg.Status()

	assert.Equal(t, "self", report.NodeID)
	assert.Equal(t, 1, report.RegisteredInstances)
	assert.Equal(t, int64(1), report.CacheRevision)
	assert.Len(t, report.ClusterNodes, 1)
	assert.Equal(t, 3, report.ReplicationRetryDepth)
}

func TestStatusWithNilRetryDietherReportsZeroDepth(t *testing.T) {
	st := store.New()
	lm := lease.NewManager(0)
	c := cache.New()
	mem := cluster.NewMembership("self")

	agg := New("self", st, lm, c, mem, nil)
	report := agg.Status()

	assert.Equal(t, 0, report.ReplicationRetryDepth)
}
