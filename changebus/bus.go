// Package changebus implements the single-subscriber-per-service event
// bus: each service has at most one active receiver, and a second
// Subscribe call displaces the prior one. Multi-subscriber push is
// layered on top by the session package, which owns its own
// serviceID -> []sessionID table rather than reusing this one (see
// DESIGN.md for why the two stay separate).
package changebus

import (
	"sync"
	"time"

	"github.com/artemis-registry/artemis/model"
)

// Bus fans out InstanceChange events to, at most, one subscriber per
// service. Publishing to a service with no subscriber is not an error;
// the event is simply dropped.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan model.InstanceChange
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string]chan model.InstanceChange)}
}

// Subscribe installs a fresh buffered receiver for serviceID, closing
// and displacing any prior subscriber for that service.
func (b *Bus) Subscribe(serviceID string) <-chan model.InstanceChange {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := model.InstanceKey{Service: serviceID}.ServiceKey()
	if old, ok := b.subs[key]; ok {
		close(old)
	}
	ch := make(chan model.InstanceChange, 64)
	b.subs[key] = ch
	return ch
}

func (b *Bus) publish(serviceID string, change model.InstanceChange) {
	key := model.InstanceKey{Service: serviceID}.ServiceKey()
	b.mu.Lock()
	ch, ok := b.subs[key]
	b.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- change:
	default:
		// Slow subscriber: drop rather than block the publisher. The
		// session manager's independent broadcast is the durable push
		// path; this bus exists for single-subscriber consumers.
	}
}

// PublishRegister announces a newly created instance.
func (b *Bus) PublishRegister(inst model.Instance) {
	b.publish(inst.Service, model.InstanceChange{Instance: inst, Type: model.ChangeNew, Timestamp: time.Now()})
}

// PublishUpdate announces a mutated instance.
func (b *Bus) PublishUpdate(inst model.Instance) {
	b.publish(inst.Service, model.InstanceChange{Instance: inst, Type: model.ChangeUpdate, Timestamp: time.Now()})
}

// PublishUnregister announces a removed instance. key is retained by the
// caller for logging; the event itself carries the instance's last known
// value.
func (b *Bus) PublishUnregister(key model.InstanceKey, inst model.Instance) {
	b.publish(key.Service, model.InstanceChange{Instance: inst, Type: model.ChangeDelete, Timestamp: time.Now()})
}
