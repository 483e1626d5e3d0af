// Package session implements the push-delivery session manager, grounded
// on the source's artemis-web/src/websocket/session.rs: per-connection
// sessions with append-only (non-deduplicated) subscription lists and
// independent, non-blocking fan-out per subscriber.
package session

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/artemis-registry/artemis/model"
)

// Sender delivers one InstanceChange event to a single connected
// session. Implementations wrap a transport (WebSocket, SSE, a Redis
// pub/sub channel) and must not block indefinitely.
type Sender interface {
	Send(change model.InstanceChange) error
}

// Manager tracks live sessions and their service subscriptions. All
// methods are safe for concurrent use.
type Manager struct {
	mu            sync.RWMutex
	sessions      map[string]Sender
	subscriptions map[string][]string // serviceID (lower) -> []sessionID, append-only
	logger        *slog.Logger
}

// NewManager returns an empty session Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:      make(map[string]Sender),
		subscriptions: make(map[string][]string),
		logger:        logger,
	}
}

// Register installs sender under a freshly generated session ID and
// returns it.
func (m *Manager) Register(sender Sender) string {
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = sender
	m.mu.Unlock()
	return id
}

// Unregister removes the session and scrubs it from every subscription
// list.
func (m *Manager) Unregister(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	for svc, ids := range m.subscriptions {
		out := ids[:0:0]
		for _, id := range ids {
			if id != sessionID {
				out = append(out, id)
			}
		}
		m.subscriptions[svc] = out
	}
}

// Subscribe appends sessionID to serviceID's subscriber list. No
// deduplication is performed: subscribing twice to the same service adds
// two entries, matching the source's append-only semantics.
func (m *Manager) Subscribe(sessionID, serviceID string) {
	key := model.InstanceKey{Service: serviceID}.ServiceKey()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[key] = append(m.subscriptions[key], sessionID)
}

// Unsubscribe removes every occurrence of sessionID from serviceID's
// subscriber list.
func (m *Manager) Unsubscribe(sessionID, serviceID string) {
	key := model.InstanceKey{Service: serviceID}.ServiceKey()
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.subscriptions[key]
	if !ok {
		return
	}
	out := ids[:0:0]
	for _, id := range ids {
		if id != sessionID {
			out = append(out, id)
		}
	}
	m.subscriptions[key] = out
}

// Broadcast fans the change out to every subscriber currently listed for
// serviceID. Delivery to each subscriber is independent: a failing send
// is logged and the subscriber is skipped, never aborting the rest of
// the fan-out.
func (m *Manager) Broadcast(serviceID string, change model.InstanceChange) {
	key := model.InstanceKey{Service: serviceID}.ServiceKey()
	m.mu.RLock()
	ids := append([]string(nil), m.subscriptions[key]...)
	senders := make([]Sender, 0, len(ids))
	for _, id := range ids {
		if s, ok := m.sessions[id]; ok {
			senders = append(senders, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range senders {
		go func(sender Sender) {
			if err := sender.Send(change); err != nil {
				m.logger.Debug("push delivery failed, subscriber skipped", "service", serviceID, "error", err)
			}
		}(s)
	}
}

// ActiveSessions returns the number of currently registered sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
