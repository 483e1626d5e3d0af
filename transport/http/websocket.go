package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/artemis-registry/artemis/model"
	"github.com/artemis-registry/artemis/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsSender adapts a gorilla websocket connection to session.Sender.
// Writes are serialized through a mutex-guarded connection since gorilla
// does not allow concurrent writers on the same connection.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSender) Send(change model.InstanceChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(change)
}

type subscribeFrame struct {
	Subscribe string `json:"subscribe"`
}

// handleWebsocket upgrades the connection, registers a session, and
// translates {subscribe: serviceId} frames into Subscribe calls for the
// lifetime of the connection, per spec §6.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sender := &wsSender{conn: conn}
	sessionID := s.sessions.Register(sender)
	defer s.sessions.Unregister(sessionID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame subscribeFrame
		if json.Unmarshal(data, &frame) != nil || frame.Subscribe == "" {
			continue
		}
		s.sessions.Subscribe(sessionID, frame.Subscribe)
	}
}
