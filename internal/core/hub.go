// Package core contains the runtime components of the DriveBridge system:
// the session hub, the per-client gateway loop, the background status poller
// and the websocket server that ties them together.
package core

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"DriveBridge/internal/util"
)

const sessionSendBuffer = 32

// Session is one connected network client. Outbound messages go through a
// buffered channel drained by a single writer goroutine, so per-session
// message order is preserved and a slow client never blocks the hub.
type Session struct {
	ID   string
	conn *websocket.Conn

	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newSession(conn *websocket.Conn) *Session {
	return &Session{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sessionSendBuffer),
	}
}

// Send queues data for delivery. It reports false when the session is closed
// or its buffer is full; a full buffer closes the session, mirroring a dead
// client.
func (s *Session) Send(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		s.closeLocked()
		return false
	}
}

// SendJSON marshals v and queues it for delivery.
func (s *Session) SendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		util.Error("session %s: marshal: %v", s.ID, err)
		return false
	}
	return s.Send(data)
}

// Close shuts the session's writer down and closes the connection. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with periodic pings. Runs as the session's only writer.
func (s *Session) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case data, ok := <-s.send:
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}

// Hub owns the set of connected sessions and serializes registration and
// broadcast over them.
type Hub struct {
	pingInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHub creates an empty hub.
func NewHub(pingInterval time.Duration) *Hub {
	return &Hub{
		pingInterval: pingInterval,
		sessions:     make(map[string]*Session),
	}
}

// Register wraps a websocket connection in a new Session, starts its writer
// and tracks it for broadcasts.
func (h *Hub) Register(conn *websocket.Conn) *Session {
	sess := newSession(conn)
	h.mu.Lock()
	h.sessions[sess.ID] = sess
	h.mu.Unlock()
	go sess.writePump(h.pingInterval)
	util.Info("client connected: %s (%s)", sess.ID, conn.RemoteAddr())
	return sess
}

// Unregister removes and closes the session with the given id.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	sess, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if ok {
		sess.Close()
		util.Info("client disconnected: %s", id)
	}
}

// Broadcast delivers v to every registered session. Delivery failure on one
// session removes that session without aborting delivery to the rest.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		util.Error("hub: marshal broadcast: %v", err)
		return
	}

	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		if !s.Send(data) {
			h.Unregister(s.ID)
		}
	}
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close unregisters and closes every session.
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
