// Package realtime carries the bidirectional event surface: the WebSocket
// hub, the per-connection client pumps, and the dispatcher that applies
// session mutations and fans the resulting snapshot out to the room.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub maintains session_id -> set of connections and delivers broadcasts,
// targeted participant messages and per-connection errors.
type Hub struct {
	// sessionID -> connID -> client
	sessions map[uuid.UUID]map[string]*Client
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		sessions: make(map[uuid.UUID]map[string]*Client),
		logger:   logger,
	}
}

// Register adds a client to its session channel.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.sessions[c.SessionID] == nil {
		h.sessions[c.SessionID] = make(map[string]*Client)
	}
	h.sessions[c.SessionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("connection joined session",
		zap.String("connection_id", c.ID),
		zap.String("session_id", c.SessionID.String()))
}

// Unregister removes a client from its session channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.sessions[c.SessionID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.sessions, c.SessionID)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("connection left session",
		zap.String("connection_id", c.ID),
		zap.String("session_id", c.SessionID.String()))
}

// Broadcast sends an event to every connection subscribed to the session.
// Callers invoke it after the mutation completed, from the same goroutine
// that applied it, so delivery order matches application order.
func (h *Hub) Broadcast(sessionID uuid.UUID, event string, payload interface{}) {
	msg := envelope(event, payload)
	h.mu.RLock()
	clients := h.sessions[sessionID]
	for _, c := range clients {
		c.enqueue(msg)
	}
	h.mu.RUnlock()
}

// SendToParticipant delivers a targeted event to every connection of one
// participant (a user with several tabs gets it in each).
func (h *Hub) SendToParticipant(sessionID uuid.UUID, participantID int, event string, payload interface{}) {
	msg := envelope(event, payload)
	h.mu.RLock()
	for _, c := range h.sessions[sessionID] {
		if c.ParticipantID == participantID {
			c.enqueue(msg)
		}
	}
	h.mu.RUnlock()
}

// SendToConnection delivers an event to a single connection; used for
// acknowledgements and encounteredError.
func (h *Hub) SendToConnection(sessionID uuid.UUID, connID string, event string, payload interface{}) {
	msg := envelope(event, payload)
	h.mu.RLock()
	c := h.sessions[sessionID][connID]
	h.mu.RUnlock()
	if c != nil {
		c.enqueue(msg)
	}
}

// ConnectionCount returns the number of live connections in a session.
func (h *Hub) ConnectionCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// CloseConnections force-closes the given connections of a session (used
// when the owner removes a participant).
func (h *Hub) CloseConnections(sessionID uuid.UUID, connIDs []string) {
	h.mu.RLock()
	var victims []*Client
	for _, id := range connIDs {
		if c, ok := h.sessions[sessionID][id]; ok {
			victims = append(victims, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range victims {
		c.Close()
	}
}

// CloseSession force-closes every connection of a session (expiry sweep).
func (h *Hub) CloseSession(sessionID uuid.UUID) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[sessionID]))
	for _, c := range h.sessions[sessionID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.Close()
	}
}

// CloseStale force-closes retrospective connections whose last heartbeat is
// older than the cutoff, treating them as disconnected even when the
// transport has not noticed yet. Returns how many were closed.
func (h *Hub) CloseStale(cutoff time.Time) int {
	h.mu.RLock()
	var stale []*Client
	for _, clients := range h.sessions {
		for _, c := range clients {
			if c.Kind == KindRetro && c.LastHeartbeat().Before(cutoff) {
				stale = append(stale, c)
			}
		}
	}
	h.mu.RUnlock()
	for _, c := range stale {
		h.logger.Info("closing stale connection",
			zap.String("connection_id", c.ID),
			zap.String("session_id", c.SessionID.String()))
		c.Close()
	}
	return len(stale)
}

func envelope(event string, payload interface{}) WSMessage {
	var data json.RawMessage
	switch v := payload.(type) {
	case nil:
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	return WSMessage{Event: event, Data: data}
}
