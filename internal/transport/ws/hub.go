package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Message is the WebSocket envelope format for inbound events.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// outMessage is the envelope for outbound events.
type outMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client is one live WebSocket connection, a member of exactly one poll
// room. Name and TabToken are filled in once the participant joins.
type Client struct {
	ID       string
	PollID   string
	Role     string
	Name     string
	TabToken string

	send chan []byte
}

// NewClient creates a room member with a buffered send queue.
func NewClient(id, pollID, role string) *Client {
	return &Client{
		ID:     id,
		PollID: pollID,
		Role:   role,
		send:   make(chan []byte, 256),
	}
}

// Hub manages WebSocket connections per poll room and implements
// service.Broadcaster. Delivery is best effort: a slow consumer whose
// buffer is full drops messages rather than blocking the room.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Client // pollID -> connID -> client
	conns  map[string]*Client
	logger *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[string]*Client),
		conns:  make(map[string]*Client),
		logger: logger,
	}
}

// Register adds a client to its poll room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.PollID] == nil {
		h.rooms[c.PollID] = make(map[string]*Client)
	}
	h.rooms[c.PollID][c.ID] = c
	h.conns[c.ID] = c
	h.mu.Unlock()

	h.logger.Debug("client registered", zap.String("conn_id", c.ID), zap.String("poll_id", c.PollID))
}

// Unregister removes a client and closes its send queue. Safe to call
// after Disconnect already removed it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	removed := h.remove(c.ID)
	h.mu.Unlock()

	if removed {
		h.logger.Debug("client unregistered", zap.String("conn_id", c.ID), zap.String("poll_id", c.PollID))
	}
}

// remove deletes a connection from both maps and closes its send channel.
// Caller holds h.mu.
func (h *Hub) remove(connID string) bool {
	c, ok := h.conns[connID]
	if !ok {
		return false
	}
	delete(h.conns, connID)
	if room, ok := h.rooms[c.PollID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(h.rooms, c.PollID)
		}
	}
	close(c.send)
	return true
}

// ToPoll sends an event to every connection in a poll room.
func (h *Hub) ToPoll(pollID, event string, payload interface{}) {
	data, err := json.Marshal(outMessage{Type: event, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[pollID] {
		select {
		case c.send <- data:
		default:
			// Buffer full; drop for this recipient.
		}
	}
}

// ToConn sends an event to a single connection.
func (h *Hub) ToConn(connID, event string, payload interface{}) {
	data, err := json.Marshal(outMessage{Type: event, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.conns[connID]; ok {
		select {
		case c.send <- data:
		default:
		}
	}
}

// Disconnect forcibly terminates a connection. The write pump observes the
// closed send queue, emits a close frame, and tears the socket down.
func (h *Hub) Disconnect(connID string) {
	h.mu.Lock()
	removed := h.remove(connID)
	h.mu.Unlock()

	if removed {
		h.logger.Info("connection terminated", zap.String("conn_id", connID))
	}
}

// RoomSize returns the number of live connections in a poll room.
func (h *Hub) RoomSize(pollID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[pollID])
}
