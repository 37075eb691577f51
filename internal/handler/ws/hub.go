package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub tracks connected clients per user. A user may hold several
// connections (two tabs, phone plus desktop); events go to all of them.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[*Client]struct{} // userID -> set of clients
	lifecycle context.Context
	logger    *zap.Logger
}

// NewHub builds a hub; lifecycle bounds service calls triggered by
// incoming frames and should outlive individual connections.
func NewHub(lifecycle context.Context, logger *zap.Logger) *Hub {
	if lifecycle == nil {
		lifecycle = context.Background()
	}
	return &Hub{
		clients:   make(map[string]map[*Client]struct{}),
		lifecycle: lifecycle,
		logger:    logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.UserID]; !ok {
		h.clients[c.UserID] = make(map[*Client]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.logger.Info("ws connected",
		zap.String("user_id", c.UserID),
		zap.Int("connections", len(h.clients[c.UserID])))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[c.UserID]; ok {
		if _, exists := conns[c]; exists {
			delete(conns, c)
			close(c.send)
		}
		if len(conns) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	h.logger.Info("ws disconnected", zap.String("user_id", c.UserID))
}

// PushToUser sends an event to every connection of one user. Slow or
// dead connections are skipped, not waited on.
func (h *Hub) PushToUser(userID string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("ws event marshal failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("ws send buffer full, dropping event",
				zap.String("user_id", userID))
		}
	}
}

// ConnectedUsers returns how many distinct users are connected.
func (h *Hub) ConnectedUsers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one websocket connection.
type Client struct {
	UserID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	router *Router
}

// SendJSON queues a JSON payload for this connection only.
func (c *Client) SendJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		c.hub.logger.Error("ws marshal failed", zap.String("user_id", c.UserID), zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("ws send buffer full", zap.String("user_id", c.UserID))
	}
}

// SendError reports a client-facing failure on this connection.
func (c *Client) SendError(msg string) {
	c.SendJSON(map[string]interface{}{
		"type":    "error",
		"success": false,
		"error":   msg,
	})
}
