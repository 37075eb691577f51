package ws

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/auth"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/service"
)

const sendBufferSize = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Auth middleware already gates the endpoint.
		return true
	},
}

// envelope is the wire shape for client-to-server frames.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Router dispatches incoming websocket frames to the chat service.
type Router struct {
	chat   *service.ChatService
	logger *zap.Logger
}

func NewRouter(chat *service.ChatService, logger *zap.Logger) *Router {
	return &Router{chat: chat, logger: logger}
}

func (rt *Router) route(c *Client, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.SendError("malformed frame")
		return
	}

	ctx := c.hub.lifecycle
	switch env.Type {
	case "chat.typing":
		var p struct {
			ThreadID string `json:"thread_id"`
			IsTyping bool   `json:"is_typing"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ThreadID == "" {
			c.SendError("invalid typing payload")
			return
		}
		if err := rt.chat.SetTyping(ctx, p.ThreadID, c.UserID, p.IsTyping); err != nil {
			c.SendError(err.Error())
		}

	case "chat.mark_read":
		var p struct {
			ThreadID      string `json:"thread_id"`
			LastMessageID string `json:"last_message_id"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ThreadID == "" {
			c.SendError("invalid mark_read payload")
			return
		}
		if err := rt.chat.MarkAsRead(ctx, p.ThreadID, c.UserID, p.LastMessageID); err != nil {
			c.SendError(err.Error())
		}

	case "chat.send_message":
		var p struct {
			ThreadID string            `json:"thread_id"`
			Body     string            `json:"body"`
			Metadata map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ThreadID == "" {
			c.SendError("invalid send_message payload")
			return
		}
		msg, err := rt.chat.SendMessage(ctx, p.ThreadID, c.UserID, p.Body, domain.KindUser, p.Metadata)
		if err != nil {
			c.SendError(err.Error())
			return
		}
		// Ack the sender directly; fan-out to other participants goes
		// through the service broadcast.
		c.SendJSON(map[string]interface{}{"type": "chat.message.ack", "data": msg})

	case "ping":
		c.SendJSON(map[string]string{"type": "pong"})

	default:
		rt.logger.Warn("unknown ws frame type",
			zap.String("user_id", c.UserID), zap.String("type", env.Type))
		c.SendError("unknown frame type: " + env.Type)
	}
}

// Handler upgrades authenticated HTTP requests to websocket clients.
type Handler struct {
	hub    *Hub
	router *Router
	logger *zap.Logger
}

func NewHandler(hub *Hub, router *Router, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, router: router, logger: logger}
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		hub:    h.hub,
		router: h.router,
	}
	h.hub.register(client)

	go client.writePump()
	go client.readPump()
}
