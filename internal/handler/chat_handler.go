package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/auth"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/service"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/response"
)

const defaultPageSize = 50

type ChatHandler struct {
	svc    *service.ChatService
	logger *zap.Logger
}

func NewChatHandler(svc *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, logger: logger}
}

func (h *ChatHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("chat handler error", zap.Error(err))
		response.Error(w, status, "internal error")
		return
	}
	response.Error(w, status, err.Error())
}

// OpenThread opens (or returns) the conversation for a context and
// counterparty. The caller is always one of the two parties.
func (h *ChatHandler) OpenThread(w http.ResponseWriter, r *http.Request) {
	var req service.OpenThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.PartyA = auth.UserID(r.Context())

	thread, err := h.svc.OpenOrGetThread(r.Context(), &req)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, thread)
}

// ListThreads returns the caller's conversation list with unread counts.
func (h *ChatHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.svc.GetUserThreads(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, threads)
}

// SendMessage posts one user message over REST. Websocket clients use
// the chat.send_message frame instead; both paths land in the service.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Body     string            `json:"body"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.svc.SendMessage(r.Context(), chi.URLParam(r, "threadID"),
		auth.UserID(r.Context()), req.Body, domain.KindUser, req.Metadata)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, msg)
}

// ListMessages pages backwards through a thread's history.
// ?before=<messageID> anchors the page; ?limit= caps its size.
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	msgs, err := h.svc.GetMessages(r.Context(), chi.URLParam(r, "threadID"),
		auth.UserID(r.Context()), r.URL.Query().Get("before"), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, msgs)
}

// DeleteMessage soft-deletes one message in the thread.
func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteMessage(r.Context(), chi.URLParam(r, "threadID"),
		auth.UserID(r.Context()), chi.URLParam(r, "messageID")); err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// MarkRead advances the caller's read pointer.
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LastMessageID string `json:"last_message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.MarkAsRead(r.Context(), chi.URLParam(r, "threadID"),
		auth.UserID(r.Context()), req.LastMessageID); err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"read": true})
}

// Typing returns who is typing in the thread besides the caller.
func (h *ChatHandler) Typing(w http.ResponseWriter, r *http.Request) {
	typing, err := h.svc.WhoIsTyping(r.Context(), chi.URLParam(r, "threadID"),
		auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, typing)
}

// RequestSupport attaches a support agent to the thread.
func (h *ChatHandler) RequestSupport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SupportUserID string `json:"support_user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.RequestSupport(r.Context(), chi.URLParam(r, "threadID"),
		auth.UserID(r.Context()), req.SupportUserID); err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"support_requested": true})
}

// EmitAction posts a workflow system message into the thread.
func (h *ChatHandler) EmitAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action   string            `json:"action"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action == "" {
		response.Error(w, http.StatusBadRequest, "missing action")
		return
	}

	msg, err := h.svc.EmitSystemMessage(r.Context(), chi.URLParam(r, "threadID"),
		service.SystemAction(req.Action), req.Metadata)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, msg)
}

// CloseThread closes the conversation.
func (h *ChatHandler) CloseThread(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseThread(r.Context(), chi.URLParam(r, "threadID"),
		auth.UserID(r.Context())); err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"status": string(domain.ThreadClosed)})
}
