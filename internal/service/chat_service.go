package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/notifier"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/observability"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/id"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/xerrors"
)

// SystemAction tags a service-synthesized message. The body text and
// the notification fan-out policy live together in systemActions so a
// new action cannot be added to one and forgotten in the other.
type SystemAction string

const (
	ActionMarkPaid       SystemAction = "mark_paid"
	ActionConfirmReceipt SystemAction = "confirm_received"
	ActionRequestSupport SystemAction = "request_support"
	ActionOpenDispute    SystemAction = "open_dispute"
	ActionCancelOrder    SystemAction = "cancel_order"
	ActionReleaseFunds   SystemAction = "release_funds"
	ActionCloseThread    SystemAction = "close_thread"
)

type systemActionSpec struct {
	body string
	// critical actions notify both parties and any attached support
	// user instead of just the counterparty.
	critical bool
}

var systemActions = map[SystemAction]systemActionSpec{
	ActionMarkPaid:       {body: "The buyer marked this order as paid.", critical: true},
	ActionConfirmReceipt: {body: "The seller confirmed receiving the payment."},
	ActionRequestSupport: {body: "A participant requested support on this conversation."},
	ActionOpenDispute:    {body: "A dispute was opened on this conversation.", critical: true},
	ActionCancelOrder:    {body: "The order was cancelled."},
	ActionReleaseFunds:   {body: "Funds were released to the seller.", critical: true},
	ActionCloseThread:    {body: "The conversation was closed."},
}

// ChatRepository is the persistence surface the service needs.
type ChatRepository interface {
	OpenOrGetThread(ctx context.Context, t *domain.Thread) (*domain.Thread, error)
	GetThread(ctx context.Context, threadID string) (*domain.Thread, error)
	UpdateThreadStatus(ctx context.Context, threadID string, status domain.ThreadStatus) error
	AttachSupport(ctx context.Context, threadID, supportUserID string) error
	InsertMessage(ctx context.Context, m *domain.Message) error
	ListMessages(ctx context.Context, threadID, beforeID string, limit int) ([]domain.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID string) error
	MarkRead(ctx context.Context, threadID, userID, lastMessageID string) error
	ListUserThreads(ctx context.Context, userID string) ([]domain.ThreadSummary, error)
}

// Broadcaster fans realtime events out to connected clients; the ws
// hub implements it.
type Broadcaster interface {
	PushToUser(userID string, event interface{})
}

// TypingStore holds the ephemeral typing rows; the redis store
// implements it.
type TypingStore interface {
	SetTyping(ctx context.Context, threadID, userID string, isTyping bool) error
	Typing(ctx context.Context, threadID, exceptUserID string) ([]domain.TypingStatus, error)
}

type ChatService struct {
	repo      ChatRepository
	typing    TypingStore
	notifier  *notifier.Notifier
	broadcast Broadcaster
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func NewChatService(repo ChatRepository, typing TypingStore, n *notifier.Notifier, b Broadcaster,
	metrics *observability.Metrics, logger *zap.Logger) *ChatService {
	return &ChatService{repo: repo, typing: typing, notifier: n, broadcast: b, metrics: metrics, logger: logger}
}

// SetTyping records the ephemeral typing state and broadcasts the
// indicator to the other participants. Storage trouble downgrades to a
// broadcast-only indicator rather than an error: typing is best-effort
// by nature.
func (s *ChatService) SetTyping(ctx context.Context, threadID, userID string, isTyping bool) error {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.IsParticipant(userID) {
		return xerrors.ErrNotParticipant
	}
	if s.typing != nil {
		if err := s.typing.SetTyping(ctx, threadID, userID, isTyping); err != nil {
			s.logger.Warn("typing store write failed",
				zap.String("thread_id", threadID), zap.Error(err))
		}
	}
	event := map[string]interface{}{"type": "chat.typing", "data": domain.TypingStatus{
		ThreadID: threadID, UserID: userID, IsTyping: isTyping,
	}}
	if s.broadcast != nil {
		if other := thread.Counterparty(userID); other != "" {
			s.broadcast.PushToUser(other, event)
		}
		if thread.SupportUserID != nil && *thread.SupportUserID != userID {
			s.broadcast.PushToUser(*thread.SupportUserID, event)
		}
	}
	return nil
}

// WhoIsTyping returns who is typing in the thread, excluding the caller.
func (s *ChatService) WhoIsTyping(ctx context.Context, threadID, userID string) ([]domain.TypingStatus, error) {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.IsParticipant(userID) {
		return nil, xerrors.ErrNotParticipant
	}
	if s.typing == nil {
		return nil, nil
	}
	return s.typing.Typing(ctx, threadID, userID)
}

// OpenThreadRequest identifies the context and the two parties.
type OpenThreadRequest struct {
	ContextType  domain.ThreadContext `json:"context_type"`
	ContextID    string               `json:"context_id"`
	PartyA       string               `json:"party_a"`
	PartyB       string               `json:"party_b"`
	ContextTitle string               `json:"context_title"`
	ContextData  domain.ContextData   `json:"context_data"`
}

// OpenOrGetThread returns the existing active thread for the
// context+party pair or creates one. Idempotency is delegated to the
// repository's atomic insert, not a check-then-create.
func (s *ChatService) OpenOrGetThread(ctx context.Context, req *OpenThreadRequest) (*domain.Thread, error) {
	if req.PartyA == "" || req.PartyB == "" || req.PartyA == req.PartyB {
		return nil, xerrors.ErrInvalidInput
	}
	switch req.ContextType {
	case domain.ContextOrder, domain.ContextAuction, domain.ContextTicket, domain.ContextDispute:
	default:
		return nil, fmt.Errorf("%w: context type %q", xerrors.ErrInvalidInput, req.ContextType)
	}

	// Normalize party order so both sides resolve to the same thread.
	partyA, partyB := req.PartyA, req.PartyB
	if partyB < partyA {
		partyA, partyB = partyB, partyA
	}

	return s.repo.OpenOrGetThread(ctx, &domain.Thread{
		ID:           id.New("thr"),
		ContextType:  req.ContextType,
		ContextID:    req.ContextID,
		PartyA:       partyA,
		PartyB:       partyB,
		ContextTitle: req.ContextTitle,
		ContextData:  req.ContextData,
	})
}

// SendMessage persists a user/support message and fans it out. The
// counterparty notification is best-effort: its failure never fails
// the send.
func (s *ChatService) SendMessage(ctx context.Context, threadID, senderID, body string,
	kind domain.MessageKind, metadata map[string]string) (*domain.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, xerrors.ErrEmptyMessage
	}
	if kind == "" {
		kind = domain.KindUser
	}

	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.IsParticipant(senderID) {
		return nil, xerrors.ErrNotParticipant
	}
	if thread.Status != domain.ThreadActive && thread.Status != domain.ThreadDisputed {
		return nil, xerrors.ErrThreadNotActive
	}

	msg := &domain.Message{
		ID:       id.New("msg"),
		ThreadID: threadID,
		SenderID: senderID,
		Kind:     kind,
		Body:     body,
		Metadata: metadata,
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.metrics.IncrMessage(string(kind))

	s.pushToThread(thread, "chat.message", msg)

	if kind == domain.KindUser {
		if other := thread.Counterparty(senderID); other != "" {
			s.notifier.Notify(ctx, other, "CHAT_MESSAGE",
				"New message",
				truncate(body, 120),
				map[string]string{"thread_id": threadID})
		}
	}
	return msg, nil
}

// EmitSystemMessage synthesizes a system-kind message for a workflow
// action. Unknown actions fall back to a generic body rather than
// failing; critical actions notify both parties and attached support.
func (s *ChatService) EmitSystemMessage(ctx context.Context, threadID string,
	action SystemAction, metadata map[string]string) (*domain.Message, error) {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	def, known := systemActions[action]
	body := def.body
	if !known {
		s.logger.Warn("unknown system action", zap.String("action", string(action)))
		body = fmt.Sprintf("Action: %s", action)
	}

	if metadata == nil {
		metadata = make(map[string]string, 1)
	}
	metadata["action"] = string(action)

	msg := &domain.Message{
		ID:       id.New("msg"),
		ThreadID: threadID,
		SenderID: "system",
		Kind:     domain.KindSystem,
		Body:     body,
		Metadata: metadata,
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.metrics.IncrMessage(string(domain.KindSystem))

	s.pushToThread(thread, "chat.message", msg)

	if known && def.critical {
		recipients := []string{thread.PartyA, thread.PartyB}
		if thread.SupportUserID != nil {
			recipients = append(recipients, *thread.SupportUserID)
		}
		s.notifier.NotifyMany(ctx, recipients, "CHAT_SYSTEM_"+strings.ToUpper(string(action)),
			"Order update", body, map[string]string{"thread_id": threadID})
	}
	return msg, nil
}

// GetMessages returns a page of messages for a participant.
func (s *ChatService) GetMessages(ctx context.Context, threadID, userID, beforeID string, limit int) ([]domain.Message, error) {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.IsParticipant(userID) {
		return nil, xerrors.ErrNotParticipant
	}
	return s.repo.ListMessages(ctx, threadID, beforeID, limit)
}

// DeleteMessage soft-deletes a message. The row stays for audit; only
// the visibility flag flips, and the other participants learn about it
// over the realtime channel.
func (s *ChatService) DeleteMessage(ctx context.Context, threadID, userID, messageID string) error {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.IsParticipant(userID) {
		return xerrors.ErrNotParticipant
	}
	if err := s.repo.SoftDeleteMessage(ctx, messageID); err != nil {
		return err
	}
	s.pushToThread(thread, "chat.message.deleted", map[string]string{
		"thread_id":  threadID,
		"message_id": messageID,
	})
	return nil
}

// MarkAsRead updates the caller's read row and broadcasts the read
// receipt to the other participants.
func (s *ChatService) MarkAsRead(ctx context.Context, threadID, userID, lastMessageID string) error {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.IsParticipant(userID) {
		return xerrors.ErrNotParticipant
	}
	if err := s.repo.MarkRead(ctx, threadID, userID, lastMessageID); err != nil {
		return err
	}
	s.pushToThread(thread, "chat.read", map[string]string{
		"thread_id":            threadID,
		"user_id":              userID,
		"last_read_message_id": lastMessageID,
	})
	return nil
}

// GetUserThreads returns the caller's conversation list.
func (s *ChatService) GetUserThreads(ctx context.Context, userID string) ([]domain.ThreadSummary, error) {
	return s.repo.ListUserThreads(ctx, userID)
}

// RequestSupport attaches a support user and announces it in-thread.
func (s *ChatService) RequestSupport(ctx context.Context, threadID, requesterID, supportUserID string) error {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.IsParticipant(requesterID) {
		return xerrors.ErrNotParticipant
	}
	if err := s.repo.AttachSupport(ctx, threadID, supportUserID); err != nil {
		return err
	}
	_, err = s.EmitSystemMessage(ctx, threadID, ActionRequestSupport,
		map[string]string{"support_user_id": supportUserID})
	return err
}

// CloseThread transitions active -> closed after an authorization
// check, and synthesizes the closing system message.
func (s *ChatService) CloseThread(ctx context.Context, threadID, userID string) error {
	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if !thread.IsParticipant(userID) {
		return xerrors.ErrNotParticipant
	}
	if err := s.repo.UpdateThreadStatus(ctx, threadID, domain.ThreadClosed); err != nil {
		return err
	}
	if _, err := s.EmitSystemMessage(ctx, threadID, ActionCloseThread,
		map[string]string{"closed_by": userID}); err != nil {
		// The thread is closed; a failed closing note is not worth
		// surfacing to the caller.
		s.logger.Warn("close-thread system message failed",
			zap.String("thread_id", threadID), zap.Error(err))
	}
	return nil
}

func (s *ChatService) pushToThread(thread *domain.Thread, eventType string, data interface{}) {
	if s.broadcast == nil {
		return
	}
	event := map[string]interface{}{"type": eventType, "data": data}
	s.broadcast.PushToUser(thread.PartyA, event)
	s.broadcast.PushToUser(thread.PartyB, event)
	if thread.SupportUserID != nil {
		s.broadcast.PushToUser(*thread.SupportUserID, event)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
