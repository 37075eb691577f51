package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ThreadContext scopes a chat thread to a transactional context.
type ThreadContext string

const (
	ContextOrder   ThreadContext = "order"
	ContextAuction ThreadContext = "auction"
	ContextTicket  ThreadContext = "ticket"
	ContextDispute ThreadContext = "dispute"
)

// ThreadStatus lifecycle: active is initial, closed/cancelled are terminal,
// disputed is reachable from active.
type ThreadStatus string

const (
	ThreadActive    ThreadStatus = "active"
	ThreadClosed    ThreadStatus = "closed"
	ThreadCancelled ThreadStatus = "cancelled"
	ThreadDisputed  ThreadStatus = "disputed"
)

// ContextData carries the transactional payload a thread is about.
type ContextData struct {
	Amount   decimal.Decimal   `json:"amount,omitempty"`
	Currency string            `json:"currency,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Thread is a conversation between two parties scoped to one context.
// At most one active thread exists per (context_type, context_id,
// party_a, party_b); the open-or-get operation enforces that.
type Thread struct {
	ID            string        `json:"id"`
	ContextType   ThreadContext `json:"context_type"`
	ContextID     string        `json:"context_id"`
	PartyA        string        `json:"party_a"`
	PartyB        string        `json:"party_b"`
	SupportUserID *string       `json:"support_user_id,omitempty"`
	ContextTitle  string        `json:"context_title,omitempty"`
	ContextData   ContextData   `json:"context_data"`
	Status        ThreadStatus  `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	LastMessageAt time.Time     `json:"last_message_at"`
}

// IsParticipant reports whether userID may act on the thread.
func (t *Thread) IsParticipant(userID string) bool {
	if userID == t.PartyA || userID == t.PartyB {
		return true
	}
	return t.SupportUserID != nil && *t.SupportUserID == userID
}

// Counterparty returns the other human party, or "" if userID is not a party.
func (t *Thread) Counterparty(userID string) string {
	switch userID {
	case t.PartyA:
		return t.PartyB
	case t.PartyB:
		return t.PartyA
	}
	return ""
}

// MessageKind distinguishes user-authored, service-synthesized and
// support messages.
type MessageKind string

const (
	KindUser    MessageKind = "user"
	KindSystem  MessageKind = "system"
	KindSupport MessageKind = "support"
)

// Message is immutable once created except for soft delete and
// metadata enrichment.
type Message struct {
	ID        string            `json:"id"`
	ThreadID  string            `json:"thread_id"`
	SenderID  string            `json:"sender_id"`
	Kind      MessageKind       `json:"kind"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	IsDeleted bool              `json:"is_deleted"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// TypingStatus is ephemeral; rows live in redis under a short TTL and
// are read purely for the UI indicator.
type TypingStatus struct {
	ThreadID  string    `json:"thread_id"`
	UserID    string    `json:"user_id"`
	IsTyping  bool      `json:"is_typing"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReadStatus tracks per-user read position, one row per (thread, user).
type ReadStatus struct {
	ThreadID          string    `json:"thread_id"`
	UserID            string    `json:"user_id"`
	LastReadMessageID *string   `json:"last_read_message_id,omitempty"`
	LastReadAt        time.Time `json:"last_read_at"`
}

// ThreadSummary is a conversation-list row: thread plus unread count.
type ThreadSummary struct {
	Thread      Thread   `json:"thread"`
	UnreadCount int      `json:"unread_count"`
	LastMessage *Message `json:"last_message,omitempty"`
}
