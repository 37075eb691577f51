// Package sync is the client-side conversation engine: it reconciles
// locally-optimistic state against realtime-delivered state. Messages
// merge idempotently keyed by id, optimistic sends are tagged with a
// correlation id until the server confirms them, and the engine owns a
// lifecycle context so late confirmations after Close are discarded
// instead of applied to a dead consumer.
package sync

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
)

// Conversation holds the visible message list for one thread. Safe for
// concurrent use: realtime events and user actions arrive on
// different goroutines.
type Conversation struct {
	mu sync.Mutex

	threadID string
	selfID   string

	messages []domain.Message
	byID     map[string]int // message id -> index in messages

	// pending maps correlation id -> temp message id for optimistic
	// sends awaiting server confirmation.
	pending map[string]string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewConversation creates the engine for one thread. selfID is the
// local user; rows from the realtime channel authored by selfID are
// suppressed because the optimistic local copy is authoritative for
// the sender.
func NewConversation(threadID, selfID string) *Conversation {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conversation{
		threadID: threadID,
		selfID:   selfID,
		byID:     make(map[string]int),
		pending:  make(map[string]string),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Context is the engine's lifecycle context; thread every async
// operation tied to this conversation through it.
func (c *Conversation) Context() context.Context { return c.ctx }

// Close cancels the lifecycle context. Confirm/Fail/Merge calls after
// Close are no-ops.
func (c *Conversation) Close() { c.cancel() }

func (c *Conversation) closed() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Messages returns a copy of the list in display order.
func (c *Conversation) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Seed loads the initial fetch result.
func (c *Conversation) Seed(msgs []domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range msgs {
		c.upsertLocked(msgs[i], false)
	}
}

// StageSend appends an optimistic message and returns its correlation
// id. The temp entry carries an immediate timestamp and a temp id so
// the list renders instantly while the network call is in flight.
// After Close it returns "" and stages nothing: a pending entry with
// no Confirm/Fail to reconcile it would stay pending forever.
func (c *Conversation) StageSend(body string) (correlationID string) {
	if c.closed() {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	correlationID = uuid.New().String()
	tempID := "tmp_" + correlationID
	c.pending[correlationID] = tempID
	c.upsertLocked(domain.Message{
		ID:        tempID,
		ThreadID:  c.threadID,
		SenderID:  c.selfID,
		Kind:      domain.KindUser,
		Body:      body,
		CreatedAt: time.Now(),
		Metadata:  map[string]string{"pending": "true"},
	}, false)
	return correlationID
}

// Confirm swaps the optimistic entry for the server-issued row.
func (c *Conversation) Confirm(correlationID string, server domain.Message) {
	if c.closed() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tempID, ok := c.pending[correlationID]
	if !ok {
		// Already reconciled (or unknown); merge defensively.
		c.upsertLocked(server, true)
		return
	}
	delete(c.pending, correlationID)
	c.removeLocked(tempID)
	c.upsertLocked(server, true)
}

// Fail excises the optimistic entry and returns its body so the caller
// can restore the input for a retry. ok is false when the correlation
// id is unknown (already confirmed, or the engine was closed).
func (c *Conversation) Fail(correlationID string) (body string, ok bool) {
	if c.closed() {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tempID, found := c.pending[correlationID]
	if !found {
		return "", false
	}
	delete(c.pending, correlationID)
	if i, exists := c.byID[tempID]; exists {
		body = c.messages[i].Body
	}
	c.removeLocked(tempID)
	return body, true
}

// Merge applies a realtime-delivered row. Duplicates update metadata in
// place, never duplicate; rows authored by the local user are ignored
// (their optimistic copy is authoritative). Returns true when the list
// changed.
func (c *Conversation) Merge(msg domain.Message) bool {
	if c.closed() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[msg.ID]; exists {
		i := c.byID[msg.ID]
		c.messages[i].Metadata = msg.Metadata
		c.messages[i].IsDeleted = msg.IsDeleted
		c.messages[i].UpdatedAt = msg.UpdatedAt
		return false
	}
	if msg.SenderID == c.selfID && msg.Kind == domain.KindUser {
		return false
	}
	c.upsertLocked(msg, true)
	return true
}

// upsertLocked inserts or replaces by id and keeps the list ordered by
// the server-assigned created_at, not client arrival order.
func (c *Conversation) upsertLocked(msg domain.Message, resort bool) {
	if i, exists := c.byID[msg.ID]; exists {
		c.messages[i] = msg
	} else {
		c.messages = append(c.messages, msg)
		c.byID[msg.ID] = len(c.messages) - 1
	}
	if resort || len(c.messages) > 1 {
		sort.SliceStable(c.messages, func(i, j int) bool {
			return c.messages[i].CreatedAt.Before(c.messages[j].CreatedAt)
		})
		c.reindexLocked()
	}
}

func (c *Conversation) removeLocked(msgID string) {
	i, exists := c.byID[msgID]
	if !exists {
		return
	}
	c.messages = append(c.messages[:i], c.messages[i+1:]...)
	delete(c.byID, msgID)
	c.reindexLocked()
}

func (c *Conversation) reindexLocked() {
	for i := range c.messages {
		c.byID[c.messages[i].ID] = i
	}
}
