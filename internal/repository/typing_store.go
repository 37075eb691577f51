package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
)

// typingTTL bounds how long a stale indicator can survive a client that
// died mid-keystroke; normal operation clears it explicitly.
const typingTTL = 4 * time.Second

// TypingStore keeps ephemeral typing rows in redis, one key per
// (thread, user). Nothing here is ever persisted long-term.
type TypingStore struct {
	client *redis.Client
}

func NewTypingStore(client *redis.Client) *TypingStore {
	return &TypingStore{client: client}
}

func typingKey(threadID, userID string) string {
	return fmt.Sprintf("chat:typing:%s:%s", threadID, userID)
}

// SetTyping marks the user typing (short TTL) or clears the marker.
func (s *TypingStore) SetTyping(ctx context.Context, threadID, userID string, isTyping bool) error {
	key := typingKey(threadID, userID)
	if !isTyping {
		return s.client.Del(ctx, key).Err()
	}
	return s.client.Set(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), typingTTL).Err()
}

// Typing returns who is currently typing in the thread, excluding the
// asking user.
func (s *TypingStore) Typing(ctx context.Context, threadID, exceptUserID string) ([]domain.TypingStatus, error) {
	pattern := fmt.Sprintf("chat:typing:%s:*", threadID)

	var out []domain.TypingStatus
	iter := s.client.Scan(ctx, 0, pattern, 64).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		userID := key[len(fmt.Sprintf("chat:typing:%s:", threadID)):]
		if userID == exceptUserID {
			continue
		}
		raw, err := s.client.Get(ctx, key).Result()
		if err != nil {
			continue // expired between scan and get
		}
		ts, _ := time.Parse(time.RFC3339Nano, raw)
		out = append(out, domain.TypingStatus{
			ThreadID:  threadID,
			UserID:    userID,
			IsTyping:  true,
			UpdatedAt: ts,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
