package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "kyc:wizard:"

// RedisStore persists wizard state as a JSON blob per user. No TTL:
// wizard progress survives until reset or superseded by the remote
// submission status.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Save(ctx context.Context, userID string, st State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal wizard state: %w", err)
	}
	return s.client.Set(ctx, redisKeyPrefix+userID, payload, 0).Err()
}

func (s *RedisStore) Load(ctx context.Context, userID string) (State, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, fmt.Errorf("unmarshal wizard state: %w", err)
	}
	return st, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, redisKeyPrefix+userID).Err()
}

// MemStore keeps wizard state in memory; used in tests and as a
// degraded fallback when redis is unavailable.
type MemStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemStore() *MemStore {
	return &MemStore{states: make(map[string]State)}
}

func (s *MemStore) Save(_ context.Context, userID string, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = st.clone()
	return nil
}

func (s *MemStore) Load(_ context.Context, userID string) (State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[userID]
	if !ok {
		return State{}, false, nil
	}
	return st.clone(), true, nil
}

func (s *MemStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}
