package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type SessionStore interface {
	Load(ctx context.Context, conversationID string) (*State, bool, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, conversationID string) error
}

// RawSessionCache is satisfied by cache.RedisCache.
type RawSessionCache interface {
	LoadSession(ctx context.Context, conversationID string) ([]byte, bool, error)
	SaveSession(ctx context.Context, conversationID string, data []byte, ttl time.Duration) error
	DeleteSession(ctx context.Context, conversationID string) error
}

// RedisSessionStore keeps conversation state as JSON with a sliding TTL.
type RedisSessionStore struct {
	cache RawSessionCache
	ttl   time.Duration
}

func NewRedisSessionStore(cache RawSessionCache, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{cache: cache, ttl: ttl}
}

func (s *RedisSessionStore) Load(ctx context.Context, conversationID string) (*State, bool, error) {
	data, ok, err := s.cache.LoadSession(ctx, conversationID)
	if err != nil || !ok {
		return nil, false, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", conversationID, err)
	}
	return &state, true, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.cache.SaveSession(ctx, state.ConversationID, data, s.ttl)
}

func (s *RedisSessionStore) Delete(ctx context.Context, conversationID string) error {
	return s.cache.DeleteSession(ctx, conversationID)
}

// MemorySessionStore is used when no Redis is configured. Sessions do not expire.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]State
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]State)}
}

func (s *MemorySessionStore) Load(_ context.Context, conversationID string) (*State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[conversationID]
	if !ok {
		return nil, false, nil
	}
	return &state, true, nil
}

func (s *MemorySessionStore) Save(_ context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.ConversationID] = *state
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, conversationID)
	return nil
}
