package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore keeps conversations in process memory with the same TTL semantics as Redis.
// Expired entries are swept on Save at most once per TTL, so abandoned
// conversations do not accumulate.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	ttl       time.Duration
	now       func() time.Time
	nextSweep time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, userDetails string) (*Conversation, error) {
	key := strings.TrimSpace(userDetails)
	if key == "" {
		return nil, ErrInvalidUser
	}

	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok && !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrConversationNotFound
	}

	var conv Conversation
	if err := json.Unmarshal(entry.payload, &conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (s *MemoryStore) Save(_ context.Context, c *Conversation) error {
	if err := c.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}

	entry := memoryEntry{payload: payload}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.sweepLocked()
	s.entries[strings.TrimSpace(c.UserDetails)] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	if now.Before(s.nextSweep) {
		return
	}
	for key, entry := range s.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
	s.nextSweep = now.Add(s.ttl)
}

func (s *MemoryStore) Delete(_ context.Context, userDetails string) error {
	key := strings.TrimSpace(userDetails)
	if key == "" {
		return ErrInvalidUser
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}
