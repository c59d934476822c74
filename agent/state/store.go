package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultStoreKeyPrefix = "commerce:conversation:"
	defaultStoreTTL       = 24 * time.Hour
)

// Store keeps conversations between assistant turns.
// Load returns ErrConversationNotFound for a caller with no (or expired) history.
type Store interface {
	Load(ctx context.Context, userDetails string) (*Conversation, error)
	Save(ctx context.Context, c *Conversation) error
	Delete(ctx context.Context, userDetails string) error
}

// StoreOption customizes UpstashRedisStore.
type StoreOption func(*UpstashRedisStore)

func WithKeyPrefix(prefix string) StoreOption {
	return func(s *UpstashRedisStore) {
		if p := strings.TrimSpace(prefix); p != "" {
			s.keyPrefix = p
		}
	}
}

// WithTTL sets the key expiry; zero keeps conversations forever.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *UpstashRedisStore) {
		s.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) StoreOption {
	return func(s *UpstashRedisStore) {
		if client != nil && s.client != nil {
			s.client.http = client
		}
	}
}

var _ Store = (*UpstashRedisStore)(nil)

// UpstashRedisStore keeps one JSON document per caller in Upstash Redis.
type UpstashRedisStore struct {
	client    *restClient
	keyPrefix string
	ttl       time.Duration
}

func NewUpstashRedisStore(cfg UpstashRedisConfig, opts ...StoreOption) (*UpstashRedisStore, error) {
	client, err := newRESTClient(cfg)
	if err != nil {
		return nil, err
	}

	s := &UpstashRedisStore{
		client:    client,
		keyPrefix: defaultStoreKeyPrefix,
		ttl:       defaultStoreTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return s, nil
}

func (s *UpstashRedisStore) Load(ctx context.Context, userDetails string) (*Conversation, error) {
	key, err := s.redisKey(userDetails)
	if err != nil {
		return nil, err
	}

	result, err := s.client.do(ctx, "GET", key)
	if err != nil {
		return nil, err
	}
	result = bytes.TrimSpace(result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return nil, ErrConversationNotFound
	}

	// GET returns the stored document as a JSON string
	var doc string
	if err := json.Unmarshal(result, &doc); err != nil {
		return nil, fmt.Errorf("decode conversation payload: %w", err)
	}
	conv := new(Conversation)
	if err := json.Unmarshal([]byte(doc), conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	if err := conv.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation loaded from store: %w", err)
	}
	return conv, nil
}

func (s *UpstashRedisStore) Save(ctx context.Context, c *Conversation) error {
	if err := c.Validate(); err != nil {
		return err
	}
	key, err := s.redisKey(c.UserDetails)
	if err != nil {
		return err
	}

	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	c.UpdatedAt = c.UpdatedAt.UTC()

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}

	args := []any{"SET", key, string(payload)}
	if s.ttl > 0 {
		args = append(args, "EX", expireSeconds(s.ttl))
	}
	_, err = s.client.do(ctx, args...)
	return err
}

func (s *UpstashRedisStore) Delete(ctx context.Context, userDetails string) error {
	key, err := s.redisKey(userDetails)
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, "DEL", key)
	return err
}

func (s *UpstashRedisStore) redisKey(userDetails string) (string, error) {
	userDetails = strings.TrimSpace(userDetails)
	if userDetails == "" {
		return "", ErrInvalidUser
	}
	prefix := s.keyPrefix
	if prefix == "" {
		prefix = defaultStoreKeyPrefix
	}
	return prefix + userDetails, nil
}
