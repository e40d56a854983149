package convstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	backend "github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis key-value backend.
type RedisStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithPrefix overrides the conversation key prefix.
func WithPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithTTL overrides the default expiry applied on save.
func WithTTL(ttl time.Duration) Option {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore creates a conversation store from an existing Redis client.
func NewRedisStore(client *backend.Client, opts ...Option) *RedisStore {
	store := &RedisStore{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(store)
	}
	slog.Debug("RedisStore created", "prefix", store.prefix, "ttl", store.ttl)
	return store
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

// GetOrCreate returns the stored context for a user, or a fresh idle context
// when none exists or the stored value cannot be decoded.
func (s *RedisStore) GetOrCreate(ctx context.Context, userID string) (*models.ConversationContext, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}

	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, backend.Nil) {
		slog.Debug("RedisStore GetOrCreate creating fresh context", "userID", userID)
		return models.NewConversationContext(userID), nil
	}
	if err != nil {
		slog.Error("RedisStore GetOrCreate failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load conversation for %s: %w", userID, err)
	}

	var conversation models.ConversationContext
	if err := json.Unmarshal(data, &conversation); err != nil {
		// Corrupt state is treated as absent, never fatal.
		slog.Warn("RedisStore GetOrCreate discarding corrupt context", "error", err, "userID", userID)
		return models.NewConversationContext(userID), nil
	}

	slog.Debug("RedisStore GetOrCreate found context", "userID", userID, "state", conversation.State)
	return &conversation, nil
}

// Save serializes the full context and stores it with a refreshed expiry.
func (s *RedisStore) Save(ctx context.Context, conversation *models.ConversationContext, ttl time.Duration) error {
	if conversation == nil || conversation.UserID == "" {
		return models.ErrEmptyUserID
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	data, err := json.Marshal(conversation)
	if err != nil {
		slog.Error("RedisStore Save marshal failed", "error", err, "userID", conversation.UserID)
		return fmt.Errorf("failed to marshal conversation for %s: %w", conversation.UserID, err)
	}
	if err := s.client.Set(ctx, s.key(conversation.UserID), data, ttl).Err(); err != nil {
		slog.Error("RedisStore Save failed", "error", err, "userID", conversation.UserID)
		return fmt.Errorf("failed to save conversation for %s: %w", conversation.UserID, err)
	}

	slog.Debug("RedisStore Save succeeded", "userID", conversation.UserID, "state", conversation.State, "ttl", ttl)
	return nil
}

// Delete removes the stored context for a user.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		slog.Error("RedisStore Delete failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete conversation for %s: %w", userID, err)
	}
	slog.Debug("RedisStore Delete succeeded", "userID", userID)
	return nil
}

// Exists reports whether a context is stored for the user.
func (s *RedisStore) Exists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, models.ErrEmptyUserID
	}
	n, err := s.client.Exists(ctx, s.key(userID)).Result()
	if err != nil {
		slog.Error("RedisStore Exists failed", "error", err, "userID", userID)
		return false, fmt.Errorf("failed to check conversation for %s: %w", userID, err)
	}
	return n > 0, nil
}
