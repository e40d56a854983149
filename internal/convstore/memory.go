package convstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// MemoryStore implements Store in process memory. It serializes contexts the
// same way the Redis store does, so round-trip behavior matches production.
// Intended for tests and single-process development.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory conversation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// GetOrCreate returns the stored context for a user, or a fresh idle context.
func (s *MemoryStore) GetOrCreate(ctx context.Context, userID string) (*models.ConversationContext, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}

	s.mu.RLock()
	entry, ok := s.entries[userID]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return models.NewConversationContext(userID), nil
	}

	var conversation models.ConversationContext
	if err := json.Unmarshal(entry.data, &conversation); err != nil {
		slog.Warn("MemoryStore GetOrCreate discarding corrupt context", "error", err, "userID", userID)
		return models.NewConversationContext(userID), nil
	}
	return &conversation, nil
}

// Save stores the serialized context with a refreshed expiry.
func (s *MemoryStore) Save(ctx context.Context, conversation *models.ConversationContext, ttl time.Duration) error {
	if conversation == nil || conversation.UserID == "" {
		return models.ErrEmptyUserID
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(conversation)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[conversation.UserID] = memoryEntry{data: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Delete removes the stored context for a user.
func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrEmptyUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

// Exists reports whether an unexpired context is stored for the user.
func (s *MemoryStore) Exists(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, models.ErrEmptyUserID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[userID]
	return ok && time.Now().Before(entry.expiresAt), nil
}
