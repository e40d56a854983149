// Package convstore provides durable per-user conversation context storage.
//
// Contexts are serialized in full on every save, keyed by a namespace-prefixed
// user identifier, with an expiry refreshed on every write so abandoned
// conversations clean themselves up. The Redis backend is the production
// store; an in-memory store backs tests.
package convstore

import (
	"context"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// DefaultTTL is the expiry applied to saved contexts when the caller does not
// specify one.
const DefaultTTL = time.Hour

// DefaultKeyPrefix namespaces conversation keys in the backing store.
const DefaultKeyPrefix = "conversation:"

// Store defines the persistence contract for conversation contexts. This is
// the single owner of the persistence layout; nothing else reads or writes
// conversation keys.
type Store interface {
	// GetOrCreate returns the stored context for a user, or a fresh idle
	// context when none exists. A corrupt stored value is treated as absent,
	// never as a fatal error.
	GetOrCreate(ctx context.Context, userID string) (*models.ConversationContext, error)

	// Save persists the full context with the given TTL, refreshing the
	// expiry. A non-positive TTL falls back to DefaultTTL.
	Save(ctx context.Context, conversation *models.ConversationContext, ttl time.Duration) error

	// Delete removes the stored context for a user. Deleting an absent key is
	// not an error.
	Delete(ctx context.Context, userID string) error

	// Exists reports whether a context is stored for the user.
	Exists(ctx context.Context, userID string) (bool, error)
}
