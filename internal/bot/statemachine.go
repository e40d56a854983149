// Package bot routes inbound messages through the conversation lifecycle.
//
// The state machine enforces the coarse-grained lifecycle (idle, main menu,
// active flow, complete/cancelled) on top of the context store; the processor
// recognizes global navigation commands and delegates per-step work to the
// flow execution engine.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/convstore"
	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// ErrInvalidTransition signals a rejected state change. The stored context is
// left unchanged when this is returned.
var ErrInvalidTransition = errors.New("invalid conversation state transition")

// StateMachine applies lifecycle transitions to conversation contexts and
// keeps the context store consistent with them. Terminal transitions delete
// the stored entry immediately instead of waiting for expiry.
type StateMachine struct {
	store convstore.Store
	ttl   time.Duration
}

// StateMachineOption configures a StateMachine.
type StateMachineOption func(*StateMachine)

// WithContextTTL overrides the expiry applied on every save.
func WithContextTTL(ttl time.Duration) StateMachineOption {
	return func(m *StateMachine) {
		m.ttl = ttl
	}
}

// NewStateMachine creates a state machine over the given context store.
func NewStateMachine(store convstore.Store, opts ...StateMachineOption) *StateMachine {
	m := &StateMachine{
		store: store,
		ttl:   convstore.DefaultTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreate loads the user's conversation context, creating a fresh idle
// one when none is stored.
func (m *StateMachine) GetOrCreate(ctx context.Context, userID string) (*models.ConversationContext, error) {
	return m.store.GetOrCreate(ctx, userID)
}

// Transition moves the conversation to newState and persists it. A transition
// the lifecycle does not permit returns ErrInvalidTransition and leaves both
// the in-memory context and the stored one untouched.
func (m *StateMachine) Transition(ctx context.Context, conversation *models.ConversationContext, newState models.ConversationState) error {
	if !models.IsValidTransition(conversation.State, newState) {
		slog.Debug("StateMachine rejected transition", "userID", conversation.UserID,
			"from", conversation.State, "to", newState)
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, conversation.State, newState)
	}

	previous := conversation.State
	conversation.State = newState
	if err := m.Save(ctx, conversation); err != nil {
		conversation.State = previous
		return err
	}
	slog.Debug("StateMachine transitioned", "userID", conversation.UserID, "from", previous, "to", newState)
	return nil
}

// Save persists the context with the machine's TTL, refreshing the expiry.
func (m *StateMachine) Save(ctx context.Context, conversation *models.ConversationContext) error {
	if err := m.store.Save(ctx, conversation, m.ttl); err != nil {
		return fmt.Errorf("failed to save conversation context: %w", err)
	}
	return nil
}

// Complete moves the conversation to the complete state and deletes the
// stored entry so the next inbound message starts fresh.
func (m *StateMachine) Complete(ctx context.Context, conversation *models.ConversationContext) error {
	return m.finish(ctx, conversation, models.StateComplete)
}

// Cancel moves the conversation to the cancelled state and deletes the stored
// entry.
func (m *StateMachine) Cancel(ctx context.Context, conversation *models.ConversationContext) error {
	return m.finish(ctx, conversation, models.StateCancelled)
}

func (m *StateMachine) finish(ctx context.Context, conversation *models.ConversationContext, terminal models.ConversationState) error {
	if !models.IsValidTransition(conversation.State, terminal) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, conversation.State, terminal)
	}
	conversation.State = terminal
	if err := m.store.Delete(ctx, conversation.UserID); err != nil {
		return fmt.Errorf("failed to delete conversation context: %w", err)
	}
	slog.Info("StateMachine conversation ended", "userID", conversation.UserID, "state", terminal)
	return nil
}

// Reset discards whatever is stored for the user and hands back a fresh idle
// context. Used when a stored context turns out to be inconsistent with the
// loaded flow definitions.
func (m *StateMachine) Reset(ctx context.Context, userID string) (*models.ConversationContext, error) {
	if err := m.store.Delete(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to reset conversation context: %w", err)
	}
	return m.store.GetOrCreate(ctx, userID)
}
