package models

import "time"

// ConversationState represents the coarse-grained lifecycle state of a
// user's conversation.
type ConversationState string

const (
	// StateIdle is the initial state before any interaction.
	StateIdle ConversationState = "idle"
	// StateMainMenu means the user is choosing from the main menu.
	StateMainMenu ConversationState = "main_menu"
	// StateActiveFlow means a configuration-driven flow is in progress.
	StateActiveFlow ConversationState = "active_flow"
	// StateComplete is a terminal state: the flow finished successfully.
	StateComplete ConversationState = "complete"
	// StateCancelled is a terminal state: the flow was cancelled.
	StateCancelled ConversationState = "cancelled"
)

// stateTransitions enumerates the allowed transitions between conversation
// states. Terminal states have no outgoing transitions; a fresh context is
// created instead.
var stateTransitions = map[ConversationState][]ConversationState{
	StateIdle:     {StateMainMenu},
	StateMainMenu: {StateActiveFlow, StateCancelled},
	StateActiveFlow: {
		StateActiveFlow, // engine advances to a non-terminal step
		StateMainMenu,   // global "menu" navigation command
		StateComplete,
		StateCancelled,
	},
}

// IsValidTransition reports whether moving from one conversation state to
// another is allowed.
func IsValidTransition(from, to ConversationState) bool {
	for _, allowed := range stateTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminalState reports whether the given state has no outgoing transitions.
func IsTerminalState(s ConversationState) bool {
	return s == StateComplete || s == StateCancelled
}

// ConversationContext is the persisted per-user conversation state. It is
// serialized in full on every save and owned by the context store; other
// components hold only transient access during one message-processing cycle.
type ConversationContext struct {
	UserID        string            `json:"user_id"`
	State         ConversationState `json:"state"`
	ActiveFlowID  string            `json:"active_flow_id,omitempty"`
	CurrentStepID string            `json:"current_step_id,omitempty"`
	Data          map[string]string `json:"data,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewConversationContext creates a fresh idle context for a user.
func NewConversationContext(userID string) *ConversationContext {
	now := time.Now().UTC()
	return &ConversationContext{
		UserID:    userID,
		State:     StateIdle,
		Data:      make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetData merges a key/value pair into the context's data map.
func (c *ConversationContext) SetData(key, value string) {
	if c.Data == nil {
		c.Data = make(map[string]string)
	}
	c.Data[key] = value
	c.UpdatedAt = time.Now().UTC()
}

// GetData returns the value stored under key, if any.
func (c *ConversationContext) GetData(key string) (string, bool) {
	if c.Data == nil {
		return "", false
	}
	v, ok := c.Data[key]
	return v, ok
}

// EnterFlow marks the context as running the given flow at its initial step.
func (c *ConversationContext) EnterFlow(flowID, stepID string) {
	c.State = StateActiveFlow
	c.ActiveFlowID = flowID
	c.CurrentStepID = stepID
	c.UpdatedAt = time.Now().UTC()
}

// ClearFlow removes the active flow and step, used when returning to the menu.
// Collected data is retained so a restarted flow can reuse prior answers.
func (c *ConversationContext) ClearFlow() {
	c.ActiveFlowID = ""
	c.CurrentStepID = ""
	c.UpdatedAt = time.Now().UTC()
}

// IsActive reports whether the conversation has not reached a terminal state.
func (c *ConversationContext) IsActive() bool {
	return !IsTerminalState(c.State)
}
