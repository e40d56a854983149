package models

import "errors"

// StepType identifies the variant of a flow step.
type StepType string

const (
	// StepCollect prompts the user for a slot value and awaits input.
	StepCollect StepType = "collect"
	// StepAction invokes a registered handler with templated parameters.
	StepAction StepType = "action"
	// StepResponse emits a templated message and advances immediately.
	StepResponse StepType = "response"
	// StepTerminal ends the flow as complete or cancelled.
	StepTerminal StepType = "terminal"
)

// IsValidStepType checks if the given step type is supported.
func IsValidStepType(t StepType) bool {
	switch t {
	case StepCollect, StepAction, StepResponse, StepTerminal:
		return true
	default:
		return false
	}
}

// SlotType identifies the semantic type of a slot value.
type SlotType string

const (
	// SlotString is a bounded free-form string.
	SlotString SlotType = "string"
	// SlotInteger is a whole number, optionally range-constrained.
	SlotInteger SlotType = "integer"
	// SlotEnum is one of a fixed set of allowed values, matched by value
	// or by configured keyword aliases.
	SlotEnum SlotType = "enum"
	// SlotEmail is a syntactically valid email address.
	SlotEmail SlotType = "email"
	// SlotText is unconstrained free text.
	SlotText SlotType = "text"
)

// IsValidSlotType checks if the given slot type is supported.
func IsValidSlotType(t SlotType) bool {
	switch t {
	case SlotString, SlotInteger, SlotEnum, SlotEmail, SlotText:
		return true
	default:
		return false
	}
}

// TerminalDisposition is the outcome a terminal step assigns to the flow.
type TerminalDisposition string

const (
	// DispositionComplete marks the conversation complete.
	DispositionComplete TerminalDisposition = "complete"
	// DispositionCancelled marks the conversation cancelled.
	DispositionCancelled TerminalDisposition = "cancelled"
)

// IsValidDisposition checks if the given terminal disposition is supported.
func IsValidDisposition(d TerminalDisposition) bool {
	return d == DispositionComplete || d == DispositionCancelled
}

// Slot is a named, typed, validated field collected from the user.
type Slot struct {
	Name      string              `yaml:"-" json:"name"`
	Type      SlotType            `yaml:"type" json:"type"`
	Required  bool                `yaml:"required" json:"required"`
	Prompt    string              `yaml:"prompt" json:"prompt"`
	MinLength int                 `yaml:"min_length" json:"min_length,omitempty"`
	MaxLength int                 `yaml:"max_length" json:"max_length,omitempty"`
	Min       *int                `yaml:"min" json:"min,omitempty"`
	Max       *int                `yaml:"max" json:"max,omitempty"`
	Pattern   string              `yaml:"pattern" json:"pattern,omitempty"`
	Allowed   []string            `yaml:"allowed" json:"allowed,omitempty"`
	Keywords  map[string][]string `yaml:"keywords" json:"keywords,omitempty"`
	SkipWord  string              `yaml:"skip_word" json:"skip_word,omitempty"`
}

// Step is one node in a flow's execution graph.
type Step struct {
	ID          string              `yaml:"-" json:"id"`
	Type        StepType            `yaml:"type" json:"type"`
	Slot        string              `yaml:"slot" json:"slot,omitempty"`
	Prompt      string              `yaml:"prompt" json:"prompt,omitempty"`
	PromptKind  OutboundKind        `yaml:"prompt_kind" json:"prompt_kind,omitempty"`
	Options     []Option            `yaml:"options" json:"options,omitempty"`
	Handler     string              `yaml:"handler" json:"handler,omitempty"`
	Params      map[string]string   `yaml:"params" json:"params,omitempty"`
	Message     string              `yaml:"message" json:"message,omitempty"`
	Next        string              `yaml:"next" json:"next,omitempty"`
	Back        string              `yaml:"back" json:"back,omitempty"`
	ErrorNext   string              `yaml:"error_next" json:"error_next,omitempty"`
	Disposition TerminalDisposition `yaml:"disposition" json:"disposition,omitempty"`
}

// AwaitsInput reports whether the step pauses the flow until the user replies.
func (s *Step) AwaitsInput() bool {
	return s.Type == StepCollect
}

// Trigger describes how a flow is started from the main menu.
type Trigger struct {
	MenuOption string   `yaml:"menu_option" json:"menu_option,omitempty"`
	Keywords   []string `yaml:"keywords" json:"keywords,omitempty"`
}

// FlowDefinition is a named, versioned conversation template. Loaded once at
// startup and immutable thereafter.
type FlowDefinition struct {
	ID          string          `yaml:"-" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Description string          `yaml:"description" json:"description,omitempty"`
	Version     int             `yaml:"version" json:"version,omitempty"`
	Trigger     Trigger         `yaml:"trigger" json:"trigger"`
	InitialStep string          `yaml:"initial_step" json:"initial_step"`
	Slots       map[string]Slot `yaml:"slots" json:"slots,omitempty"`
	Steps       map[string]Step `yaml:"steps" json:"steps"`
}

// ErrStepNotFound is returned when a step id does not exist in a flow.
var ErrStepNotFound = errors.New("step not found in flow")

// StepByID returns the step with the given id.
func (f *FlowDefinition) StepByID(id string) (Step, error) {
	step, ok := f.Steps[id]
	if !ok {
		return Step{}, ErrStepNotFound
	}
	return step, nil
}

// SlotByName returns the slot with the given name.
func (f *FlowDefinition) SlotByName(name string) (Slot, bool) {
	slot, ok := f.Slots[name]
	return slot, ok
}
