package models

import (
	"strings"
	"testing"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from ConversationState
		to   ConversationState
		want bool
	}{
		{"idle to main menu", StateIdle, StateMainMenu, true},
		{"main menu to active flow", StateMainMenu, StateActiveFlow, true},
		{"main menu to cancelled", StateMainMenu, StateCancelled, true},
		{"active flow self-loop", StateActiveFlow, StateActiveFlow, true},
		{"active flow to main menu", StateActiveFlow, StateMainMenu, true},
		{"active flow to complete", StateActiveFlow, StateComplete, true},
		{"active flow to cancelled", StateActiveFlow, StateCancelled, true},
		{"idle to active flow skips menu", StateIdle, StateActiveFlow, false},
		{"main menu to complete", StateMainMenu, StateComplete, false},
		{"complete has no exits", StateComplete, StateMainMenu, false},
		{"cancelled has no exits", StateCancelled, StateIdle, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestIsTerminalState(t *testing.T) {
	if !IsTerminalState(StateComplete) || !IsTerminalState(StateCancelled) {
		t.Error("Expected complete and cancelled to be terminal")
	}
	for _, s := range []ConversationState{StateIdle, StateMainMenu, StateActiveFlow} {
		if IsTerminalState(s) {
			t.Errorf("Expected %s to be non-terminal", s)
		}
	}
}

func TestNewConversationContext(t *testing.T) {
	c := NewConversationContext("+15551234567")
	if c.UserID != "+15551234567" {
		t.Errorf("Expected user id to be set, got %q", c.UserID)
	}
	if c.State != StateIdle {
		t.Errorf("Expected fresh context in idle state, got %s", c.State)
	}
	if !c.IsActive() {
		t.Error("Expected fresh context to be active")
	}
	if c.CreatedAt.IsZero() || c.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}
}

func TestConversationContextData(t *testing.T) {
	c := NewConversationContext("u1")

	if _, ok := c.GetData("missing"); ok {
		t.Error("Expected missing key to report absent")
	}

	c.SetData("category", "bicycle")
	if v, ok := c.GetData("category"); !ok || v != "bicycle" {
		t.Errorf("Expected stored value, got %q ok=%v", v, ok)
	}

	// Empty values are stored, not absent: a skipped optional slot still
	// renders as an empty placeholder.
	c.SetData("location", "")
	if v, ok := c.GetData("location"); !ok || v != "" {
		t.Errorf("Expected empty value stored, got %q ok=%v", v, ok)
	}

	// SetData must work on a context with a nil map (e.g. decoded from JSON).
	var decoded ConversationContext
	decoded.SetData("k", "v")
	if v, _ := decoded.GetData("k"); v != "v" {
		t.Errorf("Expected SetData on nil map to work, got %q", v)
	}
}

func TestEnterAndClearFlow(t *testing.T) {
	c := NewConversationContext("u1")
	c.EnterFlow("report_item", "ask_category")

	if c.State != StateActiveFlow {
		t.Errorf("Expected active flow state, got %s", c.State)
	}
	if c.ActiveFlowID != "report_item" || c.CurrentStepID != "ask_category" {
		t.Errorf("Expected flow/step set, got %q/%q", c.ActiveFlowID, c.CurrentStepID)
	}

	c.SetData("category", "bicycle")
	c.ClearFlow()
	if c.ActiveFlowID != "" || c.CurrentStepID != "" {
		t.Error("Expected flow/step cleared")
	}
	if _, ok := c.GetData("category"); !ok {
		t.Error("Expected collected data retained after ClearFlow")
	}
}

func TestInboundMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     InboundMessage
		wantErr error
	}{
		{"valid text", InboundMessage{UserID: "u1", Kind: InboundText, Text: "hi"}, nil},
		{"valid button reply", InboundMessage{UserID: "u1", Kind: InboundButtonReply, SelectedID: "opt"}, nil},
		{"missing user id", InboundMessage{Kind: InboundText}, ErrEmptyUserID},
		{"invalid kind", InboundMessage{UserID: "u1", Kind: "carrier_pigeon"}, ErrInvalidInboundKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.msg.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInboundMessageInput(t *testing.T) {
	text := InboundMessage{UserID: "u1", Kind: InboundText, Text: "hello"}
	if text.Input() != "hello" {
		t.Errorf("Expected text input, got %q", text.Input())
	}
	button := InboundMessage{UserID: "u1", Kind: InboundButtonReply, Text: "Bicycle", SelectedID: "bicycle"}
	if button.Input() != "bicycle" {
		t.Errorf("Expected selected id for button reply, got %q", button.Input())
	}
	list := InboundMessage{UserID: "u1", Kind: InboundListReply, SelectedID: "phone"}
	if list.Input() != "phone" {
		t.Errorf("Expected selected id for list reply, got %q", list.Input())
	}
}

func TestOutboundMessageValidate(t *testing.T) {
	longLabel := strings.Repeat("x", MaxOptionLabelLength+1)

	tests := []struct {
		name    string
		msg     OutboundMessage
		wantErr error
	}{
		{"valid text", TextMessage("hello"), nil},
		{"empty body", OutboundMessage{Kind: OutboundText}, ErrEmptyBody},
		{"body too long", TextMessage(strings.Repeat("a", MaxOutboundBodyLength+1)), ErrBodyTooLong},
		{"buttons without options", OutboundMessage{Kind: OutboundButtons, Body: "pick"}, ErrMissingOptions},
		{"valid buttons", OutboundMessage{Kind: OutboundButtons, Body: "pick",
			Options: []Option{{ID: "a", Label: "A"}}}, nil},
		{"option without id", OutboundMessage{Kind: OutboundList, Body: "pick",
			Options: []Option{{Label: "A"}}}, ErrEmptyOptionID},
		{"option without label", OutboundMessage{Kind: OutboundList, Body: "pick",
			Options: []Option{{ID: "a"}}}, ErrEmptyOptionLabel},
		{"option label too long", OutboundMessage{Kind: OutboundList, Body: "pick",
			Options: []Option{{ID: "a", Label: longLabel}}}, ErrOptionLabelTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.msg.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	tooMany := OutboundMessage{Kind: OutboundList, Body: "pick"}
	for i := 0; i <= MaxOptionsCount; i++ {
		tooMany.Options = append(tooMany.Options, Option{ID: "a", Label: "A"})
	}
	if err := tooMany.Validate(); err != ErrTooManyOptions {
		t.Errorf("Expected ErrTooManyOptions, got %v", err)
	}
}

func TestItemReportValidate(t *testing.T) {
	valid := ItemReport{Reporter: "u1", Category: CategoryBicycle, Description: "red bike"}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid report, got %v", err)
	}

	missing := ItemReport{Category: CategoryBicycle, Description: "red bike"}
	if err := missing.Validate(); err != ErrEmptyReporter {
		t.Errorf("Expected ErrEmptyReporter, got %v", err)
	}

	badCategory := ItemReport{Reporter: "u1", Category: "zeppelin", Description: "big"}
	if err := badCategory.Validate(); err != ErrInvalidCategory {
		t.Errorf("Expected ErrInvalidCategory, got %v", err)
	}

	noDescription := ItemReport{Reporter: "u1", Category: CategoryPhone}
	if err := noDescription.Validate(); err != ErrEmptyDescription {
		t.Errorf("Expected ErrEmptyDescription, got %v", err)
	}
}

func TestFlowDefinitionLookups(t *testing.T) {
	flow := FlowDefinition{
		ID:    "f",
		Steps: map[string]Step{"s1": {ID: "s1", Type: StepTerminal, Disposition: DispositionComplete}},
		Slots: map[string]Slot{"name": {Name: "name", Type: SlotString}},
	}

	if _, err := flow.StepByID("s1"); err != nil {
		t.Errorf("Expected step found, got %v", err)
	}
	if _, err := flow.StepByID("nope"); err != ErrStepNotFound {
		t.Errorf("Expected ErrStepNotFound, got %v", err)
	}
	if _, ok := flow.SlotByName("name"); !ok {
		t.Error("Expected slot found")
	}
	if _, ok := flow.SlotByName("nope"); ok {
		t.Error("Expected slot missing")
	}
}
