package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ReclaimHQ/ReclaimBot/internal/convstore"
	"github.com/ReclaimHQ/ReclaimBot/internal/engine"
	"github.com/ReclaimHQ/ReclaimBot/internal/flowconfig"
	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// cancelWords end the conversation from any non-terminal state.
var cancelWords = map[string]bool{
	"cancel": true,
	"quit":   true,
	"exit":   true,
	"stop":   true,
}

// Processor routes one inbound message through the conversation lifecycle:
// global commands first, then state-based dispatch into the flow engine. It
// holds no per-conversation state; everything mutable lives in the context
// store, so one Processor serves all users concurrently.
type Processor struct {
	machine *StateMachine
	engine  *engine.Engine
	flows   *flowconfig.Store
	locker  convstore.UserLocker
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithUserLocker sets the per-user lock used to serialize concurrent messages
// from the same user. Defaults to no locking.
func WithUserLocker(locker convstore.UserLocker) ProcessorOption {
	return func(p *Processor) {
		p.locker = locker
	}
}

// NewProcessor creates a message processor.
func NewProcessor(machine *StateMachine, eng *engine.Engine, flows *flowconfig.Store, opts ...ProcessorOption) *Processor {
	p := &Processor{
		machine: machine,
		engine:  eng,
		flows:   flows,
		locker:  convstore.NopLocker{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process handles one inbound message and returns the replies to deliver.
// User-recoverable conditions (validation failures, unrecognized choices)
// come back as replies, not errors; a non-nil error means the message could
// not be processed at all and the caller should not reply.
func (p *Processor) Process(ctx context.Context, in models.InboundMessage) ([]models.OutboundMessage, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("invalid inbound message: %w", err)
	}

	unlock, err := p.locker.Acquire(ctx, in.UserID, convstore.DefaultLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire conversation lock for %s: %w", in.UserID, err)
	}
	defer func() {
		// Release even when the inbound context was cancelled mid-cycle.
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("Processor failed to release conversation lock", "userID", in.UserID, "error", err)
		}
	}()

	conversation, err := p.machine.GetOrCreate(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation context: %w", err)
	}

	input := strings.TrimSpace(in.Input())
	command := strings.ToLower(input)

	if cancelWords[command] && !models.IsTerminalState(conversation.State) {
		return p.cancel(ctx, conversation)
	}
	if command == "done" && !models.IsTerminalState(conversation.State) {
		return p.finishEarly(ctx, conversation)
	}
	if command == "menu" {
		switch conversation.State {
		case models.StateActiveFlow:
			return p.returnToMenu(ctx, conversation)
		case models.StateMainMenu:
			// Already at the menu; re-send it without a transition.
			return []models.OutboundMessage{menuMessage(p.flows.MenuOptions())}, nil
		}
	}
	if command == "back" && conversation.State == models.StateActiveFlow {
		outcome, err := p.engine.Back(ctx, conversation)
		if err != nil {
			return p.recoverDefect(ctx, conversation, err)
		}
		return p.settle(ctx, conversation, outcome)
	}

	switch conversation.State {
	case models.StateIdle:
		return p.handleIdle(ctx, conversation)
	case models.StateMainMenu:
		return p.handleMainMenu(ctx, conversation, input)
	case models.StateActiveFlow:
		outcome, err := p.engine.Advance(ctx, conversation, input)
		if err != nil {
			return p.recoverDefect(ctx, conversation, err)
		}
		return p.settle(ctx, conversation, outcome)
	default:
		// A terminal context should never be stored; recover by starting over.
		slog.Warn("Processor found stored terminal context", "userID", conversation.UserID, "state", conversation.State)
		conversation, err = p.machine.Reset(ctx, conversation.UserID)
		if err != nil {
			return nil, err
		}
		return p.handleIdle(ctx, conversation)
	}
}

// handleIdle greets the user with the main menu.
func (p *Processor) handleIdle(ctx context.Context, conversation *models.ConversationContext) ([]models.OutboundMessage, error) {
	if err := p.machine.Transition(ctx, conversation, models.StateMainMenu); err != nil {
		return nil, err
	}
	return []models.OutboundMessage{menuMessage(p.flows.MenuOptions())}, nil
}

// handleMainMenu matches the input against flow triggers and starts the
// matched flow, or re-prompts with the menu when nothing matches.
func (p *Processor) handleMainMenu(ctx context.Context, conversation *models.ConversationContext, input string) ([]models.OutboundMessage, error) {
	flow, ok := p.flows.MatchTrigger(input)
	if !ok {
		slog.Debug("Processor no flow matched menu input", "userID", conversation.UserID, "input", input)
		return []models.OutboundMessage{
			models.TextMessage(invalidChoice),
			menuMessage(p.flows.MenuOptions()),
		}, nil
	}

	if err := p.machine.Transition(ctx, conversation, models.StateActiveFlow); err != nil {
		return nil, err
	}
	outcome, err := p.engine.Start(ctx, conversation, flow.ID)
	if err != nil {
		return p.recoverDefect(ctx, conversation, err)
	}
	return p.settle(ctx, conversation, outcome)
}

// settle persists the conversation after an engine outcome: terminal
// dispositions end the lifecycle and delete the stored entry, anything else
// is saved with a refreshed expiry.
func (p *Processor) settle(ctx context.Context, conversation *models.ConversationContext, outcome *engine.Outcome) ([]models.OutboundMessage, error) {
	if !outcome.Terminal() {
		if err := p.machine.Save(ctx, conversation); err != nil {
			return nil, err
		}
		return outcome.Messages, nil
	}

	var err error
	switch outcome.Disposition {
	case models.DispositionCancelled:
		err = p.machine.Cancel(ctx, conversation)
	default:
		err = p.machine.Complete(ctx, conversation)
	}
	if err != nil {
		return nil, err
	}
	return outcome.Messages, nil
}

// cancel ends the conversation on an explicit user command.
func (p *Processor) cancel(ctx context.Context, conversation *models.ConversationContext) ([]models.OutboundMessage, error) {
	if conversation.State == models.StateIdle {
		// Nothing in progress; make sure no stale entry lingers.
		if err := p.machine.store.Delete(ctx, conversation.UserID); err != nil {
			return nil, err
		}
	} else if err := p.machine.Cancel(ctx, conversation); err != nil {
		return nil, err
	}
	return []models.OutboundMessage{models.TextMessage(cancelledReply)}, nil
}

// finishEarly handles the "done" command: an active flow ends as complete,
// anything else ends as cancelled. Either way the stored entry is removed.
func (p *Processor) finishEarly(ctx context.Context, conversation *models.ConversationContext) ([]models.OutboundMessage, error) {
	switch conversation.State {
	case models.StateActiveFlow:
		if err := p.machine.Complete(ctx, conversation); err != nil {
			return nil, err
		}
	case models.StateIdle:
		if err := p.machine.store.Delete(ctx, conversation.UserID); err != nil {
			return nil, err
		}
	default:
		if err := p.machine.Cancel(ctx, conversation); err != nil {
			return nil, err
		}
	}
	return []models.OutboundMessage{models.TextMessage(doneReply)}, nil
}

// returnToMenu abandons the active flow and shows the menu again. Collected
// slot data is discarded with the flow.
func (p *Processor) returnToMenu(ctx context.Context, conversation *models.ConversationContext) ([]models.OutboundMessage, error) {
	conversation.ClearFlow()
	if err := p.machine.Transition(ctx, conversation, models.StateMainMenu); err != nil {
		return nil, err
	}
	return []models.OutboundMessage{menuMessage(p.flows.MenuOptions())}, nil
}

// recoverDefect handles engine failures that indicate a configuration or
// data inconsistency rather than bad user input. The conversation is forced
// to cancelled so the user is never left hanging on a broken step, and the
// user sees a single apologetic fallback.
func (p *Processor) recoverDefect(ctx context.Context, conversation *models.ConversationContext, cause error) ([]models.OutboundMessage, error) {
	slog.Error("Processor engine failure, resetting conversation",
		"userID", conversation.UserID, "flowID", conversation.ActiveFlowID,
		"step", conversation.CurrentStepID, "error", cause)

	if err := p.machine.store.Delete(ctx, conversation.UserID); err != nil {
		return nil, errors.Join(cause, err)
	}
	conversation.State = models.StateCancelled
	return []models.OutboundMessage{models.TextMessage(apologyReply)}, nil
}
