// Package engine interprets flow definitions against a user's conversation
// context.
//
// Given the active flow, the current step, and user input it decides the next
// step, validates and stores slot values, renders message templates, and
// invokes registered handlers. Chains of response/action steps resolve within
// a single inbound message; the engine only pauses on steps that await input.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/flowconfig"
	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	"github.com/ReclaimHQ/ReclaimBot/internal/registry"
)

// Error variables for non-recoverable engine failures. These signal
// configuration or data corruption defects, not user errors.
var (
	ErrUnknownFlow   = errors.New("active flow not found in definitions")
	ErrUnknownStep   = errors.New("current step not found in flow")
	ErrHandlerFailed = errors.New("handler invocation failed")
	ErrStepOverflow  = errors.New("step chain exceeded limit without awaiting input")
)

// maxChainLength bounds how many response/action steps resolve within one
// inbound message. Load-time validation rejects next-edge cycles; this guards
// against error-path loops.
const maxChainLength = 32

// DefaultHandlerTimeout bounds a single handler invocation.
const DefaultHandlerTimeout = 30 * time.Second

// Outcome carries the result of advancing a conversation: the mutated
// context, the step the conversation now rests on, and the outbound messages
// to deliver.
type Outcome struct {
	Context     *models.ConversationContext
	StepID      string
	Messages    []models.OutboundMessage
	Disposition models.TerminalDisposition // set when a terminal step was reached
}

// Terminal reports whether the outcome ended the flow.
func (o *Outcome) Terminal() bool {
	return o.Disposition != ""
}

// Engine executes flow definitions. It holds no per-conversation state; all
// mutable state lives in the ConversationContext passed through each call.
type Engine struct {
	flows          *flowconfig.Store
	handlers       *registry.Registry
	handlerTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithHandlerTimeout overrides the per-invocation handler timeout.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		e.handlerTimeout = timeout
	}
}

// New creates a flow execution engine.
func New(flows *flowconfig.Store, handlers *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		flows:          flows,
		handlers:       handlers,
		handlerTimeout: DefaultHandlerTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start enters the given flow at its initial step and runs forward until the
// flow awaits input or terminates.
func (e *Engine) Start(ctx context.Context, conversation *models.ConversationContext, flowID string) (*Outcome, error) {
	flow, ok := e.flows.Flow(flowID)
	if !ok {
		slog.Error("Engine Start unknown flow", "flowID", flowID, "userID", conversation.UserID)
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlow, flowID)
	}

	conversation.EnterFlow(flow.ID, flow.InitialStep)
	slog.Info("Engine started flow", "flowID", flow.ID, "userID", conversation.UserID, "step", flow.InitialStep)
	return e.run(ctx, conversation, flow, flow.InitialStep)
}

// Advance processes user input against the conversation's current step and
// runs forward until the flow awaits input again or terminates.
func (e *Engine) Advance(ctx context.Context, conversation *models.ConversationContext, input string) (*Outcome, error) {
	flow, step, err := e.current(conversation)
	if err != nil {
		return nil, err
	}
	if step.Type != models.StepCollect {
		// Only collect steps await input; resting on anything else means the
		// stored context disagrees with the flow definition.
		slog.Error("Engine Advance on non-collect step", "flowID", flow.ID, "step", step.ID, "type", step.Type)
		return nil, fmt.Errorf("%w: step %q does not await input", ErrUnknownStep, step.ID)
	}

	slot, ok := flow.SlotByName(step.Slot)
	if !ok {
		return nil, fmt.Errorf("%w: step %q references slot %q", ErrUnknownStep, step.ID, step.Slot)
	}

	value, err := ValidateSlot(slot, input)
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		// Recoverable: re-prompt with the specific validation message and
		// keep the conversation on the same step.
		slog.Debug("Engine slot validation failed", "flowID", flow.ID, "step", step.ID,
			"slot", slot.Name, "reason", validationErr.Message)
		e.bumpAttempts(conversation, step.ID)
		messages := []models.OutboundMessage{models.TextMessage(validationErr.Message)}
		prompt, perr := e.promptFor(flow, step, conversation)
		if perr != nil {
			return nil, perr
		}
		messages = append(messages, prompt...)
		return &Outcome{Context: conversation, StepID: step.ID, Messages: messages}, nil
	}
	if err != nil {
		return nil, err
	}

	conversation.SetData(slot.Name, value)
	slog.Debug("Engine slot collected", "flowID", flow.ID, "step", step.ID, "slot", slot.Name)
	return e.run(ctx, conversation, flow, step.Next)
}

// Back moves the conversation to the current step's declared back-target. If
// the step defines none, it re-sends the current prompt unchanged. Collected
// slot values are retained either way; re-collecting overwrites them.
func (e *Engine) Back(ctx context.Context, conversation *models.ConversationContext) (*Outcome, error) {
	flow, step, err := e.current(conversation)
	if err != nil {
		return nil, err
	}
	target := step.Back
	if target == "" {
		slog.Debug("Engine Back with no back-target, re-prompting", "flowID", flow.ID, "step", step.ID)
		target = step.ID
	}
	return e.run(ctx, conversation, flow, target)
}

// Reprompt re-sends the prompt for the conversation's current step.
func (e *Engine) Reprompt(conversation *models.ConversationContext) (*Outcome, error) {
	flow, step, err := e.current(conversation)
	if err != nil {
		return nil, err
	}
	messages, err := e.promptFor(flow, step, conversation)
	if err != nil {
		return nil, err
	}
	return &Outcome{Context: conversation, StepID: step.ID, Messages: messages}, nil
}

// current resolves the conversation's active flow and step.
func (e *Engine) current(conversation *models.ConversationContext) (models.FlowDefinition, models.Step, error) {
	flow, ok := e.flows.Flow(conversation.ActiveFlowID)
	if !ok {
		slog.Error("Engine unknown active flow", "flowID", conversation.ActiveFlowID, "userID", conversation.UserID)
		return models.FlowDefinition{}, models.Step{}, fmt.Errorf("%w: %q", ErrUnknownFlow, conversation.ActiveFlowID)
	}
	step, err := flow.StepByID(conversation.CurrentStepID)
	if err != nil {
		slog.Error("Engine unknown current step", "flowID", flow.ID, "step", conversation.CurrentStepID, "userID", conversation.UserID)
		return models.FlowDefinition{}, models.Step{}, fmt.Errorf("%w: %q in flow %q", ErrUnknownStep, conversation.CurrentStepID, flow.ID)
	}
	return flow, step, nil
}

// run executes steps starting at stepID until one awaits input or the flow
// terminates, collecting outbound messages along the way.
func (e *Engine) run(ctx context.Context, conversation *models.ConversationContext, flow models.FlowDefinition, stepID string) (*Outcome, error) {
	var messages []models.OutboundMessage

	for i := 0; i < maxChainLength; i++ {
		step, err := flow.StepByID(stepID)
		if err != nil {
			return nil, fmt.Errorf("%w: %q in flow %q", ErrUnknownStep, stepID, flow.ID)
		}
		conversation.CurrentStepID = stepID

		switch step.Type {
		case models.StepCollect:
			prompt, err := e.promptFor(flow, step, conversation)
			if err != nil {
				return nil, err
			}
			messages = append(messages, prompt...)
			return &Outcome{Context: conversation, StepID: stepID, Messages: messages}, nil

		case models.StepResponse:
			body, err := Render(step.Message, conversation)
			if err != nil {
				return nil, err
			}
			messages = append(messages, models.OutboundMessage{
				Kind:    step.PromptKind,
				Body:    body,
				Options: step.Options,
			})
			stepID = step.Next

		case models.StepAction:
			nextID, msg, err := e.invokeAction(ctx, conversation, flow, step)
			if err != nil {
				return nil, err
			}
			if msg != nil {
				messages = append(messages, *msg)
			}
			stepID = nextID

		case models.StepTerminal:
			if step.Message != "" {
				body, err := Render(step.Message, conversation)
				if err != nil {
					return nil, err
				}
				messages = append(messages, models.TextMessage(body))
			}
			slog.Info("Engine flow reached terminal step", "flowID", flow.ID,
				"step", stepID, "disposition", step.Disposition, "userID", conversation.UserID)
			return &Outcome{
				Context:     conversation,
				StepID:      stepID,
				Messages:    messages,
				Disposition: step.Disposition,
			}, nil

		default:
			return nil, fmt.Errorf("%w: step %q has unknown type %q", ErrUnknownStep, stepID, step.Type)
		}
	}

	slog.Error("Engine step chain overflow", "flowID", flow.ID, "userID", conversation.UserID)
	return nil, fmt.Errorf("%w: flow %q", ErrStepOverflow, flow.ID)
}

// invokeAction runs one action step: builds the parameter map from templates,
// resolves and invokes the handler, and stores its result under the reserved
// action.<step_id> prefix. Handler failure routes to the step's error path
// when declared.
func (e *Engine) invokeAction(ctx context.Context, conversation *models.ConversationContext, flow models.FlowDefinition, step models.Step) (string, *models.OutboundMessage, error) {
	params := make(map[string]string, len(step.Params))
	for key, template := range step.Params {
		value, err := Render(template, conversation)
		if err != nil {
			return "", nil, err
		}
		params[key] = value
	}

	handler, err := e.handlers.Resolve(step.Handler)
	if err != nil {
		slog.Error("Engine handler resolution failed", "flowID", flow.ID, "step", step.ID, "handler", step.Handler, "error", err)
		return "", nil, fmt.Errorf("%w: %v", ErrHandlerFailed, err)
	}

	invokeCtx, cancel := context.WithTimeout(ctx, e.handlerTimeout)
	defer cancel()

	result, err := handler.Invoke(invokeCtx, params)
	if err != nil {
		slog.Error("Engine handler invocation failed", "flowID", flow.ID, "step", step.ID, "handler", step.Handler, "error", err)
		if step.ErrorNext != "" {
			slog.Info("Engine routing handler failure to error path", "flowID", flow.ID, "step", step.ID, "errorNext", step.ErrorNext)
			return step.ErrorNext, nil, nil
		}
		return "", nil, fmt.Errorf("%w: handler %q: %v", ErrHandlerFailed, step.Handler, err)
	}

	for key, value := range result {
		conversation.SetData("action."+step.ID+"."+key, value)
	}
	slog.Debug("Engine handler succeeded", "flowID", flow.ID, "step", step.ID, "handler", step.Handler, "resultKeys", len(result))
	return step.Next, nil, nil
}

// promptFor builds the outbound message(s) for a collect step: the slot
// prompt (step-level prompt overrides it), rendered as a template, with
// button/list options when declared.
func (e *Engine) promptFor(flow models.FlowDefinition, step models.Step, conversation *models.ConversationContext) ([]models.OutboundMessage, error) {
	prompt := step.Prompt
	if prompt == "" {
		if slot, ok := flow.SlotByName(step.Slot); ok {
			prompt = slot.Prompt
		}
	}
	if prompt == "" {
		return nil, fmt.Errorf("%w: step %q has no prompt", ErrUnknownStep, step.ID)
	}
	body, err := Render(prompt, conversation)
	if err != nil {
		return nil, err
	}
	return []models.OutboundMessage{{
		Kind:    step.PromptKind,
		Body:    body,
		Options: step.Options,
	}}, nil
}

// bumpAttempts tracks failed validation attempts for a step.
func (e *Engine) bumpAttempts(conversation *models.ConversationContext, stepID string) {
	key := "attempts." + stepID
	attempts := 1
	if prev, ok := conversation.GetData(key); ok {
		if n, err := parsePositiveInt(prev); err == nil {
			attempts = n + 1
		}
	}
	conversation.SetData(key, fmt.Sprintf("%d", attempts))
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative")
	}
	return n, nil
}
