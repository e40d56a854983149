package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// ErrTemplate is returned when a template references an unknown slot or
// context key. This is a configuration defect; placeholders are never
// silently rendered as empty.
var ErrTemplate = errors.New("template substitution failed")

// placeholderPattern matches {slots.name}, {context.field} and
// {action.step.key} placeholders.
var placeholderPattern = regexp.MustCompile(`\{(slots|context|action)\.([a-zA-Z0-9_.-]+)\}`)

// Render substitutes placeholders in a template against the conversation's
// data and metadata.
func Render(template string, conversation *models.ConversationContext) (string, error) {
	var missing []string
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		value, ok := lookup(groups[1], groups[2], conversation)
		if !ok {
			missing = append(missing, strings.Trim(match, "{}"))
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: unknown key(s) %s", ErrTemplate, strings.Join(missing, ", "))
	}
	return rendered, nil
}

func lookup(namespace, key string, conversation *models.ConversationContext) (string, bool) {
	switch namespace {
	case "slots":
		return conversation.GetData(key)
	case "action":
		return conversation.GetData("action." + key)
	case "context":
		switch key {
		case "user_id":
			return conversation.UserID, true
		case "flow_id":
			return conversation.ActiveFlowID, true
		case "step_id":
			return conversation.CurrentStepID, true
		case "state":
			return string(conversation.State), true
		default:
			return "", false
		}
	default:
		return "", false
	}
}
