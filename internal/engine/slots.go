package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// ValidationError describes a user input that failed a slot constraint. It is
// recoverable: the engine re-prompts and never surfaces it past the bot layer.
type ValidationError struct {
	Slot    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("slot %q validation failed: %s", e.Slot, e.Message)
}

// emailPattern is deliberately loose: one @, something on both sides, a dot
// in the domain.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateSlot checks user input against a slot's constraints and returns the
// canonical value to store.
func ValidateSlot(slot models.Slot, input string) (string, error) {
	value := strings.TrimSpace(input)

	if slot.SkipWord != "" && strings.EqualFold(value, slot.SkipWord) {
		return "", nil
	}
	if value == "" {
		if slot.Required {
			return "", &ValidationError{Slot: slot.Name, Message: "This field is required. Please enter a value."}
		}
		return "", nil
	}

	switch slot.Type {
	case models.SlotInteger:
		return validateInteger(slot, value)
	case models.SlotEnum:
		return validateEnum(slot, value)
	case models.SlotEmail:
		if !emailPattern.MatchString(value) {
			return "", &ValidationError{Slot: slot.Name, Message: "That doesn't look like a valid email address. Please try again."}
		}
		return strings.ToLower(value), nil
	case models.SlotString, models.SlotText:
		return validateString(slot, value)
	default:
		return "", &ValidationError{Slot: slot.Name, Message: "Unsupported input type."}
	}
}

func validateString(slot models.Slot, value string) (string, error) {
	// Length bounds are in characters, not bytes.
	length := utf8.RuneCountInString(value)
	if slot.MinLength > 0 && length < slot.MinLength {
		return "", &ValidationError{
			Slot:    slot.Name,
			Message: fmt.Sprintf("Please enter at least %d characters.", slot.MinLength),
		}
	}
	if slot.MaxLength > 0 && length > slot.MaxLength {
		return "", &ValidationError{
			Slot:    slot.Name,
			Message: fmt.Sprintf("Please keep it under %d characters.", slot.MaxLength),
		}
	}
	if slot.Pattern != "" {
		re, err := regexp.Compile(slot.Pattern)
		if err != nil {
			// Patterns are compile-checked at load time; treat a bad one as
			// a mismatch rather than crashing mid-conversation.
			return "", &ValidationError{Slot: slot.Name, Message: "That input isn't in the expected format."}
		}
		if !re.MatchString(value) {
			return "", &ValidationError{Slot: slot.Name, Message: "That input isn't in the expected format."}
		}
	}
	return value, nil
}

func validateInteger(slot models.Slot, value string) (string, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return "", &ValidationError{Slot: slot.Name, Message: "Please enter a whole number."}
	}
	if slot.Min != nil && n < *slot.Min {
		return "", &ValidationError{Slot: slot.Name, Message: rangeMessage(slot)}
	}
	if slot.Max != nil && n > *slot.Max {
		return "", &ValidationError{Slot: slot.Name, Message: rangeMessage(slot)}
	}
	return strconv.Itoa(n), nil
}

func rangeMessage(slot models.Slot) string {
	switch {
	case slot.Min != nil && slot.Max != nil:
		return fmt.Sprintf("Please enter a number between %d and %d.", *slot.Min, *slot.Max)
	case slot.Min != nil:
		return fmt.Sprintf("Please enter a number of at least %d.", *slot.Min)
	default:
		return fmt.Sprintf("Please enter a number no greater than %d.", *slot.Max)
	}
}

// validateEnum matches input against allowed values first, then against
// keyword aliases (simple substring matching, the only language understanding
// this system does).
func validateEnum(slot models.Slot, value string) (string, error) {
	lowered := strings.ToLower(value)

	for _, allowed := range slot.Allowed {
		if strings.EqualFold(value, allowed) {
			return allowed, nil
		}
	}
	for canonical, keywords := range slot.Keywords {
		for _, keyword := range keywords {
			if strings.Contains(lowered, strings.ToLower(keyword)) {
				return canonical, nil
			}
		}
	}

	return "", &ValidationError{
		Slot:    slot.Name,
		Message: fmt.Sprintf("I didn't recognize that. Please choose one of: %s.", strings.Join(slot.Allowed, ", ")),
	}
}
