package bot

import (
	"fmt"
	"strings"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// Canned replies for lifecycle events. Flow-specific wording lives in the
// flow definitions; only the lifecycle surface is hard-coded here.
const (
	cancelledReply = "Conversation cancelled. Send any message to start again."
	doneReply      = "All done. Send any message whenever you need us again."
	invalidChoice  = "Please choose a valid option."
	apologyReply   = "Sorry, something went wrong on our side. Your conversation has been reset — send any message to start again."
)

// menuMessage builds the main menu as an interactive list when the loaded
// flows expose menu options, falling back to a numbered text menu otherwise.
func menuMessage(options []models.Option) models.OutboundMessage {
	if len(options) == 0 {
		return models.TextMessage("No services are available right now. Please try again later.")
	}

	if len(options) <= models.MaxOptionsCount {
		return models.OutboundMessage{
			Kind:    models.OutboundList,
			Body:    "Welcome to ReclaimBot!\n\nWhat would you like to do?",
			Options: options,
		}
	}

	var b strings.Builder
	b.WriteString("Welcome to ReclaimBot!\n\nWhat would you like to do?\n")
	for i, opt := range options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt.Label)
	}
	b.WriteString("\nReply with an option, or type 'cancel' to exit.")
	return models.TextMessage(b.String())
}
