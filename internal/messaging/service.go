// Package messaging defines the pluggable message delivery abstraction and
// its Twilio and whatsmeow implementations.
//
// A Service delivers outbound messages and surfaces inbound user messages on
// a channel; the transport worker pool drains that channel and feeds the
// conversation processor.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// Constants for messaging service configuration.
const (
	// DefaultChannelBufferSize defines the buffer size for inbound message channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the timeout for non-blocking channel operations.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service is stopped")

// phoneNumberRegex strips everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Each service implements its own recipient rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage delivers one outbound message to a recipient.
	SendMessage(ctx context.Context, to string, msg models.OutboundMessage) error

	// Start begins any background processing (e.g., event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Inbound returns a channel of incoming user messages.
	Inbound() <-chan models.InboundMessage
}

// canonicalizePhone strips non-digits and validates the result. Shared by the
// phone-number based services.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

// renderFallbackText flattens an interactive message into plain text for
// channels without button/list support. Options become a numbered list, and
// replying with an option's label or number selects it.
func renderFallbackText(msg models.OutboundMessage) string {
	if msg.Kind == models.OutboundText || len(msg.Options) == 0 {
		return msg.Body
	}
	var b strings.Builder
	b.WriteString(msg.Body)
	b.WriteString("\n")
	for i, opt := range msg.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, opt.Label)
	}
	return b.String()
}

// MatchFallbackReply maps a plain-text reply against the options of the
// last interactive message: an exact label (case-insensitive), an option id,
// or the 1-based number shown by renderFallbackText.
func MatchFallbackReply(reply string, options []models.Option) (string, bool) {
	reply = strings.TrimSpace(reply)
	for i, opt := range options {
		if strings.EqualFold(reply, opt.Label) || reply == opt.ID || reply == fmt.Sprintf("%d", i+1) {
			return opt.ID, true
		}
	}
	return "", false
}
