// Package models defines the core data structures for ReclaimBot.
//
// It includes normalized inbound/outbound message types, the conversation
// context, and flow definition types shared across modules.
package models

import "errors"

// OutboundKind defines how an outbound message is presented to the user.
type OutboundKind string

const (
	// OutboundText sends a plain text message.
	OutboundText OutboundKind = "text"
	// OutboundButtons sends a message with quick-reply buttons.
	OutboundButtons OutboundKind = "buttons"
	// OutboundList sends a message with a selectable list.
	OutboundList OutboundKind = "list"
)

// InboundKind identifies the shape of a normalized inbound message.
type InboundKind string

const (
	// InboundText is a free-text message typed by the user.
	InboundText InboundKind = "text"
	// InboundButtonReply is a tap on a quick-reply button.
	InboundButtonReply InboundKind = "button_reply"
	// InboundListReply is a selection from a list message.
	InboundListReply InboundKind = "list_reply"
)

// Validation constants for message content.
const (
	// MaxOutboundBodyLength defines the maximum allowed length for an outbound message body.
	MaxOutboundBodyLength = 4096
	// MaxOptionLabelLength defines the maximum allowed length for option labels.
	MaxOptionLabelLength = 100
	// MaxOptionsCount defines the maximum number of options on a buttons/list message.
	MaxOptionsCount = 10
)

// Error variables for better error handling and testability.
var (
	ErrEmptyUserID        = errors.New("user id cannot be empty")
	ErrInvalidInboundKind = errors.New("invalid inbound message kind")
	ErrEmptyBody          = errors.New("outbound message body cannot be empty")
	ErrBodyTooLong        = errors.New("outbound message body exceeds maximum length")
	ErrMissingOptions     = errors.New("options are required for buttons/list messages")
	ErrTooManyOptions     = errors.New("too many options")
	ErrEmptyOptionID      = errors.New("option id cannot be empty")
	ErrEmptyOptionLabel   = errors.New("option label cannot be empty")
	ErrOptionLabelTooLong = errors.New("option label exceeds maximum length")
)

// IsValidInboundKind checks if the given inbound message kind is supported.
func IsValidInboundKind(k InboundKind) bool {
	switch k {
	case InboundText, InboundButtonReply, InboundListReply:
		return true
	default:
		return false
	}
}

// Option represents a selectable choice on a buttons or list message.
type Option struct {
	ID    string `json:"id"`    // identifier returned by the channel when selected
	Label string `json:"label"` // label shown to the user
}

// InboundMessage is a channel-agnostic incoming message, normalized by the
// transport layer before it reaches the conversation engine.
type InboundMessage struct {
	UserID     string      `json:"user_id"`
	Kind       InboundKind `json:"kind"`
	Text       string      `json:"text,omitempty"`
	SelectedID string      `json:"selected_id,omitempty"`
	Time       int64       `json:"time,omitempty"`
}

// Validate checks that an inbound message is well formed.
func (m *InboundMessage) Validate() error {
	if m.UserID == "" {
		return ErrEmptyUserID
	}
	if !IsValidInboundKind(m.Kind) {
		return ErrInvalidInboundKind
	}
	return nil
}

// Input returns the effective user input for flow processing: the selected
// option id for button/list replies, the message text otherwise.
func (m *InboundMessage) Input() string {
	if m.Kind == InboundButtonReply || m.Kind == InboundListReply {
		return m.SelectedID
	}
	return m.Text
}

// OutboundMessage is a channel-agnostic outgoing message. The transport layer
// translates it into channel-specific wire payloads.
type OutboundMessage struct {
	Kind    OutboundKind `json:"kind"`
	Body    string       `json:"body"`
	Options []Option     `json:"options,omitempty"`
}

// TextMessage builds a plain text outbound message.
func TextMessage(body string) OutboundMessage {
	return OutboundMessage{Kind: OutboundText, Body: body}
}

// Validate performs validation on an outbound message.
func (m *OutboundMessage) Validate() error {
	if m.Body == "" {
		return ErrEmptyBody
	}
	if len(m.Body) > MaxOutboundBodyLength {
		return ErrBodyTooLong
	}
	switch m.Kind {
	case OutboundButtons, OutboundList:
		if len(m.Options) == 0 {
			return ErrMissingOptions
		}
		if len(m.Options) > MaxOptionsCount {
			return ErrTooManyOptions
		}
		for _, opt := range m.Options {
			if opt.ID == "" {
				return ErrEmptyOptionID
			}
			if opt.Label == "" {
				return ErrEmptyOptionLabel
			}
			if len(opt.Label) > MaxOptionLabelLength {
				return ErrOptionLabelTooLong
			}
		}
	}
	return nil
}
