package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	"github.com/ReclaimHQ/ReclaimBot/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp
// client. Interactive prompts are flattened to numbered text; whatsmeow
// button and list response events are mapped to selection replies.
type WhatsAppService struct {
	client   whatsapp.Sender
	waClient *whatsapp.Client // underlying client for event handling, nil for mocks
	inbound  chan models.InboundMessage
	done     chan struct{}
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:  client,
		inbound: make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:    make(chan struct{}),
	}

	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient validates a WhatsApp phone number by
// stripping non-digits.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// Start begins background event processing.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling")
		return nil
	}
	go s.handleEvents(ctx)
	slog.Debug("WhatsAppService event handler started")
	return nil
}

// Stop stops background processing.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	close(s.done)
	close(s.inbound)
	return nil
}

// SendMessage delivers one outbound message.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, msg models.OutboundMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, renderFallbackText(msg)); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonicalTo)
		return err
	}
	slog.Debug("WhatsAppService message sent", "to", canonicalTo, "kind", msg.Kind)
	return nil
}

// Notify sends a plain text message out of band (support notifications).
func (s *WhatsAppService) Notify(ctx context.Context, recipient, body string) error {
	return s.SendMessage(ctx, recipient, models.TextMessage(body))
}

// Inbound returns the channel of incoming user messages.
func (s *WhatsAppService) Inbound() <-chan models.InboundMessage {
	return s.inbound
}

// handleEvents registers a whatsmeow event handler feeding the inbound channel.
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.waClient == nil || s.waClient.EventClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.EventClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		default:
			// Receipts, presence and connection events are not conversation input.
		}
	})

	<-ctx.Done()
	slog.Debug("WhatsAppService handleEvents stopping due to context cancellation")
}

// handleIncomingMessage maps a whatsmeow message event to an InboundMessage.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	msg := models.InboundMessage{
		UserID: evt.Info.Sender.User,
		Time:   evt.Info.Timestamp.Unix(),
	}

	switch {
	case evt.Message.Conversation != nil:
		msg.Kind = models.InboundText
		msg.Text = *evt.Message.Conversation
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		msg.Kind = models.InboundText
		msg.Text = *evt.Message.ExtendedTextMessage.Text
	case evt.Message.ButtonsResponseMessage != nil && evt.Message.ButtonsResponseMessage.SelectedButtonID != nil:
		msg.Kind = models.InboundButtonReply
		msg.SelectedID = *evt.Message.ButtonsResponseMessage.SelectedButtonID
		if evt.Message.ButtonsResponseMessage.GetSelectedDisplayText() != "" {
			msg.Text = evt.Message.ButtonsResponseMessage.GetSelectedDisplayText()
		}
	case evt.Message.ListResponseMessage != nil &&
		evt.Message.ListResponseMessage.SingleSelectReply != nil &&
		evt.Message.ListResponseMessage.SingleSelectReply.SelectedRowID != nil:
		msg.Kind = models.InboundListReply
		msg.SelectedID = *evt.Message.ListResponseMessage.SingleSelectReply.SelectedRowID
		if evt.Message.ListResponseMessage.GetTitle() != "" {
			msg.Text = evt.Message.ListResponseMessage.GetTitle()
		}
	default:
		// Skip non-text messages (images, audio, etc.)
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	select {
	case s.inbound <- msg:
		slog.Info("WhatsAppService incoming message forwarded", "from", msg.UserID, "kind", msg.Kind)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService inbound channel blocked, dropping message", "from", msg.UserID, "timeout", DefaultChannelTimeout)
	}
}
