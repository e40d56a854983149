package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	"github.com/ReclaimHQ/ReclaimBot/internal/twiliowhatsapp"
)

// TwilioService implements the Service interface using the Twilio API.
// Interactive messages are flattened to numbered text because the Twilio Go
// SDK exposes no WhatsApp button/list API; the webhook handler maps numbered
// replies back to option ids.
type TwilioService struct {
	client  twiliowhatsapp.Sender
	inbound chan models.InboundMessage
	done    chan struct{}

	mu          sync.RWMutex
	stopped     bool
	lastOptions map[string][]models.Option // last interactive options per recipient
}

// NewTwilioService creates a TwilioService over the given sender.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		client:      client,
		inbound:     make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:        make(chan struct{}),
		lastOptions: make(map[string][]models.Option),
	}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number by stripping non-digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical, err := canonicalizePhone(recipient)
	if err != nil {
		return "", err
	}
	if canonical != recipient {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Start is a no-op; inbound messages arrive via the webhook handler.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes channels and stops the service.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.inbound)
	}()

	return nil
}

// SendMessage sends a message via Twilio, remembering interactive options so
// the webhook can resolve numbered replies.
func (s *TwilioService) SendMessage(ctx context.Context, to string, msg models.OutboundMessage) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	if err := msg.Validate(); err != nil {
		return err
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}

	if err := s.client.SendMessage(ctx, canonicalTo, renderFallbackText(msg)); err != nil {
		return err
	}

	s.mu.Lock()
	if len(msg.Options) > 0 {
		s.lastOptions[canonicalTo] = msg.Options
	} else {
		delete(s.lastOptions, canonicalTo)
	}
	s.mu.Unlock()

	slog.Debug("TwilioService message sent", "to", canonicalTo, "kind", msg.Kind)
	return nil
}

// Notify sends a plain text message out of band (support notifications).
func (s *TwilioService) Notify(ctx context.Context, recipient, body string) error {
	return s.SendMessage(ctx, recipient, models.TextMessage(body))
}

// Inbound returns the channel of incoming user messages.
func (s *TwilioService) Inbound() <-chan models.InboundMessage {
	return s.inbound
}

// WebhookHandler handles inbound Twilio webhook requests, parsing incoming
// form posts into InboundMessages.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	body := r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	canonicalFrom, err := s.ValidateAndCanonicalizeRecipient(from)
	if err != nil {
		slog.Warn("Twilio webhook invalid sender", "error", err)
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}

	msg := models.InboundMessage{
		UserID: canonicalFrom,
		Kind:   models.InboundText,
		Text:   body,
		Time:   time.Now().Unix(),
	}

	// A reply matching the last interactive prompt counts as an option
	// selection even though Twilio delivered it as plain text.
	s.mu.RLock()
	options := s.lastOptions[canonicalFrom]
	s.mu.RUnlock()
	if id, ok := MatchFallbackReply(body, options); ok {
		msg.Kind = models.InboundButtonReply
		msg.SelectedID = id
	}

	slog.Info("Inbound WhatsApp message from Twilio", "from", canonicalFrom, "kind", msg.Kind)
	s.safeEmitInbound(msg)

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// safeEmitInbound safely pushes messages into the inbound channel.
func (s *TwilioService) safeEmitInbound(msg models.InboundMessage) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TwilioService dropping inbound message (service stopped)", "from", msg.UserID)
		return
	}

	select {
	case s.inbound <- msg:
		slog.Debug("TwilioService emitted inbound message", "from", msg.UserID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService inbound channel blocked, dropping message", "from", msg.UserID)
	}
}
