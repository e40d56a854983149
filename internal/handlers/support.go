package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/itemstore"
	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	"github.com/ReclaimHQ/ReclaimBot/internal/registry"
	"github.com/ReclaimHQ/ReclaimBot/internal/util"
)

// Notifier delivers an out-of-band notification, typically to a staffed
// support contact.
type Notifier interface {
	Notify(ctx context.Context, recipient, body string) error
}

// CreateTicketHandler files a support ticket and, when a notifier and support
// contact are configured, pings the support contact about it. Notification
// failure does not fail the ticket.
//
// Params: user_id (required), message (required).
// Result: ticket_id.
type CreateTicketHandler struct {
	store          itemstore.Store
	notifier       Notifier
	supportContact string
}

// NewCreateTicketHandler is the registry constructor for
// create_support_ticket. The notifier dependency is optional.
func NewCreateTicketHandler(deps map[string]any) (registry.Handler, error) {
	store, err := itemStoreDep(deps)
	if err != nil {
		return nil, err
	}
	h := &CreateTicketHandler{store: store}
	if raw, ok := deps[ServiceNotifier]; ok && raw != nil {
		notifier, ok := raw.(Notifier)
		if !ok {
			return nil, fmt.Errorf("dependency %q has unexpected type %T", ServiceNotifier, raw)
		}
		h.notifier = notifier
	}
	if contact, ok := deps["support_contact"].(string); ok {
		h.supportContact = contact
	}
	return h, nil
}

func (h *CreateTicketHandler) Invoke(ctx context.Context, params map[string]string) (map[string]string, error) {
	userID, err := requireParam(params, "user_id")
	if err != nil {
		return nil, err
	}
	message, err := requireParam(params, "message")
	if err != nil {
		return nil, err
	}

	ticket := models.SupportTicket{
		ID:        util.GenerateTicketID(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.AddTicket(ticket); err != nil {
		return nil, fmt.Errorf("failed to file support ticket: %w", err)
	}
	slog.Info("CreateTicketHandler filed ticket", "id", ticket.ID, "userID", userID)

	if h.notifier != nil && h.supportContact != "" {
		body := fmt.Sprintf("Support ticket %s from %s: %s", ticket.ID, userID, message)
		if err := h.notifier.Notify(ctx, h.supportContact, body); err != nil {
			slog.Warn("CreateTicketHandler support notification failed", "id", ticket.ID, "error", err)
		}
	}
	return map[string]string{"ticket_id": ticket.ID}, nil
}
