package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// waSender satisfies whatsapp.Sender for service construction in tests.
type waSender struct {
	sends []fakeSend
}

func (w *waSender) SendMessage(ctx context.Context, to, body string) error {
	w.sends = append(w.sends, fakeSend{to: to, body: body})
	return nil
}

func ptr[T any](v T) *T { return &v }

func messageEvent(msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Sender: types.NewJID("15551234567", types.DefaultUserServer),
			},
			Timestamp: time.Unix(1700000000, 0),
		},
		Message: msg,
	}
}

func TestWhatsAppHandleIncomingText(t *testing.T) {
	svc := NewWhatsAppService(&waSender{})

	svc.handleIncomingMessage(messageEvent(&waE2E.Message{Conversation: ptr("hello")}))

	in := <-svc.Inbound()
	if in.UserID != "15551234567" || in.Kind != models.InboundText || in.Text != "hello" {
		t.Errorf("Unexpected inbound message: %+v", in)
	}
	if in.Time != 1700000000 {
		t.Errorf("Expected event timestamp, got %d", in.Time)
	}
}

func TestWhatsAppHandleIncomingButtonReply(t *testing.T) {
	svc := NewWhatsAppService(&waSender{})

	svc.handleIncomingMessage(messageEvent(&waE2E.Message{
		ButtonsResponseMessage: &waE2E.ButtonsResponseMessage{},
	}))
	// Without a selected id there is nothing to map; the event is dropped.
	select {
	case in := <-svc.Inbound():
		t.Fatalf("Expected no message for id-less button reply, got %+v", in)
	default:
	}

	svc.handleIncomingMessage(messageEvent(&waE2E.Message{
		ButtonsResponseMessage: &waE2E.ButtonsResponseMessage{
			SelectedButtonID: ptr("bicycle"),
		},
	}))
	in := <-svc.Inbound()
	if in.Kind != models.InboundButtonReply || in.SelectedID != "bicycle" {
		t.Errorf("Unexpected inbound message: %+v", in)
	}
}

func TestWhatsAppHandleIncomingListReply(t *testing.T) {
	svc := NewWhatsAppService(&waSender{})

	svc.handleIncomingMessage(messageEvent(&waE2E.Message{
		ListResponseMessage: &waE2E.ListResponseMessage{
			Title: ptr("Report a stolen item"),
			SingleSelectReply: &waE2E.ListResponseMessage_SingleSelectReply{
				SelectedRowID: ptr("report_item"),
			},
		},
	}))

	in := <-svc.Inbound()
	if in.Kind != models.InboundListReply || in.SelectedID != "report_item" {
		t.Errorf("Unexpected inbound message: %+v", in)
	}
	if in.Text != "Report a stolen item" {
		t.Errorf("Expected list title carried as text, got %q", in.Text)
	}
}

func TestWhatsAppIgnoresNonTextMessages(t *testing.T) {
	svc := NewWhatsAppService(&waSender{})

	svc.handleIncomingMessage(messageEvent(&waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{},
	}))

	select {
	case in := <-svc.Inbound():
		t.Fatalf("Expected image message ignored, got %+v", in)
	default:
	}
}

func TestWhatsAppSendMessageFlattens(t *testing.T) {
	sender := &waSender{}
	svc := NewWhatsAppService(sender)

	msg := models.OutboundMessage{
		Kind: models.OutboundList,
		Body: "Choose:",
		Options: []models.Option{
			{ID: "a", Label: "Alpha"},
			{ID: "b", Label: "Beta"},
		},
	}
	if err := svc.SendMessage(context.Background(), "+1 555 123 4567", msg); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(sender.sends) != 1 {
		t.Fatalf("Expected 1 send, got %d", len(sender.sends))
	}
	if sender.sends[0].to != "15551234567" {
		t.Errorf("Expected canonical recipient, got %q", sender.sends[0].to)
	}
}
