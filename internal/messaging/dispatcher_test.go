package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// stubService feeds the dispatcher a scripted inbound stream and records the
// replies it is asked to deliver.
type stubService struct {
	inbound chan models.InboundMessage

	mu    sync.Mutex
	sent  []fakeSend
	fails bool
}

func newStubService() *stubService {
	return &stubService{inbound: make(chan models.InboundMessage, DefaultChannelBufferSize)}
}

func (s *stubService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return recipient, nil
}

func (s *stubService) SendMessage(ctx context.Context, to string, msg models.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails {
		return errors.New("delivery failed")
	}
	s.sent = append(s.sent, fakeSend{to: to, body: msg.Body})
	return nil
}

func (s *stubService) Start(ctx context.Context) error { return nil }
func (s *stubService) Stop() error                     { return nil }

func (s *stubService) Inbound() <-chan models.InboundMessage { return s.inbound }

func (s *stubService) deliveries() []fakeSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fakeSend, len(s.sent))
	copy(out, s.sent)
	return out
}

func runDispatcher(t *testing.T, d *Dispatcher) (stop func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()
	return func() {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Dispatcher did not stop")
		}
	}
}

func TestDispatcherDeliversReplies(t *testing.T) {
	svc := newStubService()
	process := func(ctx context.Context, msg models.InboundMessage) ([]models.OutboundMessage, error) {
		return []models.OutboundMessage{models.TextMessage("echo: " + msg.Text)}, nil
	}
	d := NewDispatcher(svc, process, WithWorkerCount(2))

	svc.inbound <- models.InboundMessage{UserID: "u1", Kind: models.InboundText, Text: "hi"}
	close(svc.inbound)

	wait := runDispatcher(t, d)
	wait()

	sent := svc.deliveries()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 delivery, got %d", len(sent))
	}
	if sent[0].to != "u1" || sent[0].body != "echo: hi" {
		t.Errorf("Unexpected delivery: %+v", sent[0])
	}
}

func TestDispatcherPreservesPerUserOrder(t *testing.T) {
	svc := newStubService()

	var mu sync.Mutex
	seen := make(map[string][]string)
	process := func(ctx context.Context, msg models.InboundMessage) ([]models.OutboundMessage, error) {
		mu.Lock()
		seen[msg.UserID] = append(seen[msg.UserID], msg.Text)
		mu.Unlock()
		return nil, nil
	}
	d := NewDispatcher(svc, process, WithWorkerCount(4))

	users := []string{"alice", "bob", "carol"}
	const perUser = 20
	for i := 0; i < perUser; i++ {
		for _, user := range users {
			svc.inbound <- models.InboundMessage{
				UserID: user, Kind: models.InboundText, Text: fmt.Sprintf("%d", i),
			}
		}
	}
	close(svc.inbound)

	wait := runDispatcher(t, d)
	wait()

	for _, user := range users {
		mu.Lock()
		got := seen[user]
		mu.Unlock()
		if len(got) != perUser {
			t.Fatalf("Expected %d messages for %s, got %d", perUser, user, len(got))
		}
		for i, text := range got {
			if text != fmt.Sprintf("%d", i) {
				t.Fatalf("Message order broken for %s at %d: got %q", user, i, text)
			}
		}
	}
}

func TestDispatcherProcessErrorSkipsDelivery(t *testing.T) {
	svc := newStubService()
	process := func(ctx context.Context, msg models.InboundMessage) ([]models.OutboundMessage, error) {
		return nil, errors.New("processing failed")
	}
	d := NewDispatcher(svc, process)

	svc.inbound <- models.InboundMessage{UserID: "u1", Kind: models.InboundText, Text: "hi"}
	close(svc.inbound)

	wait := runDispatcher(t, d)
	wait()

	if sent := svc.deliveries(); len(sent) != 0 {
		t.Errorf("Expected no deliveries after processing error, got %d", len(sent))
	}
}

func TestDispatcherStopsOnContextCancel(t *testing.T) {
	svc := newStubService()
	d := NewDispatcher(svc, func(ctx context.Context, msg models.InboundMessage) ([]models.OutboundMessage, error) {
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatcher did not stop on context cancel")
	}
}
