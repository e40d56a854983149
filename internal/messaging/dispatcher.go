package messaging

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/ReclaimHQ/ReclaimBot/internal/models"
)

// DefaultWorkerCount is the number of dispatcher workers when unspecified.
const DefaultWorkerCount = 8

// ProcessFunc handles one inbound message and returns the replies to send.
type ProcessFunc func(ctx context.Context, msg models.InboundMessage) ([]models.OutboundMessage, error)

// Dispatcher drains a Service's inbound channel through a worker pool and
// sends the processor's replies back out. Users are sharded onto workers by
// user id, so messages from one user are handled in arrival order while
// different users proceed concurrently.
type Dispatcher struct {
	service Service
	process ProcessFunc
	workers int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// NewDispatcher creates a dispatcher over the given service and processor.
func NewDispatcher(service Service, process ProcessFunc, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		service: service,
		process: process,
		workers: DefaultWorkerCount,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes inbound messages until the context is cancelled or the
// service's inbound channel closes.
func (d *Dispatcher) Run(ctx context.Context) {
	queues := make([]chan models.InboundMessage, d.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan models.InboundMessage, DefaultChannelBufferSize)
		wg.Add(1)
		go func(queue <-chan models.InboundMessage) {
			defer wg.Done()
			for msg := range queue {
				d.handle(ctx, msg)
			}
		}(queues[i])
	}

	slog.Info("Dispatcher started", "workers", d.workers)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case msg, ok := <-d.service.Inbound():
			if !ok {
				break loop
			}
			queues[d.shard(msg.UserID)] <- msg
		}
	}

	for _, queue := range queues {
		close(queue)
	}
	wg.Wait()
	slog.Info("Dispatcher stopped")
}

// shard maps a user id onto a worker index.
func (d *Dispatcher) shard(userID string) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % uint32(d.workers))
}

// handle runs one message through the processor and delivers the replies.
func (d *Dispatcher) handle(ctx context.Context, msg models.InboundMessage) {
	replies, err := d.process(ctx, msg)
	if err != nil {
		slog.Error("Dispatcher message processing failed", "from", msg.UserID, "error", err)
		return
	}
	for _, reply := range replies {
		if err := d.service.SendMessage(ctx, msg.UserID, reply); err != nil {
			slog.Error("Dispatcher reply delivery failed", "to", msg.UserID, "error", err)
			return
		}
	}
}
