package amqp

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"spesesync/internal/syncer"
)

// Sender is the part of Client the publisher needs.
type Sender interface {
	PublishSyncEvent(ctx context.Context, msg *SyncEventMessage) error
}

// Publisher forwards sync driver events to a Sender from its own goroutine
// so a slow broker never holds up a sync pass. Events that do not fit in
// the buffer are dropped.
type Publisher struct {
	sender  Sender
	events  chan *SyncEventMessage
	dropped atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ syncer.Listener = (*Publisher)(nil)

func NewPublisher(sender Sender, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Publisher{
		sender: sender,
		events: make(chan *SyncEventMessage, buffer),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (p *Publisher) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stop flushes buffered events and waits for the publishing goroutine.
func (p *Publisher) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}

func (p *Publisher) OnSyncEvent(ctx context.Context, ev syncer.Event) {
	select {
	case p.events <- NewSyncEventMessage(ev):
	default:
		n := p.dropped.Add(1)
		slog.WarnContext(ctx, "Sync event buffer full, dropping event",
			"sync_status", ev.Status.String(),
			"dropped_total", n)
	}
}

// Dropped is the number of events discarded because the buffer was full.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) run(ctx context.Context) {
	defer close(p.doneCh)
	for {
		select {
		case msg := <-p.events:
			p.send(ctx, msg)
		case <-p.stopCh:
			p.drain(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	for {
		select {
		case msg := <-p.events:
			p.send(ctx, msg)
		default:
			return
		}
	}
}

func (p *Publisher) send(ctx context.Context, msg *SyncEventMessage) {
	if err := p.sender.PublishSyncEvent(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Failed to publish sync event",
			"sync_status", msg.Status,
			"error", err)
	}
}
