package bus

import (
	"log/slog"
	"sync"
	"time"

	"reportbot/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based message bus connecting the Telegram
// channel to the wizard controller.
type InMemoryBus struct {
	inbound chan domain.Event
	reply   func(domain.Reply)
	mu      sync.RWMutex
	closed  bool
	logger  *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &InMemoryBus{
		inbound: make(chan domain.Event, bufferSize),
		logger:  logger,
	}
}

// Publish enqueues an inbound event for the controller.
// Blocks up to 10 seconds if the bus is full instead of dropping.
func (b *InMemoryBus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- ev:
	default:
		// Bus full — wait with timeout instead of dropping
		b.logger.Warn("inbound bus full, waiting...", "kind", ev.Kind.String(), "user", ev.UserID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- ev:
			b.logger.Info("event delivered after wait", "kind", ev.Kind.String())
		case <-timer.C:
			b.logger.Error("event dropped: bus full for 10s",
				"kind", ev.Kind.String(),
				"user", ev.UserID,
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.Event {
	return b.inbound
}

func (b *InMemoryBus) SendReply(r domain.Reply) {
	b.mu.RLock()
	handler := b.reply
	b.mu.RUnlock()

	if handler == nil {
		b.logger.Warn("no reply handler registered", "chat", r.ChatID)
		return
	}

	handler(r)
}

func (b *InMemoryBus) OnReply(handler func(domain.Reply)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reply = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
