package monitor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Fantasim/bsvbank/internal/config"
)

// ConfirmationUpdate reports a change in a watched transaction's
// confirmation depth, delivered to subscribers such as the channel
// subsystem.
type ConfirmationUpdate struct {
	Txid              string
	OldConfirmations  uint32
	NewConfirmations  uint32
	BlockHeight       *int32
	CrossedSufficient bool
}

// EventBus fans out ConfirmationUpdate events to any number of subscribers.
// Broadcast is non-blocking: a slow subscriber drops events rather than
// stalling the poll cycle.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[chan ConfirmationUpdate]struct{}
}

// NewEventBus creates an empty confirmation-event bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[chan ConfirmationUpdate]struct{})}
}

// Run blocks until ctx is cancelled, then closes every subscriber channel.
func (b *EventBus) Run(ctx context.Context) {
	<-ctx.Done()

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
	slog.Info("monitor event bus stopped", "reason", ctx.Err())
}

// Subscribe registers a new subscriber and returns its event channel.
func (b *EventBus) Subscribe() chan ConfirmationUpdate {
	ch := make(chan ConfirmationUpdate, config.SSEHubChannelBuffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan ConfirmationUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Broadcast delivers an event to every subscriber, dropping it for any
// subscriber whose channel is full.
func (b *EventBus) Broadcast(event ConfirmationUpdate) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			slog.Warn("monitor: confirmation event dropped for slow subscriber", "txid", event.Txid)
		}
	}
}
