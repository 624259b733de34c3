package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

const subscriberBuffer = 16

// Broker is an in-process app.Broker. Publish never blocks: when a
// subscriber's buffer is full the oldest pending event is dropped.
type Broker struct {
	mu     sync.Mutex
	topics map[string]map[chan domain.GameEvent]struct{}
}

func NewBroker() *Broker {
	return &Broker{topics: make(map[string]map[chan domain.GameEvent]struct{})}
}

func (b *Broker) Publish(_ context.Context, event domain.GameEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.topics[event.Code] {
		deliver(ch, event)
	}
	return nil
}

func (b *Broker) Subscribe(_ context.Context, code string) (<-chan domain.GameEvent, func(), error) {
	ch := make(chan domain.GameEvent, subscriberBuffer)

	b.mu.Lock()
	subs := b.topics[code]
	if subs == nil {
		subs = make(map[chan domain.GameEvent]struct{})
		b.topics[code] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.topics[code]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(b.topics, code)
		}
	}
	return ch, cancel, nil
}

// Subscribers reports how many channels listen on code.
func (b *Broker) Subscribers(code string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[code])
}

func deliver(ch chan domain.GameEvent, event domain.GameEvent) {
	select {
	case ch <- event:
		return
	default:
	}
	// Slow subscriber: make room by dropping the oldest event.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- event:
	default:
	}
}
