package push

import (
	"context"
	"sync"

	id "collecta/pkg/domain"
)

// MemoryBroker is the in-process Broker for unit tests. It mirrors the Redis
// semantics: no subscriber, no delivery; slow subscribers lose frames rather
// than block the publisher.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[id.AccountID]map[chan Message]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[id.AccountID]map[chan Message]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, recipientID id.AccountID, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[recipientID] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, recipientID id.AccountID) (<-chan Message, func(), error) {
	ch := make(chan Message, 16)
	b.mu.Lock()
	if b.subs[recipientID] == nil {
		b.subs[recipientID] = make(map[chan Message]struct{})
	}
	b.subs[recipientID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[recipientID], ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}
