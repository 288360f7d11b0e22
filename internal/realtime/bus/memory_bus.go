package bus

import (
	"context"
	"sync"

	"github.com/localmind-ai/localmind-backend/internal/realtime"
)

type memoryBus struct {
	mu         sync.RWMutex
	forwarders []func(m realtime.Message)
	closed     bool
}

// NewMemoryBus returns a process-local Bus. Publish invokes every
// registered forwarder synchronously on the caller's goroutine.
func NewMemoryBus() Bus {
	return &memoryBus{}
}

func (b *memoryBus) Publish(ctx context.Context, msg realtime.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, fn := range b.forwarders {
		fn(msg)
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forwarders = append(b.forwarders, onMsg)
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.forwarders = nil
	return nil
}
