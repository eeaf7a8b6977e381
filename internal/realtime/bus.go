// AngelaMos | 2026
// bus.go

package realtime

import (
	"context"
	"sync"
)

type Handler func(ctx context.Context, s Signal)

// Bus fans signals out to every subscribed instance. Delivery is at most
// once: a subscriber that is down when a signal is published never sees it.
type Bus interface {
	Publish(ctx context.Context, s Signal) error
	// Subscribe registers fn until ctx is cancelled.
	Subscribe(ctx context.Context, fn Handler) error
	// Ping reports whether the broker is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// LocalBus delivers signals within the process. It serves single instance
// deployments and tests.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	next     int
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]Handler)}
}

func (b *LocalBus) Publish(ctx context.Context, s Signal) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(ctx, s)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, fn Handler) error {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = fn
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}()

	return nil
}

func (b *LocalBus) Ping(context.Context) error {
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	clear(b.handlers)
	b.mu.Unlock()
	return nil
}
