package broadcast

import (
	"context"
	"fmt"
	"sync"

	"parking-service/internal/service"
)

// Bus is the publish/subscribe topic shared by every service instance.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
	Close() error
}

const localBusBuffer = 256

// LocalBus fans payloads out inside one process.
type LocalBus struct {
	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	closed      bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subscribers: make(map[chan []byte]struct{})}
}

func (b *LocalBus) Publish(ctx context.Context, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("%w: bus closed", service.ErrTransient)
	}

	dropped := 0
	for ch := range b.subscribers {
		select {
		case ch <- payload:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%w: %d bus subscribers lagging", service.ErrTransient, dropped)
	}
	return nil
}

// Subscribe returns a channel that is closed when ctx ends or the bus closes.
func (b *LocalBus) Subscribe(ctx context.Context) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("%w: bus closed", service.ErrTransient)
	}

	ch := make(chan []byte, localBusBuffer)
	b.subscribers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		b.remove(ch)
	}()

	return ch, nil
}

func (b *LocalBus) remove(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for ch := range b.subscribers {
		delete(b.subscribers, ch)
		close(ch)
	}
	return nil
}
