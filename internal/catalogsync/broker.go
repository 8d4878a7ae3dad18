// Package catalogsync carries "the catalog changed" signals between writers
// and readers: in one process through MemoryBroker, across instances through
// RedisBroker, and to browsers through the websocket Hub.
package catalogsync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/catalogd/internal/catalog"
	"go.uber.org/zap"
)

// Signal announces a new catalog state. Services is the full list after the
// write; Timestamp is in unix milliseconds.
type Signal struct {
	Services  []catalog.Service `json:"services"`
	Count     int               `json:"count"`
	Timestamp int64             `json:"timestamp"`
	Origin    string            `json:"origin"`
	Marker    string            `json:"marker,omitempty"`
}

// NewSignal builds a signal for services written at at.
func NewSignal(services []catalog.Service, at time.Time, origin string) Signal {
	if services == nil {
		services = []catalog.Service{}
	}
	return Signal{
		Services:  services,
		Count:     len(services),
		Timestamp: at.UnixMilli(),
		Origin:    origin,
	}
}

// NewOrigin returns an identifier for this process, used to drop echoes of
// its own signals coming back from a shared channel.
func NewOrigin() string { return uuid.NewString() }

// Broker is the single publish/subscribe channel for catalog changes.
type Broker interface {
	// Publish delivers s to every current subscriber.
	Publish(ctx context.Context, s Signal) error
	// Subscribe returns a channel of signals published after the call. The
	// channel is closed by cancel or when ctx ends.
	Subscribe(ctx context.Context) (<-chan Signal, func())
}

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 16

// MemoryBroker fans signals out to in-process subscribers in registration
// order. A slow subscriber never blocks Publish: when its queue is full the
// oldest pending signal is dropped, since only the latest state matters.
type MemoryBroker struct {
	mu     sync.Mutex
	subs   []*subscription
	buffer int
}

type subscription struct {
	ch   chan Signal
	once sync.Once
}

// NewMemoryBroker creates a MemoryBroker. A buffer below one uses DefaultBuffer.
func NewMemoryBroker(buffer int) *MemoryBroker {
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &MemoryBroker{buffer: buffer}
}

// Publish implements Broker.
func (b *MemoryBroker) Publish(_ context.Context, s Signal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- s:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- s:
			default:
			}
		}
	}
	return nil
}

// Subscribe implements Broker.
func (b *MemoryBroker) Subscribe(ctx context.Context) (<-chan Signal, func()) {
	sub := &subscription{ch: make(chan Signal, b.buffer)}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	stop := make(chan struct{})
	cancel := func() {
		sub.once.Do(func() {
			close(stop)
			b.remove(sub)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return sub.ch, cancel
}

// SubscriberCount returns the number of live subscriptions.
func (b *MemoryBroker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *MemoryBroker) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	close(sub.ch)
}

// Listen subscribes to b and runs handler for every signal until ctx ends.
// A panicking handler is logged and the next signal is still delivered.
func Listen(ctx context.Context, b Broker, handler func(Signal)) {
	ch, cancel := b.Subscribe(ctx)
	defer cancel()
	for s := range ch {
		dispatch(handler, s)
	}
}

func dispatch(handler func(Signal), s Signal) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("catalog signal handler panicked", zap.Any("panic", r))
		}
	}()
	handler(s)
}
