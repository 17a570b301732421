package nodemanager

import (
	"sync"
)

const subscriberBufferSize = 32

// broadcaster fans values out to buffered subscriber channels. A subscriber
// whose buffer is full misses the value, publishers never block.
type broadcaster[T any] struct {
	mu          sync.Mutex
	subscribers map[chan T]struct{}
	closed      bool
}

func newBroadcaster[T any]() *broadcaster[T] {
	return &broadcaster[T]{
		subscribers: make(map[chan T]struct{}),
	}
}

// subscribe registers a new channel. initial values are queued before any
// published one.
func (b *broadcaster[T]) subscribe(initial ...T) (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.register(initial...)
}

// subscribeFrom registers a new channel seeded with current(). current runs
// under the same lock as publishWith, so the subscriber sees every change
// after its seed exactly once.
func (b *broadcaster[T]) subscribeFrom(current func() T) (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.register(current())
}

// register must be called with b.mu held.
func (b *broadcaster[T]) register(initial ...T) (<-chan T, func()) {
	ch := make(chan T, subscriberBufferSize)
	for _, v := range initial {
		ch <- v
	}
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[ch]; ok {
				delete(b.subscribers, ch)
				close(ch)
			}
		})
	}
}

// publish returns how many subscribers received v.
func (b *broadcaster[T]) publish(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.send(v)
}

// publishWith applies change under the subscription lock and publishes its
// value when it reports one.
func (b *broadcaster[T]) publishWith(change func() (T, bool)) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := change()
	if !ok {
		return 0
	}
	return b.send(v)
}

func (b *broadcaster[T]) send(v T) int {
	sent := 0
	for ch := range b.subscribers {
		select {
		case ch <- v:
			sent++
		default:
		}
	}
	return sent
}

// close ends every subscription.
func (b *broadcaster[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
}
