// Package notify fans values out to subscribers without blocking the
// publisher.
package notify

import "sync"

// Broadcaster delivers published values to every subscriber without ever
// blocking the publisher. A latest-wins broadcaster gives each subscriber
// one slot, so a slow subscriber sees the newest value and misses the ones
// in between. A queueing broadcaster keeps every value in order and drops
// new ones only while a subscriber's buffer is full.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[chan T]struct{}
	depth  int
	queue  bool
	closed bool
}

func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[chan T]struct{}), depth: 1}
}

// NewQueue returns a broadcaster that never coalesces values. Each
// subscriber buffers up to depth of them.
func NewQueue[T any](depth int) *Broadcaster[T] {
	if depth < 1 {
		depth = 1
	}
	return &Broadcaster[T]{subs: make(map[chan T]struct{}), depth: depth, queue: true}
}

// Subscribe returns a channel of values and a function that cancels the
// subscription. The channel is closed on cancel or when the broadcaster
// closes.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, b.depth)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

// Publish hands v to every subscriber. A latest-wins broadcaster replaces
// any value the subscriber has not read yet.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		if b.queue {
			continue
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}
