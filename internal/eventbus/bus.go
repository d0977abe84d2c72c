// Package eventbus is an in-process, topic based publish/subscribe bus.
// Delivery is non-blocking: a subscriber whose buffer is full misses the
// event, and publishing to a topic nobody listens to is a no-op.
package eventbus

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Message is a value delivered on a topic.
type Message[T any] struct {
	Topic   string
	Payload T
}

type subscription[T any] struct {
	pattern string
	ch      chan Message[T]
}

// Bus fans messages out to the subscribers whose pattern matches the topic.
type Bus[T any] struct {
	mu      sync.RWMutex
	subs    []*subscription[T]
	buffer  int
	dropped atomic.Uint64
	closed  bool
}

// New creates a Bus whose subscriber channels hold buffer messages.
func New[T any](buffer int) *Bus[T] {
	if buffer <= 0 {
		buffer = 8
	}
	return &Bus[T]{buffer: buffer}
}

// Publish delivers payload to every matching subscriber and returns how many
// received it.
func (b *Bus[T]) Publish(topic string, payload T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	n := 0
	for _, s := range b.subs {
		if !Match(s.pattern, topic) {
			continue
		}
		select {
		case s.ch <- Message[T]{Topic: topic, Payload: payload}:
			n++
		default:
			b.dropped.Add(1)
		}
	}
	return n
}

// Subscribe registers a subscriber for pattern. Patterns use MQTT syntax:
// '+' matches one level and a trailing '#' matches any remainder.
func (b *Bus[T]) Subscribe(pattern string) <-chan Message[T] {
	ch := make(chan Message[T], b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, &subscription[T]{pattern: pattern, ch: ch})
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus[T]) Unsubscribe(sub <-chan Message[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(s.ch)
			}
			return
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped on full buffers.
func (b *Bus[T]) Dropped() uint64 { return b.dropped.Load() }

// Close closes the bus and all subscriber channels.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}

// Match reports whether topic matches an MQTT style pattern.
func Match(pattern, topic string) bool {
	if pattern == topic || pattern == "#" {
		return true
	}
	p := strings.Split(pattern, "/")
	t := strings.Split(topic, "/")
	for i, seg := range p {
		if seg == "#" {
			return i == len(p)-1
		}
		if i >= len(t) {
			return false
		}
		if seg != "+" && seg != t[i] {
			return false
		}
	}
	return len(p) == len(t)
}
