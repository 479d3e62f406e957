// Package mailbox provides the unbounded ordered queue behind event delivery.
package mailbox

import (
	"sync"
)

// Mailbox is an unbounded FIFO with a non-blocking Push and a channel-based
// receive side. A single pump goroutine moves items from the backlog to Out,
// so producers never wait on a slow consumer and order is preserved.
type Mailbox[T any] struct {
	mu      sync.Mutex
	backlog []T
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	out     chan T
}

// New starts the pump goroutine. Call Close to stop it.
func New[T any]() *Mailbox[T] {
	m := &Mailbox[T]{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan T),
	}
	go m.pump()
	return m
}

// Out yields pushed items in order. It is closed after Close once the pump exits.
func (m *Mailbox[T]) Out() <-chan T {
	return m.out
}

// Push appends v to the backlog. It never blocks and reports false after Close.
func (m *Mailbox[T]) Push(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.backlog = append(m.backlog, v)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// Len returns the number of items not yet handed to the consumer.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.backlog)
}

// Close stops the pump and discards anything still queued. Safe to call more than once.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.backlog = nil
	m.mu.Unlock()
	close(m.done)
}

func (m *Mailbox[T]) pump() {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.backlog) == 0 {
			m.mu.Unlock()
			select {
			case <-m.done:
				return
			case <-m.wake:
				continue
			}
		}
		next := m.backlog[0]
		var zero T
		m.backlog[0] = zero
		m.backlog = m.backlog[1:]
		m.mu.Unlock()

		select {
		case m.out <- next:
		case <-m.done:
			return
		}
	}
}
