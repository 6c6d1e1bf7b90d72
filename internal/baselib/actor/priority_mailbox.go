package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// priorityOf returns the processing priority of a message: PriorityMessage
// implementations report their own, everything else defaults to 0 (low).
func priorityOf[M Message](msg M) int {
	if pm, ok := any(msg).(PriorityMessage); ok {
		return pm.Priority()
	}

	return 0
}

// PriorityMailbox is a Mailbox implementation with two underlying channels,
// high and low. Receive always drains the high queue before taking anything
// from the low queue, so urgent messages (e.g. supervision/shutdown
// signals) are never stuck behind a backlog of routine work; within each
// queue, ordering is FIFO. It shares the send-vs-close lock discipline of
// ChannelMailbox: a read lock is held for the duration of a send so Close
// can never race a send into a closed channel.
type PriorityMailbox[M Message, R any] struct {
	high chan envelope[M, R]
	low  chan envelope[M, R]

	closed    atomic.Bool
	mu        sync.RWMutex
	closeOnce sync.Once

	actorCtx context.Context
}

// NewPriorityMailbox creates a priority mailbox. capacity applies to both
// the high and low queues; a capacity of 0 or less means Unbounded, in
// which case both queues are backed by effectively unbounded buffering
// (implemented as a very large buffer, since Go channels have no unbounded
// mode) rather than a literal 1-slot default — an unbounded mailbox that
// silently became bounded-at-1 would change delivery semantics in a way
// callers asking for Unbounded explicitly don't expect.
func NewPriorityMailbox[M Message, R any](
	actorCtx context.Context, capacity int,
) *PriorityMailbox[M, R] {

	if capacity <= 0 {
		capacity = unboundedMailboxCapacity
	}

	return &PriorityMailbox[M, R]{
		high:     make(chan envelope[M, R], capacity),
		low:      make(chan envelope[M, R], capacity),
		actorCtx: actorCtx,
	}
}

// unboundedMailboxCapacity is the per-queue buffer size used to approximate
// an Unbounded mailbox (a capacity of 0 or less); a Send into a queue that
// already holds this many envelopes blocks like any bounded send.
const unboundedMailboxCapacity = 1 << 16

func (m *PriorityMailbox[M, R]) queueFor(env envelope[M, R]) chan envelope[M, R] {
	if priorityOf(env.message) > 0 {
		return m.high
	}

	return m.low
}

// Send blocks until the envelope is accepted by its priority queue, the
// caller's context is cancelled, or the actor's context is cancelled.
func (m *PriorityMailbox[M, R]) Send(ctx context.Context, env envelope[M, R]) bool {
	if ctx.Err() != nil || m.actorCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	queue := m.queueFor(env)

	select {
	case queue <- env:
		return true
	case <-ctx.Done():
		return false
	case <-m.actorCtx.Done():
		return false
	}
}

// TrySend attempts a non-blocking send into the envelope's priority queue.
func (m *PriorityMailbox[M, R]) TrySend(env envelope[M, R]) bool {
	if m.actorCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.queueFor(env) <- env:
		return true
	default:
		return false
	}
}

// Receive returns an iterator that always prefers the high-priority queue:
// on each step, it drains every immediately available high-priority
// envelope before taking one from low, then blocks on both (high-first)
// once high is momentarily empty.
func (m *PriorityMailbox[M, R]) Receive(
	ctx context.Context,
) iter.Seq[envelope[M, R]] {

	return func(yield func(envelope[M, R]) bool) {
		// A queue found closed and empty is set to nil so the other
		// queue's remaining envelopes are still yielded after Close.
		high, low := m.high, m.low
		for {
			if ctx.Err() != nil || (high == nil && low == nil) {
				return
			}

			// Non-blocking priority check: serve high if anything
			// is immediately available there.
			select {
			case env, ok := <-high:
				if !ok {
					high = nil
					continue
				}
				if !yield(env) {
					return
				}
				continue
			default:
			}

			select {
			case env, ok := <-high:
				if !ok {
					high = nil
					continue
				}
				if !yield(env) {
					return
				}

			case env, ok := <-low:
				if !ok {
					low = nil
					continue
				}
				if !yield(env) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// Close closes both queues, preventing further sends. Safe to call more
// than once.
func (m *PriorityMailbox[M, R]) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		log.DebugS(m.actorCtx, "Priority mailbox closing",
			"high_remaining", len(m.high),
			"low_remaining", len(m.low))

		m.closed.Store(true)
		close(m.high)
		close(m.low)
	})
}

// IsClosed reports whether Close has been called.
func (m *PriorityMailbox[M, R]) IsClosed() bool {
	return m.closed.Load()
}

// Drain yields every remaining envelope after Close, high-priority queue
// first, then low.
func (m *PriorityMailbox[M, R]) Drain() iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		if !m.IsClosed() {
			return
		}

		for _, queue := range []chan envelope[M, R]{m.high, m.low} {
			for {
				select {
				case env, ok := <-queue:
					if !ok {
						break
					}
					if !yield(env) {
						return
					}
					continue
				default:
				}
				break
			}
		}
	}
}
