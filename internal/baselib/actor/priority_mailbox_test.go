package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// priorityTestMessage is a testMessage variant whose Priority() is settable
// per-instance, so a single test can send both high and low priority
// envelopes through the same mailbox.
type priorityTestMessage struct {
	BaseMessage
	value    int
	priority int
}

func (m *priorityTestMessage) MessageType() string { return "priorityTestMessage" }
func (m *priorityTestMessage) Priority() int        { return m.priority }

// TestPriorityMailboxDrainsHighFirst verifies that low-priority envelopes
// sent before any high-priority ones are still received after, matching the
// mailbox's documented high-first drain order.
func TestPriorityMailboxDrainsHighFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	actorCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	mailbox := NewPriorityMailbox[*priorityTestMessage, string](actorCtx, 10)
	defer mailbox.Close()

	low1 := envelope[*priorityTestMessage, string]{
		message: &priorityTestMessage{value: 1, priority: 0},
	}
	low2 := envelope[*priorityTestMessage, string]{
		message: &priorityTestMessage{value: 2, priority: 0},
	}
	high1 := envelope[*priorityTestMessage, string]{
		message: &priorityTestMessage{value: 3, priority: 1},
	}

	require.True(t, mailbox.Send(ctx, low1))
	require.True(t, mailbox.Send(ctx, low2))
	require.True(t, mailbox.Send(ctx, high1))

	var order []int
	for env := range mailbox.Receive(ctx) {
		order = append(order, env.message.value)
		if len(order) == 3 {
			break
		}
	}

	require.Equal(t, []int{3, 1, 2}, order)
}

// TestPriorityMailboxTrySendAndClose verifies TrySend's non-blocking
// semantics and that Close prevents further sends while still allowing
// Drain to recover what was queued.
func TestPriorityMailboxTrySendAndClose(t *testing.T) {
	t.Parallel()

	actorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailbox := NewPriorityMailbox[*priorityTestMessage, string](actorCtx, 1)

	highEnv := envelope[*priorityTestMessage, string]{
		message: &priorityTestMessage{value: 1, priority: 1},
	}
	require.True(t, mailbox.TrySend(highEnv))

	lowEnv := envelope[*priorityTestMessage, string]{
		message: &priorityTestMessage{value: 2, priority: 0},
	}
	require.True(t, mailbox.TrySend(lowEnv))

	mailbox.Close()
	require.True(t, mailbox.IsClosed())

	require.False(t, mailbox.TrySend(envelope[*priorityTestMessage, string]{
		message: &priorityTestMessage{value: 3, priority: 1},
	}))

	var drained []int
	for env := range mailbox.Drain() {
		drained = append(drained, env.message.value)
	}
	require.Equal(t, []int{1, 2}, drained)
}

// TestPriorityMailboxUnboundedDefault verifies a non-positive capacity
// selects the unbounded buffer rather than defaulting to 1, per
// NewPriorityMailbox's documented contract.
func TestPriorityMailboxUnboundedDefault(t *testing.T) {
	t.Parallel()

	actorCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailbox := NewPriorityMailbox[*priorityTestMessage, string](actorCtx, 0)
	defer mailbox.Close()

	require.Equal(t, unboundedMailboxCapacity, cap(mailbox.low))
	require.Equal(t, unboundedMailboxCapacity, cap(mailbox.high))
}
