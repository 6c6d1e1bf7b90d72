package cluster

import "sync"

// subscriberBuffer bounds how many pending NodeEvents a subscriber channel
// holds before it's considered unable to keep up.
const subscriberBuffer = 64

// ChangeStream is a fan-out subscription bus for NodeEvents. Every new
// subscriber receives a synthetic NodeAdd for each currently-ready node
// before any further deltas, so subscribers never have to separately seed
// their view from Registry.ReadyNodes.
type ChangeStream struct {
	mu   sync.Mutex
	subs map[int]chan NodeEvent
	next int

	// snapshot is consulted only when a new subscriber joins, to emit the
	// synthetic initial Add events; publish updates it with every event
	// it fans out.
	snapshot map[string]Node
}

func newChangeStream() *ChangeStream {
	return &ChangeStream{
		subs:     make(map[int]chan NodeEvent),
		snapshot: make(map[string]Node),
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel is buffered; a subscriber that falls
// behind has events silently dropped for it rather than blocking publish.
func (c *ChangeStream) Subscribe() (<-chan NodeEvent, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.next
	c.next++

	ch := make(chan NodeEvent, subscriberBuffer)
	c.subs[id] = ch

	for _, n := range c.snapshot {
		select {
		case ch <- NodeEvent{Kind: NodeAdd, Node: n.clone()}:
		default:
			// Already unable to keep up before its first real
			// event; leave it be, the caller will notice a stale
			// view.
		}
	}

	unsubscribe := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.subs[id]; ok {
			close(existing)
			delete(c.subs, id)
		}
	}

	return ch, unsubscribe
}

// publish delivers ev to every current subscriber (dropping it for any
// subscriber whose buffer is full) and updates the snapshot used to seed
// future subscribers.
func (c *ChangeStream) publish(ev NodeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case NodeAdd, NodeUpdate:
		c.snapshot[ev.Node.NodeID] = ev.Node.clone()
	case NodeRemove:
		delete(c.snapshot, ev.Node.NodeID)
	}

	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber can't keep up; drop silently per the
			// change-stream delivery contract.
		}
	}
}
