package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"

	"github.com/latticeforge/veridian/internal/metrics"
)

// RegistryConfig configures a Registry's gossip transport.
type RegistryConfig struct {
	// NodeID uniquely identifies this node in the cluster.
	NodeID string

	// GenerationID distinguishes this process instance from a prior one
	// that held the same NodeID (e.g. after a crash/restart), so stale
	// gossip about the old instance is recognized and dropped.
	GenerationID uint64

	// BindAddr/BindPort is the local gossip listen address.
	BindAddr string
	BindPort int

	// GRPCAdvertiseAddr is the address peers should dial for RPC,
	// propagated alongside gossip state.
	GRPCAdvertiseAddr string

	// Seeds is the set of existing member addresses to join on start-up.
	Seeds []string
}

// Registry maintains a single-writer table of peer Nodes, updated from
// memberlist's gossip digest, and fans out Add/Update/Remove deltas via its
// ChangeStream. Mutations all happen on memberlist's own event-delivery
// goroutine, so the lock only needs to guard readers.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]Node

	localNodeID string
	self        wireState

	list    *memberlist.Memberlist
	stream  *ChangeStream
	pool    *ChannelPool
}

// NewRegistry starts a memberlist instance and joins the given seeds. The
// join runs synchronously before NewRegistry returns; if no seed is
// reachable a warning is logged, the Registry is still returned, and the
// join is not retried.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	r := &Registry{
		nodes:       make(map[string]Node),
		localNodeID: cfg.NodeID,
		self: wireState{
			GenerationID:      cfg.GenerationID,
			GRPCAdvertiseAddr: cfg.GRPCAdvertiseAddr,
			Ready:             false,
			KV:                make(map[string]string),
		},
		stream: newChangeStream(),
		pool:   NewChannelPool(),
	}

	mlCfg := memberlist.DefaultLocalConfig()
	mlCfg.Name = cfg.NodeID
	if cfg.BindAddr != "" {
		mlCfg.BindAddr = cfg.BindAddr
	}
	if cfg.BindPort != 0 {
		mlCfg.BindPort = cfg.BindPort
		mlCfg.AdvertisePort = cfg.BindPort
	}
	mlCfg.Delegate = &delegate{r: r}
	mlCfg.Events = &eventDelegate{r: r}

	list, err := memberlist.Create(mlCfg)
	if err != nil {
		return nil, fmt.Errorf("starting gossip transport: %w", err)
	}
	r.list = list

	if len(cfg.Seeds) > 0 {
		if _, err := list.Join(cfg.Seeds); err != nil {
			log.WarnS(
				context.Background(), "initial gossip join failed",
				err, "seeds", cfg.Seeds,
			)
		}
	}

	return r, nil
}

// Leave gracefully leaves the gossip cluster and shuts down the local
// memberlist transport.
func (r *Registry) Leave(timeout time.Duration) error {
	if err := r.list.Leave(timeout); err != nil {
		return fmt.Errorf("leaving cluster: %w", err)
	}
	return r.list.Shutdown()
}

// SetReady flips this node's readiness and broadcasts the change via
// memberlist's node metadata update.
func (r *Registry) SetReady(ready bool) error {
	r.mu.Lock()
	r.self.Ready = ready
	r.mu.Unlock()

	r.list.UpdateNode(0)
	return nil
}

// PublishKV merges key/value pairs into this node's locally-gossiped state
// map (used by MetricsPublisher); an empty value string is treated as a
// tombstone and removed before the next broadcast.
func (r *Registry) PublishKV(kv map[string]string) {
	r.mu.Lock()
	for k, v := range kv {
		if v == "" {
			delete(r.self.KV, k)
		} else {
			r.self.KV[k] = v
		}
	}
	r.mu.Unlock()

	r.list.UpdateNode(0)
}

// Nodes returns a snapshot of every currently known node, ready or not.
func (r *Registry) Nodes() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n.clone())
	}
	return out
}

// ReadyNodes returns only nodes currently marked ready.
func (r *Registry) ReadyNodes() []Node {
	all := r.Nodes()
	out := all[:0]
	for _, n := range all {
		if n.Ready {
			out = append(out, n)
		}
	}
	return out
}

// Changes returns the Registry's ChangeStream for subscribing to
// Add/Update/Remove deltas.
func (r *Registry) Changes() *ChangeStream {
	return r.stream
}

// Channels returns the Registry's lazily-warmed RPC channel pool.
func (r *Registry) Channels() *ChannelPool {
	return r.pool
}

// applyNodeState implements the node lifecycle rules of the gossip digest
// diff: Added/Unchanged semantics driven from memberlist's NotifyJoin and
// NotifyUpdate callbacks (NotifyLeave is handled separately in removeNode).
func (r *Registry) applyNodeState(nodeID string, ws wireState) {
	defer r.publishNodeCount()

	r.mu.Lock()

	existing, had := r.nodes[nodeID]

	switch {
	case !had:
		// Added: brand new node_id.
		n := Node{
			NodeID:            nodeID,
			GenerationID:      ws.GenerationID,
			GRPCAdvertiseAddr: ws.GRPCAdvertiseAddr,
			Ready:             ws.Ready,
			KV:                ws.KV,
		}
		r.nodes[nodeID] = n
		r.mu.Unlock()

		if ws.Ready {
			r.pool.Warm(nodeID, ws.GRPCAdvertiseAddr)
			r.stream.publish(NodeEvent{Kind: NodeAdd, Node: n.clone()})
		}
		return

	case ws.GenerationID < existing.GenerationID:
		// Rogue node reporting a stale generation; ignore entirely.
		r.mu.Unlock()
		return

	case ws.GenerationID > existing.GenerationID:
		// Added: a newer instance replaced the node_id we knew about.
		wasReady := existing.Ready
		n := Node{
			NodeID:            nodeID,
			GenerationID:      ws.GenerationID,
			GRPCAdvertiseAddr: ws.GRPCAdvertiseAddr,
			Ready:             ws.Ready,
			KV:                ws.KV,
		}
		r.nodes[nodeID] = n
		r.mu.Unlock()

		if wasReady {
			r.stream.publish(NodeEvent{
				Kind: NodeRemove,
				Node: existing.clone(),
			})
		}
		if ws.Ready {
			r.pool.Warm(nodeID, ws.GRPCAdvertiseAddr)
			r.stream.publish(NodeEvent{Kind: NodeAdd, Node: n.clone()})
		}
		return

	default:
		// Unchanged generation: rebuild reusing the warmed channel,
		// deriving the Add/Update/Remove transition from readiness.
		wasReady := existing.Ready
		n := Node{
			NodeID:            nodeID,
			GenerationID:      ws.GenerationID,
			GRPCAdvertiseAddr: ws.GRPCAdvertiseAddr,
			Ready:             ws.Ready,
			KV:                ws.KV,
		}
		r.nodes[nodeID] = n
		r.mu.Unlock()

		switch {
		case !wasReady && ws.Ready:
			r.pool.Warm(nodeID, ws.GRPCAdvertiseAddr)
			r.stream.publish(NodeEvent{Kind: NodeAdd, Node: n.clone()})
		case wasReady && !ws.Ready:
			r.stream.publish(NodeEvent{
				Kind: NodeRemove,
				Node: n.clone(),
			})
		case wasReady && ws.Ready:
			r.stream.publish(NodeEvent{
				Kind: NodeUpdate,
				Node: n.clone(),
			})
		}
	}
}

// removeNode implements the Removed branch of the digest diff: only a node
// whose generation matches the stored one, and that was ready, produces a
// Remove event.
func (r *Registry) removeNode(nodeID string, generationID uint64) {
	defer r.publishNodeCount()

	r.mu.Lock()
	existing, had := r.nodes[nodeID]
	if !had || existing.GenerationID != generationID {
		r.mu.Unlock()
		return
	}
	delete(r.nodes, nodeID)
	r.mu.Unlock()

	r.pool.Drop(nodeID)

	if existing.Ready {
		r.stream.publish(NodeEvent{Kind: NodeRemove, Node: existing.clone()})
	}
}

// publishNodeCount updates the cluster node-count gauge from the current
// registry size. Called via defer from every path that can change
// len(r.nodes), after the mutating lock has already been released.
func (r *Registry) publishNodeCount() {
	r.mu.RLock()
	n := len(r.nodes)
	r.mu.RUnlock()

	metrics.ClusterNodesTotal.Set(float64(n))
}

// delegate implements memberlist.Delegate, encoding/decoding this node's
// wireState as gossiped metadata.
type delegate struct {
	r *Registry
}

func (d *delegate) NodeMeta(limit int) []byte {
	d.r.mu.RLock()
	defer d.r.mu.RUnlock()

	b, err := json.Marshal(d.r.self)
	if err != nil {
		return nil
	}
	if len(b) > limit {
		log.WarnS(
			context.Background(), "node metadata truncated over limit",
			fmt.Errorf("encoded size %d exceeds limit %d", len(b), limit),
		)
		return nil
	}
	return b
}

func (d *delegate) NotifyMsg([]byte)                           {}
func (d *delegate) GetBroadcasts(int, int) [][]byte             { return nil }
func (d *delegate) LocalState(join bool) []byte                 { return nil }
func (d *delegate) MergeRemoteState(buf []byte, join bool)      {}

// eventDelegate implements memberlist.EventDelegate, translating memberlist's
// join/update/leave callbacks into Registry state transitions.
type eventDelegate struct {
	r *Registry
}

func decodeMeta(meta []byte) (wireState, bool) {
	var ws wireState
	if len(meta) == 0 {
		return ws, false
	}
	if err := json.Unmarshal(meta, &ws); err != nil {
		log.WarnS(
			context.Background(), "failed to decode gossip node metadata",
			err,
		)
		return ws, false
	}
	return ws, true
}

func (e *eventDelegate) NotifyJoin(n *memberlist.Node) {
	ws, ok := decodeMeta(n.Meta)
	if !ok {
		return
	}
	e.r.applyNodeState(n.Name, ws)
}

func (e *eventDelegate) NotifyUpdate(n *memberlist.Node) {
	ws, ok := decodeMeta(n.Meta)
	if !ok {
		return
	}
	e.r.applyNodeState(n.Name, ws)
}

func (e *eventDelegate) NotifyLeave(n *memberlist.Node) {
	ws, ok := decodeMeta(n.Meta)
	if !ok {
		return
	}
	e.r.removeNode(n.Name, ws.GenerationID)
}
