package cluster

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ChannelPool lazily warms up and caches a grpc.ClientConn per peer,
// keyed by GRPCAdvertiseAddr, so a node only pays a dial on first use of a
// peer rather than up front for the whole cluster.
type ChannelPool struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn
	addrs map[string]string
}

// NewChannelPool returns an empty pool.
func NewChannelPool() *ChannelPool {
	return &ChannelPool{
		conns: make(map[string]*grpc.ClientConn),
		addrs: make(map[string]string),
	}
}

// Warm records addr for nodeID so a subsequent Get can dial lazily. It does
// not dial eagerly.
func (p *ChannelPool) Warm(nodeID, addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.addrs[nodeID]; ok && existing != addr {
		if conn, ok := p.conns[nodeID]; ok {
			conn.Close()
			delete(p.conns, nodeID)
		}
	}
	p.addrs[nodeID] = addr
}

// Get returns the cached connection for nodeID, dialing it on first access.
func (p *ChannelPool) Get(nodeID string) (*grpc.ClientConn, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[nodeID]; ok {
		return conn, true
	}

	addr, ok := p.addrs[nodeID]
	if !ok {
		return nil, false
	}

	conn, err := grpc.NewClient(
		addr, grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		log.WarnS(
			context.Background(), "failed to warm peer channel", err,
			"node_id", nodeID, "addr", addr,
		)
		return nil, false
	}

	p.conns[nodeID] = conn
	return conn, true
}

// Drop closes and forgets any connection cached for nodeID.
func (p *ChannelPool) Drop(nodeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[nodeID]; ok {
		conn.Close()
		delete(p.conns, nodeID)
	}
	delete(p.addrs, nodeID)
}

// CloseAll shuts down every cached connection.
func (p *ChannelPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, conn := range p.conns {
		conn.Close()
		delete(p.conns, id)
	}
}
