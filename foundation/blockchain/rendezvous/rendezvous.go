// Package rendezvous implements the bootstrap service nodes register with
// to learn about each other.
package rendezvous

import (
	"context"
	"fmt"
	"sync"

	"github.com/ardanlabs/powledger/foundation/blockchain/network"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
)

// DefaultPort is the port the bootstrap service listens on.
const DefaultPort = 4000

// Registry holds every address that has registered, in the order they
// registered. Entries are never removed.
type Registry struct {
	mu    sync.RWMutex
	peers []peer.Peer
	index map[peer.Peer]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[peer.Peer]struct{}),
	}
}

// Register adds the address if it is not already known and reports whether
// it was added.
func (r *Registry) Register(p peer.Peer) bool {
	if p.IsZero() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[p]; exists {
		return false
	}

	r.index[p] = struct{}{}
	r.peers = append(r.peers, p)
	return true
}

// Peers returns a snapshot of every registered address.
func (r *Registry) Peers() []peer.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append(make([]peer.Peer, 0, len(r.peers)), r.peers...)
}

// =============================================================================

// Handlers manages the set of bootstrap message handlers.
type Handlers struct {
	Registry  *Registry
	EvHandler func(v string, args ...any)
}

// Register adds the sender's advertised address to the registry.
func (h Handlers) Register(ctx context.Context, msg wire.Message) (any, error) {
	var reg wire.Register
	if err := msg.Decode(&reg); err != nil {
		return nil, err
	}

	p := reg.Peer()
	if p.IsZero() {
		return nil, fmt.Errorf("register: invalid address %q:%d", reg.Host, reg.Port)
	}

	if h.Registry.Register(p) {
		h.EvHandler("rendezvous: Register: traceid[%s]: added peer[%s]", network.GetTraceID(ctx), p)
	}

	return nil, nil
}

// GetPeers replies with the full list of registered addresses.
func (h Handlers) GetPeers(ctx context.Context, msg wire.Message) (any, error) {
	peers := h.Registry.Peers()

	h.EvHandler("rendezvous: GetPeers: traceid[%s]: peers[%d]", network.GetTraceID(ctx), len(peers))

	return peers, nil
}

// Routes binds the bootstrap handlers to the server.
func Routes(srv *network.Server, reg *Registry, evHandler func(v string, args ...any)) {
	h := Handlers{
		Registry:  reg,
		EvHandler: evHandler,
	}

	srv.Handle(wire.TypeRegister, h.Register)
	srv.Handle(wire.TypeGetPeers, h.GetPeers)
}
