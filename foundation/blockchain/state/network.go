package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentSends bounds the number of peers contacted at the same time
// during a broadcast.
const maxConcurrentSends = 8

// NetSendTxToPeers shares a new transaction with the known peers.
func (s *State) NetSendTxToPeers(ctx context.Context, tx database.Tx) {
	s.evHandler("state: NetSendTxToPeers: started: tx[%s]", tx)
	defer s.evHandler("state: NetSendTxToPeers: completed")

	s.broadcast(ctx, wire.TypeTransaction, tx)
}

// NetSendBlockToPeers takes the new mined block and sends it to all known peers.
func (s *State) NetSendBlockToPeers(ctx context.Context, block database.Block) {
	s.evHandler("state: NetSendBlockToPeers: started: blk[%s]", block)
	defer s.evHandler("state: NetSendBlockToPeers: completed")

	s.broadcast(ctx, wire.TypeNewBlock, wire.NewBlock{Block: block})
}

// NetSendPeerList gossips the full list of known peers, this node included,
// to every known peer.
func (s *State) NetSendPeerList(ctx context.Context) {
	s.evHandler("state: NetSendPeerList: started")
	defer s.evHandler("state: NetSendPeerList: completed")

	peers := append(s.RetrieveKnownPeers(), s.self)
	s.broadcast(ctx, wire.TypePeerDiscovery, wire.PeerDiscovery{Peers: peers})
}

// NetRegisterWithBootstrap registers this node's address with the bootstrap.
func (s *State) NetRegisterWithBootstrap(ctx context.Context) error {
	s.evHandler("state: NetRegisterWithBootstrap: started: bootstrap[%s]", s.bootstrap)
	defer s.evHandler("state: NetRegisterWithBootstrap: completed")

	if s.bootstrap.IsZero() {
		return fmt.Errorf("no bootstrap configured")
	}

	reg := wire.Register{Host: s.self.Host, Port: s.self.Port}
	return s.client.Send(ctx, s.bootstrap.Addr(), wire.TypeRegister, reg)
}

// NetRequestBootstrapPeers asks the bootstrap for every registered address.
func (s *State) NetRequestBootstrapPeers(ctx context.Context) ([]peer.Peer, error) {
	s.evHandler("state: NetRequestBootstrapPeers: started: bootstrap[%s]", s.bootstrap)
	defer s.evHandler("state: NetRequestBootstrapPeers: completed")

	if s.bootstrap.IsZero() {
		return nil, fmt.Errorf("no bootstrap configured")
	}

	var peers []peer.Peer
	if err := s.client.Request(ctx, s.bootstrap.Addr(), wire.TypeGetPeers, nil, &peers); err != nil {
		return nil, err
	}

	s.evHandler("state: NetRequestBootstrapPeers: peers[%d]", len(peers))

	return peers, nil
}

// NetRequestPeerChain asks the peer for its full chain.
func (s *State) NetRequestPeerChain(ctx context.Context, pr peer.Peer) ([]database.Block, error) {
	s.evHandler("state: NetRequestPeerChain: started: %s", pr)
	defer s.evHandler("state: NetRequestPeerChain: completed: %s", pr)

	var chain []database.Block
	if err := s.client.Request(ctx, pr.Addr(), wire.TypeChainRequest, nil, &chain); err != nil {
		s.peerFailed(pr, err)
		return nil, err
	}
	s.knownPeers.MarkSeen(pr)

	s.evHandler("state: NetRequestPeerChain: peer[%s]: blocks[%d]", pr, len(chain))

	return chain, nil
}

// =============================================================================

// broadcast sends the envelope to every known peer. Failures are logged
// and counted against the peer. Nothing is retried.
func (s *State) broadcast(ctx context.Context, typ string, payload any) {
	var g errgroup.Group
	g.SetLimit(maxConcurrentSends)

	for _, pr := range s.RetrieveKnownPeers() {
		g.Go(func() error {
			if err := s.client.Send(ctx, pr.Addr(), typ, payload); err != nil {
				s.peerFailed(pr, err)
				return nil
			}

			s.knownPeers.MarkSeen(pr)
			s.evHandler("state: broadcast: type[%s]: sent to peer[%s]", typ, pr)
			return nil
		})
	}

	g.Wait()
}

// peerFailed records the failure and logs an eviction.
func (s *State) peerFailed(pr peer.Peer, err error) {
	s.evHandler("state: peer[%s]: WARNING: %s", pr, err)

	if s.knownPeers.MarkFailure(pr, s.maxPeerFailures) {
		s.evHandler("state: peer[%s]: evicted after %d failures", pr, s.maxPeerFailures)
	}
}
