// Package private maintains the group of handlers for node to node access
// over the p2p transport.
package private

import (
	"context"
	"errors"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/network"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node message handlers.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
}

// Transaction adds a transaction shared by a peer to the mempool. A
// transaction already seen is dropped so it is not shared again.
func (h Handlers) Transaction(ctx context.Context, msg wire.Message) (any, error) {
	var tx database.Tx
	if err := msg.Decode(&tx); err != nil {
		return nil, err
	}

	traceID := network.GetTraceID(ctx)

	if err := h.State.SubmitTransaction(tx); err != nil {
		if errors.Is(err, state.ErrSeen) {
			h.Log.Debugw("p2p tx", "traceid", traceID, "status", "already seen", "tx", tx.String())
			return nil, nil
		}
		return nil, err
	}

	h.Log.Infow("p2p tx", "traceid", traceID, "status", "added to mempool", "tx", tx.String())

	return nil, nil
}

// NewBlock takes a block received from a peer, validates it and if that
// passes, adds the block to the local blockchain.
func (h Handlers) NewBlock(ctx context.Context, msg wire.Message) (any, error) {
	var nb wire.NewBlock
	if err := msg.Decode(&nb); err != nil {
		return nil, err
	}

	traceID := network.GetTraceID(ctx)

	if err := h.State.ProcessProposedBlock(nb.Block); err != nil {
		if errors.Is(err, state.ErrSeen) {
			h.Log.Debugw("p2p block", "traceid", traceID, "status", "already seen", "block", nb.Block.String())
			return nil, nil
		}
		return nil, err
	}

	h.Log.Infow("p2p block", "traceid", traceID, "status", "accepted", "block", nb.Block.String())

	return nil, nil
}

// PeerDiscovery merges the peer list gossiped by another node.
func (h Handlers) PeerDiscovery(ctx context.Context, msg wire.Message) (any, error) {
	var pd wire.PeerDiscovery
	if err := msg.Decode(&pd); err != nil {
		return nil, err
	}

	if n := h.State.AddKnownPeers(pd.Peers); n > 0 {
		h.Log.Infow("p2p peers", "traceid", network.GetTraceID(ctx), "received", len(pd.Peers), "added", n)
	}

	return nil, nil
}

// ChainRequest replies with the full local chain.
func (h Handlers) ChainRequest(ctx context.Context, msg wire.Message) (any, error) {
	chain := h.State.RetrieveChain()

	h.Log.Infow("p2p chain request", "traceid", network.GetTraceID(ctx), "blocks", len(chain))

	return chain, nil
}
