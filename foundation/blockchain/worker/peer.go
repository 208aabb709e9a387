package worker

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
)

// peerOperations handles periodic peer gossip and pruning.
func (w *Worker) peerOperations() {
	w.evHandler("worker: peerOperations: G started")
	defer w.evHandler("worker: peerOperations: G completed")

	for {
		select {
		case <-w.gossipTicker.C:
			if !w.isShutdown() {
				w.runPeersOperation()
			}
		case <-w.shut:
			w.evHandler("worker: peerOperations: received shut signal")
			return
		}
	}
}

// runPeersOperation prunes silent peers and sends the peer list to every
// known peer. An empty peer set is refilled from the bootstrap.
func (w *Worker) runPeersOperation() {
	w.evHandler("worker: runPeersOperation: started")
	defer w.evHandler("worker: runPeersOperation: completed")

	if w.cfg.PeerTTL > 0 {
		for _, pr := range w.state.PruneKnownPeers(w.cfg.PeerTTL) {
			w.evHandler("worker: runPeersOperation: pruned peer[%s]", pr)
		}
	}

	if len(w.state.RetrieveKnownPeers()) == 0 {
		w.addBootstrapPeers()
	}

	ctx, cancel := w.netContext()
	defer cancel()

	w.state.NetSendPeerList(ctx)
}

// addBootstrapPeers asks the bootstrap for the registered peers and adds
// the ones not already known.
func (w *Worker) addBootstrapPeers() []peer.Peer {
	ctx, cancel := w.netContext()
	defer cancel()

	peers, err := w.state.NetRequestBootstrapPeers(ctx)
	if err != nil {
		w.evHandler("worker: addBootstrapPeers: ERROR: %s", err)
		return nil
	}

	n := w.state.AddKnownPeers(peers)
	w.evHandler("worker: addBootstrapPeers: added[%d] of [%d]", n, len(peers))

	return peers
}
