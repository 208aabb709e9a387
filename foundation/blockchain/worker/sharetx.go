package worker

import (
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
)

// shareTxOperations handles sharing new user transactions.
func (w *Worker) shareTxOperations() {
	w.evHandler("worker: shareTxOperations: G started")
	defer w.evHandler("worker: shareTxOperations: G completed")

	for {
		select {
		case tx := <-w.txSharing:
			if !w.isShutdown() {
				ctx, cancel := w.netContext()
				w.state.NetSendTxToPeers(ctx, tx)
				cancel()
			}
		case <-w.shut:
			w.evHandler("worker: shareTxOperations: received shut signal")
			return
		}
	}
}

// shareBlockOperations handles relaying blocks accepted from peers.
func (w *Worker) shareBlockOperations() {
	w.evHandler("worker: shareBlockOperations: G started")
	defer w.evHandler("worker: shareBlockOperations: G completed")

	for {
		select {
		case block := <-w.blockSharing:
			if !w.isShutdown() {
				w.runShareBlock(block)
			}
		case <-w.shut:
			w.evHandler("worker: shareBlockOperations: received shut signal")
			return
		}
	}
}

func (w *Worker) runShareBlock(block database.Block) {
	ctx, cancel := w.netContext()
	defer cancel()

	w.state.NetSendBlockToPeers(ctx, block)
}
