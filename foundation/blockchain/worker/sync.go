package worker

// syncOperations handles requests to resync the chain with the known peers.
func (w *Worker) syncOperations() {
	w.evHandler("worker: syncOperations: G started")
	defer w.evHandler("worker: syncOperations: G completed")

	for {
		select {
		case <-w.syncing:
			if !w.isShutdown() {
				w.syncChains()
			}
		case <-w.shut:
			w.evHandler("worker: syncOperations: received shut signal")
			return
		}
	}
}

// Sync registers this node with the bootstrap, learns the registered peers
// and adopts the longest valid chain among them.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	ctx, cancel := w.netContext()
	err := w.state.NetRegisterWithBootstrap(ctx)
	cancel()
	if err != nil {
		w.evHandler("worker: sync: register: ERROR: %s", err)
	}

	w.addBootstrapPeers()
	w.syncChains()
}

// syncChains asks every known peer for its chain and replaces the local
// chain whenever a longer valid one is found.
func (w *Worker) syncChains() {
	w.evHandler("worker: syncChains: started")
	defer w.evHandler("worker: syncChains: completed")

	for _, pr := range w.state.RetrieveKnownPeers() {
		if w.isShutdown() {
			return
		}

		ctx, cancel := w.netContext()
		chain, err := w.state.NetRequestPeerChain(ctx, pr)
		cancel()
		if err != nil {
			w.evHandler("worker: syncChains: peer[%s]: ERROR: %s", pr, err)
			continue
		}

		if len(chain) <= w.state.QueryChainLength() {
			continue
		}

		if w.state.ReplaceChain(chain) {
			w.evHandler("worker: syncChains: peer[%s]: adopted chain[%d]", pr, len(chain))
		}
	}
}
