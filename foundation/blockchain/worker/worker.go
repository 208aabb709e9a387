// Package worker implements mining, peer gossip, chain sync, and block and
// transaction sharing for the blockchain.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
)

// Set of defaults used when the config leaves a value unset.
const (
	DefaultGossipInterval = 30 * time.Second
	DefaultNetTimeout     = 15 * time.Second
)

// maxShareRequests represents the max number of pending share requests that
// can be outstanding before share requests are dropped. If the channel does
// become full, requests for new transactions or blocks to be shared will not
// be accepted.
const maxShareRequests = 100

// Config represents the settings for the background operations.
type Config struct {
	GossipInterval time.Duration // How often the peer list is sent to every peer.
	MineInterval   time.Duration // How often mining is signaled. Zero disables the ticker.
	AutoMine       bool          // Signal mining whenever a transaction is accepted.
	PeerTTL        time.Duration // Peers not heard from within this window are pruned.
	NetTimeout     time.Duration // Deadline for a single network round.
}

// =============================================================================

// Worker manages the POW workflows for the blockchain.
type Worker struct {
	state        *state.State
	cfg          Config
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	gossipTicker *time.Ticker
	mineTicker   *time.Ticker
	shut         chan struct{}
	startMining  chan bool
	cancelMining chan chan struct{}
	txSharing    chan database.Tx
	blockSharing chan database.Block
	syncing      chan bool
	evHandler    state.EventHandler
}

// Run creates a worker, registers the worker with the state package, and
// starts up all the background processes.
func Run(st *state.State, cfg Config, evHandler state.EventHandler) *Worker {
	if cfg.GossipInterval <= 0 {
		cfg.GossipInterval = DefaultGossipInterval
	}
	if cfg.NetTimeout <= 0 {
		cfg.NetTimeout = DefaultNetTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		state:        st,
		cfg:          cfg,
		ctx:          ctx,
		cancel:       cancel,
		gossipTicker: time.NewTicker(cfg.GossipInterval),
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan chan struct{}, 1),
		txSharing:    make(chan database.Tx, maxShareRequests),
		blockSharing: make(chan database.Block, maxShareRequests),
		syncing:      make(chan bool, 1),
		evHandler:    evHandler,
	}

	if cfg.MineInterval > 0 {
		w.mineTicker = time.NewTicker(cfg.MineInterval)
	}

	// Register this worker with the state package.
	st.Worker = &w

	// Update this node before starting any support G's.
	w.Sync()

	// Load the set of operations we need to run.
	operations := []func(){
		w.peerOperations,
		w.miningOperations,
		w.shareTxOperations,
		w.shareBlockOperations,
		w.syncOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop tickers")
	w.gossipTicker.Stop()
	if w.mineTicker != nil {
		w.mineTicker.Stop()
	}

	w.evHandler("worker: shutdown: signal cancel mining")
	done := w.SignalCancelMining()
	done()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.cancel()
	w.wg.Wait()
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	if !w.cfg.AutoMine {
		return
	}

	w.signalStartMining()
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately. That G will not return from the function until done
// is called. This allows the caller to complete any state changes before a
// new mining operation takes place.
func (w *Worker) SignalCancelMining() (done func()) {
	wait := make(chan struct{})

	select {
	case w.cancelMining <- wait:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")

	return func() { close(wait) }
}

// SignalShareTx signals a share transaction operation. If
// maxShareRequests signals exist in the channel, we won't send these.
func (w *Worker) SignalShareTx(tx database.Tx) {
	select {
	case w.txSharing <- tx:
		w.evHandler("worker: SignalShareTx: share Tx signaled")
	default:
		w.evHandler("worker: SignalShareTx: queue full, transactions won't be shared.")
	}
}

// SignalShareBlock signals a share block operation. If
// maxShareRequests signals exist in the channel, we won't send these.
func (w *Worker) SignalShareBlock(block database.Block) {
	select {
	case w.blockSharing <- block:
		w.evHandler("worker: SignalShareBlock: share block signaled")
	default:
		w.evHandler("worker: SignalShareBlock: queue full, block won't be shared.")
	}
}

// SignalSync asks for the chains of the known peers to be fetched. If a
// sync is already pending, just return.
func (w *Worker) SignalSync() {
	select {
	case w.syncing <- true:
		w.evHandler("worker: SignalSync: sync signaled")
	default:
	}
}

// =============================================================================

// signalStartMining queues a mining operation regardless of the auto mine
// setting.
func (w *Worker) signalStartMining() {
	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}

// netContext returns a context bounded by the network timeout that is also
// cancelled on shutdown.
func (w *Worker) netContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(w.ctx, w.cfg.NetTimeout)
}
