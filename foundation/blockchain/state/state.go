// Package state is the core API for the blockchain and implements all the
// business rules and processing.
package state

import (
	"sync"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/difficulty"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
)

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, peer updates, and block and
// transaction sharing.
type Worker interface {
	Shutdown()
	Sync()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTx(tx database.Tx)
	SignalShareBlock(block database.Block)
	SignalSync()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerAddress    string
	Self            peer.Peer
	Bootstrap       peer.Peer
	Genesis         genesis.Genesis
	Storage         database.Storage
	KnownPeers      *peer.PeerSet
	Client          wire.Client
	SeenWindow      time.Duration
	MaxPeerFailures int
	EvHandler       EventHandler
}

// State manages the blockchain database.
type State struct {
	mu sync.Mutex

	minerAddress    string
	self            peer.Peer
	bootstrap       peer.Peer
	client          wire.Client
	maxPeerFailures int
	evHandler       EventHandler

	genesis    genesis.Genesis
	controller difficulty.Controller
	difficulty uint

	knownPeers *peer.PeerSet
	mempool    *mempool.Mempool
	db         *database.Database
	seen       *seen

	Worker Worker
}

// New constructs a new blockchain for data management.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	// Access the storage for the blockchain and load every block, writing
	// the genesis block if the storage is empty.
	db, err := database.New(cfg.Genesis, cfg.Storage, ev)
	if err != nil {
		return nil, err
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewPeerSet(cfg.Self)
	}

	client := cfg.Client
	if client == (wire.Client{}) {
		client = wire.DefaultClient
	}

	// The difficulty for the next block comes from replaying the retarget
	// rule over the chain that was loaded.
	controller := difficulty.New(cfg.Genesis)

	state := State{
		minerAddress:    cfg.MinerAddress,
		self:            cfg.Self,
		bootstrap:       cfg.Bootstrap,
		client:          client,
		maxPeerFailures: cfg.MaxPeerFailures,
		evHandler:       ev,

		genesis:    cfg.Genesis,
		controller: controller,
		difficulty: controller.Replay(db.Copy(), cfg.Genesis.Difficulty),

		knownPeers: knownPeers,
		mempool:    mempool.New(),
		db:         db,
		seen:       newSeen(cfg.SeenWindow),

		// The call to worker.Run will replace this and start everything
		// up and running for the node.
		Worker: idleWorker{},
	}

	return &state, nil
}

// Shutdown cleanly brings the node down.
func (s *State) Shutdown() error {

	// Make sure the database file is properly closed.
	defer func() {
		s.db.Close()
	}()

	// Stop all blockchain writing activity.
	s.Worker.Shutdown()

	return nil
}

// =============================================================================

// idleWorker is used until a real worker registers itself.
type idleWorker struct{}

func (idleWorker) Shutdown() {}
func (idleWorker) Sync() {}
func (idleWorker) SignalStartMining() {}
func (idleWorker) SignalCancelMining() (done func()) { return func() {} }
func (idleWorker) SignalShareTx(tx database.Tx) {}
func (idleWorker) SignalShareBlock(block database.Block) {}
func (idleWorker) SignalSync() {}
