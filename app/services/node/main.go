package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/powledger/app/services/node/handlers"
	"github.com/ardanlabs/powledger/foundation/blockchain/database/storage"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/blockchain/network"
	"github.com/ardanlabs/powledger/foundation/blockchain/peer"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
	"github.com/ardanlabs/powledger/foundation/blockchain/worker"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/logger"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		P2P struct {
			Host           string        `conf:"default:127.0.0.1"`
			Port           int           `conf:"default:0"`
			PortMin        int           `conf:"default:5000"`
			PortMax        int           `conf:"default:5100"`
			DialTimeout    time.Duration `conf:"default:3s"`
			IOTimeout      time.Duration `conf:"default:10s"`
			MaxHandlers    int64         `conf:"default:64"`
			MaxMessageSize int           `conf:"default:8388608"`
			AcceptRate     float64       `conf:"default:100"`
			AcceptBurst    int           `conf:"default:64"`
		}
		State struct {
			MinerName       string        `conf:"default:miner1"`
			DBPath          string        `conf:"default:zblock/blocks"`
			DBKind          string        `conf:"default:disk"`
			GenesisPath     string        `conf:"default:zblock/genesis.json"`
			KnownBootstrap  string        `conf:"default:127.0.0.1:4000"`
			GossipInterval  time.Duration `conf:"default:30s"`
			MineInterval    time.Duration `conf:"default:0s"`
			AutoMine        bool          `conf:"default:true"`
			PeerTTL         time.Duration `conf:"default:5m"`
			NetTimeout      time.Duration `conf:"default:15s"`
			MaxPeerFailures int           `conf:"default:3"`
			SeenWindow      time.Duration `conf:"default:10m"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work ledger node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for miner addresses.
	// The names come from the file names in the zblock/accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	// Logging the accounts for documentation in the logs.
	for address, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "address", address)
	}

	// =========================================================================
	// Blockchain Support

	// Need to load the private key file for the configured miner so the
	// address can get credited with the mining reward.
	privateKey, err := nameservice.LoadOrCreateKey(cfg.NameService.Folder, cfg.State.MinerName)
	if err != nil {
		return fmt.Errorf("unable to load private key for node: %w", err)
	}
	minerAddress := nameservice.Address(privateKey)

	gen, err := genesis.Load(cfg.State.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	strg, err := storage.Open(cfg.State.DBKind, cfg.State.DBPath)
	if err != nil {
		return fmt.Errorf("unable to open storage: %w", err)
	}

	var bootstrap peer.Peer
	if cfg.State.KnownBootstrap != "" {
		if bootstrap, err = peer.Parse(cfg.State.KnownBootstrap); err != nil {
			return fmt.Errorf("parsing bootstrap address: %w", err)
		}
	}

	// The p2p listener is opened first so the advertised address carries
	// the port that was actually bound.
	ln, err := network.Listen(cfg.P2P.Host, cfg.P2P.Port, cfg.P2P.PortMin, cfg.P2P.PortMax)
	if err != nil {
		return fmt.Errorf("opening p2p listener: %w", err)
	}
	self := peer.New(cfg.P2P.Host, network.ListenerPort(ln))

	// The blockchain packages accept a function of this signature to allow the
	// application to log. For now, these raw messages are sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New("viewer:")
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	st, err := state.New(state.Config{
		MinerAddress: minerAddress,
		Self:         self,
		Bootstrap:    bootstrap,
		Genesis:      gen,
		Storage:      strg,
		Client: wire.Client{
			DialTimeout:    cfg.P2P.DialTimeout,
			IOTimeout:      cfg.P2P.IOTimeout,
			MaxMessageSize: cfg.P2P.MaxMessageSize,
		},
		SeenWindow:      cfg.State.SeenWindow,
		MaxPeerFailures: cfg.State.MaxPeerFailures,
		EvHandler:       ev,
	})
	if err != nil {
		ln.Close()
		return err
	}
	defer st.Shutdown()

	log.Infow("startup", "status", "blockchain loaded", "self", self, "miner", minerAddress,
		"blocks", st.QueryChainLength(), "difficulty", st.RetrieveDifficulty())

	// =========================================================================
	// Start P2P Service

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 3)

	muxCfg := handlers.MuxConfig{
		Log:   log,
		State: st,
		NS:    ns,
		Evts:  evts,
	}

	p2p := network.New(network.Config{
		MaxHandlers:    cfg.P2P.MaxHandlers,
		AcceptRate:     cfg.P2P.AcceptRate,
		AcceptBurst:    cfg.P2P.AcceptBurst,
		IOTimeout:      cfg.P2P.IOTimeout,
		MaxMessageSize: cfg.P2P.MaxMessageSize,
		EvHandler:      ev,
	})
	handlers.PrivateRoutes(p2p, muxCfg)

	go func() {
		log.Infow("startup", "status", "p2p router started", "host", self)
		if err := p2p.Serve(ln); err != nil && !errors.Is(err, network.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	// The worker package implements the different workflows such as mining,
	// transaction peer sharing, and peer updates. The worker will register
	// itself with the state.
	worker.Run(st, worker.Config{
		GossipInterval: cfg.State.GossipInterval,
		MineInterval:   cfg.State.MineInterval,
		AutoMine:       cfg.State.AutoMine,
		PeerTTL:        cfg.State.PeerTTL,
		NetTimeout:     cfg.State.NetTimeout,
	}, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	muxCfg.Shutdown = shutdown
	publicMux := handlers.PublicMux(muxCfg)

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelP2P := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelP2P()

		// Stop accepting messages from peers before the worker goes away.
		log.Infow("shutdown", "status", "shutdown p2p server started")
		if err := p2p.Shutdown(ctx); err != nil {
			log.Errorw("shutdown", "status", "could not stop p2p server gracefully", "ERROR", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
