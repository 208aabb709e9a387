package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/powledger/foundation/blockchain/network"
	"github.com/ardanlabs/powledger/foundation/blockchain/rendezvous"
	"github.com/ardanlabs/powledger/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("BOOTSTRAP")
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

	cfg := struct {
		conf.Version
		P2P struct {
			Host            string        `conf:"default:0.0.0.0"`
			Port            int           `conf:"default:4000"`
			IOTimeout       time.Duration `conf:"default:10s"`
			MaxHandlers     int64         `conf:"default:64"`
			MaxMessageSize  int           `conf:"default:8388608"`
			AcceptRate      float64       `conf:"default:100"`
			AcceptBurst     int           `conf:"default:64"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work ledger bootstrap rendezvous",
		},
	}

	const prefix = "BOOTSTRAP"
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

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
	}

	// =========================================================================
	// Start Rendezvous Service

	port := cfg.P2P.Port
	if port == 0 {
		port = rendezvous.DefaultPort
	}

	ln, err := network.Listen(cfg.P2P.Host, port, 0, 0)
	if err != nil {
		return fmt.Errorf("opening listener: %w", err)
	}

	srv := network.New(network.Config{
		MaxHandlers:    cfg.P2P.MaxHandlers,
		AcceptRate:     cfg.P2P.AcceptRate,
		AcceptBurst:    cfg.P2P.AcceptBurst,
		IOTimeout:      cfg.P2P.IOTimeout,
		MaxMessageSize: cfg.P2P.MaxMessageSize,
		EvHandler:      ev,
	})
	rendezvous.Routes(srv, rendezvous.NewRegistry(), ev)

	serverErrors := make(chan error, 1)
	go func() {
		log.Infow("startup", "status", "rendezvous started", "host", ln.Addr().String())
		serverErrors <- srv.Serve(ln)
	}()

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.P2P.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not stop rendezvous gracefully: %w", err)
		}
	}

	return nil
}
