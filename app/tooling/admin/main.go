// This program performs administrative tasks against a node's chain storage
// while the node is stopped.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/powledger/app/tooling/admin/commands"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/database/storage"
	"github.com/ardanlabs/powledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/powledger/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
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
	cfg := struct {
		conf.Version
		Args  conf.Args
		State struct {
			DBPath      string `conf:"default:zblock/blocks"`
			DBKind      string `conf:"default:disk"`
			GenesisPath string `conf:"default:zblock/genesis.json"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work ledger admin tool",
		},
	}

	const prefix = "ADMIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	return processCommands(cfg.Args, log, cfg.State.DBKind, cfg.State.DBPath, cfg.State.GenesisPath)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args conf.Args, log *zap.SugaredLogger, kind string, path string, genesisPath string) error {
	switch args.Num(0) {
	case "genesis":
		if err := commands.Genesis(genesisPath); err != nil {
			return fmt.Errorf("writing genesis: %w", err)
		}
		return nil

	case "chain", "verify", "trans":

	default:
		fmt.Println("genesis: write the default genesis file")
		fmt.Println("chain:   print every block in storage")
		fmt.Println("verify:  validate the chain in storage")
		fmt.Println("trans:   print transactions, optionally for one address")
		fmt.Println("provide a command to get more help.")
		return commands.ErrHelp
	}

	gen, err := genesis.Load(genesisPath)
	if err != nil {
		return err
	}

	strg, err := storage.Open(kind, path)
	if err != nil {
		return err
	}

	ev := func(v string, args ...any) {
		log.Debugw(fmt.Sprintf(v, args...))
	}

	db, err := database.New(gen, strg, ev)
	if err != nil {
		strg.Close()
		return fmt.Errorf("loading chain: %w", err)
	}
	defer db.Close()

	switch args.Num(0) {
	case "chain":
		return commands.Chain(db)
	case "verify":
		return commands.Verify(db)
	case "trans":
		return commands.Transactions(args.Num(1), db)
	}

	return nil
}
