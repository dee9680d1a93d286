// This program runs the shard through a scripted scenario in process and
// logs what happens to the branches and the ledger along the way.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/shardchain/app/tooling/simulate/scenario"
	"github.com/ardanlabs/shardchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/shardchain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("SIMULATE")
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
		GenesisPath string `conf:"default:zblock/genesis.json"`
		Extensions  int    `conf:"default:0,help:blocks added to the leading branch after the fork (0 evicts the losing branch)"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "SIMULATE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	gen, err := genesis.Load(cfg.GenesisPath)
	if err != nil {
		return fmt.Errorf("unable to load genesis: %w", err)
	}

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
	}

	res, err := scenario.Run(context.Background(), scenario.Config{
		Genesis:    gen,
		Extensions: cfg.Extensions,
		Log:        log,
		EvHandler:  ev,
	})
	if err != nil {
		return err
	}

	log.Infow("simulate", "status", "completed", "branches", res.Branches, "leader", res.Leader, "length", res.Length)
	for id, wal := range res.Wallets {
		log.Infow("simulate", "status", "ledger", "wallet", id, "balances", wal.String())
	}

	return nil
}
