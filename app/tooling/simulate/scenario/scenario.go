// Package scenario drives a shard through registrations, a transfer, a
// competing fork and enough extensions for the losing branch to be evicted.
package scenario

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/ardanlabs/shardchain/foundation/blockchain/bank"
	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/shardchain/foundation/blockchain/miner"
	"github.com/ardanlabs/shardchain/foundation/blockchain/shard"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config represents the settings for a run.
type Config struct {
	Genesis    genesis.Genesis
	Extensions int // Zero means just enough to evict the losing branch.
	Log        *zap.SugaredLogger
	EvHandler  func(v string, args ...any)
}

// Result describes the shard once the scenario has completed.
type Result struct {
	Branches int
	Leader   uint64
	Length   int
	Evicted  []uint64
	Rejected error
	Wallets  map[signature.ID]bank.Wallet
}

type runner struct {
	ctx   context.Context
	log   *zap.SugaredLogger
	shard *shard.Shard
	ev    miner.EventHandler
}

// Run executes the scenario against a new shard.
func Run(ctx context.Context, cfg Config) (Result, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	r := runner{
		ctx: ctx,
		log: log,
		shard: shard.New(shard.Config{
			Difficulty:        cfg.Genesis.Difficulty,
			EvictionThreshold: cfg.Genesis.EvictionThreshold,
			EvHandler:         cfg.EvHandler,
		}),
		ev: cfg.EvHandler,
	}

	k1, err := signature.GenerateKey()
	if err != nil {
		return Result{}, err
	}
	k2, err := signature.GenerateKey()
	if err != nil {
		return Result{}, err
	}
	k3, err := signature.GenerateKey()
	if err != nil {
		return Result{}, err
	}
	w1 := signature.WalletID(&k1.PublicKey)
	w2 := signature.WalletID(&k2.PublicKey)
	w3 := signature.WalletID(&k3.PublicKey)

	// =========================================================================
	// Genesis, registrations and a transfer on a single branch.

	tip, err := r.mine(signature.ZeroID, database.EmptyPayload{}, nil)
	if err != nil {
		return Result{}, fmt.Errorf("genesis: %w", err)
	}

	if tip, err = r.mine(tip, database.NewWalletRegistration(&k1.PublicKey), nil); err != nil {
		return Result{}, fmt.Errorf("register W1: %w", err)
	}

	if tip, err = r.mine(tip, database.NewWalletRegistration(&k2.PublicKey), nil); err != nil {
		return Result{}, fmt.Errorf("register W2: %w", err)
	}

	if tip, err = r.transfer(tip, k1, w2, "30"); err != nil {
		return Result{}, fmt.Errorf("transfer W1->W2: %w", err)
	}

	// =========================================================================
	// Two blocks extending the same tip create competing branches.

	tipA, err := r.transfer(tip, k1, w2, "10")
	if err != nil {
		return Result{}, fmt.Errorf("fork A: %w", err)
	}

	if _, err := r.transfer(tip, k2, w1, "5"); err != nil {
		return Result{}, fmt.Errorf("fork B: %w", err)
	}

	// =========================================================================
	// A transfer from a wallet that was never registered is rejected.

	var res Result
	if _, err := r.transfer(tipA, k3, w1, "1"); err != nil {
		if !errors.Is(err, shard.ErrRejected) {
			return Result{}, fmt.Errorf("unregistered sender: %w", err)
		}
		r.log.Infow("simulate", "status", "rejected", "wallet", w3.Short(), "ERROR", err)
		res.Rejected = err
	}

	// =========================================================================
	// Extend branch A until branch B falls out.

	extensions := cfg.Extensions
	if extensions <= 0 {
		extensions = r.shard.EvictionThreshold() + 1
	}

	for range extensions {
		blk, err := r.block(tipA, database.EmptyPayload{}, nil)
		if err != nil {
			return Result{}, err
		}

		rcpt, err := r.push(blk)
		if err != nil {
			return Result{}, fmt.Errorf("extend: %w", err)
		}
		tipA = blk.ID
		res.Evicted = append(res.Evicted, rcpt.Evicted...)
	}

	leader, exists := r.shard.Leader()
	if !exists {
		return Result{}, errors.New("no leading branch")
	}

	res.Branches = r.shard.Count()
	res.Leader = leader.ID
	res.Length = leader.Length
	res.Wallets = leader.Wallets

	return res, nil
}

// block builds and mines a block on the specified parent.
func (r *runner) block(prev signature.ID, payload database.Payload, sig []byte) (database.Block, error) {
	blk, err := database.NewBlock(prev, payload, sig)
	if err != nil {
		return database.Block{}, err
	}

	return miner.Mine(r.ctx, r.shard, blk, r.ev)
}

// push hands the block to the shard and logs the outcome.
func (r *runner) push(blk database.Block) (shard.Receipt, error) {
	rcpt, err := r.shard.Push(blk)
	if err != nil {
		return shard.Receipt{}, err
	}

	r.log.Infow("simulate", "status", "pushed", "blk", blk.String(), "accepted", rcpt.Accepted,
		"forked", rcpt.Forked, "evicted", rcpt.Evicted, "leader", rcpt.Leader)

	return rcpt, nil
}

// mine builds, mines and pushes a block, returning its id.
func (r *runner) mine(prev signature.ID, payload database.Payload, sig []byte) (signature.ID, error) {
	blk, err := r.block(prev, payload, sig)
	if err != nil {
		return signature.ZeroID, err
	}

	if _, err := r.push(blk); err != nil {
		return signature.ZeroID, err
	}

	return blk.ID, nil
}

// transfer signs a transfer from the key's wallet and mines it.
func (r *runner) transfer(prev signature.ID, from *rsa.PrivateKey, to signature.ID, amount string) (signature.ID, error) {
	tr := database.Transfer{
		From:     signature.WalletID(&from.PublicKey),
		To:       to,
		Currency: bank.BootstrapCurrency,
		Amount:   decimal.RequireFromString(amount),
	}

	sig, err := tr.Sign(from)
	if err != nil {
		return signature.ZeroID, err
	}

	return r.mine(prev, tr, sig)
}
