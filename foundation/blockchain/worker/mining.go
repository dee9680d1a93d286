package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ardanlabs/shardchain/foundation/blockchain/chain"
	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/miner"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation takes the oldest payload from the mempool, mines it on
// top of the leader's tip and pushes the block into the shard.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	entry, exists := w.mempool.Pick()
	if !exists {
		w.evHandler("worker: runMiningOperation: MINING: no payloads to mine")
		return
	}

	// The entry is only removed once the shard has ruled on it. If that
	// happened and more work is waiting, signal another operation.
	var done bool
	defer func() {
		if !done {
			return
		}

		w.mempool.Delete(entry.Key)
		if length := w.mempool.Count(); length > 0 {
			w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: Payloads[%d]", length)
			w.SignalStartMining()
		}
	}()

	// Drain the cancel mining channel before starting.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	// Create a context so mining can be cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Can't return from this function until these G's are complete.
	var wg sync.WaitGroup
	wg.Add(2)

	// This G exists to cancel the mining operation.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		select {
		case <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
		case <-ctx.Done():
		}
	}()

	// This G is performing the mining.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		block, err := database.NewBlock(w.shard.Tip(), entry.Payload, entry.Signature)
		if err != nil {
			w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
			done = true
			return
		}

		t := time.Now()
		block, err = miner.Mine(ctx, w.shard, block, miner.EventHandler(w.evHandler))
		duration := time.Since(t)

		w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

		if err != nil {
			switch {
			case errors.Is(err, miner.ErrDeadlineExceeded):
				w.evHandler("worker: runMiningOperation: MINING: WARNING: deadline exceeded, entry[%s] moved to the back", entry)

				// Give the entries behind this one a turn. Once they move
				// the tip this entry is mined on a different parent.
				w.mempool.Requeue(entry.Key)
				if w.mempool.Count() > 1 {
					w.SignalStartMining()
				}
			case ctx.Err() != nil:
				w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
			default:
				w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
			}
			return
		}

		// WOW, we mined a block. Hand it to the shard and let it decide.
		receipt, err := w.shard.Push(block)
		if err != nil {
			if errors.Is(err, chain.ErrCorruptHistory) {
				w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
				w.signalShutdown()
				return
			}

			w.evHandler("worker: runMiningOperation: MINING: REJECTED: entry[%s]: %s", entry, err)
			done = true
			return
		}

		w.evHandler("worker: runMiningOperation: MINING: ACCEPTED: blk[%s]: branches%v: forked%v: leader[%d]", block.ID.Short(), receipt.Accepted, receipt.Forked, receipt.Leader)
		done = true
	}()

	// Wait for both G's to terminate.
	wg.Wait()
}
