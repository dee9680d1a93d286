// Package miner performs the proof of work search for new blocks.
package miner

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
)

// MaxDuration is the wall clock budget for a single mining operation.
const MaxDuration = 5 * time.Second

// ErrDeadlineExceeded is returned when no solution was found within
// MaxDuration.
var ErrDeadlineExceeded = errors.New("mining deadline exceeded")

// EventHandler defines a function that is called when events
// occur in the processing of mining.
type EventHandler func(v string, args ...any)

// Target represents the behavior required to know the number of leading
// zero bytes a block id needs to be admitted.
type Target interface {
	Difficulty() uint
}

// =============================================================================

// Mine performs the work of finding a nonce that solves the POW puzzle for
// the block. The search starts at nonce zero and increments by one on the
// calling goroutine. The operation fails with ErrDeadlineExceeded once
// MaxDuration has elapsed; cancelling ctx also stops it.
func Mine(ctx context.Context, target Target, block database.Block, ev EventHandler) (database.Block, error) {
	if ev == nil {
		ev = func(string, ...any) {}
	}

	difficulty := target.Difficulty()

	ev("miner: Mine: MINING: started: blk[%s]: difficulty[%d]", block, difficulty)
	defer ev("miner: Mine: MINING: completed")

	// The payload encoding doesn't change between attempts.
	data, err := database.EncodePayload(block.Payload)
	if err != nil {
		return database.Block{}, err
	}

	deadline := time.Now().Add(MaxDuration)

	// Loop until we find a solution or run out of time.
	var attempts uint64
	for nonce := uint64(0); ; nonce++ {
		attempts++

		block.Nonce = nonce
		block.ID = database.HashBlock(block.PrevID, nonce, data)
		if block.IsSolved(difficulty) {
			ev("miner: Mine: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", block.PrevID.Short(), block.ID.Short(), attempts)
			return block, nil
		}

		// Checking the clock on every attempt is more costly than hashing.
		if attempts%1024 != 0 {
			continue
		}

		if ctx.Err() != nil {
			ev("miner: Mine: MINING: CANCELLED: attempts[%d]", attempts)
			return database.Block{}, ctx.Err()
		}

		if time.Now().After(deadline) {
			ev("miner: Mine: MINING: DEADLINE: attempts[%d]", attempts)
			return database.Block{}, ErrDeadlineExceeded
		}
	}
}

// =============================================================================

// Difficulty is a fixed Target for mining outside of a shard.
type Difficulty uint

// Difficulty implements the Target interface.
func (d Difficulty) Difficulty() uint {
	return uint(d)
}
