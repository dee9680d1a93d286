// Package chain implements a single branch of the blockchain: an append-only
// sequence of blocks paired with the bank that results from applying them.
package chain

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/shardchain/foundation/blockchain/bank"
	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
)

// ErrNoAttachPoint is returned when a block does not extend any block
// held by the branch.
var ErrNoAttachPoint = errors.New("no attach point")

// ErrCorruptHistory is returned when blocks can't be rolled back while
// forking. This means the branch history was never valid and the caller
// must not continue as if nothing happened.
var ErrCorruptHistory = errors.New("corrupt history")

// =============================================================================

// Blockchain represents one candidate history. The bank always equals the
// result of applying every block in order to an empty bank.
type Blockchain struct {
	blocks []*database.Block
	index  map[signature.ID]int
	bank   *bank.Bank
}

// New constructs an empty branch.
func New() *Blockchain {
	return &Blockchain{
		index: make(map[signature.ID]int),
		bank:  bank.New(),
	}
}

// Len returns the number of blocks in the branch.
func (bc *Blockchain) Len() int {
	return len(bc.blocks)
}

// Tip returns the latest block in the branch.
func (bc *Blockchain) Tip() (*database.Block, bool) {
	if len(bc.blocks) == 0 {
		return nil, false
	}

	return bc.blocks[len(bc.blocks)-1], true
}

// Contains reports whether the block is part of the branch.
func (bc *Blockchain) Contains(id signature.ID) bool {
	_, exists := bc.index[id]
	return exists
}

// Blocks returns the blocks in chain order. The blocks are shared with the
// branch and must not be modified.
func (bc *Blockchain) Blocks() []*database.Block {
	blocks := make([]*database.Block, len(bc.blocks))
	copy(blocks, bc.blocks)
	return blocks
}

// Bank returns a copy of the branch's bank.
func (bc *Blockchain) Bank() *bank.Bank {
	return bc.bank.Clone()
}

// Wallet returns the specified wallet as seen by this branch.
func (bc *Blockchain) Wallet(id signature.ID) (bank.Wallet, error) {
	return bc.bank.Query(id)
}

// WalletCount returns the number of wallets registered on this branch.
func (bc *Blockchain) WalletCount() int {
	return bc.bank.Count()
}

// Wallets returns a copy of every wallet as seen by this branch.
func (bc *Blockchain) Wallets() map[signature.ID]bank.Wallet {
	return bc.bank.Copy()
}

// =============================================================================

// Append applies the block to the bank and, if that succeeds, adds the
// block to the end of the branch. Linkage and difficulty are not checked
// here; the caller picks the right branch. On error the branch is untouched.
func (bc *Blockchain) Append(block *database.Block) error {
	if err := bc.bank.Apply(*block); err != nil {
		return err
	}

	bc.index[block.ID] = len(bc.blocks)
	bc.blocks = append(bc.blocks, block)

	return nil
}

// Fork constructs a new branch holding the blocks up to and including the
// specified block. The new bank is a copy of the current one with every
// later block rolled back, newest first.
func (bc *Blockchain) Fork(at signature.ID) (*Blockchain, error) {
	pos, exists := bc.index[at]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNoAttachPoint, at)
	}

	bnk := bc.bank.Clone()
	for i := len(bc.blocks) - 1; i > pos; i-- {
		if err := bnk.Rollback(*bc.blocks[i]); err != nil {
			return nil, fmt.Errorf("%w: rollback blk[%s]: %w", ErrCorruptHistory, bc.blocks[i].ID, err)
		}
	}

	fork := Blockchain{
		blocks: make([]*database.Block, pos+1),
		index:  make(map[signature.ID]int, pos+1),
		bank:   bnk,
	}

	copy(fork.blocks, bc.blocks[:pos+1])
	for i, b := range fork.blocks {
		fork.index[b.ID] = i
	}

	return &fork, nil
}

// ForkIfNeeded determines how the candidate relates to this branch. It
// returns nil when the candidate can be appended in place: the branch is
// empty or the candidate extends the tip. It returns a new branch when the
// candidate extends an earlier block. It fails with ErrNoAttachPoint when
// the candidate's previous block is not part of the branch.
func (bc *Blockchain) ForkIfNeeded(candidate *database.Block) (*Blockchain, error) {
	tip, exists := bc.Tip()
	if !exists {
		return nil, nil
	}

	if candidate.PrevID == tip.ID {
		return nil, nil
	}

	// Ids are unique within a branch so the index finds the same block a
	// backward scan from the tip would.
	if !bc.Contains(candidate.PrevID) {
		return nil, fmt.Errorf("%w: prev %s", ErrNoAttachPoint, candidate.PrevID)
	}

	return bc.Fork(candidate.PrevID)
}
