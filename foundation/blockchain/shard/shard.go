// Package shard is the core API for the blockchain. A shard owns every
// candidate branch, routes new blocks to the branches they extend, forks
// branches when a block extends an earlier block, tracks the leading branch
// and evicts branches that fall too far behind.
package shard

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ardanlabs/shardchain/foundation/blockchain/bank"
	"github.com/ardanlabs/shardchain/foundation/blockchain/chain"
	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
)

// Set of errors returned by Push.
var (
	ErrDuplicate        = errors.New("duplicate block")
	ErrDifficultyNotMet = errors.New("difficulty not met")
	ErrInvalidID        = errors.New("invalid block id")
	ErrRejected         = errors.New("block rejected")
)

// ErrUnknownBranch is returned when querying a branch that doesn't exist.
var ErrUnknownBranch = errors.New("unknown branch")

// Default values used when the configuration leaves them unset.
const (
	DefaultEvictionThreshold = 3
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of blocks.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to construct a shard.
type Config struct {
	Difficulty        uint // Number of leading zero bytes a block id needs.
	EvictionThreshold int  // Blocks a branch may trail the leader by.
	EvHandler         EventHandler
}

// Receipt describes what a successful Push did to the branch set.
type Receipt struct {
	Block    signature.ID
	Accepted []uint64 // Branches extended in place.
	Forked   []uint64 // Branches created by forking.
	Evicted  []uint64 // Branches removed for trailing the leader.
	Leader   uint64
}

// branch pairs a chain with the identifier the shard knows it by. Ids are
// handed out in creation order and never reused.
type branch struct {
	id uint64
	bc *chain.Blockchain
}

// Shard manages the set of live branches. All methods are safe for
// concurrent use; Push calls are serialized.
type Shard struct {
	mu sync.RWMutex

	difficulty        uint
	evictionThreshold int
	evHandler         EventHandler

	branches  []branch
	nextID    uint64
	leader    uint64
	hasLeader bool
}

// New constructs a shard holding one empty branch.
func New(cfg Config) *Shard {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	threshold := cfg.EvictionThreshold
	if threshold < 0 {
		threshold = DefaultEvictionThreshold
	}

	s := Shard{
		difficulty:        cfg.Difficulty,
		evictionThreshold: threshold,
		evHandler:         ev,
		branches:          []branch{{id: 0, bc: chain.New()}},
		nextID:            1,
	}

	return &s
}

// Difficulty returns the number of leading zero bytes a block id needs.
// This implements the miner.Target interface.
func (s *Shard) Difficulty() uint {
	return s.difficulty
}

// EvictionThreshold returns how many blocks a branch may trail the leader
// before it is evicted.
func (s *Shard) EvictionThreshold() int {
	return s.evictionThreshold
}

// =============================================================================

// Push validates the block and offers it to every live branch. A branch
// whose tip the block extends appends it in place; a branch holding the
// block's parent below its tip is forked and the fork receives the block.
// The call succeeds if at least one branch accepted the block; otherwise
// ErrRejected is returned joined with every per-branch failure and the
// branch set is left as it was.
func (s *Shard) Push(block database.Block) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evHandler("shard: Push: started: blk[%s]", block)
	defer s.evHandler("shard: Push: completed: blk[%s]", block.ID.Short())

	for _, br := range s.branches {
		if br.bc.Contains(block.ID) {
			return Receipt{}, fmt.Errorf("%w: %s", ErrDuplicate, block.ID)
		}
	}

	if !block.IsSolved(s.difficulty) {
		return Receipt{}, fmt.Errorf("%w: %s, difficulty %d", ErrDifficultyNotMet, block.ID, s.difficulty)
	}

	if err := block.ValidateID(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}

	// One value is shared by every branch that takes the block.
	cpy := block.Clone()
	blk := &cpy

	receipt := Receipt{Block: block.ID}
	var forks []branch
	var errs []error

	for _, br := range s.branches {
		if br.bc.Contains(blk.ID) {
			continue
		}

		fork, err := br.bc.ForkIfNeeded(blk)
		if err != nil {
			if errors.Is(err, chain.ErrCorruptHistory) {
				s.evHandler("shard: Push: ERROR: branch[%d]: %s", br.id, err)
				return Receipt{}, fmt.Errorf("branch[%d]: %w", br.id, err)
			}

			s.evHandler("shard: Push: branch[%d]: skipped: %s", br.id, err)
			errs = append(errs, fmt.Errorf("branch[%d]: %w", br.id, err))
			continue
		}

		if fork == nil {
			if err := br.bc.Append(blk); err != nil {
				s.evHandler("shard: Push: branch[%d]: append rejected: %s", br.id, err)
				errs = append(errs, fmt.Errorf("branch[%d]: %w", br.id, err))
				continue
			}

			s.evHandler("shard: Push: branch[%d]: appended: len[%d]", br.id, br.bc.Len())
			receipt.Accepted = append(receipt.Accepted, br.id)
			continue
		}

		if err := fork.Append(blk); err != nil {
			s.evHandler("shard: Push: branch[%d]: fork rejected: %s", br.id, err)
			errs = append(errs, fmt.Errorf("branch[%d]: fork: %w", br.id, err))
			continue
		}

		forks = append(forks, branch{id: s.nextID, bc: fork})
		s.evHandler("shard: Push: branch[%d]: forked into branch[%d]: len[%d]", br.id, s.nextID, fork.Len())
		receipt.Forked = append(receipt.Forked, s.nextID)
		s.nextID++
	}

	if len(receipt.Accepted) == 0 && len(forks) == 0 {
		s.evHandler("shard: Push: REJECTED: blk[%s]", blk.ID.Short())
		return Receipt{}, errors.Join(append([]error{ErrRejected}, errs...)...)
	}

	s.branches = append(s.branches, forks...)
	s.updateLeader()
	receipt.Evicted = s.evict()
	receipt.Leader = s.leader

	return receipt, nil
}

// updateLeader picks the branch with the most blocks. Among branches of
// equal length the one created first wins.
func (s *Shard) updateLeader() {
	best := -1
	for i, br := range s.branches {
		if best == -1 || br.bc.Len() > s.branches[best].bc.Len() {
			best = i
		}
	}

	if best == -1 {
		s.hasLeader = false
		return
	}

	if !s.hasLeader || s.leader != s.branches[best].id {
		s.evHandler("shard: updateLeader: branch[%d]: len[%d]", s.branches[best].id, s.branches[best].bc.Len())
	}

	s.leader = s.branches[best].id
	s.hasLeader = true
}

// evict removes every branch trailing the leader by more than the eviction
// threshold and returns their ids.
func (s *Shard) evict() []uint64 {
	leader, exists := s.lookup(s.leader)
	if !s.hasLeader || !exists {
		return nil
	}
	leaderLen := leader.bc.Len()

	var evicted []uint64
	s.branches = slices.DeleteFunc(s.branches, func(br branch) bool {
		if leaderLen-br.bc.Len() <= s.evictionThreshold {
			return false
		}

		s.evHandler("shard: evict: branch[%d]: len[%d]: leader len[%d]", br.id, br.bc.Len(), leaderLen)
		evicted = append(evicted, br.id)
		return true
	})

	return evicted
}

// lookup locates the live branch with the specified id.
func (s *Shard) lookup(id uint64) (branch, bool) {
	for _, br := range s.branches {
		if br.id == id {
			return br, true
		}
	}

	return branch{}, false
}

// =============================================================================

// Summary describes a live branch without copying its contents.
type Summary struct {
	ID          uint64       `json:"id"`
	Length      int          `json:"length"`
	Tip         signature.ID `json:"tip"`
	WalletCount int          `json:"wallet_count"`
	Leader      bool         `json:"leader"`
}

// Snapshot is a point in time copy of a branch.
type Snapshot struct {
	Summary
	Blocks  []database.Block
	Wallets map[signature.ID]bank.Wallet
}

// Count returns the number of live branches.
func (s *Shard) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.branches)
}

// Branches returns a summary of every live branch in creation order.
func (s *Shard) Branches() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sums := make([]Summary, len(s.branches))
	for i, br := range s.branches {
		sums[i] = s.summary(br)
	}

	return sums
}

// Branch returns a snapshot of the branch with the specified id.
func (s *Shard) Branch(id uint64) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	br, exists := s.lookup(id)
	if !exists {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownBranch, id)
	}

	return s.snapshot(br), nil
}

// Leader returns a snapshot of the leading branch. The bool is false until
// the first block has been accepted.
func (s *Shard) Leader() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasLeader {
		return Snapshot{}, false
	}

	br, exists := s.lookup(s.leader)
	if !exists {
		return Snapshot{}, false
	}

	return s.snapshot(br), true
}

// Tip returns the id of the leading branch's last block, or the zero id
// when no block has been accepted yet. New blocks are mined on top of it.
func (s *Shard) Tip() signature.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	br, exists := s.lookup(s.leader)
	if !s.hasLeader || !exists {
		return signature.ZeroID
	}

	tip, exists := br.bc.Tip()
	if !exists {
		return signature.ZeroID
	}

	return tip.ID
}

// Wallet returns the wallet as recorded by the leading branch.
func (s *Shard) Wallet(id signature.ID) (bank.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	br, exists := s.lookup(s.leader)
	if !s.hasLeader || !exists {
		return bank.Wallet{}, fmt.Errorf("%w: %s", bank.ErrWalletNotFound, id)
	}

	return br.bc.Wallet(id)
}

// summary must be called while holding the lock.
func (s *Shard) summary(br branch) Summary {
	sum := Summary{
		ID:          br.id,
		Length:      br.bc.Len(),
		WalletCount: br.bc.WalletCount(),
		Leader:      s.hasLeader && br.id == s.leader,
	}

	if tip, exists := br.bc.Tip(); exists {
		sum.Tip = tip.ID
	}

	return sum
}

// snapshot must be called while holding the lock.
func (s *Shard) snapshot(br branch) Snapshot {
	ptrs := br.bc.Blocks()
	blocks := make([]database.Block, len(ptrs))
	for i, blk := range ptrs {
		blocks[i] = blk.Clone()
	}

	return Snapshot{
		Summary: s.summary(br),
		Blocks:  blocks,
		Wallets: br.bc.Wallets(),
	}
}
