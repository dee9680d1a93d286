// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
)

// ErrFull is returned when the mempool holds its maximum number of entries.
var ErrFull = errors.New("mempool is full")

// DefaultCapacity is used when a capacity of zero or less is requested.
const DefaultCapacity = 1024

// =============================================================================

// Entry represents a payload waiting to be mined into a block.
type Entry struct {
	Key       signature.ID
	Payload   database.Payload
	Signature []byte
}

// NewEntry constructs an entry keyed by the hash of the payload encoding.
func NewEntry(payload database.Payload, sig []byte) (Entry, error) {
	data, err := database.EncodePayload(payload)
	if err != nil {
		return Entry{}, err
	}

	if payload == nil {
		payload = database.EmptyPayload{}
	}

	e := Entry{
		Key:       signature.Hash(data),
		Payload:   payload,
		Signature: bytes.Clone(sig),
	}

	return e, nil
}

// String implements the fmt.Stringer interface for logging.
func (e Entry) String() string {
	return fmt.Sprintf("%s(%s)", e.Key.Short(), e.Payload.Kind())
}

// =============================================================================

// Mempool represents a cache of payloads kept in the order they arrived
// with a second key on the payload hash.
type Mempool struct {
	mu       sync.RWMutex
	order    []signature.ID
	pool     map[signature.ID]Entry
	capacity int
}

// New constructs a new mempool holding at most capacity entries.
func New(capacity int) *Mempool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	mp := Mempool{
		pool:     make(map[signature.ID]Entry),
		capacity: capacity,
	}

	return &mp
}

// Count returns the current number of entries in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.order)
}

// Upsert adds an entry to the end of the queue. An entry with the same key
// is replaced in place and keeps its position.
func (mp *Mempool) Upsert(e Entry) (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[e.Key]; exists {
		mp.pool[e.Key] = e
		return len(mp.order), nil
	}

	if len(mp.order) >= mp.capacity {
		return len(mp.order), fmt.Errorf("%w: capacity %d", ErrFull, mp.capacity)
	}

	mp.pool[e.Key] = e
	mp.order = append(mp.order, e.Key)

	return len(mp.order), nil
}

// Delete removes the entry with the specified key from the mempool.
func (mp *Mempool) Delete(key signature.ID) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[key]; !exists {
		return
	}

	delete(mp.pool, key)
	mp.order = slices.DeleteFunc(mp.order, func(k signature.ID) bool {
		return k == key
	})
}

// Requeue moves the entry with the specified key to the back of the queue.
// It reports false if the key is not in the mempool.
func (mp *Mempool) Requeue(key signature.ID) bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.pool[key]; !exists {
		return false
	}

	mp.order = slices.DeleteFunc(mp.order, func(k signature.ID) bool {
		return k == key
	})
	mp.order = append(mp.order, key)

	return true
}

// Truncate clears all the entries from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.order = nil
	mp.pool = make(map[signature.ID]Entry)
}

// Pick returns the oldest entry without removing it.
func (mp *Mempool) Pick() (Entry, bool) {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	if len(mp.order) == 0 {
		return Entry{}, false
	}

	return mp.pool[mp.order[0]], true
}

// Copy returns a list of the current entries in arrival order.
func (mp *Mempool) Copy() []Entry {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	cpy := make([]Entry, len(mp.order))
	for i, key := range mp.order {
		cpy[i] = mp.pool[key]
	}

	return cpy
}
