// Package worker implements the single goroutine that mines pending
// payloads into blocks and pushes them into the shard.
package worker

import (
	"os"
	"sync"
	"syscall"

	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/shardchain/foundation/blockchain/shard"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
)

// EventHandler defines a function that is called when events
// occur in the processing of mining.
type EventHandler func(v string, args ...any)

// Shard represents the behavior the worker needs from the shard it mines
// blocks for.
type Shard interface {
	Difficulty() uint
	Tip() signature.ID
	Push(block database.Block) (shard.Receipt, error)
}

// =============================================================================

// Worker manages the POW workflow for the shard. Only the worker's own
// goroutine mines, so blocks are built on the leader tip one at a time.
type Worker struct {
	shard        Shard
	mempool      *mempool.Mempool
	shutdown     chan<- os.Signal
	wg           sync.WaitGroup
	shut         chan struct{}
	startMining  chan bool
	cancelMining chan bool
	evHandler    EventHandler
}

// Run creates a worker and starts up the mining goroutine. An integrity
// failure reported by the shard is signaled on the shutdown channel.
func Run(s Shard, mp *mempool.Mempool, shutdown chan<- os.Signal, evHandler EventHandler) *Worker {
	if evHandler == nil {
		evHandler = func(string, ...any) {}
	}

	w := Worker{
		shard:        s,
		mempool:      mp,
		shutdown:     shutdown,
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan bool, 1),
		evHandler:    evHandler,
	}

	// Load the set of operations we need to run.
	operations := []func(){
		w.miningOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for range g {
		<-hasStarted
	}

	return &w
}

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: signal cancel mining")
	w.SignalCancelMining()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately. This is used when the leader tip moves under the
// block being mined.
func (w *Worker) SignalCancelMining() {
	select {
	case w.cancelMining <- true:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")
}

// =============================================================================

// signalShutdown asks the application to shut down. The shard can't be
// trusted once a branch history fails to roll back.
func (w *Worker) signalShutdown() {
	if w.shutdown == nil {
		return
	}

	select {
	case w.shutdown <- syscall.SIGTERM:
	default:
	}
	w.evHandler("worker: signalShutdown: shutdown signaled")
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
