package worker_test

import (
	"crypto/rsa"
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/ardanlabs/shardchain/foundation/blockchain/bank"
	"github.com/ardanlabs/shardchain/foundation/blockchain/chain"
	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/shardchain/foundation/blockchain/shard"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/ardanlabs/shardchain/foundation/blockchain/worker"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	pk, err := signature.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}
	return pk
}

func queue(t *testing.T, mp *mempool.Mempool, payload database.Payload, sig []byte) {
	t.Helper()

	e, err := mempool.NewEntry(payload, sig)
	if err != nil {
		t.Fatalf("Should be able to construct an entry: %s", err)
	}

	if _, err := mp.Upsert(e); err != nil {
		t.Fatalf("Should be able to queue entry %s: %s", e, err)
	}
}

func waitEmpty(t *testing.T, mp *mempool.Mempool, wait time.Duration) bool {
	t.Helper()

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if mp.Count() == 0 {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}

	return false
}

func Test_Mining(t *testing.T) {
	k1 := newKey(t)
	k2 := newKey(t)
	k3 := newKey(t)
	w1 := signature.WalletID(&k1.PublicKey)
	w2 := signature.WalletID(&k2.PublicKey)
	w3 := signature.WalletID(&k3.PublicKey)

	t.Log("Given the need to mine pending payloads into the shard.")
	{
		t.Logf("\tTest 0:\tWhen registrations and transfers are queued.")
		{
			s := shard.New(shard.Config{Difficulty: 1, EvictionThreshold: 3})
			mp := mempool.New(10)

			queue(t, mp, database.NewWalletRegistration(&k1.PublicKey), nil)
			queue(t, mp, database.NewWalletRegistration(&k2.PublicKey), nil)

			stranger := database.Transfer{From: w3, To: w1, Currency: 1, Amount: decimal.NewFromInt(5)}
			sig, err := stranger.Sign(k3)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign the transfer: %s", failed, err)
			}
			queue(t, mp, stranger, sig)

			tr := database.Transfer{From: w1, To: w2, Currency: 1, Amount: decimal.NewFromInt(30)}
			if sig, err = tr.Sign(k1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to sign the transfer: %s", failed, err)
			}
			queue(t, mp, tr, sig)

			w := worker.Run(s, mp, nil, func(v string, args ...any) { t.Logf(v, args...) })
			defer w.Shutdown()

			w.SignalStartMining()

			if !waitEmpty(t, mp, 10*time.Second) {
				t.Fatalf("\t%s\tTest 0:\tShould drain the mempool, %d left.", failed, mp.Count())
			}
			t.Logf("\t%s\tTest 0:\tShould drain the mempool.", success)

			leader, exists := s.Leader()
			if !exists || leader.Length != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould mine three blocks: %d", failed, leader.Length)
			}
			t.Logf("\t%s\tTest 0:\tShould mine three blocks.", success)

			for _, blk := range leader.Blocks {
				if !blk.IsSolved(s.Difficulty()) {
					t.Fatalf("\t%s\tTest 0:\tShould only hold solved blocks: %s", failed, blk)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould only hold solved blocks.", success)

			if _, exists := leader.Wallets[w3]; exists {
				t.Fatalf("\t%s\tTest 0:\tShould drop the transfer from an unknown wallet.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould drop the transfer from an unknown wallet.", success)

			got := leader.Wallets[w2].Balance(bank.BootstrapCurrency)
			if !got.Equal(decimal.NewFromInt(130)) {
				t.Fatalf("\t%s\tTest 0:\tShould credit W2 with 30: %s", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould credit W2 with 30.", success)
		}
	}
}

// corruptShard accepts mining requests but fails every push as if a branch
// history could not be rolled back.
type corruptShard struct{}

func (corruptShard) Difficulty() uint { return 0 }

func (corruptShard) Tip() signature.ID { return signature.ZeroID }

func (corruptShard) Push(block database.Block) (shard.Receipt, error) {
	return shard.Receipt{}, fmt.Errorf("branch[0]: %w", chain.ErrCorruptHistory)
}

func Test_CorruptHistory(t *testing.T) {
	k1 := newKey(t)

	t.Log("Given the need to stop the application when the shard is corrupt.")
	{
		t.Logf("\tTest 0:\tWhen a mined block fails with a corrupt history.")
		{
			mp := mempool.New(10)
			queue(t, mp, database.NewWalletRegistration(&k1.PublicKey), nil)

			shutdown := make(chan os.Signal, 1)
			w := worker.Run(corruptShard{}, mp, shutdown, func(v string, args ...any) { t.Logf(v, args...) })
			defer w.Shutdown()

			w.SignalStartMining()

			select {
			case sig := <-shutdown:
				if sig != syscall.SIGTERM {
					t.Fatalf("\t%s\tTest 0:\tShould signal SIGTERM: %v", failed, sig)
				}
				t.Logf("\t%s\tTest 0:\tShould signal a shutdown.", success)

			case <-time.After(10 * time.Second):
				t.Fatalf("\t%s\tTest 0:\tShould signal a shutdown.", failed)
			}

			if mp.Count() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould keep the entry queued: %d", failed, mp.Count())
			}
			t.Logf("\t%s\tTest 0:\tShould keep the entry queued.", success)
		}
	}
}

// stuckShard asks for an unreachable difficulty on the first mining
// operation and the shard's own difficulty after that.
type stuckShard struct {
	*shard.Shard
	calls atomic.Int32
}

func (s *stuckShard) Difficulty() uint {
	if s.calls.Add(1) == 1 {
		return signature.IDLength
	}
	return s.Shard.Difficulty()
}

func Test_MiningDeadline(t *testing.T) {
	k1 := newKey(t)
	k2 := newKey(t)
	w2 := signature.WalletID(&k2.PublicKey)

	t.Log("Given the need to keep mining when a payload runs out of time.")
	{
		t.Logf("\tTest 0:\tWhen the oldest payload hits the mining deadline.")
		{
			s := stuckShard{Shard: shard.New(shard.Config{Difficulty: 1, EvictionThreshold: 3})}
			mp := mempool.New(10)

			queue(t, mp, database.NewWalletRegistration(&k1.PublicKey), nil)
			queue(t, mp, database.NewWalletRegistration(&k2.PublicKey), nil)

			w := worker.Run(&s, mp, nil, func(v string, args ...any) { t.Logf(v, args...) })
			defer w.Shutdown()

			w.SignalStartMining()

			if !waitEmpty(t, mp, 20*time.Second) {
				t.Fatalf("\t%s\tTest 0:\tShould drain the mempool, %d left.", failed, mp.Count())
			}
			t.Logf("\t%s\tTest 0:\tShould drain the mempool.", success)

			leader, exists := s.Leader()
			if !exists || leader.Length != 2 {
				t.Fatalf("\t%s\tTest 0:\tShould mine both payloads: %d", failed, leader.Length)
			}
			t.Logf("\t%s\tTest 0:\tShould mine both payloads.", success)

			wr, ok := leader.Blocks[0].Payload.(database.WalletRegistration)
			if !ok || wr.WalletID() != w2 {
				t.Fatalf("\t%s\tTest 0:\tShould mine the payload queued behind first: %s", failed, leader.Blocks[0])
			}
			t.Logf("\t%s\tTest 0:\tShould mine the payload queued behind first.", success)
		}
	}
}
