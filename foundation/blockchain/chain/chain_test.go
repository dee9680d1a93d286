package chain_test

import (
	"crypto/rsa"
	"errors"
	"testing"

	"github.com/ardanlabs/shardchain/foundation/blockchain/bank"
	"github.com/ardanlabs/shardchain/foundation/blockchain/chain"
	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// history builds a linked sequence of blocks: genesis, two registrations
// and three transfers between the wallets.
func history(t *testing.T) []*database.Block {
	t.Helper()

	keys := make([]*rsa.PrivateKey, 2)
	for i := range keys {
		pk, err := signature.GenerateKey()
		if err != nil {
			t.Fatalf("Should be able to generate a private key: %s", err)
		}
		keys[i] = pk
	}
	w1 := signature.WalletID(&keys[0].PublicKey)
	w2 := signature.WalletID(&keys[1].PublicKey)

	type step struct {
		payload database.Payload
		signer  *rsa.PrivateKey
	}

	steps := []step{
		{payload: database.EmptyPayload{}},
		{payload: database.NewWalletRegistration(&keys[0].PublicKey)},
		{payload: database.NewWalletRegistration(&keys[1].PublicKey)},
		{payload: database.Transfer{From: w1, To: w2, Currency: 1, Amount: decimal.NewFromInt(30)}, signer: keys[0]},
		{payload: database.Transfer{From: w2, To: w1, Currency: 1, Amount: decimal.RequireFromString("129.5")}, signer: keys[1]},
		{payload: database.Transfer{From: w1, To: w2, Currency: 1, Amount: decimal.RequireFromString("0.25")}, signer: keys[0]},
	}

	var blocks []*database.Block
	prev := signature.ZeroID
	for _, s := range steps {
		var sig []byte
		if s.signer != nil {
			var err error
			if sig, err = s.payload.(database.Transfer).Sign(s.signer); err != nil {
				t.Fatalf("Should be able to sign the transfer: %s", err)
			}
		}

		b, err := database.NewBlock(prev, s.payload, sig)
		if err != nil {
			t.Fatalf("Should be able to construct a block: %s", err)
		}

		blocks = append(blocks, &b)
		prev = b.ID
	}

	return blocks
}

func build(t *testing.T, blocks []*database.Block) *chain.Blockchain {
	t.Helper()

	bc := chain.New()
	for _, b := range blocks {
		if err := bc.Append(b); err != nil {
			t.Fatalf("Should be able to append blk[%s]: %s", b, err)
		}
	}
	return bc
}

// =============================================================================

func Test_ForkConsistency(t *testing.T) {
	blocks := history(t)
	bc := build(t, blocks)

	t.Log("Given the need to fork a branch at any block.")
	{
		for i, at := range blocks {
			t.Logf("\tTest %d:\tWhen forking at block %d.", i, i)
			{
				fork, err := bc.Fork(at.ID)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to fork: %v", failed, i, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to fork.", success, i)

				if fork.Len() != i+1 {
					t.Fatalf("\t%s\tTest %d:\tShould hold %d blocks, got %d.", failed, i, i+1, fork.Len())
				}
				t.Logf("\t%s\tTest %d:\tShould hold %d blocks.", success, i, i+1)

				if tip, _ := fork.Tip(); tip != at {
					t.Fatalf("\t%s\tTest %d:\tShould share the block with the original.", failed, i)
				}
				t.Logf("\t%s\tTest %d:\tShould share the block with the original.", success, i)

				replay := bank.New()
				for _, b := range blocks[:i+1] {
					replay.Apply(*b)
				}

				if !fork.Bank().Equal(replay) {
					t.Fatalf("\t%s\tTest %d:\tShould match a replay from genesis.", failed, i)
				}
				t.Logf("\t%s\tTest %d:\tShould match a replay from genesis.", success, i)
			}
		}

		if bc.Len() != len(blocks) {
			t.Fatalf("\t%s\tShould leave the original branch untouched.", failed)
		}
		t.Logf("\t%s\tShould leave the original branch untouched.", success)

		if _, err := bc.Fork(signature.Hash([]byte("unknown"))); !errors.Is(err, chain.ErrNoAttachPoint) {
			t.Fatalf("\t%s\tShould fail to fork at an unknown block: %v", failed, err)
		}
		t.Logf("\t%s\tShould fail to fork at an unknown block.", success)
	}
}

func Test_ForkIfNeeded(t *testing.T) {
	blocks := history(t)
	bc := build(t, blocks[:4])

	extend := func(prev signature.ID) *database.Block {
		b, err := database.NewBlock(prev, database.EmptyPayload{}, nil)
		if err != nil {
			t.Fatalf("Should be able to construct a block: %s", err)
		}
		return &b
	}

	type table struct {
		name  string
		bc    *chain.Blockchain
		block *database.Block
		fork  int
		err   error
	}

	tt := []table{
		{name: "empty", bc: chain.New(), block: extend(signature.ZeroID)},
		{name: "tip", bc: bc, block: extend(blocks[3].ID)},
		{name: "middle", bc: bc, block: extend(blocks[1].ID), fork: 2},
		{name: "genesis", bc: bc, block: extend(blocks[0].ID), fork: 1},
		{name: "unknown", bc: bc, block: extend(blocks[5].ID), err: chain.ErrNoAttachPoint},
	}

	t.Log("Given the need to decide where a block attaches.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %s case.", testID, tst.name)
				{
					fork, err := tst.bc.ForkIfNeeded(tst.block)
					if !errors.Is(err, tst.err) {
						t.Fatalf("\t%s\tTest %d:\tShould get error %v, got %v.", failed, testID, tst.err, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get error %v.", success, testID, tst.err)

					switch {
					case tst.fork == 0 && fork != nil:
						t.Fatalf("\t%s\tTest %d:\tShould not fork.", failed, testID)
					case tst.fork > 0 && (fork == nil || fork.Len() != tst.fork):
						t.Fatalf("\t%s\tTest %d:\tShould fork with %d blocks.", failed, testID, tst.fork)
					}
					t.Logf("\t%s\tTest %d:\tShould fork with %d blocks.", success, testID, tst.fork)

					if fork != nil {
						if err := fork.Append(tst.block); err != nil {
							t.Fatalf("\t%s\tTest %d:\tShould be able to append to the fork: %v", failed, testID, err)
						}
						t.Logf("\t%s\tTest %d:\tShould be able to append to the fork.", success, testID)
					}
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_AppendFailure(t *testing.T) {
	blocks := history(t)

	t.Log("Given the need to reject blocks the bank refuses.")
	{
		t.Logf("\tTest 0:\tWhen the transfer's receiver is not registered.")
		{
			bc := build(t, blocks[:2])
			before := bc.Bank()

			// Block 3 is a transfer to wallet two, which isn't registered yet.
			err := bc.Append(blocks[3])
			if !errors.Is(err, bank.ErrWalletNotFound) {
				t.Fatalf("\t%s\tTest 0:\tShould fail with wallet not found: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould fail with wallet not found.", success)

			if bc.Len() != 2 || bc.Contains(blocks[3].ID) || !bc.Bank().Equal(before) {
				t.Fatalf("\t%s\tTest 0:\tShould leave the branch untouched.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould leave the branch untouched.", success)
		}
	}
}
