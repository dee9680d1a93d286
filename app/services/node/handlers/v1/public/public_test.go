package public_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	v1 "github.com/ardanlabs/shardchain/app/services/node/handlers/v1"
	"github.com/ardanlabs/shardchain/business/web/mid"
	"github.com/ardanlabs/shardchain/foundation/blockchain/bank"
	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/shardchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/shardchain/foundation/blockchain/shard"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/ardanlabs/shardchain/foundation/events"
	"github.com/ardanlabs/shardchain/foundation/nameservice"
	"github.com/ardanlabs/shardchain/foundation/web"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type worker struct {
	started   atomic.Int32
	cancelled atomic.Int32
}

func (w *worker) SignalStartMining()  { w.started.Add(1) }
func (w *worker) SignalCancelMining() { w.cancelled.Add(1) }

func call(t *testing.T, app http.Handler, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Should be able to encode the body: %s", err)
		}
	}

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

func Test_Routes(t *testing.T) {
	log := zap.NewNop().Sugar()

	ns, err := nameservice.New(t.TempDir())
	if err != nil {
		t.Fatalf("Should be able to construct the name service: %s", err)
	}

	s := shard.New(shard.Config{EvictionThreshold: 3})
	mp := mempool.New(10)
	wrk := worker{}

	app := web.NewApp(make(chan os.Signal, 1), mid.Logger(log), mid.Errors(log), mid.Panics())
	v1.PublicRoutes(app, v1.Config{
		Log:     log,
		Genesis: genesis.Default(),
		Shard:   s,
		Mempool: mp,
		Worker:  &wrk,
		NS:      ns,
		Evts:    events.New(),
	})

	genesisBlk, err := database.NewBlock(signature.ZeroID, database.EmptyPayload{}, nil)
	if err != nil {
		t.Fatalf("Should be able to construct a block: %s", err)
	}

	t.Log("Given the need to drive the shard over http.")
	{
		t.Logf("\tTest 0:\tWhen pushing a block.")
		{
			w := call(t, app, http.MethodPost, "/v1/blocks/push", database.NewBlockData(genesisBlk))
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 0:\tShould receive a 200 status: %d %s", failed, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest 0:\tShould receive a 200 status.", success)

			var rcpt struct {
				Block    signature.ID `json:"block"`
				Accepted []uint64     `json:"accepted"`
			}
			if err := json.NewDecoder(w.Body).Decode(&rcpt); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to decode the receipt: %s", failed, err)
			}

			if rcpt.Block != genesisBlk.ID || len(rcpt.Accepted) != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould report the block accepted by branch 0: %+v", failed, rcpt)
			}
			t.Logf("\t%s\tTest 0:\tShould report the block accepted by branch 0.", success)

			if wrk.cancelled.Load() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould cancel any mining on the old tip.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould cancel any mining on the old tip.", success)
		}

		t.Logf("\tTest 1:\tWhen pushing the same block again.")
		{
			w := call(t, app, http.MethodPost, "/v1/blocks/push", database.NewBlockData(genesisBlk))
			if w.Code != http.StatusConflict {
				t.Fatalf("\t%s\tTest 1:\tShould receive a 409 status: %d", failed, w.Code)
			}
			t.Logf("\t%s\tTest 1:\tShould receive a 409 status.", success)
		}

		t.Logf("\tTest 2:\tWhen submitting a wallet registration.")
		{
			pk, err := signature.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to generate a key: %s", failed, err)
			}

			sp, err := database.NewSignedPayload(database.NewWalletRegistration(&pk.PublicKey), nil)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to construct the payload: %s", failed, err)
			}

			w := call(t, app, http.MethodPost, "/v1/payload/submit", sp)
			if w.Code != http.StatusOK {
				t.Fatalf("\t%s\tTest 2:\tShould receive a 200 status: %d %s", failed, w.Code, w.Body)
			}
			t.Logf("\t%s\tTest 2:\tShould receive a 200 status.", success)

			if mp.Count() != 1 || wrk.started.Load() == 0 {
				t.Fatalf("\t%s\tTest 2:\tShould queue the payload and signal the worker.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould queue the payload and signal the worker.", success)

			w = call(t, app, http.MethodGet, "/v1/mempool/list", nil)
			var entries []map[string]any
			if err := json.NewDecoder(w.Body).Decode(&entries); err != nil || len(entries) != 1 {
				t.Fatalf("\t%s\tTest 2:\tShould list the pending payload: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould list the pending payload.", success)
		}

		type table struct {
			name   string
			method string
			path   string
			body   any
			status int
		}

		tt := []table{
			{name: "status", method: http.MethodGet, path: "/v1/shard/status", status: http.StatusOK},
			{name: "branches", method: http.MethodGet, path: "/v1/branches/list", status: http.StatusOK},
			{name: "branch", method: http.MethodGet, path: "/v1/branches/list/0", status: http.StatusOK},
			{name: "unknown-branch", method: http.MethodGet, path: "/v1/branches/list/9", status: http.StatusNotFound},
			{name: "bad-branch", method: http.MethodGet, path: "/v1/branches/list/abc", status: http.StatusBadRequest},
			{name: "wallets", method: http.MethodGet, path: "/v1/wallets/list", status: http.StatusOK},
			{name: "bad-wallet", method: http.MethodGet, path: "/v1/wallets/list/0x12", status: http.StatusBadRequest},
			{name: "unknown-wallet", method: http.MethodGet, path: "/v1/wallets/list/" + signature.Hash([]byte("x")).String(), status: http.StatusNotFound},
			{name: "missing-payload", method: http.MethodPost, path: "/v1/payload/submit", body: map[string]string{}, status: http.StatusBadRequest},
		}

		for i, tst := range tt {
			testID := i + 3
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen calling %s %s.", testID, tst.method, tst.path)
				{
					w := call(t, app, tst.method, tst.path, tst.body)
					if w.Code != tst.status {
						t.Fatalf("\t%s\tTest %d:\tShould receive a %d status: %d %s", failed, testID, tst.status, w.Code, w.Body)
					}
					t.Logf("\t%s\tTest %d:\tShould receive a %d status.", success, testID, tst.status)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_WalletOrder(t *testing.T) {
	log := zap.NewNop().Sugar()

	// The same account name saved in two folders names two wallets.
	root := t.TempDir()
	for _, dir := range []string{"a", "b"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0755); err != nil {
			t.Fatalf("Should be able to create the folder: %s", err)
		}

		pk, err := signature.GenerateKey()
		if err != nil {
			t.Fatalf("Should be able to generate a key: %s", err)
		}

		if err := signature.SavePrivateKey(filepath.Join(root, dir, "kennedy.pem"), pk); err != nil {
			t.Fatalf("Should be able to save the key: %s", err)
		}
	}

	ns, err := nameservice.New(root)
	if err != nil {
		t.Fatalf("Should be able to construct the name service: %s", err)
	}

	s := shard.New(shard.Config{EvictionThreshold: 3})
	mp := mempool.New(10)

	app := web.NewApp(make(chan os.Signal, 1), mid.Logger(log), mid.Errors(log), mid.Panics())
	v1.PublicRoutes(app, v1.Config{
		Log:     log,
		Genesis: genesis.Default(),
		Shard:   s,
		Mempool: mp,
		Worker:  &worker{},
		NS:      ns,
		Evts:    events.New(),
	})

	t.Log("Given the need to list wallets in a stable order.")
	{
		t.Logf("\tTest 0:\tWhen two wallets share the same name.")
		{
			prev := signature.ZeroID
			push := func(payload database.Payload) {
				blk, err := database.NewBlock(prev, payload, nil)
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to construct a block: %s", failed, err)
				}
				if _, err := s.Push(blk); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to push the block: %s", failed, err)
				}
				prev = blk.ID
			}

			push(database.EmptyPayload{})
			for _, dir := range []string{"a", "b"} {
				pk, err := signature.LoadPrivateKey(filepath.Join(root, dir, "kennedy.pem"))
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to load the key: %s", failed, err)
				}
				push(database.NewWalletRegistration(&pk.PublicKey))
			}

			for range 5 {
				w := call(t, app, http.MethodGet, "/v1/wallets/list", nil)

				var wi struct {
					Wallets []struct {
						ID       signature.ID               `json:"id"`
						Name     string                     `json:"name"`
						Balances map[uint64]decimal.Decimal `json:"balances"`
					} `json:"wallets"`
				}
				if err := json.NewDecoder(w.Body).Decode(&wi); err != nil || len(wi.Wallets) != 2 {
					t.Fatalf("\t%s\tTest 0:\tShould list both wallets: %v", failed, err)
				}

				a, b := wi.Wallets[0], wi.Wallets[1]
				if a.Name != b.Name || bytes.Compare(a.ID[:], b.ID[:]) >= 0 {
					t.Fatalf("\t%s\tTest 0:\tShould order equal names by wallet id: %s %s", failed, a.ID, b.ID)
				}

				if !a.Balances[bank.BootstrapCurrency].Equal(bank.BootstrapAmount) {
					t.Fatalf("\t%s\tTest 0:\tShould report the bootstrap balance.", failed)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould order equal names by wallet id.", success)
		}
	}
}
