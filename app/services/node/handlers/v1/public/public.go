// Package public maintains the group of handlers for public access.
package public

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/ardanlabs/shardchain/business/web/errs"
	"github.com/ardanlabs/shardchain/foundation/blockchain/bank"
	"github.com/ardanlabs/shardchain/foundation/blockchain/chain"
	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/shardchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/shardchain/foundation/blockchain/shard"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/ardanlabs/shardchain/foundation/events"
	"github.com/ardanlabs/shardchain/foundation/nameservice"
	"github.com/ardanlabs/shardchain/foundation/web"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Worker represents the behavior required from the mining worker.
type Worker interface {
	SignalStartMining()
	SignalCancelMining()
}

// Handlers manages the set of shard endpoints.
type Handlers struct {
	Log     *zap.SugaredLogger
	Genesis genesis.Genesis
	Shard   *shard.Shard
	MP      *mempool.Mempool
	Worker  Worker
	NS      *nameservice.NameService
	WS      websocket.Upgrader
	Evts    *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	id, ch := h.Evts.Acquire()
	defer h.Evts.Release(id)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Status returns the shard settings and a summary of the leading branch.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	st := status{
		Genesis:     h.Genesis,
		Difficulty:  h.Shard.Difficulty(),
		Threshold:   h.Shard.EvictionThreshold(),
		Branches:    h.Shard.Count(),
		Uncommitted: h.MP.Count(),
		Subscribers: h.Evts.Count(),
	}

	if leader, exists := h.Shard.Leader(); exists {
		st.Leader = &leader.Summary
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// Branches returns a summary of every live branch.
func (h Handlers) Branches(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Shard.Branches(), http.StatusOK)
}

// Branch returns the blocks and wallets of the specified branch.
func (h Handlers) Branch(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.ParseUint(web.Param(r, "id"), 10, 64)
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid branch id: %w", err), http.StatusBadRequest)
	}

	snap, err := h.Shard.Branch(id)
	if err != nil {
		if errors.Is(err, shard.ErrUnknownBranch) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	blocks := make([]database.BlockData, len(snap.Blocks))
	for i, blk := range snap.Blocks {
		blocks[i] = database.NewBlockData(blk)
	}

	br := branch{
		Summary: snap.Summary,
		Blocks:  blocks,
		Wallets: h.toWallets(snap.Wallets),
	}

	return web.Respond(ctx, w, br, http.StatusOK)
}

// Wallets returns the balances recorded by the leading branch for every
// wallet, or for the one specified.
func (h Handlers) Wallets(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	wi := walletInfo{
		LatestBlock: h.Shard.Tip(),
		Uncommitted: h.MP.Count(),
		Wallets:     []wallet{},
	}

	param := web.Param(r, "wallet")
	if param == "" {
		if leader, exists := h.Shard.Leader(); exists {
			wi.Wallets = h.toWallets(leader.Wallets)
		}
		return web.Respond(ctx, w, wi, http.StatusOK)
	}

	id, err := signature.ToID(param)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	wal, err := h.Shard.Wallet(id)
	if err != nil {
		if errors.Is(err, bank.ErrWalletNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	wi.Wallets = h.toWallets(map[signature.ID]bank.Wallet{id: wal})

	return web.Respond(ctx, w, wi, http.StatusOK)
}

// Mempool returns the set of payloads waiting to be mined.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pending := h.MP.Copy()

	entries := make([]entry, len(pending))
	for i, e := range pending {
		data, err := database.EncodePayload(e.Payload)
		if err != nil {
			return err
		}

		ent := entry{
			Key:     e.Key,
			Kind:    e.Payload.Kind(),
			Payload: data,
		}

		if len(e.Signature) > 0 {
			ent.Signature = hexutil.Encode(e.Signature)
		}

		switch p := e.Payload.(type) {
		case database.Transfer:
			ent.FromName = h.NS.Lookup(p.From)
			ent.ToName = h.NS.Lookup(p.To)
		case database.WalletRegistration:
			ent.FromName = h.NS.Lookup(p.WalletID())
		}

		entries[i] = ent
	}

	return web.Respond(ctx, w, entries, http.StatusOK)
}

// SubmitPayload adds a new payload to the mempool and signals the worker
// to mine it.
func (h Handlers) SubmitPayload(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var sp database.SignedPayload
	if err := web.Decode(r, &sp); err != nil {
		if web.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	payload, sig, err := sp.Decode()
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	e, err := mempool.NewEntry(payload, sig)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("submit payload", "traceid", web.GetTraceID(ctx), "entry", e)

	n, err := h.MP.Upsert(e)
	if err != nil {
		if errors.Is(err, mempool.ErrFull) {
			return errs.NewTrusted(err, http.StatusServiceUnavailable)
		}
		return err
	}

	h.Worker.SignalStartMining()

	resp := struct {
		Status      string       `json:"status"`
		Key         signature.ID `json:"key"`
		Uncommitted int          `json:"uncommitted"`
	}{
		Status:      "payload added to mempool",
		Key:         e.Key,
		Uncommitted: n,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// PushBlock takes a block mined elsewhere, validates it and offers it to
// every branch of the shard.
func (h Handlers) PushBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var bd database.BlockData
	if err := web.Decode(r, &bd); err != nil {
		if web.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blk, err := database.ToBlock(bd)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("push block", "traceid", web.GetTraceID(ctx), "blk", blk)

	rcpt, err := h.Shard.Push(blk)
	if err != nil {
		switch {
		case errors.Is(err, chain.ErrCorruptHistory):
			return web.NewShutdownError(err.Error())
		case errors.Is(err, shard.ErrDuplicate):
			return errs.NewTrusted(err, http.StatusConflict)
		default:
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
	}

	// The tip the worker is mining on may have moved.
	h.Worker.SignalCancelMining()
	if h.MP.Count() > 0 {
		h.Worker.SignalStartMining()
	}

	resp := receipt{
		Block:    rcpt.Block,
		Accepted: rcpt.Accepted,
		Forked:   rcpt.Forked,
		Evicted:  rcpt.Evicted,
		Leader:   rcpt.Leader,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

func (h Handlers) toWallets(m map[signature.ID]bank.Wallet) []wallet {
	wallets := make([]wallet, 0, len(m))
	for id, wal := range m {
		wallets = append(wallets, wallet{
			ID:       id,
			Name:     h.NS.Lookup(id),
			Balances: wal.Balances,
		})
	}

	slices.SortFunc(wallets, func(a, b wallet) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), bytes.Compare(a.ID[:], b.ID[:]))
	})

	return wallets
}
