package public

import (
	"encoding/json"

	"github.com/ardanlabs/shardchain/foundation/blockchain/database"
	"github.com/ardanlabs/shardchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/shardchain/foundation/blockchain/shard"
	"github.com/ardanlabs/shardchain/foundation/blockchain/signature"
	"github.com/shopspring/decimal"
)

type status struct {
	Genesis     genesis.Genesis `json:"genesis"`
	Difficulty  uint            `json:"difficulty"`
	Threshold   int             `json:"eviction_threshold"`
	Branches    int             `json:"branches"`
	Leader      *shard.Summary  `json:"leader,omitempty"`
	Uncommitted int             `json:"uncommitted"`
	Subscribers int             `json:"subscribers"`
}

type wallet struct {
	ID       signature.ID               `json:"id"`
	Name     string                     `json:"name"`
	Balances map[uint64]decimal.Decimal `json:"balances"`
}

type walletInfo struct {
	LatestBlock signature.ID `json:"latest_block"`
	Uncommitted int          `json:"uncommitted"`
	Wallets     []wallet     `json:"wallets"`
}

type branch struct {
	shard.Summary
	Blocks  []database.BlockData `json:"blocks"`
	Wallets []wallet             `json:"wallets"`
}

type entry struct {
	Key       signature.ID    `json:"key"`
	Kind      database.Kind   `json:"kind"`
	FromName  string          `json:"from_name,omitempty"`
	ToName    string          `json:"to_name,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature,omitempty"`
}

type receipt struct {
	Block    signature.ID `json:"block"`
	Accepted []uint64     `json:"accepted"`
	Forked   []uint64     `json:"forked"`
	Evicted  []uint64     `json:"evicted"`
	Leader   uint64       `json:"leader"`
}
