// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/shardchain/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/shardchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/shardchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/shardchain/foundation/blockchain/shard"
	"github.com/ardanlabs/shardchain/foundation/events"
	"github.com/ardanlabs/shardchain/foundation/nameservice"
	"github.com/ardanlabs/shardchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Worker represents the behavior required from the mining worker.
type Worker = public.Worker

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log     *zap.SugaredLogger
	Genesis genesis.Genesis
	Shard   *shard.Shard
	Mempool *mempool.Mempool
	Worker  Worker
	NS      *nameservice.NameService
	Evts    *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:     cfg.Log,
		Genesis: cfg.Genesis,
		Shard:   cfg.Shard,
		MP:      cfg.Mempool,
		Worker:  cfg.Worker,
		NS:      cfg.NS,
		WS:      websocket.Upgrader{},
		Evts:    cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/shard/status", pbl.Status)
	app.Handle(http.MethodGet, version, "/branches/list", pbl.Branches)
	app.Handle(http.MethodGet, version, "/branches/list/:id", pbl.Branch)
	app.Handle(http.MethodGet, version, "/wallets/list", pbl.Wallets)
	app.Handle(http.MethodGet, version, "/wallets/list/:wallet", pbl.Wallets)
	app.Handle(http.MethodGet, version, "/mempool/list", pbl.Mempool)
	app.Handle(http.MethodPost, version, "/payload/submit", pbl.SubmitPayload)
	app.Handle(http.MethodPost, version, "/blocks/push", pbl.PushBlock)
}
