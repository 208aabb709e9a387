// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api and the p2p transport.
package v1

import (
	"net/http"

	"github.com/ardanlabs/powledger/app/services/node/handlers/v1/private"
	"github.com/ardanlabs/powledger/app/services/node/handlers/v1/public"
	"github.com/ardanlabs/powledger/business/web/mid"
	"github.com/ardanlabs/powledger/foundation/blockchain/network"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/blockchain/wire"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/ardanlabs/powledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		NS:    cfg.NS,
		WS:    websocket.Upgrader{},
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", pbl.Events)
	app.Handle(http.MethodGet, version, "/status", pbl.Status, mid.Cors("*"))
	app.Handle(http.MethodGet, version, "/genesis", pbl.Genesis, mid.Cors("*"))
	app.Handle(http.MethodGet, version, "/chain", pbl.Chain, mid.Cors("*"))
	app.Handle(http.MethodGet, version, "/chain/:index", pbl.BlockByIndex, mid.Cors("*"))
	app.Handle(http.MethodGet, version, "/mempool", pbl.Mempool, mid.Cors("*"))
	app.Handle(http.MethodGet, version, "/peers", pbl.Peers, mid.Cors("*"))
	app.Handle(http.MethodPost, version, "/tx/submit", pbl.SubmitTransaction, mid.Cors("*"))
}

// PrivateRoutes binds the node to node message handlers to the p2p server.
func PrivateRoutes(srv *network.Server, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
	}

	srv.Handle(wire.TypeTransaction, prv.Transaction)
	srv.Handle(wire.TypeNewBlock, prv.NewBlock)
	srv.Handle(wire.TypePeerDiscovery, prv.PeerDiscovery)
	srv.Handle(wire.TypeChainRequest, prv.ChainRequest)
}
