// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/powledger/business/web/errs"
	"github.com/ardanlabs/powledger/foundation/blockchain/database"
	"github.com/ardanlabs/powledger/foundation/blockchain/state"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/ardanlabs/powledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

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

// SubmitTransaction adds a new wallet transaction to the mempool. The
// transaction is then shared with the known peers.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var ntx newTx
	if err := web.Decode(r, &ntx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	tx := ntx.toTx()

	h.Log.Infow("submit tx", "traceid", v.TraceID, "tx", tx.String())

	if err := h.State.SubmitTransaction(tx); err != nil {
		switch {
		case errors.Is(err, state.ErrSeen):
			return errs.NewTrusted(err, http.StatusConflict)
		default:
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
	}

	resp := struct {
		Status  string `json:"status"`
		Mempool int    `json:"mempool"`
	}{
		Status:  "transaction added to mempool",
		Mempool: h.State.QueryMempoolLength(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Status returns a summary of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	latest := h.State.RetrieveLatestBlock()
	miner := h.State.RetrieveMinerAddress()

	st := status{
		Host:         h.State.RetrieveHost().String(),
		MinerAddress: miner,
		MinerName:    h.NS.Lookup(miner),
		ChainLength:  h.State.QueryChainLength(),
		LatestBlock:  latest.Hash,
		LatestIndex:  latest.Index,
		Difficulty:   h.State.RetrieveDifficulty(),
		Mempool:      h.State.QueryMempoolLength(),
		KnownPeers:   len(h.State.RetrieveKnownPeers()),
	}

	return web.Respond(ctx, w, st, http.StatusOK)
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveGenesis(), http.StatusOK)
}

// Chain returns the blocks of the chain. When the address query parameter is
// set only the blocks touching that address are returned.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	dbBlocks := h.State.QueryBlocksByAddress(r.URL.Query().Get("address"))
	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blocks := make([]block, len(dbBlocks))
	for i, blk := range dbBlocks {
		blocks[i] = h.toBlock(blk)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// BlockByIndex returns the block at the specified index.
func (h Handlers) BlockByIndex(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	index, err := strconv.ParseUint(web.Param(r, "index"), 10, 64)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	blk, err := h.State.QueryBlockByIndex(index)
	if err != nil {
		if errors.Is(err, database.ErrBlockNotFound) {
			return errs.NewTrusted(err, http.StatusNotFound)
		}
		return err
	}

	return web.Respond(ctx, w, h.toBlock(blk), http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.RetrieveMempool()

	trans := make([]tx, len(mempool))
	for i, tran := range mempool {
		trans[i] = h.toTx(tran)
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// Peers returns the known peers with their tracking information.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrievePeerStatuses(), http.StatusOK)
}

// =============================================================================

func (h Handlers) toTx(tran database.Tx) tx {
	return tx{
		Sender:        tran.Sender,
		SenderName:    h.NS.Lookup(tran.Sender),
		Recipient:     tran.Recipient,
		RecipientName: h.NS.Lookup(tran.Recipient),
		Amount:        tran.Amount,
	}
}

func (h Handlers) toBlock(blk database.Block) block {
	trans := make([]tx, len(blk.Transactions))
	for i, tran := range blk.Transactions {
		trans[i] = h.toTx(tran)
	}

	return block{
		Index:        blk.Index,
		PrevHash:     blk.PrevHash,
		Hash:         blk.Hash,
		TimeStamp:    blk.TimeStamp,
		Difficulty:   blk.Difficulty,
		Nonce:        blk.Nonce,
		MinerAddress: blk.MinerAddress,
		MinerName:    h.NS.Lookup(blk.MinerAddress),
		Transactions: trans,
	}
}
