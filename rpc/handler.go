package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/mempool"
)

// HexBytes is a byte string carried as hex in request params.
type HexBytes []byte

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}
	*h = b
	return nil
}

// Handler serves RPC methods from the ledger store and the mempool.
type Handler struct {
	store core.RepositoryFactory
	pool  *mempool.Pool
}

// NewHandler creates an RPC Handler.
func NewHandler(store core.RepositoryFactory, pool *mempool.Pool) *Handler {
	return &Handler{store: store, pool: pool}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(ctx context.Context, req Request) Response {
	switch req.Method {
	case "getBlockHeight":
		return h.read(ctx, req.ID, func(repo core.Repository) (any, error) {
			return repo.BlockRepository().GetBlockchainHeight()
		})
	case "getBlock":
		return h.getBlock(ctx, req)
	case "getTransaction":
		return h.getTransaction(ctx, req)
	case "getTransactionsInvolving":
		return h.getTransactionsInvolving(ctx, req)
	case "getAccount":
		return h.getAccount(ctx, req)
	case "getBalance":
		return h.getBalance(ctx, req)
	case "getAsset":
		return h.getAsset(ctx, req)
	case "getOrder":
		return h.getOrder(ctx, req)
	case "getOpenOrders":
		return h.getOpenOrders(ctx, req)
	case "getAT":
		return h.getAT(ctx, req)
	case "sendTx":
		return h.sendTx(req)
	case "getMempoolSize":
		return okResponse(req.ID, h.pool.Size())
	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// read runs fn on a short-lived repository handle and maps ErrNotFound to
// CodeNotFound.
func (h *Handler) read(ctx context.Context, id any, fn func(core.Repository) (any, error)) Response {
	repo, err := h.store.Begin(ctx)
	if err != nil {
		return errResponse(id, CodeInternalError, err.Error())
	}
	defer repo.Close()

	result, err := fn(repo)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return errResponse(id, CodeNotFound, err.Error())
	case err != nil:
		return errResponse(id, CodeInternalError, err.Error())
	}
	return okResponse(id, result)
}

func bindParams(req Request, v any) *Response {
	if len(req.Params) == 0 {
		resp := errResponse(req.ID, CodeInvalidParams, "params are required")
		return &resp
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		resp := errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
		return &resp
	}
	return nil
}

type blockResult struct {
	Block        *core.BlockData         `json:"block"`
	Transactions []*core.TransactionData `json:"transactions"`
}

func (h *Handler) getBlock(ctx context.Context, req Request) Response {
	var params struct {
		Signature HexBytes `json:"signature"`
		Height    *int     `json:"height"`
	}
	if len(req.Params) > 0 {
		if resp := bindParams(req, &params); resp != nil {
			return *resp
		}
	}
	return h.read(ctx, req.ID, func(repo core.Repository) (any, error) {
		blocks := repo.BlockRepository()
		var (
			b   *core.BlockData
			err error
		)
		switch {
		case len(params.Signature) > 0:
			b, err = blocks.FromSignature(params.Signature)
		case params.Height != nil:
			b, err = blocks.FromHeight(*params.Height)
		default:
			b, err = blocks.GetLastBlock()
		}
		if err != nil {
			return nil, err
		}
		txs, err := blocks.GetTransactionsFromSignature(b.Signature())
		if err != nil {
			return nil, err
		}
		return blockResult{Block: b, Transactions: txs}, nil
	})
}

func (h *Handler) getTransaction(ctx context.Context, req Request) Response {
	var params struct {
		Signature HexBytes `json:"signature"`
	}
	if resp := bindParams(req, &params); resp != nil {
		return *resp
	}
	return h.read(ctx, req.ID, func(repo core.Repository) (any, error) {
		txs := repo.TransactionRepository()
		tx, err := txs.FromSignature(params.Signature)
		if err != nil {
			return nil, err
		}
		blockSig, err := txs.GetBlockSignature(params.Signature)
		if err != nil {
			return nil, err
		}
		return map[string]any{"transaction": tx, "block_signature": hex.EncodeToString(blockSig)}, nil
	})
}

func (h *Handler) getTransactionsInvolving(ctx context.Context, req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if resp := bindParams(req, &params); resp != nil {
		return *resp
	}
	return h.read(ctx, req.ID, func(repo core.Repository) (any, error) {
		sigs, err := repo.TransactionRepository().GetSignaturesInvolving(params.Address)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(sigs))
		for i, sig := range sigs {
			out[i] = hex.EncodeToString(sig)
		}
		return out, nil
	})
}

func (h *Handler) getAccount(ctx context.Context, req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if resp := bindParams(req, &params); resp != nil {
		return *resp
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	return h.read(ctx, req.ID, func(repo core.Repository) (any, error) {
		return repo.AccountRepository().GetAccount(params.Address)
	})
}

func (h *Handler) getBalance(ctx context.Context, req Request) Response {
	var params struct {
		Address string `json:"address"`
		AssetID int64  `json:"asset_id"`
	}
	if resp := bindParams(req, &params); resp != nil {
		return *resp
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	return h.read(ctx, req.ID, func(repo core.Repository) (any, error) {
		bal, err := repo.AccountRepository().GetBalance(params.Address, params.AssetID)
		if err != nil {
			return nil, err
		}
		return core.AccountBalanceData{Address: params.Address, AssetID: params.AssetID, Balance: bal}, nil
	})
}

func (h *Handler) getAsset(ctx context.Context, req Request) Response {
	var params struct {
		AssetID int64 `json:"asset_id"`
	}
	if resp := bindParams(req, &params); resp != nil {
		return *resp
	}
	return h.read(ctx, req.ID, func(repo core.Repository) (any, error) {
		return repo.AssetRepository().FromAssetID(params.AssetID)
	})
}

func (h *Handler) getOrder(ctx context.Context, req Request) Response {
	var params struct {
		OrderID HexBytes `json:"order_id"`
	}
	if resp := bindParams(req, &params); resp != nil {
		return *resp
	}
	return h.read(ctx, req.ID, func(repo core.Repository) (any, error) {
		assets := repo.AssetRepository()
		order, err := assets.FromOrderID(params.OrderID)
		if err != nil {
			return nil, err
		}
		trades, err := assets.GetOrdersTrades(params.OrderID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"order": order, "trades": trades}, nil
	})
}

func (h *Handler) getOpenOrders(ctx context.Context, req Request) Response {
	var params struct {
		HaveAssetID int64 `json:"have_asset_id"`
		WantAssetID int64 `json:"want_asset_id"`
	}
	if resp := bindParams(req, &params); resp != nil {
		return *resp
	}
	return h.read(ctx, req.ID, func(repo core.Repository) (any, error) {
		return repo.AssetRepository().GetOpenOrders(params.HaveAssetID, params.WantAssetID)
	})
}

func (h *Handler) getAT(ctx context.Context, req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if resp := bindParams(req, &params); resp != nil {
		return *resp
	}
	return h.read(ctx, req.ID, func(repo core.Repository) (any, error) {
		return repo.ATRepository().FromATAddress(params.Address)
	})
}

// sendTx queues a signed transaction for forging. Ledger validity is checked
// when a block is built, not here.
func (h *Handler) sendTx(req Request) Response {
	var tx core.TransactionData
	if resp := bindParams(req, &tx); resp != nil {
		return *resp
	}
	if err := h.pool.Add(&tx); err != nil {
		return errResponse(req.ID, CodeRejected, err.Error())
	}
	return okResponse(req.ID, map[string]string{"signature": tx.SignatureHex()})
}
