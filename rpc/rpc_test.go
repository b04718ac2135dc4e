package rpc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"github.com/tolelom/qorachain/block"
	"github.com/tolelom/qorachain/chain"
	"github.com/tolelom/qorachain/consensus"
	"github.com/tolelom/qorachain/core"
	"github.com/tolelom/qorachain/internal/testutil"
	"github.com/tolelom/qorachain/mempool"
	"github.com/tolelom/qorachain/rpc"
	"github.com/tolelom/qorachain/wallet"
)

type fixture struct {
	handler *rpc.Handler
	pool    *mempool.Pool
	alice   *wallet.Wallet
	params  consensus.Params
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	params := consensus.DefaultParams()
	priv, _ := testutil.Key(t, "alice")
	alice := wallet.New(priv)

	store := testutil.NewStore()
	c := chain.New(store, chain.Config{
		Params:      params,
		Allocations: []block.Allocation{{Recipient: alice.Address(), Amount: core.MustAmount("1000")}},
	})
	require.NoError(t, c.Init(context.Background()))

	pool := mempool.New(clock.NewTestClock(time.UnixMilli(params.GenesisTimestamp + 60_000)))
	return &fixture{handler: rpc.NewHandler(store, pool), pool: pool, alice: alice, params: params}
}

func (f *fixture) call(t *testing.T, method string, params any) rpc.Response {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		var err error
		raw, err = json.Marshal(params)
		require.NoError(t, err)
	}
	return f.handler.Dispatch(context.Background(), rpc.Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

func requireOK(t *testing.T, resp rpc.Response) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
	}
}

func TestQueriesAfterGenesis(t *testing.T) {
	f := newFixture(t)

	resp := f.call(t, "getBlockHeight", nil)
	requireOK(t, resp)
	require.Equal(t, 1, resp.Result)

	resp = f.call(t, "getBalance", map[string]any{"address": f.alice.Address(), "asset_id": core.NativeAssetID})
	requireOK(t, resp)
	require.Equal(t, "1000", resp.Result.(core.AccountBalanceData).Balance.String())

	resp = f.call(t, "getAsset", map[string]any{"asset_id": core.NativeAssetID})
	requireOK(t, resp)
	require.Equal(t, "QORA", resp.Result.(*core.AssetData).Name)

	resp = f.call(t, "getBlock", map[string]any{"height": 1})
	requireOK(t, resp)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var got struct {
		Block        core.BlockData          `json:"block"`
		Transactions []*core.TransactionData `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, 1, got.Block.Height)
	require.Len(t, got.Transactions, 1)
	require.Equal(t, core.TxGenesis, got.Transactions[0].Type)

	resp = f.call(t, "getTransactionsInvolving", map[string]any{"address": f.alice.Address()})
	requireOK(t, resp)
	require.Equal(t, []string{got.Transactions[0].SignatureHex()}, resp.Result)
}

func TestQueryErrors(t *testing.T) {
	f := newFixture(t)

	resp := f.call(t, "getTransaction", map[string]any{"signature": "00ff"})
	require.NotNil(t, resp.Error)
	require.Equal(t, rpc.CodeNotFound, resp.Error.Code)

	resp = f.call(t, "getTransaction", map[string]any{"signature": "zz"})
	require.NotNil(t, resp.Error)
	require.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)

	resp = f.call(t, "getBalance", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, rpc.CodeInvalidParams, resp.Error.Code)

	resp = f.call(t, "mine", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, rpc.CodeMethodNotFound, resp.Error.Code)
}

func TestSendTxQueuesOnce(t *testing.T) {
	f := newFixture(t)
	_, bob := testutil.Key(t, "bob")
	tx, err := f.alice.Payment(f.params.GenesisTimestamp+1000, []byte("ref"), bob.Address(), core.MustAmount("5"), core.MustAmount("1"))
	require.NoError(t, err)

	resp := f.call(t, "sendTx", tx)
	requireOK(t, resp)
	require.Equal(t, map[string]string{"signature": tx.SignatureHex()}, resp.Result)
	require.Equal(t, 1, f.pool.Size())

	resp = f.call(t, "sendTx", tx)
	require.NotNil(t, resp.Error)
	require.Equal(t, rpc.CodeRejected, resp.Error.Code)

	resp = f.call(t, "getMempoolSize", nil)
	requireOK(t, resp)
	require.Equal(t, 1, resp.Result)
}

func post(t *testing.T, h http.Handler, token string, body string) rpc.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp rpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestServerAuthAndRateLimit(t *testing.T) {
	f := newFixture(t)
	srv := rpc.NewServer(f.handler, rpc.ServerConfig{AuthToken: "secret", RequestsPerSecond: 0.001, Burst: 1})
	const body = `{"jsonrpc":"2.0","id":1,"method":"getBlockHeight"}`

	resp := post(t, srv, "wrong", body)
	require.NotNil(t, resp.Error)
	require.Equal(t, rpc.CodeUnauthorized, resp.Error.Code)

	resp = post(t, srv, "secret", body)
	requireOK(t, resp)
	require.Equal(t, float64(1), resp.Result)

	resp = post(t, srv, "secret", body)
	require.NotNil(t, resp.Error)
	require.Equal(t, rpc.CodeRateLimited, resp.Error.Code)
}

func TestServerRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t)
	srv := rpc.NewServer(f.handler, rpc.ServerConfig{})

	resp := post(t, srv, "", `{"jsonrpc":"1.0","id":1,"method":"getBlockHeight"}`)
	require.NotNil(t, resp.Error)
	require.Equal(t, rpc.CodeInvalidRequest, resp.Error.Code)

	resp = post(t, srv, "", `{`)
	require.NotNil(t, resp.Error)
	require.Equal(t, rpc.CodeParseError, resp.Error.Code)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
