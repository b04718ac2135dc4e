package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tolelom/qorachain/core"
)

// Client calls a remote node's RPC endpoint. It satisfies the
// synchronizer's Peer interface.
type Client struct {
	url       string
	authToken string
	http      *http.Client
	nextID    atomic.Int64
}

// NewClient creates a Client for the endpoint at url.
func NewClient(url, authToken string) *Client {
	return &Client{
		url:       url,
		authToken: authToken,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// ID identifies the peer by its endpoint.
func (c *Client) ID() string { return c.url }

// ChainHeight returns the remote tip height.
func (c *Client) ChainHeight(ctx context.Context) (int, error) {
	var height int
	if err := c.call(ctx, "getBlockHeight", nil, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// BlockAt returns the remote block at height with its signed transactions.
// AT transactions are left out since the receiver regenerates them.
func (c *Client) BlockAt(ctx context.Context, height int) (*core.BlockData, []*core.TransactionData, error) {
	var res blockResult
	if err := c.call(ctx, "getBlock", map[string]int{"height": height}, &res); err != nil {
		return nil, nil, err
	}
	if res.Block == nil {
		return nil, nil, fmt.Errorf("block %d: empty response", height)
	}
	txs := res.Transactions[:0]
	for _, tx := range res.Transactions {
		if tx.Type != core.TxAT {
			txs = append(txs, tx)
		}
	}
	return res.Block, txs, nil
}

// SendTx submits a signed transaction and returns its hex signature.
func (c *Client) SendTx(ctx context.Context, tx *core.TransactionData) (string, error) {
	var res map[string]string
	if err := c.call(ctx, "sendTx", tx, &res); err != nil {
		return "", err
	}
	return res["signature"], nil
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	req := Request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return err
		}
		req.Params = raw
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http status %s", method, resp.Status)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if envelope.Error != nil {
		if envelope.Error.Code == CodeNotFound {
			return fmt.Errorf("%s: %w", method, core.ErrNotFound)
		}
		return fmt.Errorf("%s: rpc error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	return json.Unmarshal(envelope.Result, out)
}
