package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fortiblox/x1-lockup/internal/types"
	"github.com/fortiblox/x1-lockup/pkg/rpc"
)

// rpcClient calls the JSON-RPC methods of a lockup node.
type rpcClient struct {
	url        string
	httpClient *http.Client
}

func newRPCClient(url string, timeout time.Duration) *rpcClient {
	return &rpcClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpc.RPCError   `json:"error,omitempty"`
}

func (c *rpcClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	body, err := json.Marshal(rpc.Request{
		JSONRPC: rpc.JSONRPCVersion,
		ID:      1,
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *rpcClient) latestHash(ctx context.Context) (types.Hash, error) {
	var resp struct {
		Value rpc.LatestHash `json:"value"`
	}
	if err := c.call(ctx, "getLatestHash", nil, &resp); err != nil {
		return types.Hash{}, err
	}
	return types.HashFromBase58(resp.Value.Hash)
}

func (c *rpcClient) sendTransaction(ctx context.Context, encoded string, skipPreflight bool) (string, error) {
	var signature string
	params := []interface{}{encoded, rpc.TransactionConfig{
		Encoding:      rpc.EncodingBase58,
		SkipPreflight: skipPreflight,
	}}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

func (c *rpcClient) signatureStatus(ctx context.Context, signature string) (*rpc.SignatureStatus, error) {
	var resp struct {
		Value []*rpc.SignatureStatus `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", []interface{}{[]string{signature}}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Value) != 1 {
		return nil, fmt.Errorf("expected one status, got %d", len(resp.Value))
	}
	return resp.Value[0], nil
}
