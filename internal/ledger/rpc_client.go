package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// RPCClient talks JSON-RPC to a ledger node.
type RPCClient struct {
	endpoint   string
	httpClient *http.Client
	nextID     atomic.Uint64
}

// NewRPCClient creates a ledger RPC client for the given endpoint. A
// non-positive timeout falls back to 30 seconds.
func NewRPCClient(endpoint string, timeout time.Duration) *RPCClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RPCClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("ledger: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ledger: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: rpc call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ledger: rpc status %d: %s", resp.StatusCode, string(raw))
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("ledger: decode response: %w", err)
	}
	if rr.Error != nil {
		return fmt.Errorf("ledger: rpc error %d: %s", rr.Error.Code, rr.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(rr.Result, out); err != nil {
			return fmt.Errorf("ledger: decode result: %w", err)
		}
	}
	return nil
}

// SubmitTransaction implements Client.
func (c *RPCClient) SubmitTransaction(ctx context.Context, tx []byte) (string, error) {
	var reference string
	err := c.call(ctx, "sendTransaction",
		[]any{base64.StdEncoding.EncodeToString(tx)}, &reference)
	if err != nil {
		return "", err
	}
	return reference, nil
}

// getAccountResult mirrors the node's account-info response. Value is null
// for absent accounts.
type getAccountResult struct {
	Value *struct {
		Data string `json:"data"`
	} `json:"value"`
}

// GetAccount implements Client.
func (c *RPCClient) GetAccount(ctx context.Context, address string) ([]byte, error) {
	var res getAccountResult
	if err := c.call(ctx, "getAccountInfo", []any{address}, &res); err != nil {
		return nil, err
	}
	if res.Value == nil {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(res.Value.Data)
	if err != nil {
		return nil, fmt.Errorf("ledger: account data for %s: %w", address, err)
	}
	return data, nil
}

// IsNullifierSpent implements Client. Marker account existence means spent.
func (c *RPCClient) IsNullifierSpent(ctx context.Context, programScope string, nullifierHash [32]byte) (bool, error) {
	data, err := c.GetAccount(ctx, NullifierMarkerAddress(programScope, nullifierHash))
	if err != nil {
		return false, err
	}
	return data != nil, nil
}
