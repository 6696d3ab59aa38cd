// Package delegate abstracts the real wallet being shadowed: a capability
// with a single asynchronous dispatch method, plus the guarded provider
// slot the shadow installs itself into.
package delegate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pvanko/walletgate/internal/model"
)

const requestTimeout = 30 * time.Second

// Delegate is the underlying wallet: one async request-dispatch method.
type Delegate interface {
	Dispatch(ctx context.Context, call model.Call) (json.RawMessage, error)
}

// RPCError is a JSON-RPC error returned by the delegate, passed to the
// caller unchanged.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// RPCDelegate dispatches calls to a JSON-RPC 2.0 endpoint over HTTP
// (e.g. the wallet node on :8545).
type RPCDelegate struct {
	endpoint string
	client   *http.Client
	nextID   atomic.Int64
}

// NewRPC creates a delegate for the given JSON-RPC endpoint.
func NewRPC(endpoint string) *RPCDelegate {
	return &RPCDelegate{
		endpoint: endpoint,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

// Endpoint returns the delegate's URL.
func (d *RPCDelegate) Endpoint() string {
	return d.endpoint
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Dispatch forwards the call and returns the raw result. A JSON-RPC error
// from the wallet comes back as *RPCError.
func (d *RPCDelegate) Dispatch(ctx context.Context, call model.Call) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      d.nextID.Add(1),
		Method:  call.Method,
		Params:  call.Params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal call: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delegate unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read delegate response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("delegate returned HTTP %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, fmt.Errorf("decode delegate response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}
