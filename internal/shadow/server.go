package shadow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pvanko/walletgate/internal/delegate"
	"github.com/pvanko/walletgate/internal/model"
)

// EIP-1193 provider error codes surfaced to the dapp.
const (
	codeUserRejected = 4001
	codeDisconnected = 4900
	codeInternal     = -32603
	codeParse        = -32700
	codeInvalid      = -32600
)

const maxRequestBytes = 10 << 20

// Server is the JSON-RPC HTTP front the dapp connects to instead of
// the wallet node. Every call flows through the slot's provider, which
// is the Shadow once it has been pinned.
type Server struct {
	addr      string
	slot      *delegate.GuardedSlot
	logger    *zap.Logger
	srv       *http.Server
	onMessage func(model.Envelope)
}

// NewServer creates the front listening on addr.
func NewServer(addr string, slot *delegate.GuardedSlot, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{addr: addr, slot: slot, logger: logger}
	s.srv = &http.Server{Addr: addr, Handler: s}
	return s
}

// OnMessage installs the handler for envelopes the daemon pushes to
// /v1/messages. Install before Start; without a handler the endpoint
// answers 404.
func (s *Server) OnMessage(h func(model.Envelope)) {
	s.onMessage = h
}

// Start begins listening. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("shadow: listen on %s: %w", s.addr, err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("shadow front listening", zap.String("addr", ln.Addr().String()))
	err = s.srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// ServeHTTP handles one JSON-RPC call per request body.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/healthz" {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
		return
	}
	if r.URL.Path == "/v1/messages" {
		s.handleMessage(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParse, Message: "read error"}})
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: codeParse, Message: "parse error"}})
		return
	}
	if req.Method == "" {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeInvalid, Message: "missing method"}})
		return
	}

	provider := s.slot.Provider()
	if provider == nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeDisconnected, Message: ErrNoDelegate.Error()}})
		return
	}

	result, err := provider.Dispatch(r.Context(), model.Call{Method: req.Method, Params: req.Params})
	if err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: mapError(err)})
		return
	}
	writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// handleMessage accepts a decision pushed by the daemon.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if s.onMessage == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var env model.Envelope
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&env); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := env.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.onMessage(env)
	w.WriteHeader(http.StatusAccepted)
}

func mapError(err error) *rpcError {
	var rpcErr *delegate.RPCError
	if errors.As(err, &rpcErr) {
		return &rpcError{Code: rpcErr.Code, Message: rpcErr.Message, Data: rpcErr.Data}
	}
	switch {
	case errors.Is(err, ErrDenied):
		return &rpcError{Code: codeUserRejected, Message: err.Error()}
	case errors.Is(err, ErrTimedOut):
		return &rpcError{Code: codeUserRejected, Message: err.Error()}
	case errors.Is(err, ErrNoDelegate):
		return &rpcError{Code: codeDisconnected, Message: err.Error()}
	default:
		return &rpcError{Code: codeInternal, Message: err.Error()}
	}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
