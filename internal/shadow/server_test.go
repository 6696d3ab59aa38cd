package shadow

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pvanko/walletgate/internal/delegate"
	"github.com/pvanko/walletgate/internal/model"
)

func postRPC(t *testing.T, url, method, params string) rpcResponse {
	t.Helper()
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"` + method + `","params":` + params + `}`)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestServerPassthrough(t *testing.T) {
	f := newFixture(t, time.Second)
	srv := httptest.NewServer(NewServer("unused", f.slot, nil))
	defer srv.Close()

	out := postRPC(t, srv.URL, "eth_blockNumber", "[]")
	if out.Error != nil {
		t.Fatalf("unexpected error: %+v", out.Error)
	}
	if string(out.Result) != `"0xtxhash"` {
		t.Errorf("unexpected result %s", out.Result)
	}
}

func TestServerRejectedSigningMapsToUserRejected(t *testing.T) {
	f := newFixture(t, 2*time.Second)
	decideOnPublish(t, f, model.OutcomeReject)
	srv := httptest.NewServer(NewServer("unused", f.slot, nil))
	defer srv.Close()

	out := postRPC(t, srv.URL, "eth_sendTransaction", `[{"from":"0xaaa"}]`)
	if out.Error == nil {
		t.Fatal("expected error response")
	}
	if out.Error.Code != codeUserRejected {
		t.Errorf("expected code %d, got %d", codeUserRejected, out.Error.Code)
	}
	if f.wallet.calls.Load() != 0 {
		t.Errorf("wallet invoked on rejection")
	}
}

func TestServerApprovedSigningReturnsWalletResult(t *testing.T) {
	f := newFixture(t, 2*time.Second)
	decideOnPublish(t, f, model.OutcomeApprove)
	srv := httptest.NewServer(NewServer("unused", f.slot, nil))
	defer srv.Close()

	out := postRPC(t, srv.URL, "eth_sendTransaction", `[{"from":"0xaaa"}]`)
	if out.Error != nil {
		t.Fatalf("unexpected error: %+v", out.Error)
	}
	if string(out.Result) != `"0xtxhash"` {
		t.Errorf("unexpected result %s", out.Result)
	}
}

func TestServerDelegateErrorPassthrough(t *testing.T) {
	f := newFixture(t, time.Second)
	f.wallet.result = nil
	f.wallet.err = &delegate.RPCError{Code: -32000, Message: "nonce too low"}
	srv := httptest.NewServer(NewServer("unused", f.slot, nil))
	defer srv.Close()

	out := postRPC(t, srv.URL, "eth_blockNumber", "[]")
	if out.Error == nil {
		t.Fatal("expected error response")
	}
	if out.Error.Code != -32000 || out.Error.Message != "nonce too low" {
		t.Errorf("wallet error not passed through: %+v", out.Error)
	}
}

func TestServerEmptySlot(t *testing.T) {
	srv := httptest.NewServer(NewServer("unused", delegate.NewSlot(), nil))
	defer srv.Close()

	out := postRPC(t, srv.URL, "eth_blockNumber", "[]")
	if out.Error == nil || out.Error.Code != codeDisconnected {
		t.Errorf("expected disconnected error, got %+v", out.Error)
	}
}

func TestServerBadJSON(t *testing.T) {
	f := newFixture(t, time.Second)
	srv := httptest.NewServer(NewServer("unused", f.slot, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader([]byte("{nope")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out rpcResponse
	json.NewDecoder(resp.Body).Decode(&out)
	if out.Error == nil || out.Error.Code != codeParse {
		t.Errorf("expected parse error, got %+v", out.Error)
	}
}

func TestServerDaemonPushReachesHandler(t *testing.T) {
	f := newFixture(t, time.Second)
	got := make(chan model.Envelope, 1)
	s := NewServer("unused", f.slot, nil)
	s.OnMessage(func(env model.Envelope) { got <- env })
	srv := httptest.NewServer(s)
	defer srv.Close()

	body := []byte(`{"kind":"decision_published","decision":{"correlation_id":"r1","outcome":"approve","decided_at":"2026-08-24T00:00:00Z"}}`)
	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	select {
	case env := <-got:
		if env.Kind != model.KindDecisionPublished || env.Decision == nil || env.Decision.CorrelationID != "r1" {
			t.Errorf("unexpected envelope %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestServerPushRejectsInvalidEnvelope(t *testing.T) {
	f := newFixture(t, time.Second)
	s := NewServer("unused", f.slot, nil)
	s.OnMessage(func(model.Envelope) { t.Error("handler invoked for invalid envelope") })
	srv := httptest.NewServer(s)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", bytes.NewReader([]byte(`{"kind":"decision_published"}`)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestServerPushWithoutHandlerIs404(t *testing.T) {
	f := newFixture(t, time.Second)
	srv := httptest.NewServer(NewServer("unused", f.slot, nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/messages", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestServerHealthz(t *testing.T) {
	f := newFixture(t, time.Second)
	srv := httptest.NewServer(NewServer("unused", f.slot, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
