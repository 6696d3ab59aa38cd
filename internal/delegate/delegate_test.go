package delegate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pvanko/walletgate/internal/model"
)

func TestDispatchReturnsResult(t *testing.T) {
	var gotMethod string
	var gotParams string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		gotMethod = req.Method
		gotParams = string(req.Params)
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "0xabc",
		})
	}))
	defer srv.Close()

	d := NewRPC(srv.URL)
	params := json.RawMessage(`[{"from":"0x1","to":"0x2"}]`)
	result, err := d.Dispatch(context.Background(), model.Call{Method: "eth_sendTransaction", Params: params})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if string(result) != `"0xabc"` {
		t.Errorf("expected result \"0xabc\", got %s", result)
	}
	if gotMethod != "eth_sendTransaction" {
		t.Errorf("expected method forwarded, got %s", gotMethod)
	}
	if gotParams != string(params) {
		t.Errorf("params not forwarded verbatim: %s", gotParams)
	}
}

func TestDispatchRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"insufficient funds"}}`))
	}))
	defer srv.Close()

	d := NewRPC(srv.URL)
	_, err := d.Dispatch(context.Background(), model.Call{Method: "eth_sendTransaction"})
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %v", err)
	}
	if rpcErr.Code != -32000 {
		t.Errorf("expected code -32000, got %d", rpcErr.Code)
	}
}

func TestDispatchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewRPC(srv.URL)
	if _, err := d.Dispatch(context.Background(), model.Call{Method: "eth_sign"}); err == nil {
		t.Error("expected error for HTTP 502")
	}
}

func TestDispatchUnreachable(t *testing.T) {
	d := NewRPC("http://127.0.0.1:1")
	if _, err := d.Dispatch(context.Background(), model.Call{Method: "eth_sign"}); err == nil {
		t.Error("expected error for unreachable delegate")
	}
}

type fakeDelegate struct{ name string }

func (f *fakeDelegate) Dispatch(ctx context.Context, call model.Call) (json.RawMessage, error) {
	return json.RawMessage(`"` + f.name + `"`), nil
}

func TestSlotPinThenOffer(t *testing.T) {
	slot := NewSlot()
	shadow := &fakeDelegate{name: "shadow"}
	wallet := &fakeDelegate{name: "wallet"}

	slot.Pin(shadow)
	slot.Offer(wallet)

	if slot.Provider() != shadow {
		t.Error("third-party write displaced the pinned shadow")
	}
	if slot.Current() != wallet {
		t.Error("expected wallet captured as delegate")
	}
}

func TestSlotOfferBeforePin(t *testing.T) {
	slot := NewSlot()
	wallet := &fakeDelegate{name: "wallet"}
	slot.Offer(wallet)

	if slot.Provider() != wallet {
		t.Error("expected raw delegate before shadow install")
	}

	shadow := &fakeDelegate{name: "shadow"}
	slot.Pin(shadow)
	if slot.Provider() != shadow {
		t.Error("expected shadow after Pin")
	}
	if slot.Current() != wallet {
		t.Error("expected pre-existing wallet kept as delegate")
	}
}

func TestSlotRecapturesFreshest(t *testing.T) {
	slot := NewSlot()
	slot.Pin(&fakeDelegate{name: "shadow"})

	first := &fakeDelegate{name: "wallet-1"}
	second := &fakeDelegate{name: "wallet-2"}
	slot.Offer(first)
	slot.Offer(second)

	if slot.Current() != second {
		t.Error("expected freshest delegate reference")
	}
}

func TestSlotEmpty(t *testing.T) {
	slot := NewSlot()
	if slot.Current() != nil {
		t.Error("expected nil delegate from empty slot")
	}
	if slot.Provider() != nil {
		t.Error("expected nil provider from empty slot")
	}
}

func TestSlotPinOnce(t *testing.T) {
	slot := NewSlot()
	first := &fakeDelegate{name: "shadow-1"}
	slot.Pin(first)
	slot.Pin(&fakeDelegate{name: "shadow-2"})
	if slot.Provider() != first {
		t.Error("second Pin must not replace the first shadow")
	}
}
