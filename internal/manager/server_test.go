package manager

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pvanko/walletgate/internal/model"
	"github.com/pvanko/walletgate/internal/store"
)

func newAPI(t *testing.T) (*Client, *Manager) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	mgr := New(Config{}, st, newFakeHost(), nil, nil, nil, nil)
	srv := httptest.NewServer(NewServer("unused", mgr, nil).Handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), mgr
}

func TestForwardAndPendingRoundTrip(t *testing.T) {
	c, _ := newAPI(t)
	ctx := context.Background()

	req := request("r1")
	if err := c.Forward(ctx, model.Envelope{Kind: model.KindRequestPublished, Origin: "page-1", Request: &req}); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	got, err := c.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if got == nil || got.CorrelationID != "r1" {
		t.Errorf("pending = %+v, want r1", got)
	}
	if string(got.Params) != string(req.Params) {
		t.Errorf("params altered in transit: %s", got.Params)
	}
}

func TestPendingEmpty(t *testing.T) {
	c, _ := newAPI(t)
	got, err := c.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestDecideRoundTrip(t *testing.T) {
	c, _ := newAPI(t)
	ctx := context.Background()

	req := request("r1")
	if err := c.Forward(ctx, model.Envelope{Kind: model.KindRequestPublished, Request: &req}); err != nil {
		t.Fatal(err)
	}
	if err := c.Decide(ctx, decision("r1", model.OutcomeApprove)); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	got, err := c.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("request still pending after decision: %+v", got)
	}
}

func TestDecideStaleComesBackAsConflict(t *testing.T) {
	c, _ := newAPI(t)
	ctx := context.Background()

	req := request("r1")
	if err := c.Forward(ctx, model.Envelope{Kind: model.KindRequestPublished, Request: &req}); err != nil {
		t.Fatal(err)
	}

	err := c.Decide(ctx, decision("r0", model.OutcomeApprove))
	if !errors.Is(err, ErrStaleDecision) {
		t.Fatalf("expected ErrStaleDecision, got %v", err)
	}
}

func TestRegisterAndPushRoundTrip(t *testing.T) {
	c, _ := newAPI(t)
	ctx := context.Background()

	var mu sync.Mutex
	var pushed []model.Envelope
	callback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env model.Envelope
		json.NewDecoder(r.Body).Decode(&env)
		mu.Lock()
		pushed = append(pushed, env)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer callback.Close()

	if err := c.Register(ctx, "page-1", callback.URL); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	req := request("r1")
	if err := c.Forward(ctx, model.Envelope{Kind: model.KindRequestPublished, Origin: "page-1", Request: &req}); err != nil {
		t.Fatal(err)
	}
	if err := c.Decide(ctx, decision("r1", model.OutcomeApprove)); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(pushed) == 1
	}, "decision never pushed to registered bridge")
	mu.Lock()
	defer mu.Unlock()
	if pushed[0].Decision == nil || pushed[0].Decision.CorrelationID != "r1" {
		t.Errorf("unexpected push %+v", pushed[0])
	}
}

func TestRegisterRejectsIncomplete(t *testing.T) {
	c, _ := newAPI(t)
	if err := c.Register(context.Background(), "", "http://127.0.0.1:1"); err == nil {
		t.Error("expected error for missing origin")
	}
}

func TestForwardInvalidEnvelope(t *testing.T) {
	c, _ := newAPI(t)
	err := c.Forward(context.Background(), model.Envelope{Kind: model.KindRequestPublished})
	if err == nil {
		t.Error("expected error for envelope without request")
	}
}

func TestClientUnreachableDaemon(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	if _, err := c.Pending(context.Background()); err == nil {
		t.Error("expected error for unreachable daemon")
	}
	if err := c.Decide(context.Background(), decision("r1", model.OutcomeApprove)); err == nil {
		t.Error("expected error for unreachable daemon")
	}
}
