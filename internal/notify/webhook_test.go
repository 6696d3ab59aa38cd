package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatchMatchesOutcome(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]WebhookConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"reject"}},
	})

	d.Dispatch(Event{Outcome: "reject", Method: "eth_sendTransaction", Origin: "page-1"})
	time.Sleep(200 * time.Millisecond)

	if called.Load() != 1 {
		t.Errorf("expected 1 call, got %d", called.Load())
	}
}

func TestDispatchSkipsNonMatching(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]WebhookConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"reject"}},
	})

	d.Dispatch(Event{Outcome: "approve", Method: "personal_sign"})
	time.Sleep(200 * time.Millisecond)

	if called.Load() != 0 {
		t.Errorf("expected 0 calls for non-matching event, got %d", called.Load())
	}
}

func TestDispatchMatchesTimeoutType(t *testing.T) {
	var called atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]WebhookConfig{
		{URL: srv.URL, Format: "generic", Events: []string{"timeout"}},
	})

	d.Dispatch(Event{Outcome: "", Type: "timeout", Method: "eth_sign"})
	time.Sleep(200 * time.Millisecond)

	if called.Load() != 1 {
		t.Errorf("expected 1 call for timeout type match, got %d", called.Load())
	}
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := Send(WebhookConfig{URL: srv.URL, Format: "generic"}, Event{Outcome: "reject"})
	if err != nil {
		t.Errorf("expected success after retries, got: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := Send(WebhookConfig{URL: srv.URL, Format: "generic"}, Event{Outcome: "reject"})
	if err == nil {
		t.Error("expected error on 400, got nil")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 attempt (no retry on 4xx), got %d", attempts.Load())
	}
}

func TestFormatGenericJSON(t *testing.T) {
	event := Event{
		Timestamp:     "2026-01-15T14:00:00.000Z",
		CorrelationID: "r1",
		Method:        "eth_sendTransaction",
		Origin:        "page-1",
		Outcome:       "reject",
		Reason:        "destination flagged",
		RiskScore:     0.91,
	}

	data, err := FormatPayload("generic", event)
	if err != nil {
		t.Fatal(err)
	}

	var parsed Event
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("generic format is not valid JSON: %v", err)
	}
	if parsed.CorrelationID != "r1" {
		t.Errorf("expected correlation_id r1, got %s", parsed.CorrelationID)
	}
	if parsed.Outcome != "reject" {
		t.Errorf("expected outcome reject, got %s", parsed.Outcome)
	}
}

func TestFormatSlackBlockKit(t *testing.T) {
	data, err := FormatPayload("slack", Event{
		Method:    "eth_sendTransaction",
		Origin:    "page-1",
		Outcome:   "reject",
		Reason:    "destination flagged",
		RiskScore: 0.91,
	})
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("slack format is not valid JSON: %v", err)
	}

	blocks, ok := parsed["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in slack payload")
	}
	if len(blocks) < 2 {
		t.Fatalf("expected at least 2 blocks, got %d", len(blocks))
	}

	header, _ := blocks[0].(map[string]any)
	if header["type"] != "header" {
		t.Errorf("expected header block, got %s", header["type"])
	}

	section, _ := blocks[1].(map[string]any)
	fields, ok := section["fields"].([]any)
	if !ok || len(fields) < 4 {
		t.Errorf("expected at least 4 fields in section, got %v", fields)
	}
}

func TestFormatPagerDutySeverity(t *testing.T) {
	data, err := FormatPayload("pagerduty", Event{
		Method:    "eth_sendTransaction",
		Outcome:   "reject",
		RiskScore: 0.95,
	})
	if err != nil {
		t.Fatal(err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("pagerduty format is not valid JSON: %v", err)
	}
	if parsed["event_action"] != "trigger" {
		t.Errorf("expected event_action trigger, got %v", parsed["event_action"])
	}

	payload, ok := parsed["payload"].(map[string]any)
	if !ok {
		t.Fatal("expected payload object")
	}
	if payload["severity"] != "critical" {
		t.Errorf("expected severity critical for score 0.95, got %v", payload["severity"])
	}
	if payload["source"] != "walletgate" {
		t.Errorf("expected source walletgate, got %v", payload["source"])
	}
}

func TestNewDispatcherNilOnEmpty(t *testing.T) {
	if d := NewDispatcher(nil); d != nil {
		t.Error("expected nil dispatcher for empty configs")
	}
	if d := NewDispatcher([]WebhookConfig{}); d != nil {
		t.Error("expected nil dispatcher for zero-length configs")
	}
}
