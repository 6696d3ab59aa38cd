package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pvanko/walletgate/internal/model"
)

const clientTimeout = 5 * time.Second

// Client talks to a running decision daemon. It serves as the bridge's
// forwarder and as the review surface's request source and decision
// sink.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the daemon at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: clientTimeout},
	}
}

// Forward delivers an envelope to the daemon.
func (c *Client) Forward(ctx context.Context, env model.Envelope) error {
	resp, err := c.post(ctx, "/v1/messages", env)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("daemon rejected envelope: %s", readError(resp))
}

// Register announces the bridge's decision-push callback to the daemon.
func (c *Client) Register(ctx context.Context, origin, callbackURL string) error {
	resp, err := c.post(ctx, "/v1/bridges", bridgeRegistration{Origin: origin, CallbackURL: callbackURL})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("daemon rejected registration: %s", readError(resp))
}

// Pending fetches the currently pending request, nil if none.
func (c *Client) Pending(ctx context.Context) (*model.InterceptedRequest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/requests/pending", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var out model.InterceptedRequest
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode pending request: %w", err)
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("daemon error: %s", readError(resp))
	}
}

// Decide submits a decision. A stale decision comes back as
// ErrStaleDecision.
func (c *Client) Decide(ctx context.Context, rec model.DecisionRecord) error {
	resp, err := c.post(ctx, "/v1/decisions", rec)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrStaleDecision, rec.CorrelationID)
	default:
		return fmt.Errorf("daemon rejected decision: %s", readError(resp))
	}
}

func (c *Client) post(ctx context.Context, path string, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable: %w", err)
	}
	return resp, nil
}

func readError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &parsed) == nil && parsed.Error != "" {
		return parsed.Error
	}
	return fmt.Sprintf("HTTP %d", resp.StatusCode)
}
