// Package risk calls the external risk-assessment collaborator. The
// collaborator is a black box: walletgate sends transaction-shaped fields
// and receives a normalized score in [0,1] plus an optional explanation.
// Failure here never blocks the decision path.
package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const requestTimeout = 20 * time.Second

// Client talks to the risk-assessment service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the given service base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// TxInput carries the fields extracted from an intercepted call's params.
// Value and GasPrice accept decimal or 0x-hex strings.
type TxInput struct {
	From            string   `json:"from_address"`
	To              string   `json:"to_address"`
	Value           string   `json:"value,omitempty"`
	GasPrice        string   `json:"gasPrice,omitempty"`
	Input           string   `json:"input,omitempty"`
	FunctionCalls   []string `json:"function_call,omitempty"`
	ContractAddress string   `json:"contract_address,omitempty"`
}

type txRequest struct {
	TxInput
	Explain        bool `json:"explain"`
	ExplainWithLLM bool `json:"explain_with_llm"`
}

// Assessment is the collaborator's verdict on one transaction.
type Assessment struct {
	Score       float64 `json:"transaction_scam_probability"`
	Mode        string  `json:"detection_mode,omitempty"`
	Explanation string  `json:"llm_explanation,omitempty"`
}

// AccountAssessment is the collaborator's verdict on an address.
type AccountAssessment struct {
	Score float64 `json:"account_scam_probability"`
	Mode  string  `json:"detection_mode,omitempty"`
}

// AssessTransaction scores a pending transaction.
func (c *Client) AssessTransaction(ctx context.Context, in TxInput) (*Assessment, error) {
	var out Assessment
	if err := c.post(ctx, "/detect/transaction", txRequest{TxInput: in, Explain: true, ExplainWithLLM: true}, &out); err != nil {
		return nil, err
	}
	if out.Score < 0 || out.Score > 1 {
		return nil, fmt.Errorf("risk score %v out of range", out.Score)
	}
	return &out, nil
}

// AssessAccount scores an address's history.
func (c *Client) AssessAccount(ctx context.Context, address string) (*AccountAssessment, error) {
	body := map[string]any{"account_address": address, "explain": false}
	var out AccountAssessment
	if err := c.post(ctx, "/detect/account", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("risk service unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read risk response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("risk service returned HTTP %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode risk response: %w", err)
	}
	return nil
}
