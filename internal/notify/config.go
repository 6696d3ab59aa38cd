package notify

// WebhookConfig defines a notification destination.
type WebhookConfig struct {
	URL     string            `yaml:"url"     json:"url"`
	Format  string            `yaml:"format"  json:"format"` // "generic", "slack", "pagerduty"
	Events  []string          `yaml:"events"  json:"events"` // ["approve", "reject", "timeout", "stale_drop"]
	Headers map[string]string `yaml:"headers" json:"headers"`
}

// Event is the payload sent to webhook endpoints when a signing
// request is resolved.
type Event struct {
	Timestamp     string  `json:"timestamp"`
	CorrelationID string  `json:"correlation_id"`
	Method        string  `json:"method"`
	Origin        string  `json:"origin"`
	Outcome       string  `json:"outcome"`
	Reason        string  `json:"reason,omitempty"`
	RiskScore     float64 `json:"risk_score,omitempty"`
	Type          string  `json:"type,omitempty"` // "timeout", "stale_drop"
}
