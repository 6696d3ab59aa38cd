package notify

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return formatGeneric(event)
	}
}

func formatGeneric(event Event) ([]byte, error) {
	return json.Marshal(event)
}

func formatSlack(event Event) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("walletgate: %s", event.Outcome),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Method:* %s", event.Method)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Origin:* %s", event.Origin)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Risk:* %.2f", event.RiskScore)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", event.Reason)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event Event) ([]byte, error) {
	severity := "info"
	switch {
	case event.RiskScore >= 0.9:
		severity = "critical"
	case event.RiskScore >= 0.7:
		severity = "error"
	case event.RiskScore >= 0.4:
		severity = "warning"
	}

	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("walletgate %s: %s", event.Outcome, event.Method),
			"severity": severity,
			"source":   "walletgate",
			"custom_details": map[string]any{
				"method":         event.Method,
				"origin":         event.Origin,
				"risk_score":     event.RiskScore,
				"reason":         event.Reason,
				"correlation_id": event.CorrelationID,
			},
		},
	}
	return json.Marshal(payload)
}
