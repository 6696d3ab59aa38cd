package audit

// Event classifies one audit line.
type Event string

const (
	// EventIntercepted records a wallet call suspended for review.
	EventIntercepted Event = "intercepted"
	// EventDecision records a human decision reaching the manager.
	EventDecision Event = "decision"
	// EventStaleDrop records a decision dropped for correlation mismatch.
	EventStaleDrop Event = "stale_drop"
	// EventForwarded records an approved call forwarded to the delegate.
	EventForwarded Event = "forwarded"
	// EventTimeout records a call that expired undecided.
	EventTimeout Event = "timeout"
)

// Entry is one line in the hash-chained JSONL audit log.
// All fields are concrete types (no map[string]any) so json.Marshal
// produces a deterministic field order for reproducible hashing.
type Entry struct {
	Timestamp     string `json:"ts"`
	Event         Event  `json:"event"`
	CorrelationID string `json:"correlation_id"`
	Method        string `json:"method,omitempty"`
	Origin        string `json:"origin,omitempty"`
	Outcome       string `json:"outcome,omitempty"`
	Detail        string `json:"detail,omitempty"`
	PrevHash      string `json:"prev_hash"`
}
