package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Outcome is the human resolution of one intercepted request.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeReject  Outcome = "reject"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeApprove || o == OutcomeReject
}

// Call is a single wallet operation: a method name plus opaque params.
// Params are never inspected by the protocol and are forwarded verbatim
// to the delegate on approval.
type Call struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// InterceptedRequest is the unit of work: one suspended wallet call
// awaiting a decision, bound to a correlation ID that is never reused.
type InterceptedRequest struct {
	CorrelationID string          `json:"correlation_id"`
	Method        string          `json:"method"`
	Params        json.RawMessage `json:"params,omitempty"`
	Origin        string          `json:"origin,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Validate checks the fields a request must carry to be actionable.
func (r *InterceptedRequest) Validate() error {
	if r.CorrelationID == "" {
		return fmt.Errorf("request missing correlation_id")
	}
	if r.Method == "" {
		return fmt.Errorf("request %s missing method", r.CorrelationID)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("request %s missing created_at", r.CorrelationID)
	}
	return nil
}

// Age returns how long ago the request was created.
func (r *InterceptedRequest) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// DecisionRecord resolves exactly one InterceptedRequest. A record whose
// correlation ID does not match the currently pending request is dropped.
// RiskScore and Reason carry the assessment the reviewer saw, when one
// was fetched; headless decisions leave them empty.
type DecisionRecord struct {
	CorrelationID string    `json:"correlation_id"`
	Outcome       Outcome   `json:"outcome"`
	DecidedAt     time.Time `json:"decided_at"`
	RiskScore     *float64  `json:"risk_score,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// Validate checks the fields a decision must carry to be actionable.
func (d *DecisionRecord) Validate() error {
	if d.CorrelationID == "" {
		return fmt.Errorf("decision missing correlation_id")
	}
	if !d.Outcome.Valid() {
		return fmt.Errorf("decision %s has unknown outcome %q", d.CorrelationID, d.Outcome)
	}
	if d.RiskScore != nil && (*d.RiskScore < 0 || *d.RiskScore > 1) {
		return fmt.Errorf("decision %s has risk score %v out of range", d.CorrelationID, *d.RiskScore)
	}
	return nil
}

// SurfaceHandle identifies the single live decision surface: the surface
// itself plus its top-level container. Owned exclusively by the manager.
type SurfaceHandle struct {
	ID          string `json:"id"`
	ContainerID string `json:"container_id"`
}

// MessageKind tags the variants carried across context boundaries.
type MessageKind string

const (
	KindRequestPublished  MessageKind = "request_published"
	KindDecisionPublished MessageKind = "decision_published"
	KindSurfaceClosed     MessageKind = "surface_closed"
)

// Envelope is the one tagged-variant message type shared by the page bus
// and the manager channel. Each boundary validates before acting.
type Envelope struct {
	Kind     MessageKind         `json:"kind"`
	Origin   string              `json:"origin,omitempty"`
	Request  *InterceptedRequest `json:"request,omitempty"`
	Decision *DecisionRecord     `json:"decision,omitempty"`
}

// Validate checks that the envelope carries the payload its kind requires.
func (e *Envelope) Validate() error {
	switch e.Kind {
	case KindRequestPublished:
		if e.Request == nil {
			return fmt.Errorf("%s envelope missing request", e.Kind)
		}
		return e.Request.Validate()
	case KindDecisionPublished:
		if e.Decision == nil {
			return fmt.Errorf("%s envelope missing decision", e.Kind)
		}
		return e.Decision.Validate()
	case KindSurfaceClosed:
		return nil
	default:
		return fmt.Errorf("unknown envelope kind %q", e.Kind)
	}
}
