package surface

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pvanko/walletgate/internal/model"
	"github.com/pvanko/walletgate/internal/risk"
)

var (
	// ErrNothingPending is returned when no request awaits a decision.
	ErrNothingPending = errors.New("no request pending")
	// ErrStale is returned when the pending request is too old to act on.
	ErrStale = errors.New("pending request is stale")
)

// Source yields the currently pending request, nil if none.
type Source interface {
	Pending(ctx context.Context) (*model.InterceptedRequest, error)
}

// Sink accepts a decision for delivery to the daemon.
type Sink interface {
	Decide(ctx context.Context, rec model.DecisionRecord) error
}

// Assessor scores transactions and addresses. Implemented by risk.Client.
type Assessor interface {
	AssessTransaction(ctx context.Context, in risk.TxInput) (*risk.Assessment, error)
	AssessAccount(ctx context.Context, address string) (*risk.AccountAssessment, error)
}

// RiskSummary pairs the transaction verdict with the counterparty's
// account reputation. Account is nil when the request names no
// counterparty or the account lookup failed.
type RiskSummary struct {
	Tx      *risk.Assessment
	Account *risk.AccountAssessment
}

// Session is one review of one request. The correlation ID is captured
// at load time: if the pending request is replaced while the human
// deliberates, the eventual decision still carries the old ID and the
// daemon drops it instead of applying it to the newcomer.
type Session struct {
	req     model.InterceptedRequest
	sink    Sink
	verdict *RiskSummary
}

// Load captures the pending request. Returns ErrNothingPending when
// the store is empty and ErrStale when the request is older than
// staleAfter (zero disables the check).
func Load(ctx context.Context, src Source, sink Sink, staleAfter time.Duration) (*Session, error) {
	req, err := src.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("surface: load pending request: %w", err)
	}
	if req == nil {
		return nil, ErrNothingPending
	}
	if staleAfter > 0 && req.Age(time.Now().UTC()) > staleAfter {
		return nil, fmt.Errorf("%w: %s created %s ago", ErrStale, req.CorrelationID, req.Age(time.Now().UTC()).Round(time.Second))
	}
	return &Session{req: *req, sink: sink}, nil
}

// Request returns the request as captured at load time.
func (s *Session) Request() model.InterceptedRequest {
	return s.req
}

// Assess scores the loaded request. An unreachable or failing risk
// service is reported as an error the caller may ignore: the human can
// always decide without a score. The counterparty's account reputation
// is fetched best-effort; its failure never fails the assessment.
func (s *Session) Assess(ctx context.Context, a Assessor) (*RiskSummary, error) {
	in := risk.FromRequest(&s.req)
	tx, err := a.AssessTransaction(ctx, in)
	if err != nil {
		return nil, err
	}
	sum := &RiskSummary{Tx: tx}
	if in.To != "" {
		if acct, err := a.AssessAccount(ctx, in.To); err == nil {
			sum.Account = acct
		}
	}
	s.verdict = sum
	return sum, nil
}

// Decide submits the outcome for the load-time request. The assessment
// the reviewer saw, if any, rides along on the record.
func (s *Session) Decide(ctx context.Context, outcome model.Outcome) error {
	rec := model.DecisionRecord{
		CorrelationID: s.req.CorrelationID,
		Outcome:       outcome,
		DecidedAt:     time.Now().UTC(),
	}
	if s.verdict != nil && s.verdict.Tx != nil {
		score := s.verdict.Tx.Score
		rec.RiskScore = &score
		rec.Reason = s.verdict.Tx.Explanation
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.sink.Decide(ctx, rec)
}
