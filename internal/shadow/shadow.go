// Package shadow wraps the wallet's JSON-RPC dispatch so signing
// requests suspend until a human decision arrives. Non-signing calls
// pass straight through to the wallet.
package shadow

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pvanko/walletgate/internal/audit"
	"github.com/pvanko/walletgate/internal/delegate"
	"github.com/pvanko/walletgate/internal/mailbox"
	"github.com/pvanko/walletgate/internal/model"
	"github.com/pvanko/walletgate/internal/pagebus"
)

var (
	// ErrDenied is returned when the reviewer rejects the request.
	ErrDenied = errors.New("signing request rejected")
	// ErrTimedOut is returned when no decision arrives in time.
	// Undecided requests fail closed.
	ErrTimedOut = errors.New("signing request timed out awaiting decision")
	// ErrNoDelegate is returned when no wallet delegate has been captured.
	ErrNoDelegate = errors.New("no wallet delegate available")
)

const (
	defaultPollInterval    = 250 * time.Millisecond
	defaultDecisionTimeout = 5 * time.Minute
)

// Config holds shadow behavior knobs.
type Config struct {
	// Origin identifies the requesting page, attached to every
	// published request.
	Origin          string
	PollInterval    time.Duration
	DecisionTimeout time.Duration
}

// Recorder appends entries to an audit trail. Implemented by audit.Log.
// The shadow keeps its own chain, separate from the daemon's: the
// hash-linked format allows exactly one writer per file.
type Recorder interface {
	Record(e audit.Entry) error
}

// Shadow intercepts signing methods and relays everything else.
// It implements delegate.Delegate so it can be pinned into a
// GuardedSlot in front of the wallet.
type Shadow struct {
	cfg    Config
	slot   *delegate.GuardedSlot
	bus    *pagebus.Bus
	box    *mailbox.Mailbox
	rec    Recorder
	logger *zap.Logger
}

// New creates a Shadow over the given slot. Published requests go out
// on bus; decisions are awaited in box. rec may be nil to disable the
// shadow-side audit trail.
func New(cfg Config, slot *delegate.GuardedSlot, bus *pagebus.Bus, box *mailbox.Mailbox, rec Recorder, logger *zap.Logger) *Shadow {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = defaultDecisionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shadow{cfg: cfg, slot: slot, bus: bus, box: box, rec: rec, logger: logger}
}

// Dispatch routes one call. Signing methods suspend until a matching
// decision arrives; the wallet is invoked at most once per call, and
// only after an approval. All other methods go straight through.
func (s *Shadow) Dispatch(ctx context.Context, call model.Call) (json.RawMessage, error) {
	if !model.Intercepted(call.Method) {
		d := s.slot.Current()
		if d == nil {
			return nil, ErrNoDelegate
		}
		return d.Dispatch(ctx, call)
	}
	return s.intercept(ctx, call)
}

func (s *Shadow) intercept(ctx context.Context, call model.Call) (json.RawMessage, error) {
	req := model.InterceptedRequest{
		CorrelationID: uuid.NewString(),
		Method:        call.Method,
		Params:        call.Params,
		Origin:        s.cfg.Origin,
		CreatedAt:     time.Now().UTC(),
	}

	s.bus.Publish(model.Envelope{
		Kind:    model.KindRequestPublished,
		Origin:  s.cfg.Origin,
		Request: &req,
	})
	s.logger.Info("signing request suspended",
		zap.String("correlation_id", req.CorrelationID),
		zap.String("method", req.Method))

	deadline := time.NewTimer(s.cfg.DecisionTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(s.cfg.PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			s.logger.Warn("signing request timed out",
				zap.String("correlation_id", req.CorrelationID))
			return nil, ErrTimedOut
		case <-tick.C:
			rec, ok := s.box.TakeMatching(req.CorrelationID)
			if !ok {
				continue
			}
			if rec.Outcome != model.OutcomeApprove {
				s.logger.Info("signing request rejected",
					zap.String("correlation_id", req.CorrelationID))
				return nil, ErrDenied
			}
			d := s.slot.Current()
			if d == nil {
				return nil, ErrNoDelegate
			}
			s.logger.Info("signing request approved, forwarding",
				zap.String("correlation_id", req.CorrelationID))
			res, err := d.Dispatch(ctx, call)
			if err == nil {
				s.record(audit.Entry{
					Event:         audit.EventForwarded,
					CorrelationID: req.CorrelationID,
					Method:        req.Method,
					Origin:        req.Origin,
				})
			}
			return res, err
		}
	}
}

func (s *Shadow) record(entry audit.Entry) {
	if s.rec == nil {
		return
	}
	if err := s.rec.Record(entry); err != nil {
		s.logger.Error("audit write failed", zap.Error(err))
	}
}
