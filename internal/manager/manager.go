// Package manager is the decision daemon's core: it owns the single
// pending request, the single live decision surface, and the guard
// that keeps stale decisions from resolving the wrong request.
package manager

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pvanko/walletgate/internal/audit"
	"github.com/pvanko/walletgate/internal/model"
	"github.com/pvanko/walletgate/internal/notify"
	"github.com/pvanko/walletgate/internal/store"
	"github.com/pvanko/walletgate/internal/surface"
)

var (
	// ErrStaleDecision is returned when a decision's correlation ID does
	// not match the currently pending request. Stale decisions are
	// dropped, never applied.
	ErrStaleDecision = errors.New("decision does not match pending request")
)

// Config holds daemon behavior knobs.
type Config struct {
	// StaleAfter expires pending requests that were never decided. The
	// shadow side has already timed out by then; this is cleanup so the
	// next reviewer does not face a dead request. Zero disables expiry.
	StaleAfter time.Duration
}

// Manager coordinates requests, decisions and the surface lifecycle.
type Manager struct {
	cfg      Config
	st       *store.Store
	primary  surface.Host
	fallback surface.Host
	auditLog *audit.Log
	notifier *notify.Dispatcher
	logger   *zap.Logger
	push     *http.Client

	mu         sync.Mutex
	pending    *model.InterceptedRequest
	handle     *model.SurfaceHandle
	handleHost surface.Host
	callbacks  map[string]string
}

// New creates a Manager. fallback, auditLog and notifier may be nil.
// A request persisted by a previous run is recovered as pending.
func New(cfg Config, st *store.Store, primary, fallback surface.Host, auditLog *audit.Log, notifier *notify.Dispatcher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:       cfg,
		st:        st,
		primary:   primary,
		fallback:  fallback,
		auditLog:  auditLog,
		notifier:  notifier,
		logger:    logger,
		push:      &http.Client{Timeout: 5 * time.Second},
		callbacks: make(map[string]string),
	}
	if req, err := st.Request(); err == nil && req != nil {
		m.pending = req
		m.logger.Info("recovered pending request",
			zap.String("correlation_id", req.CorrelationID))
	}
	return m
}

// HandleEnvelope processes one message from a bridge.
func (m *Manager) HandleEnvelope(ctx context.Context, env model.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	switch env.Kind {
	case model.KindRequestPublished:
		return m.onIntercepted(ctx, *env.Request)
	case model.KindDecisionPublished:
		return m.Decide(ctx, *env.Decision)
	case model.KindSurfaceClosed:
		m.surfaceClosed(nil)
		return nil
	}
	return fmt.Errorf("unhandled envelope kind %q", env.Kind)
}

// onIntercepted replaces whatever was pending with the new request.
// Pre-emption, not queueing: the displaced request is gone, and its
// page-side caller will time out. Any leftover decision is cleared
// before the new request becomes visible so it can never be mistaken
// for a decision about the newcomer.
func (m *Manager) onIntercepted(ctx context.Context, req model.InterceptedRequest) error {
	m.record(audit.Entry{
		Event:         audit.EventIntercepted,
		CorrelationID: req.CorrelationID,
		Method:        req.Method,
		Origin:        req.Origin,
	})

	m.mu.Lock()
	if m.pending != nil && m.pending.CorrelationID != req.CorrelationID {
		m.logger.Info("pending request pre-empted",
			zap.String("displaced", m.pending.CorrelationID),
			zap.String("by", req.CorrelationID))
	}
	if err := m.st.ClearDecision(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("clear prior decision: %w", err)
	}
	if err := m.st.PutRequest(req); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("persist request: %w", err)
	}
	m.pending = &req
	m.mu.Unlock()

	m.ensureSurface(ctx)
	return nil
}

// ensureSurface tears down any live surface and opens a fresh one, so
// the reviewer always faces the current request. Primary host first,
// fallback second; if both fail the request stays pending and a later
// CLI review can still decide it.
func (m *Manager) ensureSurface(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()

	handle, err := m.primary.Open(ctx)
	host := m.primary
	if err != nil && m.fallback != nil {
		m.logger.Warn("primary surface host failed, trying fallback", zap.Error(err))
		handle, err = m.fallback.Open(ctx)
		host = m.fallback
	}
	if err != nil {
		m.logger.Error("no surface host available, request stays pending", zap.Error(err))
		return
	}
	m.handle = &handle
	m.handleHost = host
}

// Decide applies a decision to the pending request. A mismatched
// correlation ID means the reviewer decided a request that has since
// been replaced: the decision is dropped and logged.
func (m *Manager) Decide(ctx context.Context, rec model.DecisionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.pending == nil || m.pending.CorrelationID != rec.CorrelationID {
		pendingID := ""
		if m.pending != nil {
			pendingID = m.pending.CorrelationID
		}
		m.mu.Unlock()
		m.record(audit.Entry{
			Event:         audit.EventStaleDrop,
			CorrelationID: rec.CorrelationID,
			Outcome:       string(rec.Outcome),
			Detail:        fmt.Sprintf("pending=%s", pendingID),
		})
		m.logger.Warn("stale decision dropped",
			zap.String("correlation_id", rec.CorrelationID),
			zap.String("pending", pendingID))
		return ErrStaleDecision
	}

	req := *m.pending
	if err := m.st.PutDecision(rec); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("persist decision: %w", err)
	}
	if err := m.st.ClearRequest(); err != nil {
		m.logger.Error("clear resolved request", zap.Error(err))
	}
	m.pending = nil
	m.teardownLocked()
	callback := m.callbacks[req.Origin]
	m.mu.Unlock()

	m.record(audit.Entry{
		Event:         audit.EventDecision,
		CorrelationID: rec.CorrelationID,
		Method:        req.Method,
		Origin:        req.Origin,
		Outcome:       string(rec.Outcome),
	})
	event := notify.Event{
		CorrelationID: rec.CorrelationID,
		Method:        req.Method,
		Origin:        req.Origin,
		Outcome:       string(rec.Outcome),
		Reason:        rec.Reason,
	}
	if rec.RiskScore != nil {
		event.RiskScore = *rec.RiskScore
	}
	m.notify(event)
	if callback != "" {
		go m.pushDecision(callback, rec)
	}
	m.logger.Info("decision recorded",
		zap.String("correlation_id", rec.CorrelationID),
		zap.String("outcome", string(rec.Outcome)))
	return nil
}

// RegisterBridge records where decisions for an origin can be pushed.
// The push is a latency shortcut; the persisted store remains the
// delivery path a bridge can rely on.
func (m *Manager) RegisterBridge(origin, callbackURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[origin] = callbackURL
	m.logger.Info("bridge registered",
		zap.String("origin", origin),
		zap.String("callback", callbackURL))
}

// pushDecision delivers a decision envelope straight to a bridge's
// callback. Failures are logged and otherwise ignored: the bridge's
// store watcher picks the decision up regardless.
func (m *Manager) pushDecision(url string, rec model.DecisionRecord) {
	env := model.Envelope{Kind: model.KindDecisionPublished, Decision: &rec}
	body, err := json.Marshal(env)
	if err != nil {
		m.logger.Error("encode decision push", zap.Error(err))
		return
	}
	resp, err := m.push.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		m.logger.Warn("decision push failed",
			zap.String("callback", url), zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.logger.Warn("decision push rejected",
			zap.String("callback", url), zap.Int("status", resp.StatusCode))
	}
}

// Pending returns the currently pending request, nil if none.
func (m *Manager) Pending() *model.InterceptedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return nil
	}
	req := *m.pending
	return &req
}

// surfaceClosed handles the user dismissing the surface without
// deciding. Only the handle is cleared: the request stays pending and
// the next request (or a CLI review) picks it back up.
func (m *Manager) surfaceClosed(handle *model.SurfaceHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil {
		return
	}
	if handle != nil && handle.ID != m.handle.ID {
		return
	}
	m.logger.Info("surface closed without decision",
		zap.String("surface_id", m.handle.ID))
	m.handle = nil
	m.handleHost = nil
}

// Run watches for user-closed surfaces and expires abandoned requests.
// Blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	var expiry *time.Ticker
	var expiryC <-chan time.Time
	if m.cfg.StaleAfter > 0 {
		expiry = time.NewTicker(m.cfg.StaleAfter / 4)
		expiryC = expiry.C
		defer expiry.Stop()
	}

	fallbackClosed := make(<-chan model.SurfaceHandle)
	if m.fallback != nil {
		fallbackClosed = m.fallback.Closed()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case h := <-m.primary.Closed():
			m.surfaceClosed(&h)
		case h := <-fallbackClosed:
			m.surfaceClosed(&h)
		case <-expiryC:
			m.expireStale()
		}
	}
}

// expireStale drops a pending request nobody decided in time.
func (m *Manager) expireStale() {
	m.mu.Lock()
	if m.pending == nil || m.pending.Age(time.Now().UTC()) <= m.cfg.StaleAfter {
		m.mu.Unlock()
		return
	}
	req := *m.pending
	if err := m.st.ClearRequest(); err != nil {
		m.logger.Error("clear expired request", zap.Error(err))
	}
	m.pending = nil
	m.teardownLocked()
	m.mu.Unlock()

	m.record(audit.Entry{
		Event:         audit.EventTimeout,
		CorrelationID: req.CorrelationID,
		Method:        req.Method,
		Origin:        req.Origin,
	})
	m.notify(notify.Event{
		CorrelationID: req.CorrelationID,
		Method:        req.Method,
		Origin:        req.Origin,
		Type:          "timeout",
	})
	m.logger.Warn("pending request expired undecided",
		zap.String("correlation_id", req.CorrelationID))
}

// teardownLocked closes the live surface. Callers hold m.mu.
func (m *Manager) teardownLocked() {
	if m.handle == nil {
		return
	}
	if err := m.handleHost.Close(*m.handle); err != nil {
		m.logger.Warn("surface teardown failed", zap.Error(err))
	}
	m.handle = nil
	m.handleHost = nil
}

func (m *Manager) record(entry audit.Entry) {
	if m.auditLog == nil {
		return
	}
	if err := m.auditLog.Record(entry); err != nil {
		m.logger.Error("audit write failed", zap.Error(err))
	}
}

func (m *Manager) notify(event notify.Event) {
	if m.notifier == nil {
		return
	}
	event.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	m.notifier.Dispatch(event)
}
