// Package bridge relays traffic between the page-side channels and the
// decision daemon. Requests published on the page bus are forwarded to
// the daemon; decisions arriving from the daemon (via the shared store
// or a direct message) are posted into the page mailbox.
//
// Delivery toward the mailbox is at-least-once: a decision observed
// twice is posted twice, and the mailbox's correlation matching makes
// the duplicate harmless.
package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pvanko/walletgate/internal/mailbox"
	"github.com/pvanko/walletgate/internal/model"
	"github.com/pvanko/walletgate/internal/pagebus"
	"github.com/pvanko/walletgate/internal/store"
)

// ErrAlreadyStarted is returned when Start is called twice. Each channel
// gets exactly one persistent listener.
var ErrAlreadyStarted = errors.New("bridge already started")

const (
	relayAttempts = 3
	relayBackoff  = 200 * time.Millisecond
)

// Forwarder delivers envelopes to the decision daemon and registers
// this bridge as a push target for decisions.
type Forwarder interface {
	Forward(ctx context.Context, env model.Envelope) error
	Register(ctx context.Context, origin, callbackURL string) error
}

// Config holds bridge settings.
type Config struct {
	// Origin is stamped onto every envelope forwarded to the daemon.
	Origin string
	// CallbackURL is where the daemon can push decisions directly.
	// Empty disables registration; the store watcher still delivers.
	CallbackURL string
	// PollInterval for the store fallback watcher.
	PollInterval time.Duration
}

// Bridge connects bus, mailbox, store and daemon.
type Bridge struct {
	cfg     Config
	bus     *pagebus.Bus
	box     *mailbox.Mailbox
	st      *store.Store
	fwd     Forwarder
	logger  *zap.Logger
	started atomic.Bool
}

// New creates a Bridge. Call Start to attach the listeners.
func New(cfg Config, bus *pagebus.Bus, box *mailbox.Mailbox, st *store.Store, fwd Forwarder, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{cfg: cfg, bus: bus, box: box, st: st, fwd: fwd, logger: logger}
}

// Start attaches one listener to the page bus and one to the store,
// then returns. Listeners run until ctx is cancelled. A second Start
// returns ErrAlreadyStarted.
func (b *Bridge) Start(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	events, cancelSub := b.bus.Subscribe()
	go func() {
		defer cancelSub()
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-events:
				if !ok {
					return
				}
				b.relay(ctx, env)
			}
		}
	}()

	go b.watchStore(ctx)
	if b.cfg.CallbackURL != "" {
		go b.register(ctx)
	}
	return nil
}

// register announces the callback to the daemon so decisions arrive by
// push as well as through the store. Registration failure is logged
// and tolerated: the store watcher alone satisfies delivery.
func (b *Bridge) register(ctx context.Context) {
	var lastErr error
	for attempt := 0; attempt < relayAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(relayBackoff):
			}
		}
		if lastErr = b.fwd.Register(ctx, b.cfg.Origin, b.cfg.CallbackURL); lastErr == nil {
			return
		}
	}
	b.logger.Warn("bridge registration failed, relying on store watcher",
		zap.Error(lastErr))
}

// relay forwards one envelope to the daemon, retrying transient
// failures. The envelope carries this bridge's origin.
func (b *Bridge) relay(ctx context.Context, env model.Envelope) {
	env.Origin = b.cfg.Origin

	var lastErr error
	for attempt := 0; attempt < relayAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(relayBackoff):
			}
		}
		if lastErr = b.fwd.Forward(ctx, env); lastErr == nil {
			return
		}
	}
	b.logger.Error("envelope relay failed",
		zap.String("kind", string(env.Kind)),
		zap.Error(lastErr))
}

// watchStore follows decision writes. fsnotify is preferred; on failure
// the poll watcher takes over.
func (b *Bridge) watchStore(ctx context.Context) {
	handler := func(file string) {
		if file != store.DecisionFile {
			return
		}
		b.deliverStoredDecision()
	}

	w := store.NewWatcher(b.st, handler)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		b.logger.Warn("fsnotify watcher unavailable, polling", zap.Error(err))
		pw := store.NewPollWatcher(b.st, handler, b.cfg.PollInterval)
		pw.Run(ctx)
	}
}

func (b *Bridge) deliverStoredDecision() {
	rec, err := b.st.Decision()
	if err != nil {
		b.logger.Error("read stored decision", zap.Error(err))
		return
	}
	if rec == nil {
		return
	}
	b.box.Post(*rec)
	b.logger.Debug("decision delivered to mailbox",
		zap.String("correlation_id", rec.CorrelationID))
}

// Handle processes a message pushed by the daemon to the registered
// callback. Decisions go to the mailbox; other kinds are ignored here.
func (b *Bridge) Handle(env model.Envelope) {
	if env.Kind != model.KindDecisionPublished || env.Decision == nil {
		return
	}
	b.box.Post(*env.Decision)
}
