// Package mailbox models the page-global decision variable: a single slot
// with last-write-wins semantics and an explicit clear-after-read step.
// There is no concurrency hazard within one page context; the mutex covers
// cross-goroutine access in this rendition only.
package mailbox

import (
	"sync"

	"github.com/pvanko/walletgate/internal/model"
)

// Mailbox is a single-slot decision mailbox.
type Mailbox struct {
	mu  sync.Mutex
	rec *model.DecisionRecord
}

// New returns an empty mailbox.
func New() *Mailbox {
	return &Mailbox{}
}

// Post stores a decision in the slot, overwriting whatever was there.
func (m *Mailbox) Post(rec model.DecisionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = &rec
}

// TakeMatching returns the stored decision and clears the slot if, and only
// if, the stored record's correlation ID equals correlationID. A record
// tagged for a different request stays in place: it belongs to some other
// suspended call, or it is stale and will be overwritten by a later Post.
func (m *Mailbox) TakeMatching(correlationID string) (model.DecisionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil || m.rec.CorrelationID != correlationID {
		return model.DecisionRecord{}, false
	}
	rec := *m.rec
	m.rec = nil
	return rec, true
}

// Clear empties the slot unconditionally.
func (m *Mailbox) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = nil
}
