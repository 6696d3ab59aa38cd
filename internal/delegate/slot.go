package delegate

import "sync"

// GuardedSlot models the page-global provider slot. The shadow pins itself
// into the slot once; later writes by a third party (the wallet injecting
// itself, possibly after the shadow is installed) are captured as the
// freshest delegate instead of displacing the shadow. Readers of the slot
// therefore always see the shadow, and the shadow always forwards to the
// newest wallet reference.
type GuardedSlot struct {
	mu       sync.RWMutex
	pinned   Delegate // the shadow, set once
	delegate Delegate // freshest underlying wallet, may be nil
}

// NewSlot returns an empty provider slot.
func NewSlot() *GuardedSlot {
	return &GuardedSlot{}
}

// Pin installs the shadow as the slot's permanent occupant. A wallet
// written earlier via Offer stays captured as the delegate. Pinning
// twice is a no-op; the first shadow wins.
func (s *GuardedSlot) Pin(shadow Delegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pinned != nil {
		return
	}
	s.pinned = shadow
}

// Offer records a write to the provider slot. Before the shadow is pinned
// the writer simply occupies the slot; after, the writer becomes the new
// delegate and the shadow stays in place.
func (s *GuardedSlot) Offer(d Delegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegate = d
}

// Provider returns what a page-side reader of the slot observes: the
// pinned shadow if installed, otherwise the raw delegate.
func (s *GuardedSlot) Provider() Delegate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pinned != nil {
		return s.pinned
	}
	return s.delegate
}

// Current returns the freshest underlying delegate, or nil if no wallet
// has ever appeared.
func (s *GuardedSlot) Current() Delegate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delegate
}
