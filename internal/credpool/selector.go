// Package credpool implements the credential pool and selector described by
// the request orchestration engine: a per-model ring of credential IDs with
// round-robin scanning, temporary skip windows, and exclusive in-use leases.
package credpool

import (
	"sync"
	"time"
)

// entry is the bookkeeping record for a single credential within a model's ring.
type entry struct {
	credentialID string
	inUse        bool
	skipUntil    time.Time
}

// ring is the per-model rotation state: an ordered list of credential entries
// plus a cursor that advances on every scan step regardless of outcome.
type ring struct {
	entries []*entry
	index   map[string]*entry
	cursor  int
	owner   string
}

// Selector is the process-wide credential pool. One Selector instance is
// shared across all requests for a given provider's models.
type Selector struct {
	mu     sync.Mutex
	models map[string]*ring
}

// New constructs an empty Selector.
func New() *Selector {
	return &Selector{models: make(map[string]*ring)}
}

// Register idempotently extends modelID's ring with credentialIDs and records
// ownerTag the first time the model is seen. A later call with a non-empty
// ownerTag may update the tag even if the model already exists.
func (s *Selector) Register(modelIDs []string, credentialIDs []string, ownerTag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, modelID := range modelIDs {
		r, ok := s.models[modelID]
		if !ok {
			r = &ring{index: make(map[string]*entry)}
			s.models[modelID] = r
		}
		if ownerTag != "" {
			r.owner = ownerTag
		}
		for _, credID := range credentialIDs {
			if _, exists := r.index[credID]; exists {
				continue
			}
			e := &entry{credentialID: credID}
			r.entries = append(r.entries, e)
			r.index[credID] = e
		}
	}
}

// Owner returns the owner tag recorded for modelID, or "" if unknown.
func (s *Selector) Owner(modelID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.models[modelID]; ok {
		return r.owner
	}
	return ""
}

// Acquire scans at most ring.size entries starting at the cursor, advancing
// it on every step regardless of outcome. It returns the first credential
// that is not in-use and outside its skip window, atomically marking it
// in-use, or "" if none qualify.
func (s *Selector) Acquire(modelID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.models[modelID]
	if !ok || len(r.entries) == 0 {
		return ""
	}

	now := time.Now()
	size := len(r.entries)
	for i := 0; i < size; i++ {
		e := r.entries[r.cursor]
		r.cursor = (r.cursor + 1) % size
		if e.inUse {
			continue
		}
		if now.Before(e.skipUntil) {
			continue
		}
		e.inUse = true
		return e.credentialID
	}
	return ""
}

// Release clears the in-use flag for credentialID across every model ring
// that contains it. Idempotent: releasing a credential that is not held is a
// no-op.
func (s *Selector) Release(credentialID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.models {
		if e, ok := r.index[credentialID]; ok {
			e.inUse = false
		}
	}
}

// Skip sets a cooldown window for (modelID, credentialID): acquire will pass
// over the pair until the window elapses. skipUntil = now + max(0,
// durationMs); a negative durationMs clamps to no window at all rather than
// some default, and an explicit durationMs of 0 behaves identically.
func (s *Selector) Skip(modelID, credentialID string, durationMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.models[modelID]
	if !ok {
		return
	}
	e, ok := r.index[credentialID]
	if !ok {
		return
	}
	if durationMs < 0 {
		durationMs = 0
	}
	e.skipUntil = time.Now().Add(time.Duration(durationMs) * time.Millisecond)
}

// ClearSkip removes any outstanding skip window for (modelID, credentialID).
// Callers must invoke this after a successful request against a credential
// that was previously skipped, per the orchestration engine's failure
// semantics.
func (s *Selector) ClearSkip(modelID, credentialID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.models[modelID]; ok {
		if e, ok := r.index[credentialID]; ok {
			e.skipUntil = time.Time{}
		}
	}
}

// RingSize reports the number of credentials registered for modelID, mainly
// for tests asserting the "examined exactly ring.size positions" invariant.
func (s *Selector) RingSize(modelID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.models[modelID]; ok {
		return len(r.entries)
	}
	return 0
}
