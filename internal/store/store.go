// Package store persists the single pending Intercepted Request and the
// single live Decision Record. It is the key-value store shared across the
// privileged contexts: the manager writes requests, the surface writes
// decisions, the bridge observes changes.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pvanko/walletgate/internal/model"
)

const (
	// RequestFile holds the currently pending intercepted request.
	RequestFile = "request.json"
	// DecisionFile holds the live decision record, if any.
	DecisionFile = "decision.json"
)

// Store manages the request and decision files in one directory.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates a Store backed by the given directory.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("cannot create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the default store directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "walletgate-state")
	}
	return filepath.Join(home, ".walletgate", "state")
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// PutRequest persists req, overwriting any previous pending request.
// Only one request is active system-wide; last write wins.
func (s *Store) PutRequest(req model.InterceptedRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("refusing to persist request: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(RequestFile, req)
}

// Request returns the pending request, or nil if none is stored.
func (s *Store) Request() (*model.InterceptedRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var req model.InterceptedRequest
	ok, err := s.read(RequestFile, &req)
	if err != nil || !ok {
		return nil, err
	}
	return &req, nil
}

// ClearRequest removes the pending request. No-op if absent.
func (s *Store) ClearRequest() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(RequestFile)
}

// PutDecision persists rec, overwriting any previous decision record.
func (s *Store) PutDecision(rec model.DecisionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to persist decision: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(DecisionFile, rec)
}

// Decision returns the stored decision record, or nil if none is stored.
func (s *Store) Decision() (*model.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec model.DecisionRecord
	ok, err := s.read(DecisionFile, &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// ClearDecision removes the stored decision record. No-op if absent.
func (s *Store) ClearDecision() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(DecisionFile)
}

func (s *Store) read(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("corrupt %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) writeAtomic(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
