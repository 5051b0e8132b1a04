package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TransferStore is an in-memory list of transfer records, newest first.
// Thread-safe for concurrent access.
type TransferStore struct {
	items []Transfer
	now   func() time.Time

	mu sync.RWMutex
}

// NewTransferStore creates an empty store.
func NewTransferStore() *TransferStore {
	return &TransferStore{now: time.Now}
}

// Add records a new queued transfer and returns it.
func (s *TransferStore) Add(name, key string, typ TransferType, size int64) Transfer {
	t := Transfer{
		ID:        uuid.NewString(),
		Name:      name,
		Key:       key,
		Type:      typ,
		Size:      size,
		State:     TransferStateQueued,
		StartedAt: s.now(),
	}

	s.mu.Lock()
	s.items = append([]Transfer{t}, s.items...)
	s.mu.Unlock()
	return t
}

// Update moves a transfer to state. Terminal states stamp FinishedAt;
// errMsg is kept for failed transfers.
func (s *TransferStore) Update(id string, state TransferState, errMsg string) (Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		t := &s.items[i]
		if t.Done() {
			return *t, newError(CodeConflict, "transfer %s already %s", id, t.State)
		}
		t.State = state
		if state == TransferStateFailed {
			t.Error = errMsg
		}
		if state.IsTerminal() {
			t.FinishedAt = s.now()
		}
		return *t, nil
	}
	return Transfer{}, newError(CodeNotFound, "transfer %s not found", id)
}

// Get returns a transfer by id.
func (s *TransferStore) Get(id string) (Transfer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.items {
		if t.ID == id {
			return t, true
		}
	}
	return Transfer{}, false
}

// List returns finished transfers when done is true, in-flight ones
// otherwise.
func (s *TransferStore) List(done bool) []Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Transfer, 0, len(s.items))
	for _, t := range s.items {
		if t.Done() == done {
			result = append(result, t)
		}
	}
	return result
}

// Recent returns up to n of the newest completed transfers.
func (s *TransferStore) Recent(n int) []Transfer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Transfer, 0, n)
	for _, t := range s.items {
		if len(result) >= n {
			break
		}
		if t.State == TransferStateCompleted {
			result = append(result, t)
		}
	}
	return result
}

// ClearDone removes every finished transfer and returns how many were
// removed.
func (s *TransferStore) ClearDone() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.items[:0]
	for _, t := range s.items {
		if !t.Done() {
			kept = append(kept, t)
		}
	}
	removed := len(s.items) - len(kept)
	clear(s.items[len(kept):])
	s.items = kept
	return removed
}

// Len returns the number of records.
func (s *TransferStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (t Transfer) String() string {
	return fmt.Sprintf("%s %s (%s)", t.Type, t.Name, t.State)
}
