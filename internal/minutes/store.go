package minutes

import (
	"sync"
	"time"

	"github.com/soracane/larkbridge/internal/model"
)

// Store holds pending actions between the card that offers them and the
// click that resolves them. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	actions map[string]model.PendingAction
	now     func() time.Time
}

// NewStore returns an empty in-process store.
func NewStore() *Store {
	return &Store{
		actions: make(map[string]model.PendingAction),
		now:     time.Now,
	}
}

// Put registers a pending action under its ID.
func (s *Store) Put(a model.PendingAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[a.ID] = a
}

// Get looks up a pending action without consuming it.
func (s *Store) Get(id string) (model.PendingAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	return a, ok
}

// Take removes and returns the pending action in one step. Two
// near-simultaneous clicks on the same id cannot both claim it: the
// second Take misses.
func (s *Store) Take(id string) (model.PendingAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if ok {
		delete(s.actions, id)
	}
	return a, ok
}

// Sweep drops every pending action older than maxAge and reports how
// many were removed. Callers invoke it opportunistically; there is no
// background timer.
func (s *Store) Sweep(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxAge)
	removed := 0
	for id, a := range s.actions {
		if a.CreatedAt.Before(cutoff) {
			delete(s.actions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live pending actions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actions)
}
