package main

import (
	"fmt"
	"sync"

	"github.com/lyzr/workflowverify/internal/petri"
)

// netStore holds compiled nets in memory, keyed by their stable content-
// addressed id (§3.5). Nets are immutable once built, so a plain map
// guarded by a mutex is sufficient; there is no eviction because a
// verification service's working set of nets is small relative to its
// lifetime.
type netStore struct {
	mu   sync.RWMutex
	nets map[string]petri.Net
}

func newNetStore() *netStore {
	return &netStore{nets: make(map[string]petri.Net)}
}

func (s *netStore) put(n petri.Net) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nets[n.ID] = n
}

func (s *netStore) get(id string) (petri.Net, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nets[id]
	if !ok {
		return petri.Net{}, fmt.Errorf("net %q not found", id)
	}
	return n, nil
}
