package store

import (
	"sync"

	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/index"
)

// Handle is a swappable reference to the current store. The query path
// reads through it lock-cheap while the rebuild worker swaps in a freshly
// built store after a successful build.
type Handle struct {
	mu sync.RWMutex
	s  *Store
}

// NewHandle creates a handle, optionally seeded with a loaded store.
func NewHandle(s *Store) *Handle {
	return &Handle{s: s}
}

// Swap replaces the current store.
func (h *Handle) Swap(s *Store) {
	h.mu.Lock()
	h.s = s
	h.mu.Unlock()
}

// Current returns the current store, or nil when none is loaded.
func (h *Handle) Current() *Store {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.s
}

// Search answers a nearest-neighbor query against the current store.
func (h *Handle) Search(query []float32, k int) ([]index.Hit, error) {
	s := h.Current()
	if s == nil {
		return nil, domain.ErrStoreNotFound
	}
	return s.Search(query, k), nil
}

// Lookup resolves a passage by id in the current store.
func (h *Handle) Lookup(id string) (domain.Passage, error) {
	s := h.Current()
	if s == nil {
		return domain.Passage{}, domain.ErrStoreNotFound
	}
	return s.Lookup(id)
}
