package store

import (
	"context"
	"sort"
	"sync"

	"github.com/planweave/planweave/workflow"
)

// MemoryStore provides an in-memory implementation of the Store interface.
// It is safe for concurrent use and suitable for tests and ephemeral runs;
// snapshots do not survive the process.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	revisions map[string]int64
}

// NewMemoryStore creates a new in-memory workflow store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]byte),
		revisions: make(map[string]int64),
	}
}

// Load retrieves a workflow snapshot by id.
func (s *MemoryStore) Load(ctx context.Context, id string) (*workflow.Workflow, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	data, ok := s.snapshots[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decode(data)
}

// Save persists a workflow snapshot with compare-and-swap semantics.
func (s *MemoryStore) Save(ctx context.Context, w *workflow.Workflow) error {
	if w == nil || w.ID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.revisions[w.ID]
	if data, ok := s.snapshots[w.ID]; ok && sameContent(data, w, stored) {
		w.StoreRevision = stored
		return nil
	}
	if w.StoreRevision != stored {
		return ErrConflict
	}

	next := stored + 1
	data, err := encode(w, next)
	if err != nil {
		return err
	}
	s.snapshots[w.ID] = data
	s.revisions[w.ID] = next
	w.StoreRevision = next
	return nil
}

// List returns all workflow ids, sorted lexicographically.
func (s *MemoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
