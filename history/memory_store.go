package history

import (
	"context"
	"sync"

	"github.com/go-kratos/generics"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.Mutex
	records generics.Slice[*Record]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new instance of MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save stores a copy of r.
func (s *MemoryStore) Save(ctx context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.Get(ctx, r.ID); err == nil {
		return ErrDuplicateRecord
	}
	s.records.Append(clone(r))
	return nil
}

// Get returns the record with the given ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	var found *Record
	s.records.Range(func(_ int, r *Record) bool {
		if r.ID == id {
			found = clone(r)
			return false
		}
		return true
	})
	if found == nil {
		return nil, ErrRecordNotFound
	}
	return found, nil
}

// List returns the records matching filter in the order they were saved.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	var out []*Record
	s.records.Range(func(_ int, r *Record) bool {
		if filter.match(r) {
			out = append(out, clone(r))
		}
		return filter.Limit <= 0 || len(out) < filter.Limit
	})
	return out, nil
}

func clone(r *Record) *Record {
	c := *r
	c.Input = r.Input.Clone()
	c.Output = r.Output.Clone()
	if r.Input == nil {
		c.Input = nil
	}
	if r.Output == nil {
		c.Output = nil
	}
	return &c
}
