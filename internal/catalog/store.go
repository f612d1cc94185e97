package catalog

import (
	"context"
	"sync"
)

// Lister is the fetch collaborator behind the Store. In production it is the
// Postgres repository; tests substitute a fake.
type Lister interface {
	List(ctx context.Context) ([]Product, error)
}

// Store holds the product list served to the storefront. Fetch is guarded
// against overlapping invocations: a second call while one is in flight is a
// no-op rather than a duplicate request. A failed fetch keeps the previously
// held list and records an error readable via Err; it never panics past its
// own boundary.
type Store struct {
	lister Lister

	mu       sync.Mutex
	fetching bool
	products []Product
	err      string
}

func NewStore(lister Lister) *Store {
	return &Store{lister: lister}
}

// Fetch refreshes the held product list. Returns false when another fetch was
// already in flight and this call did nothing.
func (s *Store) Fetch(ctx context.Context) bool {
	s.mu.Lock()
	if s.fetching {
		s.mu.Unlock()
		return false
	}
	s.fetching = true
	s.mu.Unlock()

	products, err := s.lister.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetching = false
	if err != nil {
		// keep the stale list, surface the error
		s.err = err.Error()
		return true
	}
	s.products = products
	s.err = ""
	return true
}

// Products returns a copy of the held list.
func (s *Store) Products() []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetching
}
