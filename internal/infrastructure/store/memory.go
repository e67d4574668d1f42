package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/turtacn/padel-featurizer/pkg/errors"
)

// DefaultMemorySize bounds the in-process store.
const DefaultMemorySize = 10000

// MemoryStore is an in-process LRU feature store.  Rows are copied on the
// way in and out.
type MemoryStore struct {
	cache *lru.Cache[string, []float64]
}

// NewMemoryStore holds up to size rows; size <= 0 uses DefaultMemorySize.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	c, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "cannot create memory store")
	}
	return &MemoryStore{cache: c}, nil
}

func (s *MemoryStore) Get(_ context.Context, keys []string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(keys))
	for _, k := range keys {
		if row, ok := s.cache.Get(k); ok {
			out[k] = append([]float64(nil), row...)
		}
	}
	return out, nil
}

func (s *MemoryStore) Put(_ context.Context, rows map[string][]float64) error {
	for k, row := range rows {
		s.cache.Add(k, append([]float64(nil), row...))
	}
	return nil
}

// Len returns the number of cached rows.
func (s *MemoryStore) Len() int { return s.cache.Len() }

func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
