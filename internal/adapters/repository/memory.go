package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/pkg/metrics"
)

// MemoryStore is an in-process BrandStore.
type MemoryStore struct {
	mu     sync.RWMutex
	brands map[string]model.Brand
	opts   storeOptions
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{brands: make(map[string]model.Brand), opts: o}
}

func (s *MemoryStore) Get(_ context.Context, name string) (model.Brand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.brands[nameKey(name)]
	if !ok {
		return model.Brand{}, ErrNotFound
	}
	return copyBrand(b), nil
}

func (s *MemoryStore) Upsert(_ context.Context, b model.Brand) (model.Brand, error) {
	if err := validate(b); err != nil {
		return model.Brand{}, err
	}
	b = copyBrand(b)
	b.Name = strings.TrimSpace(b.Name)
	b.UpdatedAt = s.opts.now()

	s.mu.Lock()
	s.brands[nameKey(b.Name)] = b
	n := len(s.brands)
	s.mu.Unlock()

	metrics.UpdateBrandsTotal(n)
	return copyBrand(b), nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.Brand, error) {
	s.mu.RLock()
	out := make([]model.Brand, 0, len(s.brands))
	for _, b := range s.brands {
		out = append(out, copyBrand(b))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return nameKey(out[i].Name) < nameKey(out[j].Name) })
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.brands), nil
}

func (s *MemoryStore) Close() error { return nil }

func copyBrand(b model.Brand) model.Brand {
	attrs := make(attribute.Texts, len(b.Attributes))
	for k, v := range b.Attributes {
		attrs[k] = v
	}
	b.Attributes = attrs
	return b
}
