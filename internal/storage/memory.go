package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryProvider is an in-memory Provider. It backs tests and offline demos.
type MemoryProvider struct {
	mu       sync.RWMutex
	buckets  map[string][]Object
	domains  []string
	pageSize int

	// ListErr, when set, fails every ListObjects call.
	ListErr error
}

// NewMemoryProvider creates an empty provider that pages listings in
// pageSize chunks (0 means one page).
func NewMemoryProvider(pageSize int, domains ...string) *MemoryProvider {
	return &MemoryProvider{
		buckets:  make(map[string][]Object),
		domains:  domains,
		pageSize: pageSize,
	}
}

// Put adds objects to bucket, creating it if needed.
func (m *MemoryProvider) Put(bucket string, objects ...Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = append(m.buckets[bucket], objects...)
}

// Name implements Provider.
func (m *MemoryProvider) Name() string { return "memory" }

// ListBuckets implements Provider.
func (m *MemoryProvider) ListBuckets(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListObjects implements Provider.
func (m *MemoryProvider) ListObjects(ctx context.Context, bucket, prefix string, fn PageFunc) error {
	if m.ListErr != nil {
		return m.ListErr
	}

	m.mu.RLock()
	all, ok := m.buckets[bucket]
	var matched []Object
	for _, o := range all {
		if strings.HasPrefix(o.Key, prefix) {
			matched = append(matched, o)
		}
	}
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}

	size := m.pageSize
	if size <= 0 {
		size = len(matched)
	}
	var guard pageGuard
	for start := 0; start < len(matched); start += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := guard.next(ctx); err != nil {
			return err
		}
		end := min(start+size, len(matched))
		if err := fn(matched[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// Domains implements Provider.
func (m *MemoryProvider) Domains(bucket string) []string {
	return append([]string(nil), m.domains...)
}
