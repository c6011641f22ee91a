package cache

import (
	"context"
	"sync"
	"time"

	"cscexplorer/internal/domain"
	"cscexplorer/pkg/platform/sentinel"
)

type cachedDataset struct {
	records   []domain.RawRecord
	expiresAt time.Time
}

// MemoryStore is an in-process Store with TTL expiration.
type MemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]cachedDataset
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		datasets: make(map[string]cachedDataset),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]domain.RawRecord, error) {
	m.mu.RLock()
	cached, ok := m.datasets[key]
	m.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !m.now().Before(cached.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.datasets[key]; ok && cur.expiresAt.Equal(cached.expiresAt) {
			delete(m.datasets, key)
		}
		m.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	return cached.records, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, records []domain.RawRecord, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[key] = cachedDataset{records: records, expiresAt: m.now().Add(ttl)}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.datasets)
}
