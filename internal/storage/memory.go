package storage

import (
	"sync"
	"time"

	"github.com/don-licenciao/MapyChat-web/internal/model"
)

type MemoryStorage struct {
	entries map[string]*model.RateEntry
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		entries: make(map[string]*model.RateEntry),
	}
}

func (m *MemoryStorage) Mutate(key string, fn func(entry *model.RateEntry) *model.RateEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current *model.RateEntry
	if e, ok := m.entries[key]; ok {
		copied := *e
		current = &copied
	}

	next := fn(current)
	if next == nil {
		delete(m.entries, key)
		return
	}
	m.entries[key] = next
}

func (m *MemoryStorage) Evict(now time.Time, max int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if max > 0 && removed >= max {
			break
		}
		if e.Expired(now) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}
