package memory

import (
	"context"
	"sync"

	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
)

var _ persistence.HistoryStorage = new(memoryHistoryStorage)

type memoryHistoryStorage struct {
	mu      sync.RWMutex
	entries map[string][]model.HistoryEntry
}

func NewMemoryHistoryStorage() *memoryHistoryStorage {
	return &memoryHistoryStorage{entries: make(map[string][]model.HistoryEntry)}
}

func (m *memoryHistoryStorage) Append(ctx context.Context, entries []model.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.entries[e.Execution.Id] = append(m.entries[e.Execution.Id], e)
	}
	return nil
}

func (m *memoryHistoryStorage) List(ctx context.Context, executionId string) ([]model.HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.HistoryEntry, len(m.entries[executionId]))
	copy(out, m.entries[executionId])
	return out, nil
}
