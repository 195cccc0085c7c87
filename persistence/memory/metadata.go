package memory

import (
	"sort"
	"sync"

	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
)

var _ persistence.MetadataStorage = new(memoryMetadataStorage)

type memoryMetadataStorage struct {
	mu       sync.RWMutex
	versions map[string]map[string]model.Process
	latest   map[string]string
}

func NewMemoryMetadataStorage() *memoryMetadataStorage {
	return &memoryMetadataStorage{
		versions: make(map[string]map[string]model.Process),
		latest:   make(map[string]string),
	}
}

func (m *memoryMetadataStorage) SaveProcess(p model.Process) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[p.Name]; !ok {
		m.versions[p.Name] = make(map[string]model.Process)
	}
	m.versions[p.Name][p.Version] = p
	m.latest[p.Name] = p.Version
	return nil
}

func (m *memoryMetadataStorage) DeleteProcess(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.versions, name)
	delete(m.latest, name)
	return nil
}

func (m *memoryMetadataStorage) GetProcess(name string) (*model.Process, error) {
	m.mu.RLock()
	version, ok := m.latest[name]
	m.mu.RUnlock()
	if !ok {
		return nil, persistence.NotFound("process", name)
	}
	return m.GetProcessVersion(name, version)
}

func (m *memoryMetadataStorage) GetProcessVersion(name string, version string) (*model.Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.versions[name][version]
	if !ok {
		return nil, persistence.NotFound("process", name+"@"+version)
	}
	return &p, nil
}

func (m *memoryMetadataStorage) ListProcesses() ([]model.Process, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Process, 0, len(m.latest))
	for name, version := range m.latest {
		out = append(out, m.versions[name][version])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
