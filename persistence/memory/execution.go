package memory

import (
	"context"
	"sync"

	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/util"
)

var _ persistence.ExecutionStorage = new(memoryExecutionStorage)

// memoryExecutionStorage keeps encoded documents so callers never share
// pointers with what is stored.
type memoryExecutionStorage struct {
	mu              sync.RWMutex
	executions      map[string][]byte
	pointers        map[string][]byte
	versions        map[string]int64
	tasks           map[string]map[string]bool
	activities      map[string]model.Activity
	userActivities  map[string][]string
	executionEncDec util.EncoderDecoder[model.Execution]
	pointerEncDec   util.EncoderDecoder[model.Pointer]
}

func NewMemoryExecutionStorage() *memoryExecutionStorage {
	return &memoryExecutionStorage{
		executions:      make(map[string][]byte),
		pointers:        make(map[string][]byte),
		versions:        make(map[string]int64),
		tasks:           make(map[string]map[string]bool),
		activities:      make(map[string]model.Activity),
		userActivities:  make(map[string][]string),
		executionEncDec: util.NewJsonEncoderDecoder[model.Execution](),
		pointerEncDec:   util.NewJsonEncoderDecoder[model.Pointer](),
	}
}

func (m *memoryExecutionStorage) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	m.mu.RLock()
	data, ok := m.executions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, persistence.NotFound("execution", id)
	}
	return m.executionEncDec.Decode(data)
}

func (m *memoryExecutionStorage) GetPointer(ctx context.Context, id string) (*model.Pointer, error) {
	m.mu.RLock()
	data, ok := m.pointers[id]
	m.mu.RUnlock()
	if !ok {
		return nil, persistence.NotFound("pointer", id)
	}
	return m.pointerEncDec.Decode(data)
}

func (m *memoryExecutionStorage) Commit(ctx context.Context, exec *model.Execution, pointers []*model.Pointer, expectedVersion int64) error {
	next := *exec
	next.Version = expectedVersion + 1
	data, err := m.executionEncDec.Encode(next)
	if err != nil {
		return err
	}
	encoded := make(map[string][]byte, len(pointers))
	for _, p := range pointers {
		pd, err := m.pointerEncDec.Encode(*p)
		if err != nil {
			return err
		}
		encoded[p.Id] = pd
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[exec.Id] != expectedVersion {
		return persistence.ConflictError{ExecutionId: exec.Id, Expected: expectedVersion}
	}
	m.executions[exec.Id] = data
	m.versions[exec.Id] = next.Version
	for id, pd := range encoded {
		m.pointers[id] = pd
	}
	for _, p := range pointers {
		for _, user := range p.Actors {
			if p.IsTaskOf(user) {
				if _, ok := m.tasks[user]; !ok {
					m.tasks[user] = make(map[string]bool)
				}
				m.tasks[user][p.Id] = true
			} else {
				delete(m.tasks[user], p.Id)
			}
		}
	}
	for _, a := range exec.Activities() {
		if _, ok := m.activities[a.Id]; ok {
			continue
		}
		m.activities[a.Id] = a
		m.userActivities[a.User.Identifier] = append(m.userActivities[a.User.Identifier], a.Id)
	}
	exec.Version = next.Version
	return nil
}

func (m *memoryExecutionStorage) ListTasks(ctx context.Context, user string) ([]*model.Pointer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Pointer, 0, len(m.tasks[user]))
	for id := range m.tasks[user] {
		p, err := m.pointerEncDec.Decode(m.pointers[id])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	persistence.SortTasks(out)
	return out, nil
}

func (m *memoryExecutionStorage) ListActivities(ctx context.Context, user string) ([]*model.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Activity, 0, len(m.userActivities[user]))
	for _, id := range m.userActivities[user] {
		a := m.activities[id]
		out = append(out, &a)
	}
	return out, nil
}

func (m *memoryExecutionStorage) GetActivity(ctx context.Context, id string) (*model.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.activities[id]
	if !ok {
		return nil, persistence.NotFound("activity", id)
	}
	return &a, nil
}
