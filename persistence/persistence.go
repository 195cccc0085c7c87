package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mohitkumar/humanflow/model"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

// ConflictError is returned by Commit when the stored execution moved past
// the version the caller loaded.
type ConflictError struct {
	ExecutionId string
	Expected    int64
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("execution %s is no longer at version %d", e.ExecutionId, e.Expected)
}

var ErrNotFound = errors.New("not found")

func NotFound(kind string, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// SortTasks orders pointers oldest first.
func SortTasks(tasks []*model.Pointer) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].StartedAt.Equal(tasks[j].StartedAt) {
			return tasks[i].Id < tasks[j].Id
		}
		return tasks[i].StartedAt.Before(tasks[j].StartedAt)
	})
}

// MetadataStorage keeps every saved version of a process. GetProcess and
// ListProcesses see the version saved last; DeleteProcess drops them all.
type MetadataStorage interface {
	SaveProcess(p model.Process) error
	DeleteProcess(name string) error
	GetProcess(name string) (*model.Process, error)
	GetProcessVersion(name string, version string) (*model.Process, error)
	ListProcesses() ([]model.Process, error)
}

// ExecutionStorage keeps one document per execution and one per pointer.
type ExecutionStorage interface {
	GetExecution(ctx context.Context, id string) (*model.Execution, error)
	GetPointer(ctx context.Context, id string) (*model.Pointer, error)
	// Commit writes exec and pointers atomically if the stored execution is
	// still at expectedVersion (0 means it must not exist yet). On success
	// exec.Version is expectedVersion+1.
	Commit(ctx context.Context, exec *model.Execution, pointers []*model.Pointer, expectedVersion int64) error
	// ListTasks returns the live pointers user is expected to act on. The
	// index behind it is kept by Commit.
	ListTasks(ctx context.Context, user string) ([]*model.Pointer, error)
	// ListActivities returns the nodes user acted on, oldest first.
	ListActivities(ctx context.Context, user string) ([]*model.Activity, error)
	GetActivity(ctx context.Context, id string) (*model.Activity, error)
}

type HistoryStorage interface {
	Append(ctx context.Context, entries []model.HistoryEntry) error
	List(ctx context.Context, executionId string) ([]model.HistoryEntry, error)
}

// Delivery is one message handed to a consumer. It stays pending until
// acked or requeued.
type Delivery struct {
	Partition int
	Payload   []byte
}

// Queue is a durable at-least-once queue split in partitions. Pending
// deliveries are put back by Recover when a consumer restarts.
type Queue interface {
	Push(ctx context.Context, partition int, message []byte) error
	// Poll waits up to timeout for a message and returns nil if none came.
	Poll(ctx context.Context, partition int, timeout time.Duration) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Requeue(ctx context.Context, d *Delivery) error
	Recover(ctx context.Context, partition int) (int, error)
	Len(ctx context.Context, partition int) (int64, error)
}
