package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/stretchr/testify/require"
)

func TestExecutionStorage(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryExecutionStorage()
	exec := &model.Execution{Id: "e1", State: model.NewStateTree(), Status: model.EXECUTION_ONGOING}
	require.NoError(t, storage.Commit(ctx, exec, []*model.Pointer{{Id: "p1", ExecutionId: "e1"}}, 0))
	require.Equal(t, int64(1), exec.Version)

	stored, err := storage.GetExecution(ctx, "e1")
	require.NoError(t, err)
	stored.Status = model.EXECUTION_CANCELLED
	again, err := storage.GetExecution(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, model.EXECUTION_ONGOING, again.Status)

	var ce persistence.ConflictError
	err = storage.Commit(ctx, &model.Execution{Id: "e1"}, nil, 0)
	require.True(t, errors.As(err, &ce))

	_, err = storage.GetPointer(ctx, "p2")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestTaskIndex(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryExecutionStorage()
	tree := model.NewStateTree()
	ns := model.NewNodeState("request", model.NODE_KIND_ACTION, "Request")
	ns.Actors.Set("juan", model.NewActorState(model.User{Identifier: "juan"}, nil))
	tree.Set("request", ns)
	exec := &model.Execution{Id: "e1", State: tree, Status: model.EXECUTION_ONGOING}
	now := time.Now()
	first := &model.Pointer{Id: "p1", ExecutionId: "e1", Status: model.POINTER_ONGOING, StartedAt: now, Actors: []string{"ana"}}
	second := &model.Pointer{Id: "p2", ExecutionId: "e1", Status: model.POINTER_ONGOING, StartedAt: now.Add(time.Second), Actors: []string{"ana", "pedro"}}
	require.NoError(t, storage.Commit(ctx, exec, []*model.Pointer{second, first}, 0))

	tasks, err := storage.ListTasks(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, "p1", tasks[0].Id)
	require.Equal(t, "p2", tasks[1].Id)

	first.Status = model.POINTER_FINISHED
	require.NoError(t, storage.Commit(ctx, exec, []*model.Pointer{first}, 1))
	tasks, err = storage.ListTasks(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "p2", tasks[0].Id)

	activities, err := storage.ListActivities(ctx, "juan")
	require.NoError(t, err)
	require.Len(t, activities, 1)
	a, err := storage.GetActivity(ctx, activities[0].Id)
	require.NoError(t, err)
	require.Equal(t, "request", a.NodeId)
	_, err = storage.GetActivity(ctx, "e1:request:ana")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestMetadataVersions(t *testing.T) {
	storage := NewMemoryMetadataStorage()
	v1 := model.Process{Name: "expense", Version: "1", StartNode: "a"}
	v2 := model.Process{Name: "expense", Version: "2", StartNode: "b"}
	require.NoError(t, storage.SaveProcess(v1))
	require.NoError(t, storage.SaveProcess(v2))
	require.NoError(t, storage.SaveProcess(model.Process{Name: "another"}))

	latest, err := storage.GetProcess("expense")
	require.NoError(t, err)
	require.Equal(t, v2, *latest)
	old, err := storage.GetProcessVersion("expense", "1")
	require.NoError(t, err)
	require.Equal(t, v1, *old)

	all, err := storage.ListProcesses()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "2", all[1].Version)

	// saving an older version again makes it the current one
	require.NoError(t, storage.SaveProcess(v1))
	latest, err = storage.GetProcess("expense")
	require.NoError(t, err)
	require.Equal(t, "1", latest.Version)

	require.NoError(t, storage.DeleteProcess("expense"))
	_, err = storage.GetProcessVersion("expense", "2")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestQueue(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Push(ctx, 0, []byte("m1")))
	require.NoError(t, q.Push(ctx, 0, []byte("m2")))

	d, err := q.Poll(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, "m1", string(d.Payload))
	require.NoError(t, q.Requeue(ctx, d))

	d, err = q.Poll(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, "m1", string(d.Payload))
	require.NoError(t, q.Ack(ctx, d))

	d, err = q.Poll(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, "m2", string(d.Payload))
	n, err := q.Recover(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	size, err := q.Len(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), size)

	d, err = q.Poll(ctx, 1, 10*time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, d)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Push(ctx, 1, []byte("late"))
	}()
	d, err = q.Poll(ctx, 1, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, "late", string(d.Payload))
}
