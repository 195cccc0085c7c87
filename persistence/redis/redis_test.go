package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	mr := miniredis.RunT(t)
	return Config{
		Addrs:     []string{mr.Addr()},
		Namespace: "test",
	}
}

func sampleExecution(id string) *model.Execution {
	tree := model.NewStateTree()
	n := model.NewNodeState("start", model.NODE_KIND_ACTION, "Start")
	n.State = model.STATE_ONGOING
	tree.Set("start", n)
	return &model.Execution{
		Id:          id,
		ProcessName: "simple",
		Status:      model.EXECUTION_ONGOING,
		StartedAt:   time.Date(2018, 5, 10, 17, 4, 44, 0, time.UTC),
		State:       tree,
		Pointers:    []model.LivePointer{{Id: "p1", NodeId: "start"}},
	}
}

func TestExecutionStorage(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, storage *redisExecutionStorage){
		"commit and read back":        testCommitAndGet,
		"stale version is a conflict": testCommitConflict,
		"missing documents":           testNotFound,
		"tasks and activities":        testTasksAndActivities,
	} {
		t.Run(scenario, func(t *testing.T) {
			storage := NewRedisExecutionStorage(testConfig(t))
			defer storage.Close()
			fn(t, storage)
		})
	}
}

func testCommitAndGet(t *testing.T, storage *redisExecutionStorage) {
	ctx := context.Background()
	exec := sampleExecution("e1")
	pointer := &model.Pointer{Id: "p1", ExecutionId: "e1", NodeId: "start", Status: model.POINTER_ONGOING}
	require.NoError(t, storage.Commit(ctx, exec, []*model.Pointer{pointer}, 0))
	require.Equal(t, int64(1), exec.Version)

	stored, err := storage.GetExecution(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, int64(1), stored.Version)
	require.Equal(t, []string{"start"}, stored.State.Keys())
	require.Equal(t, model.STATE_ONGOING, stored.State.Items["start"].State)

	p, err := storage.GetPointer(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "start", p.NodeId)

	exec.Status = model.EXECUTION_FINISHED
	require.NoError(t, storage.Commit(ctx, exec, nil, 1))
	stored, err = storage.GetExecution(ctx, "e1")
	require.NoError(t, err)
	require.Equal(t, int64(2), stored.Version)
	require.Equal(t, model.EXECUTION_FINISHED, stored.Status)
}

func testCommitConflict(t *testing.T, storage *redisExecutionStorage) {
	ctx := context.Background()
	exec := sampleExecution("e2")
	require.NoError(t, storage.Commit(ctx, exec, nil, 0))

	again := sampleExecution("e2")
	err := storage.Commit(ctx, again, nil, 0)
	var ce persistence.ConflictError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, int64(0), again.Version)

	err = storage.Commit(ctx, exec, nil, 5)
	require.True(t, errors.As(err, &ce))
}

func testNotFound(t *testing.T, storage *redisExecutionStorage) {
	ctx := context.Background()
	_, err := storage.GetExecution(ctx, "nope")
	require.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = storage.GetPointer(ctx, "nope")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func testTasksAndActivities(t *testing.T, storage *redisExecutionStorage) {
	ctx := context.Background()
	exec := sampleExecution("e3")
	start, _ := exec.State.Get("start")
	start.Actors.Set("juan", model.NewActorState(model.User{Identifier: "juan", HumanName: "Juan"}, nil))
	pointer := &model.Pointer{Id: "p3", ExecutionId: "e3", NodeId: "approve", Status: model.POINTER_ONGOING, Actors: []string{"juan", "pedro"}}
	require.NoError(t, storage.Commit(ctx, exec, []*model.Pointer{pointer}, 0))

	for _, user := range []string{"juan", "pedro"} {
		tasks, err := storage.ListTasks(ctx, user)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		require.Equal(t, "p3", tasks[0].Id)
	}
	activities, err := storage.ListActivities(ctx, "juan")
	require.NoError(t, err)
	require.Len(t, activities, 1)
	require.Equal(t, "e3:start:juan", activities[0].Id)
	require.Equal(t, "#start", activities[0].Ref)

	pointer.Status = model.POINTER_FINISHED
	require.NoError(t, storage.Commit(ctx, exec, []*model.Pointer{pointer}, 1))
	tasks, err := storage.ListTasks(ctx, "juan")
	require.NoError(t, err)
	require.Empty(t, tasks)
	activities, err = storage.ListActivities(ctx, "juan")
	require.NoError(t, err)
	require.Len(t, activities, 1)

	a, err := storage.GetActivity(ctx, "e3:start:juan")
	require.NoError(t, err)
	require.Equal(t, "Juan", a.User.HumanName)
	_, err = storage.GetActivity(ctx, "e3:start:pedro")
	require.ErrorIs(t, err, persistence.ErrNotFound)
	activities, err = storage.ListActivities(ctx, "pedro")
	require.NoError(t, err)
	require.Empty(t, activities)
}

func TestQueue(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, queue *redisQueue){
		"fifo with ack":              testQueueFifo,
		"requeue is polled next":     testQueueRequeue,
		"recover pending deliveries": testQueueRecover,
		"empty poll returns nil":     testQueueEmpty,
	} {
		t.Run(scenario, func(t *testing.T) {
			queue := NewRedisQueue(testConfig(t), "commands")
			defer queue.Close()
			fn(t, queue)
		})
	}
}

func testQueueFifo(t *testing.T, queue *redisQueue) {
	ctx := context.Background()
	require.NoError(t, queue.Push(ctx, 3, []byte("m1")))
	require.NoError(t, queue.Push(ctx, 3, []byte("m2")))
	n, err := queue.Len(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	d, err := queue.Poll(ctx, 3, 0)
	require.NoError(t, err)
	require.Equal(t, "m1", string(d.Payload))
	require.Equal(t, 3, d.Partition)
	require.NoError(t, queue.Ack(ctx, d))

	d, err = queue.Poll(ctx, 3, 0)
	require.NoError(t, err)
	require.Equal(t, "m2", string(d.Payload))
	require.NoError(t, queue.Ack(ctx, d))

	recovered, err := queue.Recover(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 0, recovered)
}

func testQueueRequeue(t *testing.T, queue *redisQueue) {
	ctx := context.Background()
	require.NoError(t, queue.Push(ctx, 0, []byte("m1")))
	require.NoError(t, queue.Push(ctx, 0, []byte("m2")))
	d, err := queue.Poll(ctx, 0, 0)
	require.NoError(t, err)
	require.NoError(t, queue.Requeue(ctx, d))

	d, err = queue.Poll(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, "m1", string(d.Payload))
}

func testQueueRecover(t *testing.T, queue *redisQueue) {
	ctx := context.Background()
	for _, m := range []string{"m1", "m2", "m3"} {
		require.NoError(t, queue.Push(ctx, 1, []byte(m)))
	}
	_, err := queue.Poll(ctx, 1, 0)
	require.NoError(t, err)
	_, err = queue.Poll(ctx, 1, 0)
	require.NoError(t, err)

	recovered, err := queue.Recover(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, recovered)

	for _, want := range []string{"m1", "m2", "m3"} {
		d, err := queue.Poll(ctx, 1, 0)
		require.NoError(t, err)
		require.Equal(t, want, string(d.Payload))
	}
}

func testQueueEmpty(t *testing.T, queue *redisQueue) {
	d, err := queue.Poll(context.Background(), 2, 0)
	require.NoError(t, err)
	require.Nil(t, d)
}

func TestMetadataStorage(t *testing.T) {
	storage := NewRedisMetadataStorage(testConfig(t))
	defer storage.Close()

	_, err := storage.GetProcess("simple")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	p := model.Process{Name: "simple", StartNode: "start", Nodes: []model.NodeDef{{Id: "start", Kind: model.NODE_KIND_ACTION}}}
	require.NoError(t, storage.SaveProcess(p))
	require.NoError(t, storage.SaveProcess(model.Process{Name: "another"}))

	got, err := storage.GetProcess("simple")
	require.NoError(t, err)
	require.Equal(t, p, *got)

	all, err := storage.ListProcesses()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "another", all[0].Name)

	require.NoError(t, storage.DeleteProcess("another"))
	all, err = storage.ListProcesses()
	require.NoError(t, err)
	require.Len(t, all, 1)

	v1 := model.Process{Name: "versioned", Version: "1", StartNode: "a"}
	v2 := model.Process{Name: "versioned", Version: "2", StartNode: "b"}
	require.NoError(t, storage.SaveProcess(v1))
	require.NoError(t, storage.SaveProcess(v2))
	latest, err := storage.GetProcess("versioned")
	require.NoError(t, err)
	require.Equal(t, "2", latest.Version)
	old, err := storage.GetProcessVersion("versioned", "1")
	require.NoError(t, err)
	require.Equal(t, v1, *old)
	_, err = storage.GetProcessVersion("versioned", "3")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	require.NoError(t, storage.DeleteProcess("versioned"))
	_, err = storage.GetProcessVersion("versioned", "1")
	require.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = storage.GetProcess("versioned")
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestHistoryStorage(t *testing.T) {
	storage := NewRedisHistoryStorage(testConfig(t))
	defer storage.Close()
	ctx := context.Background()

	entries := []model.HistoryEntry{
		{Execution: model.HistoryExecution{Id: "e1"}, Node: model.HistoryNode{Id: "start"}, State: model.STATE_VALID},
		{Execution: model.HistoryExecution{Id: "e1"}, Node: model.HistoryNode{Id: "approve"}, State: model.STATE_VALID},
		{Execution: model.HistoryExecution{Id: "e2"}, Node: model.HistoryNode{Id: "start"}, State: model.STATE_CANCELLED},
	}
	require.NoError(t, storage.Append(ctx, entries))

	got, err := storage.List(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "approve", got[1].Node.Id)

	got, err = storage.List(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, got)
}
