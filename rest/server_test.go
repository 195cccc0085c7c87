package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/cluster"
	"github.com/mohitkumar/humanflow/input"
	"github.com/mohitkumar/humanflow/metadata"
	"github.com/mohitkumar/humanflow/metrics"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/persistence/memory"
	"github.com/mohitkumar/humanflow/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func expenseProcess() model.Process {
	return model.Process{
		Name:    "expense",
		Version: "1",
		Nodes: []model.NodeDef{
			{
				Id:     "request",
				Kind:   model.NODE_KIND_ACTION,
				Actors: []string{"juan"},
				Forms: []model.FormDef{{
					Ref:    "expense",
					Inputs: []model.InputDef{{Name: "amount", Type: input.TYPE_TEXT, Required: true}},
				}},
				Edges: []model.EdgeDef{{To: "end"}},
			},
			{Id: "end", Kind: model.NODE_KIND_END},
		},
	}
}

type testServer struct {
	server     *Server
	executions persistence.ExecutionStorage
	history    persistence.HistoryStorage
	queue      persistence.Queue
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	registry := input.NewRegistry()
	metadataService := metadata.NewMetadataService(memory.NewMemoryMetadataStorage(), registry)
	_, err := metadataService.SaveProcess(expenseProcess())
	require.NoError(t, err)
	executions := memory.NewMemoryExecutionStorage()
	queue := memory.NewMemoryQueue()
	ring := cluster.NewRing(cluster.RingConfig{PartitionCount: 1, NodeName: "node-1"})
	history := memory.NewMemoryHistoryStorage()
	executionService := service.NewExecutionService(metadataService, executions, history, queue, ring)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveCommand(string(model.COMMAND_START), "applied", 0)

	s, err := NewServer(0, metadataService, executionService, reg)
	require.NoError(t, err)
	return &testServer{server: s, executions: executions, history: history, queue: queue}
}

func (ts *testServer) do(t *testing.T, method string, path string, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(USER_HEADER, user)
	}
	rec := httptest.NewRecorder()
	ts.server.Handler.ServeHTTP(rec, req)
	return rec
}

func errorsOf(t *testing.T, rec *httptest.ResponseRecorder) []api.ErrorPayload {
	t.Helper()
	var body struct {
		Errors []api.ErrorPayload `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Errors
}

func TestStartExecution(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/v1/execution", "juan", StartRequest{
		ProcessName: "expense",
		Input:       []FormRequest{{Ref: "expense", Data: map[string]any{"amount": "120"}}},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["execution_id"])

	n, err := ts.queue.Len(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rec = ts.do(t, http.MethodGet, "/v1/execution/"+body["execution_id"], "juan", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, ts *testServer){
		"bad json is a validation error": func(t *testing.T, ts *testServer) {
			req := httptest.NewRequest(http.MethodPost, "/v1/execution", strings.NewReader("{"))
			req.Header.Set(USER_HEADER, "juan")
			rec := httptest.NewRecorder()
			ts.server.Handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, api.CODE_VALIDATION_INVALID, errorsOf(t, rec)[0].Code)
		},
		"missing user is forbidden": func(t *testing.T, ts *testServer) {
			rec := ts.do(t, http.MethodPost, "/v1/execution", "", StartRequest{ProcessName: "expense"})
			require.Equal(t, http.StatusForbidden, rec.Code)
			require.Equal(t, api.CODE_FORBIDDEN, errorsOf(t, rec)[0].Code)
		},
		"unknown process is not found": func(t *testing.T, ts *testServer) {
			rec := ts.do(t, http.MethodPost, "/v1/execution", "juan", StartRequest{ProcessName: "nope"})
			require.Equal(t, http.StatusNotFound, rec.Code)
			require.Equal(t, api.CODE_GRAPH_NOT_FOUND, errorsOf(t, rec)[0].Code)
		},
		"unknown pointer has no live pointer": func(t *testing.T, ts *testServer) {
			rec := ts.do(t, http.MethodPost, "/v1/pointer", "juan", StepRequest{PointerId: "missing"})
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			payload := errorsOf(t, rec)[0]
			require.Equal(t, api.CODE_NO_LIVE_POINTER, payload.Code)
			require.Equal(t, "pointer_id", payload.Where)
		},
		"patch without inputs": func(t *testing.T, ts *testServer) {
			exec := &model.Execution{Id: "exec-1", ProcessName: "expense", Status: model.EXECUTION_ONGOING, State: model.NewStateTree()}
			require.NoError(t, ts.executions.Commit(context.Background(), exec, nil, 0))
			rec := ts.do(t, http.MethodPatch, "/v1/execution/exec-1", "juan", PatchRequest{})
			require.Equal(t, http.StatusBadRequest, rec.Code)
			payload := errorsOf(t, rec)[0]
			require.Equal(t, api.CODE_VALIDATION_REQUIRED, payload.Code)
			require.Equal(t, "inputs", payload.Where)
		},
		"add user without identifier": func(t *testing.T, ts *testServer) {
			rec := ts.do(t, http.MethodPost, "/v1/pointer/p-1/user", "juan", AddUserRequest{})
			require.Equal(t, http.StatusBadRequest, rec.Code)
		},
		"missing pointer document": func(t *testing.T, ts *testServer) {
			rec := ts.do(t, http.MethodGet, "/v1/pointer/missing", "juan", nil)
			require.Equal(t, http.StatusNotFound, rec.Code)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, newTestServer(t))
		})
	}
}

func TestProcessRoutes(t *testing.T) {
	ts := newTestServer(t)
	p := expenseProcess()
	p.Name = "expense-v2"
	rec := ts.do(t, http.MethodPost, "/v1/process", "admin", p)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/process/expense-v2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Process
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "request", got.Nodes[0].Id)

	rec = ts.do(t, http.MethodGet, "/v1/process", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []model.Process `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 2)

	broken := expenseProcess()
	broken.Name = "broken"
	broken.Nodes[0].Edges = []model.EdgeDef{{To: "nowhere"}}
	rec = ts.do(t, http.MethodPost, "/v1/process", "admin", broken)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, api.CODE_GRAPH_MALFORMED, errorsOf(t, rec)[0].Code)

	rec = ts.do(t, http.MethodGet, "/v1/process/broken", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskRoutes(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	tree := model.NewStateTree()
	ns := model.NewNodeState("request", model.NODE_KIND_ACTION, "request")
	ns.State = model.STATE_ONGOING
	ns.Actors.Set("juan", model.NewActorState(model.User{Identifier: "juan", HumanName: "Juan"}, nil))
	tree.Set("request", ns)
	exec := &model.Execution{Id: "exec-1", ProcessName: "expense", ProcessVersion: "1", Status: model.EXECUTION_ONGOING, State: tree, Pointers: []model.LivePointer{{Id: "p-1", NodeId: "request"}}}
	ptr := &model.Pointer{Id: "p-1", ExecutionId: "exec-1", NodeId: "request", Status: model.POINTER_ONGOING, Actors: []string{"juan"}}
	require.NoError(t, ts.executions.Commit(ctx, exec, []*model.Pointer{ptr}, 0))
	require.NoError(t, ts.history.Append(ctx, []model.HistoryEntry{
		{Execution: model.HistoryExecution{Id: "exec-1"}, Node: model.HistoryNode{Id: "request"}, State: model.STATE_VALID},
		{Execution: model.HistoryExecution{Id: "exec-1"}, Node: model.HistoryNode{Id: "end"}, State: model.STATE_VALID},
	}))
	activityId := model.ActivityId("exec-1", "request", "juan")

	type task struct {
		Id        string           `json:"id"`
		Execution *model.Execution `json:"execution"`
		FormArray []model.FormDef  `json:"form_array"`
	}

	for scenario, fn := range map[string]func(t *testing.T){
		"tasks of the caller": func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/task", "juan", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			var body struct {
				Data []task `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Data, 1)
			require.Equal(t, "p-1", body.Data[0].Id)
			require.Equal(t, "exec-1", body.Data[0].Execution.Id)

			rec = ts.do(t, http.MethodGet, "/v1/task", "pedro", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Empty(t, body.Data)
		},
		"task detail carries the node forms": func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/task/p-1", "juan", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			var body struct {
				Data task `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Data.FormArray, 1)
			require.Equal(t, "expense", body.Data.FormArray[0].Ref)
		},
		"task of someone else": func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/task/p-1", "pedro", nil)
			require.Equal(t, http.StatusForbidden, rec.Code)
			require.Equal(t, api.CODE_FORBIDDEN, errorsOf(t, rec)[0].Code)
		},
		"unknown task": func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/task/missing", "juan", nil)
			require.Equal(t, http.StatusNotFound, rec.Code)
		},
		"tasks need a user": func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/task", "", nil)
			require.Equal(t, http.StatusForbidden, rec.Code)
		},
		"activities of the caller": func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/activity", "juan", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			var body struct {
				Data []model.Activity `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Data, 1)
			require.Equal(t, activityId, body.Data[0].Id)
			require.Equal(t, "#request", body.Data[0].Ref)

			rec = ts.do(t, http.MethodGet, "/v1/activity/"+activityId, "juan", nil)
			require.Equal(t, http.StatusOK, rec.Code)
		},
		"activity of someone else": func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/activity/"+activityId, "pedro", nil)
			require.Equal(t, http.StatusForbidden, rec.Code)
		},
		"unknown activity": func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/activity/nope", "juan", nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			payload := errorsOf(t, rec)[0]
			require.Equal(t, api.CODE_VALIDATION_INVALID, payload.Code)
			require.Equal(t, "activity_id", payload.Where)
		},
		"log filtered by node": func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/v1/log/exec-1?node_id=end", "juan", nil)
			require.Equal(t, http.StatusOK, rec.Code)
			var body struct {
				Data []model.HistoryEntry `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Data, 1)
			require.Equal(t, "end", body.Data[0].Node.Id)

			rec = ts.do(t, http.MethodGet, "/v1/log/exec-1", "juan", nil)
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Len(t, body.Data, 2)
		},
	} {
		t.Run(scenario, fn)
	}
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "humanflow_commands_total")
}
