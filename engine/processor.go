package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/mohitkumar/humanflow/analytics"
	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/input"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/metadata"
	"github.com/mohitkumar/humanflow/metrics"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/process"
	"github.com/mohitkumar/humanflow/state"
	"github.com/mohitkumar/humanflow/util"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Processor applies commands to executions. It is the only writer of
// execution state; callers must not run two commands of the same execution
// at once.
type Processor struct {
	metadataService metadata.MetadataService
	executions      persistence.ExecutionStorage
	registry        *input.Registry
	history         *HistoryRecorder
	metrics         *metrics.Metrics
	now             func() time.Time
}

func NewProcessor(metadataService metadata.MetadataService, executions persistence.ExecutionStorage, registry *input.Registry, history *HistoryRecorder, m *metrics.Metrics) *Processor {
	return &Processor{
		metadataService: metadataService,
		executions:      executions,
		registry:        registry,
		history:         history,
		metrics:         m,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Process runs one command to completion. Nothing is stored unless the whole
// command succeeds. Errors are api_v1 error kinds: InfrastructureError is
// worth retrying, every other kind is final for this command.
func (p *Processor) Process(ctx context.Context, cmd model.Command) error {
	start := time.Now()
	processName, err := p.process(ctx, cmd)
	outcome := "ok"
	switch {
	case err == nil:
		analytics.RecordCommandSuccess(processName, cmd.ExecutionId, string(cmd.Command), cmd.PointerId, map[string]any{"user": cmd.UserIdentifier})
	case api.IsRetryable(err):
		outcome = "retry"
		logger.Warn("command failed, will be retried", zap.String("command", string(cmd.Command)), zap.String("execution", cmd.ExecutionId), zap.Error(err))
	default:
		outcome = "rejected"
		payload, _ := api.PayloadOf(err)
		analytics.RecordCommandFailure(processName, cmd.ExecutionId, string(cmd.Command), cmd.PointerId, payload.Code, err.Error())
		logger.Info("command rejected", zap.String("command", string(cmd.Command)), zap.String("execution", cmd.ExecutionId), zap.String("code", payload.Code), zap.String("where", payload.Where), zap.Error(err))
	}
	p.metrics.ObserveCommand(string(cmd.Command), outcome, time.Since(start))
	return err
}

func (p *Processor) process(ctx context.Context, cmd model.Command) (string, error) {
	switch cmd.Command {
	case model.COMMAND_START:
		return p.start(ctx, cmd)
	case model.COMMAND_STEP:
		return p.step(ctx, cmd)
	case model.COMMAND_PATCH:
		return p.patch(ctx, cmd)
	case model.COMMAND_CANCEL:
		return p.cancel(ctx, cmd)
	case model.COMMAND_ADD_USER:
		return p.addUser(ctx, cmd)
	}
	return "", api.Invalid("command", "unknown command %s", cmd.Command)
}

func (p *Processor) start(ctx context.Context, cmd model.Command) (string, error) {
	if cmd.ExecutionId != "" {
		_, err := p.executions.GetExecution(ctx, cmd.ExecutionId)
		if err == nil {
			logger.Info("execution already started", zap.String("execution", cmd.ExecutionId))
			return cmd.Process, nil
		}
		if !errors.Is(err, persistence.ErrNotFound) {
			return cmd.Process, storageError(err)
		}
	}
	graph, err := p.startGraph(cmd)
	if err != nil {
		return cmd.Process, err
	}
	node := graph.StartNode()
	if err := authorize(node.GetDef().Actors, cmd.UserIdentifier); err != nil {
		return graph.Name(), err
	}
	forms, err := collectForms(p.registry, node.GetDef(), cmd.Input)
	if err != nil {
		return graph.Name(), err
	}

	id := cmd.ExecutionId
	if id == "" {
		id = uuid.New().String()
	}
	now := p.now()
	exec := &model.Execution{
		Id:             id,
		ProcessName:    graph.Name(),
		ProcessVersion: graph.Process().Version,
		Name:           graph.Name(),
		Description:    graph.Process().Description,
		Status:         model.EXECUTION_ONGOING,
		StartedAt:      now,
		State:          model.NewStateTree(),
		Pointers:       make([]model.LivePointer, 0),
	}
	tx := newTxn(graph, exec, now)
	ptr, err := tx.openPointer(node)
	if err != nil {
		return graph.Name(), err
	}
	if err := tx.act(ptr, node, cmd.User(), forms); err != nil {
		return graph.Name(), err
	}
	tx.render()
	return graph.Name(), p.commit(ctx, tx)
}

func (p *Processor) step(ctx context.Context, cmd model.Command) (string, error) {
	if err := requireUser(cmd); err != nil {
		return "", err
	}
	ptr, err := p.getPointer(ctx, cmd.PointerId)
	if err != nil {
		return "", err
	}
	exec, err := p.getExecution(ctx, ptr.ExecutionId)
	if err != nil {
		return "", err
	}
	if exec.Status != model.EXECUTION_ONGOING || ptr.Status != model.POINTER_ONGOING || !exec.IsLive(ptr.Id) {
		logger.Info("step on a pointer that is no longer live", zap.String("pointer", ptr.Id), zap.String("execution", exec.Id))
		return exec.ProcessName, nil
	}
	graph, err := p.executionGraph(exec)
	if err != nil {
		return exec.ProcessName, err
	}
	node, err := graph.Node(ptr.NodeId)
	if err != nil {
		return exec.ProcessName, err
	}
	def := node.GetDef()
	if len(def.Actors) > 0 && !slices.Contains(ptr.Actors, cmd.UserIdentifier) {
		return exec.ProcessName, api.Forbidden("user_identifier", "user %s may not act on pointer %s", cmd.UserIdentifier, ptr.Id)
	}
	if ns, ok := exec.State.Get(node.GetId()); ok {
		if actor, ok := ns.Actors.Get(cmd.UserIdentifier); ok && actor.State == model.STATE_VALID {
			logger.Info("actor already acted on pointer", zap.String("pointer", ptr.Id), zap.String("user", cmd.UserIdentifier))
			return exec.ProcessName, nil
		}
	}

	tx := newTxn(graph, exec, p.now())
	tx.touch(ptr)
	if node.GetKind() == model.NODE_KIND_VALIDATION {
		err = tx.review(ptr, node, cmd)
	} else {
		var forms []*model.FormState
		forms, err = collectForms(p.registry, def, cmd.Input)
		if err == nil {
			err = tx.act(ptr, node, cmd.User(), forms)
		}
	}
	if err != nil {
		return exec.ProcessName, err
	}
	return exec.ProcessName, p.commit(ctx, tx)
}

// patch corrects values already recorded on action nodes. States, ordering
// and pointers are left alone.
func (p *Processor) patch(ctx context.Context, cmd model.Command) (string, error) {
	if err := requireUser(cmd); err != nil {
		return "", err
	}
	exec, err := p.getExecution(ctx, cmd.ExecutionId)
	if err != nil {
		return "", err
	}
	if exec.Status == model.EXECUTION_CANCELLED {
		return exec.ProcessName, api.Invalid("execution_id", "execution %s is cancelled", exec.Id)
	}
	if len(cmd.Inputs) == 0 {
		return exec.ProcessName, api.Required("inputs", "inputs")
	}
	graph, err := p.executionGraph(exec)
	if err != nil {
		return exec.ProcessName, err
	}
	for i, in := range cmd.Inputs {
		where := refWhere(i)
		leaf, err := state.Resolve(exec.State, in.Ref, state.WRITE, where)
		if err != nil {
			return exec.ProcessName, err
		}
		if !leaf.Valid() {
			return exec.ProcessName, api.NewRefResolutionError(in.Ref, where, "input %s is not valid and can not be patched", leaf.Canonical())
		}
		node, err := graph.Node(leaf.Node.Id)
		if err != nil {
			return exec.ProcessName, err
		}
		if err := authorize(node.GetDef().Actors, cmd.UserIdentifier); err != nil {
			return exec.ProcessName, err
		}
		def, ok := inputDef(node.GetDef(), leaf.Form.Ref, leaf.InputName)
		if !ok {
			return exec.ProcessName, api.NewRefResolutionError(in.Ref, where, "input %s is no longer declared by node %s", leaf.InputName, leaf.Node.Id)
		}
		st, err := p.registry.Validate(def, in.Value, in.Value != nil, valueWhere(i))
		if err != nil {
			return exec.ProcessName, err
		}
		leaf.Input.Value = st.Value
		leaf.Input.ValueCaption = st.ValueCaption
	}
	tx := newTxn(graph, exec, p.now())
	return exec.ProcessName, p.commit(ctx, tx)
}

func (p *Processor) cancel(ctx context.Context, cmd model.Command) (string, error) {
	if err := requireUser(cmd); err != nil {
		return "", err
	}
	exec, err := p.getExecution(ctx, cmd.ExecutionId)
	if err != nil {
		return "", err
	}
	switch exec.Status {
	case model.EXECUTION_CANCELLED:
		return exec.ProcessName, nil
	case model.EXECUTION_FINISHED:
		return exec.ProcessName, api.Invalid("execution_id", "execution %s is already finished", exec.Id)
	}
	graph, err := p.executionGraph(exec)
	if err != nil {
		return exec.ProcessName, err
	}
	tx := newTxn(graph, exec, p.now())
	for _, lp := range exec.Pointers {
		ptr, err := p.executions.GetPointer(ctx, lp.Id)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return exec.ProcessName, storageError(err)
		}
		tx.touch(ptr)
		tx.close(ptr, model.STATE_CANCELLED)
	}
	exec.Pointers = make([]model.LivePointer, 0)
	exec.Status = model.EXECUTION_CANCELLED
	finishedAt := tx.now
	exec.FinishedAt = &finishedAt
	return exec.ProcessName, p.commit(ctx, tx)
}

func (p *Processor) addUser(ctx context.Context, cmd model.Command) (string, error) {
	if err := requireUser(cmd); err != nil {
		return "", err
	}
	if cmd.TargetIdentifier == "" {
		return "", api.Required("target_identifier", "target_identifier")
	}
	ptr, err := p.getPointer(ctx, cmd.PointerId)
	if err != nil {
		return "", err
	}
	exec, err := p.getExecution(ctx, ptr.ExecutionId)
	if err != nil {
		return "", err
	}
	if exec.Status != model.EXECUTION_ONGOING || !exec.IsLive(ptr.Id) {
		return exec.ProcessName, api.NoLivePointer("pointer_id", ptr.Id)
	}
	if slices.Contains(ptr.Actors, cmd.TargetIdentifier) {
		return exec.ProcessName, nil
	}
	graph, err := p.executionGraph(exec)
	if err != nil {
		return exec.ProcessName, err
	}
	ptr.Actors = util.AppendUnique(ptr.Actors, cmd.TargetIdentifier)
	ptr.NotifiedUsers = util.AppendUnique(ptr.NotifiedUsers, cmd.TargetIdentifier)
	tx := newTxn(graph, exec, p.now())
	tx.touch(ptr)
	return exec.ProcessName, p.commit(ctx, tx)
}

func (p *Processor) commit(ctx context.Context, tx *txn) error {
	exec := tx.exec
	if exec.Status == model.EXECUTION_ONGOING && len(exec.Pointers) == 0 {
		exec.Status = model.EXECUTION_FINISHED
		finishedAt := tx.now
		exec.FinishedAt = &finishedAt
	}
	expected := exec.Version
	pointers := tx.pointers()
	if err := p.executions.Commit(ctx, exec, pointers, expected); err != nil {
		return storageError(err)
	}
	for _, ptr := range pointers {
		p.metrics.PointerTransition(string(ptr.NodeKind), string(ptr.Status))
	}
	entries := tx.history()
	p.history.Record(entries)
	logger.Debug("execution committed", zap.String("execution", exec.Id), zap.Int64("version", exec.Version), zap.String("status", string(exec.Status)), zap.Int("pointers", len(pointers)), zap.Int("history", len(entries)))
	return nil
}

// startGraph loads the version a start command asks for, or the current
// one.
func (p *Processor) startGraph(cmd model.Command) (*process.Graph, error) {
	if cmd.ProcessVersion != "" {
		return graphOrError(p.metadataService.GetGraphVersion(cmd.Process, cmd.ProcessVersion))
	}
	return graphOrError(p.metadataService.GetGraph(cmd.Process))
}

// executionGraph loads the version exec was started on.
func (p *Processor) executionGraph(exec *model.Execution) (*process.Graph, error) {
	return graphOrError(p.metadataService.GetGraphVersion(exec.ProcessName, exec.ProcessVersion))
}

func graphOrError(g *process.Graph, err error) (*process.Graph, error) {
	if err != nil {
		var graphErr api.GraphError
		if errors.As(err, &graphErr) {
			return nil, err
		}
		return nil, storageError(err)
	}
	return g, nil
}

func (p *Processor) getExecution(ctx context.Context, id string) (*model.Execution, error) {
	if id == "" {
		return nil, api.Required("execution_id", "execution_id")
	}
	exec, err := p.executions.GetExecution(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, api.Invalid("execution_id", "execution %s not found", id)
		}
		return nil, storageError(err)
	}
	return exec, nil
}

func (p *Processor) getPointer(ctx context.Context, id string) (*model.Pointer, error) {
	if id == "" {
		return nil, api.Required("pointer_id", "pointer_id")
	}
	ptr, err := p.executions.GetPointer(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, api.NoLivePointer("pointer_id", id)
		}
		return nil, storageError(err)
	}
	return ptr, nil
}

func storageError(err error) error {
	var conflict persistence.ConflictError
	if errors.As(err, &conflict) {
		return api.NewInfrastructureError(api.CODE_INFRA_CONFLICT, err)
	}
	return api.NewInfrastructureError(api.CODE_INFRA_STORAGE, err)
}

func requireUser(cmd model.Command) error {
	if cmd.UserIdentifier == "" {
		return api.Forbidden("user_identifier", "an acting user is required")
	}
	return nil
}

func authorize(permitted []string, user string) error {
	if user == "" {
		return api.Forbidden("user_identifier", "an acting user is required")
	}
	if !util.Permitted(permitted, user) {
		return api.Forbidden("user_identifier", "user %s is not allowed to act here", user)
	}
	return nil
}
