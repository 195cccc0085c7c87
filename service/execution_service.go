package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/cluster"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/metadata"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/state"
	"github.com/mohitkumar/humanflow/util"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// ExecutionService is the request facing side of the engine. It reads
// state to reject obviously bad requests early and enqueues commands; it
// never writes execution state itself.
type ExecutionService struct {
	metadataService metadata.MetadataService
	executions      persistence.ExecutionStorage
	history         persistence.HistoryStorage
	queue           persistence.Queue
	ring            *cluster.Ring
	encDec          util.EncoderDecoder[model.Command]
}

func NewExecutionService(metadataService metadata.MetadataService, executions persistence.ExecutionStorage, history persistence.HistoryStorage, queue persistence.Queue, ring *cluster.Ring) *ExecutionService {
	return &ExecutionService{
		metadataService: metadataService,
		executions:      executions,
		history:         history,
		queue:           queue,
		ring:            ring,
		encDec:          util.NewJsonEncoderDecoder[model.Command](),
	}
}

// Start enqueues the start of process and returns the id the execution
// will have.
func (s *ExecutionService) Start(ctx context.Context, user model.User, processName string, input []model.FormSubmission) (string, error) {
	if user.Identifier == "" {
		return "", api.Forbidden("user_identifier", "an acting user is required")
	}
	if processName == "" {
		return "", api.Required("process_name", "process_name")
	}
	graph, err := s.metadataService.GetGraph(processName)
	if err != nil {
		return "", err
	}
	if !util.Permitted(graph.StartNode().GetDef().Actors, user.Identifier) {
		return "", api.Forbidden("user_identifier", "user %s can not start process %s", user.Identifier, processName)
	}
	cmd := model.Command{
		Command:        model.COMMAND_START,
		ExecutionId:    uuid.New().String(),
		Process:        processName,
		ProcessVersion: graph.Process().Version,
		UserIdentifier: user.Identifier,
		HumanName:      user.HumanName,
		Input:          input,
	}
	if err := s.enqueue(ctx, cmd); err != nil {
		return "", err
	}
	logger.Info("execution start enqueued", zap.String("process", processName), zap.String("execution", cmd.ExecutionId))
	return cmd.ExecutionId, nil
}

// Step enqueues a submission on a live pointer. Responses and rejected refs
// are only meaningful on validation nodes.
func (s *ExecutionService) Step(ctx context.Context, user model.User, pointerId string, input []model.FormSubmission, response string, comment string, inputs []model.PatchInput) error {
	ptr, exec, err := s.livePointer(ctx, user, pointerId)
	if err != nil {
		return err
	}
	graph, err := s.metadataService.GetGraphVersion(exec.ProcessName, exec.ProcessVersion)
	if err != nil {
		return err
	}
	node, err := graph.Node(ptr.NodeId)
	if err != nil {
		return err
	}
	if len(node.GetDef().Actors) > 0 && !slices.Contains(ptr.Actors, user.Identifier) {
		return api.Forbidden("user_identifier", "user %s may not act on pointer %s", user.Identifier, ptr.Id)
	}
	if err := checkRefs(inputs); err != nil {
		return err
	}
	return s.enqueue(ctx, model.Command{
		Command:        model.COMMAND_STEP,
		ExecutionId:    ptr.ExecutionId,
		PointerId:      ptr.Id,
		UserIdentifier: user.Identifier,
		HumanName:      user.HumanName,
		Input:          input,
		Response:       response,
		Comment:        comment,
		Inputs:         inputs,
	})
}

func (s *ExecutionService) Patch(ctx context.Context, user model.User, executionId string, inputs []model.PatchInput, comment string) error {
	if user.Identifier == "" {
		return api.Forbidden("user_identifier", "an acting user is required")
	}
	exec, err := s.execution(ctx, executionId)
	if err != nil {
		return err
	}
	if exec.Status == model.EXECUTION_CANCELLED {
		return api.Invalid("execution_id", "execution %s is cancelled", exec.Id)
	}
	if len(inputs) == 0 {
		return api.Required("inputs", "inputs")
	}
	if err := checkRefs(inputs); err != nil {
		return err
	}
	return s.enqueue(ctx, model.Command{
		Command:        model.COMMAND_PATCH,
		ExecutionId:    exec.Id,
		UserIdentifier: user.Identifier,
		HumanName:      user.HumanName,
		Inputs:         inputs,
		Comment:        comment,
	})
}

func (s *ExecutionService) Cancel(ctx context.Context, user model.User, executionId string) error {
	if user.Identifier == "" {
		return api.Forbidden("user_identifier", "an acting user is required")
	}
	exec, err := s.execution(ctx, executionId)
	if err != nil {
		return err
	}
	if exec.Status == model.EXECUTION_FINISHED {
		return api.Invalid("execution_id", "execution %s is already finished", exec.Id)
	}
	return s.enqueue(ctx, model.Command{
		Command:        model.COMMAND_CANCEL,
		ExecutionId:    exec.Id,
		UserIdentifier: user.Identifier,
		HumanName:      user.HumanName,
	})
}

func (s *ExecutionService) AddUser(ctx context.Context, user model.User, pointerId string, target string) error {
	if target == "" {
		return api.Required("identifier", "identifier")
	}
	ptr, _, err := s.livePointer(ctx, user, pointerId)
	if err != nil {
		return err
	}
	return s.enqueue(ctx, model.Command{
		Command:          model.COMMAND_ADD_USER,
		ExecutionId:      ptr.ExecutionId,
		PointerId:        ptr.Id,
		UserIdentifier:   user.Identifier,
		HumanName:        user.HumanName,
		TargetIdentifier: target,
	})
}

func (s *ExecutionService) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	return s.executions.GetExecution(ctx, id)
}

func (s *ExecutionService) GetPointer(ctx context.Context, id string) (*model.Pointer, error) {
	return s.executions.GetPointer(ctx, id)
}

// GetHistory lists the finished nodes of an execution, only those of nodeId
// when it is given.
func (s *ExecutionService) GetHistory(ctx context.Context, executionId string, nodeId string) ([]model.HistoryEntry, error) {
	if _, err := s.executions.GetExecution(ctx, executionId); err != nil {
		return nil, err
	}
	entries, err := s.history.List(ctx, executionId)
	if err != nil || nodeId == "" {
		return entries, err
	}
	out := make([]model.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.Node.Id == nodeId {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *ExecutionService) livePointer(ctx context.Context, user model.User, pointerId string) (*model.Pointer, *model.Execution, error) {
	if user.Identifier == "" {
		return nil, nil, api.Forbidden("user_identifier", "an acting user is required")
	}
	if pointerId == "" {
		return nil, nil, api.Required("pointer_id", "pointer_id")
	}
	ptr, err := s.executions.GetPointer(ctx, pointerId)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil, api.NoLivePointer("pointer_id", pointerId)
		}
		return nil, nil, api.NewInfrastructureError(api.CODE_INFRA_STORAGE, err)
	}
	exec, err := s.execution(ctx, ptr.ExecutionId)
	if err != nil {
		return nil, nil, err
	}
	if ptr.Status != model.POINTER_ONGOING || exec.Status != model.EXECUTION_ONGOING || !exec.IsLive(ptr.Id) {
		return nil, nil, api.NoLivePointer("pointer_id", pointerId)
	}
	return ptr, exec, nil
}

func (s *ExecutionService) execution(ctx context.Context, id string) (*model.Execution, error) {
	if id == "" {
		return nil, api.Required("execution_id", "execution_id")
	}
	exec, err := s.executions.GetExecution(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, api.Invalid("execution_id", "execution %s not found", id)
		}
		return nil, api.NewInfrastructureError(api.CODE_INFRA_STORAGE, err)
	}
	return exec, nil
}

func (s *ExecutionService) enqueue(ctx context.Context, cmd model.Command) error {
	data, err := s.encDec.Encode(cmd)
	if err != nil {
		return err
	}
	partition := s.ring.GetPartition(cmd.ExecutionId)
	if err := s.queue.Push(ctx, partition, data); err != nil {
		logger.Error("error enqueuing command", zap.String("command", string(cmd.Command)), zap.String("execution", cmd.ExecutionId), zap.Error(err))
		return api.NewInfrastructureError(api.CODE_INFRA_QUEUE, err)
	}
	return nil
}

// checkRefs rejects refs that can not be parsed; resolving them needs the
// committed state and is left to the processor.
func checkRefs(inputs []model.PatchInput) error {
	for i, in := range inputs {
		if _, err := state.ParseRef(in.Ref); err != nil {
			return api.NewRefResolutionError(in.Ref, fmt.Sprintf("inputs.%d.ref", i), "%s", err.Error())
		}
	}
	return nil
}
