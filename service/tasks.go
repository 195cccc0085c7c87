package service

import (
	"context"
	"errors"

	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Task is a pointer as shown to one of its actors.
type Task struct {
	*model.Pointer
	Execution *model.Execution `json:"execution,omitempty"`
	FormArray []model.FormDef  `json:"form_array,omitempty"`
}

type Activity struct {
	*model.Activity
	Execution *model.Execution `json:"execution,omitempty"`
}

func requireIdentity(user model.User) error {
	if user.Identifier == "" {
		return api.Forbidden("user_identifier", "an acting user is required")
	}
	return nil
}

// ListTasks returns the live pointers user is expected to act on.
func (s *ExecutionService) ListTasks(ctx context.Context, user model.User) ([]Task, error) {
	if err := requireIdentity(user); err != nil {
		return nil, err
	}
	pointers, err := s.executions.ListTasks(ctx, user.Identifier)
	if err != nil {
		return nil, api.NewInfrastructureError(api.CODE_INFRA_STORAGE, err)
	}
	executions := make(map[string]*model.Execution)
	out := make([]Task, 0, len(pointers))
	for _, ptr := range pointers {
		exec, err := s.cachedExecution(ctx, executions, ptr.ExecutionId)
		if err != nil {
			return nil, err
		}
		if exec == nil {
			continue
		}
		out = append(out, Task{Pointer: ptr, Execution: exec})
	}
	return out, nil
}

// GetTask returns a pointer assigned to user together with the forms its
// node asks for.
func (s *ExecutionService) GetTask(ctx context.Context, user model.User, pointerId string) (*Task, error) {
	if err := requireIdentity(user); err != nil {
		return nil, err
	}
	ptr, err := s.executions.GetPointer(ctx, pointerId)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(ptr.Actors, user.Identifier) {
		return nil, api.Forbidden("user_identifier", "user %s does not have task %s assigned", user.Identifier, pointerId)
	}
	exec, err := s.executions.GetExecution(ctx, ptr.ExecutionId)
	if err != nil {
		return nil, err
	}
	graph, err := s.metadataService.GetGraphVersion(exec.ProcessName, exec.ProcessVersion)
	if err != nil {
		return nil, err
	}
	node, err := graph.Node(ptr.NodeId)
	if err != nil {
		return nil, err
	}
	return &Task{Pointer: ptr, Execution: exec, FormArray: node.GetDef().Forms}, nil
}

// ListActivities returns the nodes user acted on.
func (s *ExecutionService) ListActivities(ctx context.Context, user model.User) ([]Activity, error) {
	if err := requireIdentity(user); err != nil {
		return nil, err
	}
	activities, err := s.executions.ListActivities(ctx, user.Identifier)
	if err != nil {
		return nil, api.NewInfrastructureError(api.CODE_INFRA_STORAGE, err)
	}
	executions := make(map[string]*model.Execution)
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		exec, err := s.cachedExecution(ctx, executions, a.ExecutionId)
		if err != nil {
			return nil, err
		}
		out = append(out, Activity{Activity: a, Execution: exec})
	}
	return out, nil
}

func (s *ExecutionService) GetActivity(ctx context.Context, user model.User, id string) (*Activity, error) {
	if err := requireIdentity(user); err != nil {
		return nil, err
	}
	a, err := s.executions.GetActivity(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, api.Invalid("activity_id", "activity_id is not valid")
		}
		return nil, api.NewInfrastructureError(api.CODE_INFRA_STORAGE, err)
	}
	if a.User.Identifier != user.Identifier {
		return nil, api.Forbidden("user_identifier", "activity %s belongs to another user", id)
	}
	exec, err := s.executions.GetExecution(ctx, a.ExecutionId)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return nil, api.NewInfrastructureError(api.CODE_INFRA_STORAGE, err)
	}
	return &Activity{Activity: a, Execution: exec}, nil
}

// cachedExecution loads an execution once per listing. A missing execution
// is logged and reported as nil.
func (s *ExecutionService) cachedExecution(ctx context.Context, cache map[string]*model.Execution, id string) (*model.Execution, error) {
	if exec, ok := cache[id]; ok {
		return exec, nil
	}
	exec, err := s.executions.GetExecution(ctx, id)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return nil, api.NewInfrastructureError(api.CODE_INFRA_STORAGE, err)
		}
		logger.Warn("indexed execution is missing", zap.String("execution", id))
		exec = nil
	}
	cache[id] = exec
	return exec, nil
}
