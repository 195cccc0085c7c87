package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/util"
	"go.uber.org/zap"
)

const EXECUTION_KEY string = "EXECUTION"
const POINTER_KEY string = "POINTER"
const TASKS_KEY string = "TASKS"
const ACTIVITY_KEY string = "ACTIVITY"
const ACTIVITIES_KEY string = "ACTIVITIES"

var _ persistence.ExecutionStorage = new(redisExecutionStorage)

type redisExecutionStorage struct {
	*baseDao
	executionEncDec util.EncoderDecoder[model.Execution]
	pointerEncDec   util.EncoderDecoder[model.Pointer]
	activityEncDec  util.EncoderDecoder[model.Activity]
}

func NewRedisExecutionStorage(conf Config) *redisExecutionStorage {
	return &redisExecutionStorage{
		baseDao:         newBaseDao(conf),
		executionEncDec: util.NewJsonEncoderDecoder[model.Execution](),
		pointerEncDec:   util.NewJsonEncoderDecoder[model.Pointer](),
		activityEncDec:  util.NewJsonEncoderDecoder[model.Activity](),
	}
}

func (r *redisExecutionStorage) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	key := r.getNamespaceKey(EXECUTION_KEY, id)
	val, err := r.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFound("execution", id)
		}
		logger.Error("error getting execution", zap.String("execution", id), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.executionEncDec.Decode([]byte(val))
}

func (r *redisExecutionStorage) GetPointer(ctx context.Context, id string) (*model.Pointer, error) {
	key := r.getNamespaceKey(POINTER_KEY, id)
	val, err := r.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFound("pointer", id)
		}
		logger.Error("error getting pointer", zap.String("pointer", id), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.pointerEncDec.Decode([]byte(val))
}

func (r *redisExecutionStorage) Commit(ctx context.Context, exec *model.Execution, pointers []*model.Pointer, expectedVersion int64) error {
	key := r.getNamespaceKey(EXECUTION_KEY, exec.Id)
	next := *exec
	next.Version = expectedVersion + 1
	data, err := r.executionEncDec.Encode(next)
	if err != nil {
		return err
	}
	pointerData := make(map[string][]byte, len(pointers))
	for _, p := range pointers {
		pd, err := r.pointerEncDec.Encode(*p)
		if err != nil {
			return err
		}
		pointerData[r.getNamespaceKey(POINTER_KEY, p.Id)] = pd
	}
	activities := exec.Activities()
	activityData := make([][]byte, 0, len(activities))
	for _, a := range activities {
		ad, err := r.activityEncDec.Encode(a)
		if err != nil {
			return err
		}
		activityData = append(activityData, ad)
	}
	score := float64(time.Now().UnixMilli())

	conflict := persistence.ConflictError{ExecutionId: exec.Id, Expected: expectedVersion}
	txf := func(tx *rd.Tx) error {
		stored, err := tx.Get(ctx, key).Result()
		version := int64(0)
		if err == nil {
			current, err := r.executionEncDec.Decode([]byte(stored))
			if err != nil {
				return err
			}
			version = current.Version
		} else if !errors.Is(err, rd.Nil) {
			return err
		}
		if version != expectedVersion {
			return conflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			for pk, pd := range pointerData {
				pipe.Set(ctx, pk, pd, 0)
			}
			for _, p := range pointers {
				for _, user := range p.Actors {
					if p.IsTaskOf(user) {
						pipe.SAdd(ctx, r.getNamespaceKey(TASKS_KEY, user), p.Id)
					} else {
						pipe.SRem(ctx, r.getNamespaceKey(TASKS_KEY, user), p.Id)
					}
				}
			}
			for i, a := range activities {
				pipe.SetNX(ctx, r.getNamespaceKey(ACTIVITY_KEY, a.Id), activityData[i], 0)
				pipe.ZAddNX(ctx, r.getNamespaceKey(ACTIVITIES_KEY, a.User.Identifier), rd.Z{Score: score, Member: a.Id})
			}
			return nil
		})
		return err
	}

	err = r.redisClient.Watch(ctx, txf, key)
	if err != nil {
		if errors.Is(err, rd.TxFailedErr) {
			return conflict
		}
		var ce persistence.ConflictError
		if errors.As(err, &ce) {
			return ce
		}
		logger.Error("error committing execution", zap.String("execution", exec.Id), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	exec.Version = next.Version
	return nil
}

func (r *redisExecutionStorage) ListTasks(ctx context.Context, user string) ([]*model.Pointer, error) {
	ids, err := r.redisClient.SMembers(ctx, r.getNamespaceKey(TASKS_KEY, user)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	values, err := r.values(ctx, POINTER_KEY, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Pointer, 0, len(values))
	for _, v := range values {
		p, err := r.pointerEncDec.Decode(v)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	persistence.SortTasks(out)
	return out, nil
}

func (r *redisExecutionStorage) ListActivities(ctx context.Context, user string) ([]*model.Activity, error) {
	ids, err := r.redisClient.ZRange(ctx, r.getNamespaceKey(ACTIVITIES_KEY, user), 0, -1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	values, err := r.values(ctx, ACTIVITY_KEY, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Activity, 0, len(values))
	for _, v := range values {
		a, err := r.activityEncDec.Decode(v)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *redisExecutionStorage) GetActivity(ctx context.Context, id string) (*model.Activity, error) {
	val, err := r.redisClient.Get(ctx, r.getNamespaceKey(ACTIVITY_KEY, id)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFound("activity", id)
		}
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return r.activityEncDec.Decode([]byte(val))
}

// values reads the documents of ids under prefix, skipping missing ones.
func (r *redisExecutionStorage) values(ctx context.Context, prefix string, ids []string) ([][]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*rd.StringCmd, 0, len(ids))
	_, err := r.redisClient.Pipelined(ctx, func(pipe rd.Pipeliner) error {
		for _, id := range ids {
			cmds = append(cmds, pipe.Get(ctx, r.getNamespaceKey(prefix, id)))
		}
		return nil
	})
	if err != nil && !errors.Is(err, rd.Nil) {
		logger.Error("error reading documents", zap.String("kind", prefix), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([][]byte, 0, len(cmds))
	for _, cmd := range cmds {
		val, err := cmd.Bytes()
		if err != nil {
			continue
		}
		out = append(out, val)
	}
	return out, nil
}
