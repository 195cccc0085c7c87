package redis

import (
	"context"
	"errors"
	"sort"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/util"
	"go.uber.org/zap"
)

const PROCESS_KEY string = "PROCESS"
const PROCESS_SET_KEY string = "PROCESSES"
const PROCESS_VERSION_KEY string = "PROCESS_VERSION"
const PROCESS_VERSION_SET_KEY string = "PROCESS_VERSIONS"

var _ persistence.MetadataStorage = new(redisMetadataStorage)

type redisMetadataStorage struct {
	*baseDao
	processEncDec util.EncoderDecoder[model.Process]
}

func NewRedisMetadataStorage(conf Config) *redisMetadataStorage {
	return &redisMetadataStorage{
		baseDao:       newBaseDao(conf),
		processEncDec: util.NewJsonEncoderDecoder[model.Process](),
	}
}

func (rms *redisMetadataStorage) SaveProcess(p model.Process) error {
	key := rms.getNamespaceKey(PROCESS_KEY, p.Name)
	ctx := context.Background()
	data, err := rms.processEncDec.Encode(p)
	if err != nil {
		return err
	}
	_, err = rms.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		pipe.Set(ctx, rms.getNamespaceKey(PROCESS_VERSION_KEY, p.Name, p.Version), data, 0)
		pipe.SAdd(ctx, rms.getNamespaceKey(PROCESS_VERSION_SET_KEY, p.Name), p.Version)
		pipe.SAdd(ctx, rms.getNamespaceKey(PROCESS_SET_KEY), p.Name)
		return nil
	})
	if err != nil {
		logger.Error("error in saving process definition", zap.String("process", p.Name), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rms *redisMetadataStorage) DeleteProcess(name string) error {
	ctx := context.Background()
	versionsKey := rms.getNamespaceKey(PROCESS_VERSION_SET_KEY, name)
	versions, err := rms.redisClient.SMembers(ctx, versionsKey).Result()
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	_, err = rms.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		for _, version := range versions {
			pipe.Del(ctx, rms.getNamespaceKey(PROCESS_VERSION_KEY, name, version))
		}
		pipe.Del(ctx, versionsKey)
		pipe.Del(ctx, rms.getNamespaceKey(PROCESS_KEY, name))
		pipe.SRem(ctx, rms.getNamespaceKey(PROCESS_SET_KEY), name)
		return nil
	})
	if err != nil {
		logger.Error("error in deleting process definition", zap.String("process", name), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rms *redisMetadataStorage) GetProcess(name string) (*model.Process, error) {
	return rms.get(rms.getNamespaceKey(PROCESS_KEY, name), name)
}

func (rms *redisMetadataStorage) GetProcessVersion(name string, version string) (*model.Process, error) {
	return rms.get(rms.getNamespaceKey(PROCESS_VERSION_KEY, name, version), name+"@"+version)
}

func (rms *redisMetadataStorage) get(key string, id string) (*model.Process, error) {
	ctx := context.Background()
	val, err := rms.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFound("process", id)
		}
		logger.Error("error in getting process definition", zap.String("process", id), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return rms.processEncDec.Decode([]byte(val))
}

func (rms *redisMetadataStorage) ListProcesses() ([]model.Process, error) {
	ctx := context.Background()
	names, err := rms.redisClient.SMembers(ctx, rms.getNamespaceKey(PROCESS_SET_KEY)).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	sort.Strings(names)
	out := make([]model.Process, 0, len(names))
	for _, name := range names {
		p, err := rms.GetProcess(name)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}
