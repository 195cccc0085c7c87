package redis

import (
	"context"

	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/util"
)

const HISTORY_KEY string = "HISTORY"

var _ persistence.HistoryStorage = new(redisHistoryStorage)

type redisHistoryStorage struct {
	*baseDao
	entryEncDec util.EncoderDecoder[model.HistoryEntry]
}

func NewRedisHistoryStorage(conf Config) *redisHistoryStorage {
	return &redisHistoryStorage{
		baseDao:     newBaseDao(conf),
		entryEncDec: util.NewJsonEncoderDecoder[model.HistoryEntry](),
	}
}

func (r *redisHistoryStorage) Append(ctx context.Context, entries []model.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	byExecution := make(map[string][]any)
	for _, entry := range entries {
		data, err := r.entryEncDec.Encode(entry)
		if err != nil {
			return err
		}
		key := r.getNamespaceKey(HISTORY_KEY, entry.Execution.Id)
		byExecution[key] = append(byExecution[key], data)
	}
	for key, values := range byExecution {
		if err := r.redisClient.RPush(ctx, key, values...).Err(); err != nil {
			return persistence.StorageLayerError{Message: err.Error()}
		}
	}
	return nil
}

func (r *redisHistoryStorage) List(ctx context.Context, executionId string) ([]model.HistoryEntry, error) {
	key := r.getNamespaceKey(HISTORY_KEY, executionId)
	values, err := r.redisClient.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]model.HistoryEntry, 0, len(values))
	for _, v := range values {
		entry, err := r.entryEncDec.Decode([]byte(v))
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, nil
}
