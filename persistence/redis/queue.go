package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	rd "github.com/go-redis/redis/v9"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/persistence"
	"go.uber.org/zap"
)

const QUEUE_KEY string = "QUEUE"
const PROCESSING_KEY string = "PROCESSING"

var _ persistence.Queue = new(redisQueue)

// redisQueue is a reliable list queue: messages are pushed on the head,
// popped from the tail into a processing list and removed from there on ack.
type redisQueue struct {
	*baseDao
	name string
}

func NewRedisQueue(conf Config, name string) *redisQueue {
	return &redisQueue{
		baseDao: newBaseDao(conf),
		name:    name,
	}
}

func (rq *redisQueue) queueKey(partition int) string {
	return rq.getNamespaceKey(QUEUE_KEY, rq.name, strconv.Itoa(partition))
}

func (rq *redisQueue) processingKey(partition int) string {
	return rq.getNamespaceKey(PROCESSING_KEY, rq.name, strconv.Itoa(partition))
}

func (rq *redisQueue) Push(ctx context.Context, partition int, message []byte) error {
	queueName := rq.queueKey(partition)
	if err := rq.redisClient.LPush(ctx, queueName, message).Err(); err != nil {
		logger.Error("error while push to redis list", zap.String("queue", queueName), zap.Error(err))
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rq *redisQueue) Poll(ctx context.Context, partition int, timeout time.Duration) (*persistence.Delivery, error) {
	queueName := rq.queueKey(partition)
	var cmd *rd.StringCmd
	if timeout > 0 {
		cmd = rq.redisClient.BRPopLPush(ctx, queueName, rq.processingKey(partition), timeout)
	} else {
		cmd = rq.redisClient.RPopLPush(ctx, queueName, rq.processingKey(partition))
	}
	value, err := cmd.Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		logger.Error("error while pop from redis list", zap.String("queue", queueName), zap.Error(err))
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	return &persistence.Delivery{Partition: partition, Payload: []byte(value)}, nil
}

func (rq *redisQueue) Ack(ctx context.Context, d *persistence.Delivery) error {
	if err := rq.redisClient.LRem(ctx, rq.processingKey(d.Partition), 1, d.Payload).Err(); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

// Requeue puts the message back at the tail so it is the next one polled.
func (rq *redisQueue) Requeue(ctx context.Context, d *persistence.Delivery) error {
	_, err := rq.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.LRem(ctx, rq.processingKey(d.Partition), 1, d.Payload)
		pipe.RPush(ctx, rq.queueKey(d.Partition), d.Payload)
		return nil
	})
	if err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

// Recover moves every pending message back to the queue, oldest polled first.
func (rq *redisQueue) Recover(ctx context.Context, partition int) (int, error) {
	processing := rq.processingKey(partition)
	pending, err := rq.redisClient.LRange(ctx, processing, 0, -1).Result()
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	if len(pending) == 0 {
		return 0, nil
	}
	values := make([]any, 0, len(pending))
	for _, p := range pending {
		values = append(values, p)
	}
	_, err = rq.redisClient.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
		pipe.Del(ctx, processing)
		pipe.RPush(ctx, rq.queueKey(partition), values...)
		return nil
	})
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	logger.Info("recovered pending messages", zap.String("queue", rq.queueKey(partition)), zap.Int("count", len(pending)))
	return len(pending), nil
}

func (rq *redisQueue) Len(ctx context.Context, partition int) (int64, error) {
	n, err := rq.redisClient.LLen(ctx, rq.queueKey(partition)).Result()
	if err != nil {
		return 0, persistence.StorageLayerError{Message: err.Error()}
	}
	return n, nil
}
