package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/mohitkumar/humanflow/persistence"
)

var _ persistence.Queue = new(memoryQueue)

type partitionQueue struct {
	messages   [][]byte
	processing [][]byte
	signal     chan struct{}
}

// memoryQueue mirrors the redis queue semantics in process. Polls wait on a
// per partition signal channel.
type memoryQueue struct {
	mu         sync.Mutex
	partitions map[int]*partitionQueue
}

func NewMemoryQueue() *memoryQueue {
	return &memoryQueue{partitions: make(map[int]*partitionQueue)}
}

func (q *memoryQueue) partition(p int) *partitionQueue {
	pq, ok := q.partitions[p]
	if !ok {
		pq = &partitionQueue{signal: make(chan struct{}, 1)}
		q.partitions[p] = pq
	}
	return pq
}

func (pq *partitionQueue) notify() {
	select {
	case pq.signal <- struct{}{}:
	default:
	}
}

func (q *memoryQueue) Push(ctx context.Context, partition int, message []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	pq := q.partition(partition)
	msg := make([]byte, len(message))
	copy(msg, message)
	pq.messages = append(pq.messages, msg)
	pq.notify()
	return nil
}

func (q *memoryQueue) tryPoll(partition int) (*persistence.Delivery, <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pq := q.partition(partition)
	if len(pq.messages) == 0 {
		return nil, pq.signal
	}
	msg := pq.messages[0]
	pq.messages = pq.messages[1:]
	pq.processing = append(pq.processing, msg)
	if len(pq.messages) > 0 {
		pq.notify()
	}
	return &persistence.Delivery{Partition: partition, Payload: msg}, nil
}

func (q *memoryQueue) Poll(ctx context.Context, partition int, timeout time.Duration) (*persistence.Delivery, error) {
	d, signal := q.tryPoll(partition)
	if d != nil || timeout <= 0 {
		return d, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			d, _ = q.tryPoll(partition)
			return d, nil
		case <-signal:
			d, signal = q.tryPoll(partition)
			if d != nil {
				return d, nil
			}
		}
	}
}

func (pq *partitionQueue) removeProcessing(payload []byte) bool {
	for i, msg := range pq.processing {
		if bytes.Equal(msg, payload) {
			pq.processing = append(pq.processing[:i], pq.processing[i+1:]...)
			return true
		}
	}
	return false
}

func (q *memoryQueue) Ack(ctx context.Context, d *persistence.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.partition(d.Partition).removeProcessing(d.Payload)
	return nil
}

func (q *memoryQueue) Requeue(ctx context.Context, d *persistence.Delivery) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	pq := q.partition(d.Partition)
	pq.removeProcessing(d.Payload)
	pq.messages = append([][]byte{d.Payload}, pq.messages...)
	pq.notify()
	return nil
}

func (q *memoryQueue) Recover(ctx context.Context, partition int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pq := q.partition(partition)
	n := len(pq.processing)
	if n == 0 {
		return 0, nil
	}
	pq.messages = append(pq.processing, pq.messages...)
	pq.processing = nil
	pq.notify()
	return n, nil
}

func (q *memoryQueue) Len(ctx context.Context, partition int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.partition(partition).messages)), nil
}
