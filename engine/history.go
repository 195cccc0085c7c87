package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/util"
)

const HISTORY_WRITE_TIMEOUT = 5 * time.Second

// HistoryRecorder appends history entries after the command that produced
// them is committed. Writes happen on a worker goroutine; a failed write is
// logged and never undoes the commit.
type HistoryRecorder struct {
	storage persistence.HistoryStorage
	worker  *util.Worker
}

func NewHistoryRecorder(storage persistence.HistoryStorage, wg *sync.WaitGroup, capacity int) *HistoryRecorder {
	r := &HistoryRecorder{storage: storage}
	r.worker = util.NewWorker("history-recorder", wg, r.handle, capacity)
	return r
}

func (r *HistoryRecorder) Start() {
	r.worker.Start()
}

// Stop writes what is still queued and returns.
func (r *HistoryRecorder) Stop() error {
	return r.worker.Stop()
}

func (r *HistoryRecorder) Record(entries []model.HistoryEntry) {
	if r == nil || len(entries) == 0 {
		return
	}
	r.worker.Sender() <- entries
}

func (r *HistoryRecorder) handle(task util.Task) error {
	entries, ok := task.([]model.HistoryEntry)
	if !ok {
		return fmt.Errorf("unexpected history task %T", task)
	}
	ctx, cancel := context.WithTimeout(context.Background(), HISTORY_WRITE_TIMEOUT)
	defer cancel()
	return r.storage.Append(ctx, entries)
}
