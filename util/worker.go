package util

import (
	"sync"

	"github.com/mohitkumar/humanflow/logger"
	"go.uber.org/zap"
)

type Task any

// Worker runs handler on every task sent to it, one at a time, on its own
// goroutine.
type Worker struct {
	name     string
	stop     chan struct{}
	wg       *sync.WaitGroup
	handler  func(Task) error
	taskChan chan Task
}

func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		for {
			select {
			case task := <-w.taskChan:
				w.handle(task)
			case <-w.stop:
				w.drain()
				logger.Info("stopping worker", zap.String("worker", w.name))
				return
			}
		}
	}()
}

func (w *Worker) handle(task Task) {
	if err := w.handler(task); err != nil {
		logger.Error("error in executing task in worker", zap.String("worker", w.name), zap.Error(err))
	}
}

// drain runs what was queued before Stop.
func (w *Worker) drain() {
	for {
		select {
		case task := <-w.taskChan:
			w.handle(task)
		default:
			return
		}
	}
}

func (w *Worker) Sender() chan<- Task {
	return w.taskChan
}

func (w *Worker) Stop() error {
	w.stop <- struct{}{}
	return nil
}

func NewWorker(name string, wg *sync.WaitGroup, handler func(Task) error, capacity int) *Worker {
	return &Worker{
		taskChan: make(chan Task, capacity),
		name:     name,
		wg:       wg,
		stop:     make(chan struct{}),
		handler:  handler,
	}
}
