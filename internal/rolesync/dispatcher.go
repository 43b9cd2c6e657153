package rolesync

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultWorkers   = 1
	defaultQueueSize = 64
)

// ErrDispatcherClosed indicates a task was enqueued after shutdown began.
var ErrDispatcherClosed = errors.New("rolesync: dispatcher closed")

// DispatcherConfig sizes the background propagation queue.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	Logger    *zap.Logger
}

type task struct {
	id     string
	name   string
	run    func(context.Context) error
	fields []zap.Field
}

// Dispatcher executes detached tasks on a bounded worker queue. Enqueue
// blocks when the queue is full rather than dropping work, and Close drains
// every accepted task before returning, so a task accepted before shutdown
// is guaranteed to execute even though its originating request has returned.
type Dispatcher struct {
	tasks  chan task
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher constructs the dispatcher and starts its workers.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dispatcher := &Dispatcher{
		tasks:  make(chan task, queueSize),
		logger: logger,
	}
	dispatcher.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go dispatcher.work()
	}
	return dispatcher
}

// Enqueue submits a task and returns its identifier for log correlation.
func (d *Dispatcher) Enqueue(name string, run func(context.Context) error, fields ...zap.Field) (string, error) {
	taskID, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return "", ErrDispatcherClosed
	}
	// Send while holding the lock so Close cannot close the channel between
	// the closed check and the send.
	d.tasks <- task{id: taskID.String(), name: name, run: run, fields: fields}
	d.mu.Unlock()

	return taskID.String(), nil
}

// Close stops accepting tasks, drains the queue, and waits for the workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for pending := range d.tasks {
		attrs := append([]zap.Field{
			zap.String("task_id", pending.id),
			zap.String("task", pending.name),
		}, pending.fields...)

		if err := pending.run(context.Background()); err != nil {
			d.logger.Error("background task failed", append(attrs, zap.Error(err))...)
			continue
		}
		d.logger.Debug("background task completed", attrs...)
	}
}
