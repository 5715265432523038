// Package concurrency provides the bounded worker pool that runs
// low-priority background work such as prefetches.
//
// The pool never blocks a submitter: when the queue is full the task is
// refused with a QUEUE_FULL error and the caller decides what to do.
package concurrency

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rafaelminatto1/fisioflow-51658291-sub014/internal/errors"
)

// PoolConfig contains configuration for the worker pool.
type PoolConfig struct {
	Name      string
	Workers   int
	QueueSize int
}

// Task represents a unit of work to be executed.
type Task struct {
	ID       string
	Execute  func(ctx context.Context) error
	Callback func(id string, err error)
}

// Recorder receives pool events for metrics.
type Recorder interface {
	RecordTaskSubmission(pool string, accepted bool)
	RecordTaskExecution(pool string, duration time.Duration, err error)
	RecordWorkerPanic(pool string)
	RecordQueueDepth(pool string, depth int)
}

type nopRecorder struct{}

func (nopRecorder) RecordTaskSubmission(string, bool)                {}
func (nopRecorder) RecordTaskExecution(string, time.Duration, error) {}
func (nopRecorder) RecordWorkerPanic(string)                         {}
func (nopRecorder) RecordQueueDepth(string, int)                     {}

// DefaultWorkerCount sizes the pool for I/O bound fetches.
func DefaultWorkerCount() int {
	workers := runtime.NumCPU()
	if workers < 2 {
		return 2
	}
	if workers > 8 {
		return 8
	}
	return workers
}

// WorkerPool runs submitted tasks on a fixed set of goroutines.
type WorkerPool struct {
	config      PoolConfig
	taskQueue   chan Task
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.RWMutex
	running     bool
	stopped     bool
	poolStarted sync.Once

	recorder Recorder
	logger   *zap.Logger
}

// NewWorkerPool creates a pool. Workers start on Start or on the first
// Submit, whichever comes first.
func NewWorkerPool(ctx context.Context, config PoolConfig, recorder Recorder, logger *zap.Logger) *WorkerPool {
	if config.Name == "" {
		config.Name = "worker_pool"
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkerCount()
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	poolCtx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		config:    config,
		taskQueue: make(chan Task, config.QueueSize),
		ctx:       poolCtx,
		cancel:    cancel,
		recorder:  recorder,
		logger:    logger.With(zap.String("pool", config.Name)),
	}
}

// Start launches the workers. Starting twice is an error.
func (p *WorkerPool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.stopped {
		return errors.Unavailable(errors.CodePoolNotRunning, "Worker pool cannot be started").
			WithOperation("Start").
			WithResource(p.config.Name).
			WithRetryable(false).
			Build()
	}
	p.startLocked()
	return nil
}

func (p *WorkerPool) startWorkersLazy() {
	p.poolStarted.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()

		if !p.running && !p.stopped {
			p.startLocked()
		}
	})
}

func (p *WorkerPool) startLocked() {
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.workerWithRecovery(i)
	}
	p.running = true
	p.logger.Debug("Worker pool started", zap.Int("workers", p.config.Workers))
}

// workerWithRecovery processes tasks and restarts itself after a panic.
func (p *WorkerPool) workerWithRecovery(id int) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker recovered from panic",
				zap.Int("worker", id),
				zap.String("panic", fmt.Sprint(r)),
			)
			p.recorder.RecordWorkerPanic(p.config.Name)

			p.mu.Lock()
			if p.running {
				p.wg.Add(1)
				go p.workerWithRecovery(id)
			}
			p.mu.Unlock()
		}
	}()

	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return

		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.recorder.RecordQueueDepth(p.config.Name, len(p.taskQueue))

			start := time.Now()
			err := task.Execute(p.ctx)
			p.recorder.RecordTaskExecution(p.config.Name, time.Since(start), err)

			if task.Callback != nil {
				task.Callback(task.ID, err)
			}
		}
	}
}

// Submit queues task without blocking. It fails with QUEUE_FULL when the
// queue has no room and with POOL_SHUTTING_DOWN after Stop.
func (p *WorkerPool) Submit(task Task) error {
	p.startWorkersLazy()

	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return errors.Unavailable(errors.CodePoolShuttingDown, "Worker pool is shutting down").
			WithOperation("Submit").
			WithResource(p.config.Name).
			WithRetryable(false).
			Build()
	}

	select {
	case p.taskQueue <- task:
		p.recorder.RecordTaskSubmission(p.config.Name, true)
		p.recorder.RecordQueueDepth(p.config.Name, len(p.taskQueue))
		return nil
	default:
		p.recorder.RecordTaskSubmission(p.config.Name, false)
		return errors.PrefetchSkipped(errors.CodeQueueFull, "Task queue is full").
			WithOperation("Submit").
			WithResource(p.config.Name).
			WithDetails(task.ID).
			Build()
	}
}

// Stop cancels the pool context and waits for the workers to exit. Tasks
// still queued either never run or run with a done context. Stop is safe
// to call more than once.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	wasRunning := p.running
	p.running = false
	p.stopped = true
	p.cancel()
	close(p.taskQueue)
	p.mu.Unlock()

	if wasRunning {
		p.wg.Wait()
		p.logger.Debug("Worker pool stopped")
	}
}

// PoolStats is a point-in-time view of the pool.
type PoolStats struct {
	Name          string `json:"name"`
	Workers       int    `json:"workers"`
	QueueDepth    int    `json:"queueDepth"`
	QueueCapacity int    `json:"queueCapacity"`
	Running       bool   `json:"running"`
}

// GetStats returns current pool statistics.
func (p *WorkerPool) GetStats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PoolStats{
		Name:          p.config.Name,
		Workers:       p.config.Workers,
		QueueDepth:    len(p.taskQueue),
		QueueCapacity: cap(p.taskQueue),
		Running:       p.running,
	}
}
