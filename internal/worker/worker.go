package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

const (
	defaultQueueSize = 1000
	taskTimeout      = 10 * time.Second
)

type WorkerPool struct {
	taskQueue chan Task
	wg        sync.WaitGroup
	mu        sync.RWMutex // guards close(taskQueue) against in-flight Submit
	isClosing atomic.Bool
	dropped   atomic.Int64
	log       zerolog.Logger
}

func NewWorkerPool(size int, log zerolog.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	wp := &WorkerPool{
		taskQueue: make(chan Task, defaultQueueSize),
		log:       log.With().Str("component", "worker").Logger(),
	}

	// Start the workers
	for range size {
		wp.wg.Add(1)
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done()
	for task := range wp.taskQueue {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		if err := task(ctx); err != nil {
			wp.log.Error().Err(err).Msg("worker task failed")
		}
		cancel()
	}
}

// Submit queues a task. It reports false when the pool is shutting down or
// the queue is full; the task is dropped in both cases.
func (wp *WorkerPool) Submit(t Task) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.isClosing.Load() {
		wp.log.Warn().Msg("task submitted during shutdown, dropping")
		wp.dropped.Add(1)
		return false
	}
	select {
	case wp.taskQueue <- t:
		return true
	default:
		wp.log.Warn().Msg("task queue full, dropping task")
		wp.dropped.Add(1)
		return false
	}
}

// Dropped is the number of tasks rejected so far.
func (wp *WorkerPool) Dropped() int64 {
	return wp.dropped.Load()
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.isClosing.Swap(true) {
		wp.mu.Unlock()
		return
	}
	close(wp.taskQueue)
	wp.mu.Unlock()

	wp.wg.Wait()
}
