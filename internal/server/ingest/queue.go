// FILE: repertoire/internal/server/ingest/queue.go
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FileTask asks a worker to ingest one PGN file.
type FileTask struct {
	Path     string
	Response chan<- FileResult
}

// FileResult contains the outcome of one file
type FileResult struct {
	Path      string
	Games     int64
	Skipped   int64
	Positions int64
	Elapsed   time.Duration
	Error     error
}

const queueSize = 16

type fileFunc func(ctx context.Context, workerID int, path string) FileResult

// Queue runs file ingests on a fixed pool of workers
type Queue struct {
	tasks   chan FileTask
	workers int
	process fileFunc
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewQueue creates a queue with workerCount workers running process
func NewQueue(workerCount int, process fileFunc) *Queue {
	if workerCount < 1 {
		workerCount = 2
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		tasks:   make(chan FileTask, queueSize),
		workers: workerCount,
		process: process,
		ctx:     ctx,
		cancel:  cancel,
	}

	q.start()
	return q
}

func (q *Queue) start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case task, ok := <-q.tasks:
			if !ok {
				return
			}

			result := q.process(q.ctx, id, task.Path)
			result.Path = task.Path

			// Receiver may have given up
			select {
			case task.Response <- result:
			case <-time.After(100 * time.Millisecond):
			}

		case <-q.ctx.Done():
			return
		}
	}
}

// Submit adds a task to the queue, waiting for room while the workers are
// busy. It fails only once the queue is cancelled.
func (q *Queue) Submit(task FileTask) error {
	select {
	case <-q.ctx.Done():
		return fmt.Errorf("queue is shutting down")
	default:
	}

	select {
	case q.tasks <- task:
		return nil
	case <-q.ctx.Done():
		return fmt.Errorf("queue is shutting down")
	}
}

// Cancel stops in-flight ingests at the next game boundary
func (q *Queue) Cancel() {
	q.cancel()
}

// Shutdown waits for queued files to finish, then stops the workers
func (q *Queue) Shutdown(timeout time.Duration) error {
	close(q.tasks)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-time.After(timeout):
		q.cancel()
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
