// worker/pool.go
package worker

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("worker pool is closed")

type Job[T any] func() T

type Result[T any] struct {
	JobID  string
	Output T
}

type Pool[T any] struct {
	jobs    chan jobWrapper[T]
	results chan Result[T]

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type jobWrapper[T any] struct {
	id string
	fn Job[T]
}

// NewPool starts workerCount goroutines. Results must be drained by the
// caller or workers block once bufferSize results are pending.
func NewPool[T any](workerCount int, bufferSize int) *Pool[T] {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool[T]{
		jobs:    make(chan jobWrapper[T], bufferSize),
		results: make(chan Result[T], bufferSize),
	}

	p.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go p.worker()
	}

	return p
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		output := job.fn()
		p.results <- Result[T]{
			JobID:  job.id,
			Output: output,
		}
	}
}

// Submit queues a job. It blocks while the queue is full.
func (p *Pool[T]) Submit(id string, fn Job[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	p.jobs <- jobWrapper[T]{id: id, fn: fn}
	return nil
}

func (p *Pool[T]) Results() <-chan Result[T] {
	return p.results
}

// Close stops accepting jobs, waits for queued jobs to finish and then
// closes the results channel. It is safe to call more than once.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	close(p.results)
}
