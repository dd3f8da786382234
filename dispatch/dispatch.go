// Package dispatch provides the bounded worker pool a transport uses to
// run core operations off its event loop. The pool accepts a task per
// inbound event and delivers results through whatever mechanism the task
// closure captures, keeping the core's API synchronous.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"quadpdf/observability"
)

// ErrQueueFull is returned when the task queue is at capacity.
var ErrQueueFull = errors.New("dispatch: task queue full")

// ErrClosed is returned when submitting to a closed pool.
var ErrClosed = errors.New("dispatch: pool closed")

// Task is one unit of transport work, typically a closure invoking a
// service operation and replying to the originating event.
type Task func(ctx context.Context)

type queued struct {
	ctx  context.Context
	task Task
}

// Pool runs tasks on a fixed number of workers over a bounded queue.
type Pool struct {
	mu     sync.Mutex
	closed bool
	tasks  chan queued
	wg     sync.WaitGroup
	log    observability.Logger
}

// NewPool starts workers goroutines draining a queue of the given size.
func NewPool(workers, queueSize int, log observability.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	if log == nil {
		log = observability.NopLogger{}
	}
	p := &Pool{
		tasks: make(chan queued, queueSize),
		log:   log,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues a task without blocking. The task's context is checked
// again when a worker picks it up, so an event that expired while queued
// is dropped rather than run late.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.tasks <- queued{ctx: ctx, task: task}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tasks, drains the queue, and waits for workers.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for q := range p.tasks {
		if q.ctx != nil && q.ctx.Err() != nil {
			continue
		}
		p.run(q)
	}
}

func (p *Pool) run(q queued) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("task panicked", observability.String("panic", panicString(r)))
		}
	}()
	ctx := q.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	q.task(ctx)
}

func panicString(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "unknown panic"
}
