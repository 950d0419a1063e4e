// Package jobs implements the engine's worker thread pool (spec.md §5): a
// fixed set of workers drains a shared task queue, each holding a
// manual-reset event from an event-pool reservoir while idle, matching the
// "Scheduling model" section of spec.md almost exactly. Adapted from the
// teacher's engine/systems/job.go channel-worker-pool, extended with the
// Task[T]/Future[T] await handle and the abort-on-shutdown hook spec.md §5
// calls for ("Cancellation") that the teacher's version does not have.
package jobs

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/kilnforge/ember/engine/containers"
	"github.com/kilnforge/ember/engine/core"
)

var (
	ErrNoWorkers           = errors.New("jobs: pool requires at least one worker")
	ErrNegativeQueueLength = errors.New("jobs: queue length must be >= 0")
)

// Task is the unit of work submitted to the pool. Run executes on a worker
// goroutine; Abort is invoked instead of Run for queued-but-not-started work
// when the pool shuts down (spec.md §5 "Cancellation").
type Task struct {
	Run   func()
	Abort func()
}

// Future[T] is written exactly once by the worker that completes its task
// and is observed by Await, which blocks on a pooled manual-reset event.
type Future[T any] struct {
	pool  *Pool
	event *containers.ManualResetEvent
	value T
}

// Await blocks until the task's value is written, then returns it.
func (f *Future[T]) Await() T {
	f.event.Wait()
	return f.value
}

func newFuture[T any](p *Pool) *Future[T] {
	return &Future[T]{pool: p, event: p.events.Acquire()}
}

func (f *Future[T]) complete(v T) {
	f.value = v
	f.event.Set()
}

// Pool is a fixed-size worker pool. Workers pull from a shared mutex-guarded
// deque; a worker idles against a pooled manual-reset event once the deque
// is empty rather than a busy spin.
type Pool struct {
	numWorkers int
	events     *containers.EventPool

	mu       sync.Mutex
	queue    []Task
	notEmpty *containers.ManualResetEvent
	closed   atomic.Bool

	wg sync.WaitGroup
}

// NewPool starts numWorkers goroutines draining a shared queue. queueHint
// sizes the initial backing slice (purely an allocation hint; the queue
// itself grows unbounded via append, matching the teacher's unbounded
// buffered channel).
func NewPool(numWorkers, queueHint int) (*Pool, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if queueHint < 0 {
		return nil, ErrNegativeQueueLength
	}
	p := &Pool{
		numWorkers: numWorkers,
		events:     containers.NewEventPool(numWorkers * 2),
		queue:      make([]Task, 0, queueHint),
	}
	p.notEmpty = p.events.Acquire()
	p.start()
	return p, nil
}

func (p *Pool) start() {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		task, ok := p.dequeue()
		if !ok {
			return // pool closed and drained
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					core.LogError("jobs: task panicked: %v", r)
				}
			}()
			task.Run()
		}()
	}
}

func (p *Pool) dequeue() (Task, bool) {
	for {
		p.mu.Lock()
		if len(p.queue) > 0 {
			t := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			return t, true
		}
		closed := p.closed.Load()
		ev := p.notEmpty
		p.mu.Unlock()

		if closed {
			return Task{}, false
		}
		ev.Wait()
	}
}

// Submit enqueues a task for execution by the next free worker.
func (p *Pool) Submit(t Task) {
	p.mu.Lock()
	p.queue = append(p.queue, t)
	ev := p.notEmpty
	p.notEmpty = p.events.Acquire()
	p.mu.Unlock()
	ev.Set()
}

// SubmitFunc is a convenience wrapper producing a Future the caller can
// Await, mirroring the spec's `Task<T>`/`Future<T>` pairing.
func SubmitFunc[T any](p *Pool, fn func() T) *Future[T] {
	fut := newFuture[T](p)
	p.Submit(Task{Run: func() { fut.complete(fn()) }})
	return fut
}

// Shutdown aborts every not-yet-started queued task via its Abort hook,
// then waits for in-flight tasks to finish. A submitted task always runs to
// completion once a worker has picked it up (spec.md §5 "Cancellation").
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed.Store(true)
	remaining := p.queue
	p.queue = nil
	ev := p.notEmpty
	p.mu.Unlock()
	ev.Set()

	for _, t := range remaining {
		if t.Abort != nil {
			t.Abort()
		}
	}
	p.wg.Wait()
}
