package notify

import (
	"context"
	"log"
	"sync"
)

// JobKind identifies a notification job. Jobs carry primitive arguments only
// (record IDs, names) since they may outlive the request that queued them.
type JobKind string

const (
	JobObligationCreated JobKind = "obligation_created"
	JobPaymentDetails    JobKind = "payment_details"
	JobPaymentConfirmed  JobKind = "payment_confirmed"
	JobPaymentReminder   JobKind = "payment_reminder"
)

// Dispatcher queues fire-and-forget notification jobs. Implementations must
// never block the caller and never surface delivery failures back to it;
// financial state must not depend on a job completing.
type Dispatcher interface {
	Enqueue(kind JobKind, args ...string)
}

// Handler executes one job kind.
type Handler func(ctx context.Context, args ...string) error

type job struct {
	kind JobKind
	args []string
}

// Queue is an in-process Dispatcher backed by a buffered channel and a small
// worker pool. At-least-once attempted delivery, no success guarantee; a full
// buffer drops the job with a log line rather than blocking a request.
type Queue struct {
	jobs     chan job
	handlers map[JobKind]Handler
	mu       sync.RWMutex
	wg       sync.WaitGroup
	stop     context.CancelFunc
}

func NewQueue(buffer int) *Queue {
	if buffer <= 0 {
		buffer = 256
	}
	return &Queue{
		jobs:     make(chan job, buffer),
		handlers: make(map[JobKind]Handler),
	}
}

func (q *Queue) Register(kind JobKind, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

// Start launches the worker pool. Workers run until Stop is called.
func (q *Queue) Start(workers int) {
	if workers <= 0 {
		workers = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.stop = cancel
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-q.jobs:
			q.run(ctx, j)
		}
	}
}

func (q *Queue) run(ctx context.Context, j job) {
	q.mu.RLock()
	h, ok := q.handlers[j.kind]
	q.mu.RUnlock()
	if !ok {
		log.Printf("notify: no handler registered for job kind %s", j.kind)
		return
	}
	if err := h(ctx, j.args...); err != nil {
		log.Printf("notify: job %s %v failed: %v", j.kind, j.args, err)
	}
}

// Enqueue queues a job without blocking. Jobs queued when the buffer is full
// are dropped and logged.
func (q *Queue) Enqueue(kind JobKind, args ...string) {
	select {
	case q.jobs <- job{kind: kind, args: args}:
	default:
		log.Printf("notify: queue full, dropping job %s %v", kind, args)
	}
}

// Stop signals workers to exit and waits for in-flight jobs.
func (q *Queue) Stop() {
	if q.stop != nil {
		q.stop()
	}
	q.wg.Wait()
}

// NopDispatcher discards every job. Used in tests and as a safe default.
type NopDispatcher struct{}

func (NopDispatcher) Enqueue(kind JobKind, args ...string) {}
