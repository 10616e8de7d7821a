// Package worker provides the asynchronous pool that scores and promotes
// memories off the caller's write path.
//
// The pool is bounded: when the queue is full new jobs are dropped rather
// than blocking the caller, so a slow scorer never adds latency to writes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/tiermem/pkg/memory"
	"github.com/papercomputeco/tiermem/pkg/metrics"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Record memory.Record
}

// Handler processes one job. The context is not tied to any request.
type Handler func(ctx context.Context, job Job)

// Config is the configuration options for the worker pool.
type Config struct {
	// Handler runs each job. Required.
	Handler Handler

	// NumWorkers is the number of background workers in the pool (defaults to 3).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	Logger *slog.Logger
}

// Pool processes jobs asynchronously via a fixed set of goroutines.
type Pool struct {
	handler Handler
	queue   chan Job
	wg      sync.WaitGroup
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool

	// pending counts accepted jobs that have not finished.
	pendingMu sync.Mutex
	pending   int
	idle      *sync.Cond
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c Config) (*Pool, error) {
	if c.Handler == nil {
		return nil, errors.New("worker handler is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		handler: c.Handler,
		queue:   make(chan Job, c.QueueSize),
		logger:  logger.With("component", "worker"),
	}
	wp.idle = sync.NewCond(&wp.pendingMu)

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed",
			"owner_id", job.Record.OwnerID,
			"actor_id", job.Record.ActorID,
		)
		metrics.RecordQueueDrop()
		return false
	}

	p.pendingMu.Lock()
	p.pending++
	p.pendingMu.Unlock()

	select {
	case p.queue <- job:
		metrics.SetQueueDepth(len(p.queue))
		p.logger.Debug("job queued",
			"owner_id", job.Record.OwnerID,
			"actor_id", job.Record.ActorID,
		)
		return true
	default:
		p.done()
		metrics.RecordQueueDrop()
		p.logger.Warn("job not queued, queue full, job dropped",
			"owner_id", job.Record.OwnerID,
			"actor_id", job.Record.ActorID,
		)
		return false
	}
}

// Len returns the number of queued jobs.
func (p *Pool) Len() int {
	return len(p.queue)
}

// Flush blocks until every job accepted so far has finished.
func (p *Pool) Flush() {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	for p.pending > 0 {
		p.idle.Wait()
	}
}

func (p *Pool) done() {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	p.pending--
	if p.pending == 0 {
		p.idle.Broadcast()
	}
}

// Close signals workers to stop and waits for queued jobs to drain.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		metrics.SetQueueDepth(len(p.queue))
		p.run(job)
	}

	p.logger.Debug("worker stopped", "worker_id", id)
}

func (p *Pool) run(job Job) {
	defer p.done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked",
				"owner_id", job.Record.OwnerID,
				"panic", r,
			)
		}
	}()
	p.handler(context.Background(), job)
}
