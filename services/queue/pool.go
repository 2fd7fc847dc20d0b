// Package queuesvc runs outcome tasks on a bounded worker pool, retrying
// transient failures with exponential backoff.
package queuesvc

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sourcegraph/conc"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/outcomes"
)

var (
	initialBackoff = time.Second // mockable
	maxBackoff     = 30 * time.Second
)

type Pool struct {
	dispatcher *outcomes.Dispatcher
	tasks      chan outcomes.Task
	workers    conc.WaitGroup
	maxRetries int
	logger     core.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

var _ outcomes.Queue = (*Pool)(nil)

func NewPool(dispatcher *outcomes.Dispatcher, conf *core.Config, logger core.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		dispatcher: dispatcher,
		tasks:      make(chan outcomes.Task, conf.Outcomes.QueueSize),
		maxRetries: conf.Outcomes.MaxRetries,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches n workers consuming the task queue.
func (p *Pool) Start(n int) {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.workers.Go(p.work)
	}
}

// Submit enqueues a task for asynchronous dispatch. It never blocks the
// caller: when the queue is full the task is dropped with an error log —
// a dropped task is recovered by the next score change for the assignment.
func (p *Pool) Submit(t outcomes.Task) {
	select {
	case p.tasks <- t:
	default:
		p.logger.Error(fmt.Sprintf("queue: full, dropping task for assignment %d", t.AssignmentID))
	}
}

// Stop drains queued tasks and waits for workers to finish, up to the context
// deadline.
func (p *Pool) Stop(ctx context.Context) error {
	close(p.tasks)

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel() // abort in-flight sends
		return ctx.Err()
	}
}

func (p *Pool) work() {
	for t := range p.tasks {
		p.run(t)
	}
}

// run executes one task, retrying transient failures per the configured
// budget. Retries reuse the task untouched; the version submitted is the
// version retried.
func (p *Pool) run(t outcomes.Task) {
	operation := func() error {
		err := p.dispatcher.Dispatch(p.ctx, t)
		if err == nil {
			return nil
		}
		if outcomes.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialBackoff
	policy.MaxInterval = maxBackoff

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(p.maxRetries)), p.ctx,
	))
	if err != nil && outcomes.IsTransient(err) {
		// retry budget exhausted; final
		p.logger.Error(fmt.Sprintf(
			"queue: giving up on assignment %d after %d retries: %v", t.AssignmentID, p.maxRetries, err,
		), err)
	}
}
