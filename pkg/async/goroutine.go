package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/platinummonkey/jobportal/pkg/observability"
)

// ErrPoolClosed is returned by Submit after Shutdown
var ErrPoolClosed = errors.New("worker pool shut down")

// SafeGo runs fn in a goroutine bounded by timeout. Panics and errors are
// logged instead of crashing the process. logger may be nil.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		if err := run(ctx, fn); err != nil && logger != nil {
			logger.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}

func run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// WorkerPool runs submitted tasks on a fixed number of goroutines. Each task
// gets its own timeout.
type WorkerPool struct {
	taskName string
	timeout  time.Duration
	logger   *observability.Logger

	mu     sync.RWMutex
	closed bool
	workCh chan func(context.Context) error
	doneCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewWorkerPool starts workers goroutines. queue bounds pending tasks; Submit
// blocks when it is full. logger may be nil.
func NewWorkerPool(ctx context.Context, workers, queue int, taskName string, timeout time.Duration, logger *observability.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queue < workers {
		queue = workers
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &WorkerPool{
		taskName: taskName,
		timeout:  timeout,
		logger:   logger,
		workCh:   make(chan func(context.Context) error, queue),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker()
		}()
	}
	go func() {
		wg.Wait()
		close(p.doneCh)
	}()
	return p
}

// Submit queues fn. It returns ErrPoolClosed once the pool is shutting down.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.workCh <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Shutdown stops accepting tasks and waits up to timeout for queued tasks to drain
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var err error
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.workCh)
		p.mu.Unlock()

		select {
		case <-p.doneCh:
		case <-time.After(timeout):
			err = fmt.Errorf("worker pool shutdown timed out after %v", timeout)
		}
		p.cancel()
	})
	return err
}

func (p *WorkerPool) worker() {
	for fn := range p.workCh {
		ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		err := run(ctx, fn)
		cancel()
		if err != nil && p.logger != nil {
			p.logger.WithError(err).WithField("task", p.taskName).Error("pooled task failed")
		}
	}
}
