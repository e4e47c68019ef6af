package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/beacon/internal/core/effects"
)

// ErrExecutorClosed is returned by AsyncEffectExecutor.Execute after Close.
var ErrExecutorClosed = errors.New("effect executor closed")

// AsyncEffectExecutor hands effects to a fixed pool of workers so a tick never
// waits on fan-out. Each batch runs under its own dispatch timeout, detached
// from the caller's cancellation.
type AsyncEffectExecutor struct {
	inner   EffectExecutor
	timeout time.Duration
	logger  *slog.Logger

	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx  context.Context
	effs []effects.Effect
}

// NewAsyncEffectExecutor starts workers goroutines draining into inner.
func NewAsyncEffectExecutor(inner EffectExecutor, workers int, timeout time.Duration, logger *slog.Logger) *AsyncEffectExecutor {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &AsyncEffectExecutor{
		inner:   inner,
		timeout: timeout,
		logger:  logger,
		jobs:    make(chan job, workers*2),
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

func (e *AsyncEffectExecutor) worker() {
	defer e.wg.Done()
	for j := range e.jobs {
		e.run(j)
	}
}

func (e *AsyncEffectExecutor) run(j job) {
	ctx := j.ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	if err := e.inner.Execute(ctx, j.effs); err != nil {
		e.logger.Error("effect dispatch failed", "effects", len(j.effs), "error", err)
	}
}

// Execute queues effs and returns once a worker slot is available.
// It blocks while the queue is full, until ctx is done.
func (e *AsyncEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	if len(effs) == 0 {
		return nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrExecutorClosed
	}

	select {
	case e.jobs <- job{ctx: context.WithoutCancel(ctx), effs: effs}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting effects and waits for queued ones to finish.
func (e *AsyncEffectExecutor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	e.wg.Wait()
}

// Ensure AsyncEffectExecutor implements the interface
var _ EffectExecutor = (*AsyncEffectExecutor)(nil)
