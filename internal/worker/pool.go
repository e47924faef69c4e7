package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Runner executes post-commit work off the request path.
type Runner interface {
	Go(ctx context.Context, fn func(ctx context.Context))
}

// Inline runs fn on the caller's goroutine. Used by tests and single-shot tools.
type Inline struct{}

func (Inline) Go(ctx context.Context, fn func(ctx context.Context)) { fn(ctx) }

type job struct {
	ctx context.Context
	fn  func(ctx context.Context)
}

// Pool is a fixed set of workers reading from a bounded queue.
// Go blocks when the queue is full; after Close it runs fn inline.
type Pool struct {
	log  *zap.Logger
	jobs chan job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(workers, queue int, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	p := &Pool{log: log, jobs: make(chan job, queue)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("background job panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	j.fn(j.ctx)
}

func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context)) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		p.run(job{ctx: ctx, fn: fn})
		return
	}
	p.jobs <- job{ctx: ctx, fn: fn}
	p.mu.RUnlock()
}

// Close stops accepting work and waits until queued jobs finish or ctx expires.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
