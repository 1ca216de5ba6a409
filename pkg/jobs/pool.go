package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueFull reports that the task buffer has no capacity left.
var ErrQueueFull = errors.New("task queue full")

// Task is a unit of background work submitted to the pool.
type Task struct {
	ID       string
	Run      func(context.Context)
	Enqueued time.Time
}

// PoolConfig configures worker behaviour.
type PoolConfig struct {
	Workers    int
	BufferSize int
	Logger     *zap.Logger
}

// Pool is a bounded in-memory task runner backed by goroutines. Tasks are
// executed at most once; failure handling belongs to the task itself.
type Pool struct {
	name    string
	workers int
	logger  *zap.Logger

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewPool builds a task pool.
func NewPool(name string, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Pool{
		name:    name,
		workers: cfg.Workers,
		logger:  cfg.Logger,
		tasks:   make(chan Task, cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.started = true
	p.logger.Sugar().Infow("pool started", "pool", p.name, "workers", p.workers)
}

// Stop cancels workers and waits for them to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.cancel()
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Sugar().Infow("pool stopped", "pool", p.name)
}

// Submit pushes a task onto the pool without blocking; a full buffer is
// reported as ErrQueueFull.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	ctx := p.ctx
	started := p.started
	p.mu.Unlock()

	if !started {
		return fmt.Errorf("pool %s not started", p.name)
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("pool %s stopped: %w", p.name, ctx.Err())
	case p.tasks <- task:
		return nil
	default:
		return fmt.Errorf("pool %s: %w", p.name, ErrQueueFull)
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.tasks:
			task.Run(p.ctx)
		}
	}
}
