package solver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edusched/timetable-api/pkg/jobs"
)

// JobStatus is the lifecycle state reported for a submitted problem.
type JobStatus string

const (
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobNotFound  JobStatus = "NOT_FOUND"
)

// Sentinel errors returned by job operations; the transport layer maps them
// onto its own taxonomy.
var (
	ErrJobNotFound = errors.New("solver job not found")
	ErrJobNotReady = errors.New("solver job not ready")
)

// Observer receives run telemetry. Implementations must be safe for
// concurrent use.
type Observer interface {
	RunStarted()
	RunFinished(solution *Solution)
}

// Manager executes solver runs asynchronously on a bounded pool and tracks
// them in a concurrent registry keyed by job id. Jobs are held in memory only
// and do not survive a restart.
type Manager struct {
	engine   *Engine
	pool     *jobs.Pool
	observer Observer
	logger   *zap.Logger

	mu      sync.RWMutex
	entries map[string]*jobEntry
}

type jobEntry struct {
	cancel   context.CancelFunc
	done     chan struct{}
	solution *Solution
}

// ManagerConfig wires the manager's pool and engine.
type ManagerConfig struct {
	Engine   *Engine
	Workers  int
	Observer Observer
	Logger   *zap.Logger
}

// NewManager builds a manager. Start must be called before submitting.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Engine == nil {
		cfg.Engine = NewEngine(Config{})
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		engine: cfg.Engine,
		pool: jobs.NewPool("solver", jobs.PoolConfig{
			Workers: cfg.Workers,
			Logger:  cfg.Logger,
		}),
		observer: cfg.Observer,
		logger:   cfg.Logger,
		entries:  make(map[string]*jobEntry),
	}
}

// Start launches the worker pool.
func (m *Manager) Start(ctx context.Context) { m.pool.Start(ctx) }

// Stop drains the pool. Pending jobs terminate with their best-so-far state.
func (m *Manager) Stop() { m.pool.Stop() }

// Submit registers the problem and returns a job id immediately; the run
// executes off the caller's goroutine.
func (m *Manager) Submit(problem Problem) (string, error) {
	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())
	entry := &jobEntry{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.entries[id] = entry
	m.mu.Unlock()

	err := m.pool.Submit(jobs.Task{
		ID: id,
		Run: func(poolCtx context.Context) {
			// Pool shutdown cancels in-flight runs at their next checkpoint.
			stop := context.AfterFunc(poolCtx, cancel)
			defer stop()
			defer cancel()

			if m.observer != nil {
				m.observer.RunStarted()
			}
			solution := m.engine.Solve(runCtx, problem)
			if m.observer != nil {
				m.observer.RunFinished(solution)
			}

			m.mu.Lock()
			entry.solution = solution
			m.mu.Unlock()
			close(entry.done)
		},
	})
	if err != nil {
		cancel()
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
		return "", err
	}

	m.logger.Info("solver job submitted",
		zap.String("job_id", id),
		zap.Int("units", len(problem.Units)),
		zap.Int("rooms", len(problem.Rooms)),
		zap.Int("slots", len(problem.Slots)),
	)
	return id, nil
}

// Status reports the job state without consuming its result.
func (m *Manager) Status(id string) JobStatus {
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return JobNotFound
	}
	select {
	case <-entry.done:
		return JobCompleted
	default:
		return JobRunning
	}
}

// Result returns the finished solution exactly once; the entry is released on
// retrieval and later calls report not-found. A still-running job returns
// ErrJobNotReady.
func (m *Manager) Result(id string) (*Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	select {
	case <-entry.done:
		delete(m.entries, id)
		return entry.solution, nil
	default:
		return nil, ErrJobNotReady
	}
}

// Cancel requests the run to stop at its next checkpoint. The job stays
// registered so its best-so-far solution remains retrievable.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	entry.cancel()
	m.logger.Info("solver job cancel requested", zap.String("job_id", id))
	return nil
}

// SolveAndWait is a convenience wrapper that submits the problem and polls
// for the result up to the given timeout, cancelling the run on expiry.
func (m *Manager) SolveAndWait(ctx context.Context, problem Problem, timeout time.Duration) (*Solution, error) {
	id, err := m.Submit(problem)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		solution, err := m.Result(id)
		if err == nil {
			return solution, nil
		}
		if !errors.Is(err, ErrJobNotReady) {
			return nil, err
		}
		if time.Now().After(deadline) {
			_ = m.Cancel(id)
			return m.awaitCancelled(id)
		}
		select {
		case <-ctx.Done():
			_ = m.Cancel(id)
			return m.awaitCancelled(id)
		case <-ticker.C:
		}
	}
}

// awaitCancelled waits for a cancelled run to reach its checkpoint and
// returns whatever it produced.
func (m *Manager) awaitCancelled(id string) (*Solution, error) {
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	<-entry.done
	return m.Result(id)
}
