package solver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	finished int
}

func (o *recordingObserver) RunStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) RunFinished(*Solution) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished++
}

func (o *recordingObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.started, o.finished
}

func newTestManager(t *testing.T, engineCfg Config, observer Observer) *Manager {
	t.Helper()
	m := NewManager(ManagerConfig{
		Engine:   NewEngine(engineCfg),
		Workers:  2,
		Observer: observer,
	})
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m
}

func waitForStatus(t *testing.T, m *Manager, id string, want JobStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if m.Status(id) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s, last was %s", id, want, m.Status(id))
}

func TestManagerSubmitReturnsImmediately(t *testing.T) {
	m := newTestManager(t, Config{IterationBudget: 200, Seed: 1}, nil)

	id, err := m.Submit(testProblem())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	waitForStatus(t, m, id, JobCompleted)
}

func TestManagerUnknownJob(t *testing.T) {
	m := newTestManager(t, Config{IterationBudget: 100}, nil)

	assert.Equal(t, JobNotFound, m.Status("no-such-job"))
	assert.ErrorIs(t, m.Cancel("no-such-job"), ErrJobNotFound)

	_, err := m.Result("no-such-job")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestManagerResultConsumedOnce(t *testing.T) {
	m := newTestManager(t, Config{IterationBudget: 200, Seed: 1}, nil)

	id, err := m.Submit(testProblem())
	require.NoError(t, err)
	waitForStatus(t, m, id, JobCompleted)

	solution, err := m.Result(id)
	require.NoError(t, err)
	require.NotNil(t, solution)
	assert.True(t, solution.Complete)

	_, err = m.Result(id)
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Equal(t, JobNotFound, m.Status(id))
}

func TestManagerObserverSeesRuns(t *testing.T) {
	observer := &recordingObserver{}
	m := newTestManager(t, Config{IterationBudget: 200, Seed: 1}, observer)

	id, err := m.Submit(testProblem())
	require.NoError(t, err)
	waitForStatus(t, m, id, JobCompleted)

	started, finished := observer.counts()
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, finished)
}

func TestManagerSubmitBeforeStart(t *testing.T) {
	m := NewManager(ManagerConfig{Engine: NewEngine(Config{IterationBudget: 100})})

	_, err := m.Submit(testProblem())
	assert.Error(t, err)
	assert.Equal(t, JobNotFound, m.Status("anything"))
}

func TestManagerSolveAndWait(t *testing.T) {
	m := newTestManager(t, Config{IterationBudget: 200, Seed: 1}, nil)

	solution, err := m.SolveAndWait(context.Background(), testProblem(), 5*time.Second)

	require.NoError(t, err)
	require.NotNil(t, solution)
	assert.True(t, solution.Complete)
}

func TestManagerCancelReturnsBestSoFar(t *testing.T) {
	p := testProblem()
	p.Units[1].TeacherID = "t1"
	p.Rooms = p.Rooms[:1]
	p.Slots = p.Slots[:1]
	m := newTestManager(t, Config{TimeBudget: 30 * time.Second, IterationBudget: 1 << 30, Seed: 1}, nil)

	id, err := m.Submit(p)
	require.NoError(t, err)

	require.NoError(t, m.Cancel(id))
	waitForStatus(t, m, id, JobCompleted)

	solution, err := m.Result(id)
	require.NoError(t, err)
	require.NotNil(t, solution)
	assert.Len(t, solution.Units, 2)
}
