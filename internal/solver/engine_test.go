package solver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveEmptyProblem(t *testing.T) {
	engine := NewEngine(Config{IterationBudget: 100})

	solution := engine.Solve(context.Background(), Problem{})

	require.NotNil(t, solution)
	assert.True(t, solution.Complete)
	assert.Equal(t, Score{}, solution.Score)
	assert.Empty(t, solution.Units)
}

func TestSolveFindsFeasiblePlacement(t *testing.T) {
	p := testProblem()
	p.Units[1].TeacherID = "t1"
	p.Units[1].CohortID = "c1"
	engine := NewEngine(Config{IterationBudget: 500, Seed: 1})

	solution := engine.Solve(context.Background(), p)

	require.NotNil(t, solution)
	assert.True(t, solution.Complete)
	assert.Equal(t, 0, solution.Score.Hard)
	assert.Equal(t, 0, solution.Unassigned)
	for _, result := range solution.Units {
		assert.True(t, result.Assigned(), "unit %s left unplaced", result.Unit.ID)
	}
}

func TestSolveOvercommittedDomainStaysIncomplete(t *testing.T) {
	p := testProblem()
	p.Units[1].TeacherID = "t1"
	p.Rooms = p.Rooms[:1]
	p.Slots = p.Slots[:1]
	engine := NewEngine(Config{IterationBudget: 500, Seed: 1})

	solution := engine.Solve(context.Background(), p)

	require.NotNil(t, solution)
	assert.False(t, solution.Complete)
	assert.Negative(t, solution.Score.Hard)
	assert.Len(t, solution.Units, 2)
}

func TestSolveNeverWorseThanConstruction(t *testing.T) {
	p := Problem{
		Rooms: []Room{{ID: "r1", Capacity: 20}, {ID: "r2", Capacity: 40}},
	}
	for _, teacher := range []string{"t1", "t2", "t3"} {
		for occ := 1; occ <= 3; occ++ {
			p.Units = append(p.Units, SearchUnit{
				ID:         fmt.Sprintf("%s#%d", teacher, occ),
				TeacherID:  teacher,
				CohortID:   "c-" + teacher,
				CohortSize: 30,
				Occurrence: occ,
			})
		}
	}
	for day := 7; day <= 8; day++ {
		for start := 480; start+110 <= 1000; start += 120 {
			p.Slots = append(p.Slots, Slot{Date: testDate(day), Start: start, End: start + 110})
		}
	}
	engine := NewEngine(Config{IterationBudget: 2000, Seed: 7})

	solution := engine.Solve(context.Background(), p)

	require.NotNil(t, solution)
	assert.GreaterOrEqual(t, solution.Score.Hard, solution.ConstructionScore.Hard)
	assert.False(t, solution.ConstructionScore.Better(solution.Score))
}

func TestSolveFixedSeedIsReproducible(t *testing.T) {
	p := testProblem()
	p.Units = append(p.Units, SearchUnit{ID: "c#1", AssignmentID: "c", TeacherID: "t1", CohortID: "c2", CohortSize: 25})
	cfg := Config{IterationBudget: 300, Seed: 42}

	first := NewEngine(cfg).Solve(context.Background(), p)
	second := NewEngine(cfg).Solve(context.Background(), p)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Iterations, second.Iterations)
	require.Len(t, second.Units, len(first.Units))
	for i := range first.Units {
		assert.Equal(t, first.Units[i].Room, second.Units[i].Room)
		assert.Equal(t, first.Units[i].Slot, second.Units[i].Slot)
	}
}

func TestSolveProblemSeedOverridesEngineDefault(t *testing.T) {
	p := testProblem()
	p.Units = append(p.Units, SearchUnit{ID: "c#1", AssignmentID: "c", TeacherID: "t1", CohortID: "c2", CohortSize: 25})
	p.Seed = 42

	first := NewEngine(Config{IterationBudget: 300, Seed: 1}).Solve(context.Background(), p)
	second := NewEngine(Config{IterationBudget: 300, Seed: 99}).Solve(context.Background(), p)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Iterations, second.Iterations)
	require.Len(t, second.Units, len(first.Units))
	for i := range first.Units {
		assert.Equal(t, first.Units[i].Room, second.Units[i].Room)
		assert.Equal(t, first.Units[i].Slot, second.Units[i].Slot)
	}
}

func TestSolveCancellationKeepsBestSoFar(t *testing.T) {
	p := testProblem()
	p.Units[1].TeacherID = "t1"
	p.Rooms = p.Rooms[:1]
	p.Slots = p.Slots[:1]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := NewEngine(Config{IterationBudget: 100000, Seed: 1})

	solution := engine.Solve(ctx, p)

	require.NotNil(t, solution)
	assert.True(t, solution.Cancelled)
	assert.Len(t, solution.Units, 2)
}

func TestSolveRespectsTimeBudget(t *testing.T) {
	p := testProblem()
	p.Units[1].TeacherID = "t1"
	p.Rooms = p.Rooms[:1]
	p.Slots = p.Slots[:1]
	engine := NewEngine(Config{TimeBudget: 10 * time.Millisecond, IterationBudget: 1 << 30, Seed: 1})

	start := time.Now()
	solution := engine.Solve(context.Background(), p)

	require.NotNil(t, solution)
	assert.Less(t, time.Since(start), 5*time.Second)
}
