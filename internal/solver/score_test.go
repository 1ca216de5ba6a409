package solver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testDate(day int) time.Time {
	return time.Date(2026, time.September, day, 0, 0, 0, 0, time.UTC)
}

func testProblem() Problem {
	return Problem{
		Units: []SearchUnit{
			{ID: "a#1", AssignmentID: "a", TeacherID: "t1", CohortID: "c1", CohortSize: 25},
			{ID: "b#1", AssignmentID: "b", TeacherID: "t2", CohortID: "c2", CohortSize: 25},
		},
		Rooms: []Room{
			{ID: "r1", Name: "Room 101", Capacity: 30},
			{ID: "r2", Name: "Room 102", Capacity: 30},
		},
		Slots: []Slot{
			{Date: testDate(7), Start: 480, End: 590},
			{Date: testDate(7), Start: 600, End: 710},
		},
	}
}

func placement(p Problem, roomIdx, slotIdx []int) []UnitResult {
	results := make([]UnitResult, len(p.Units))
	for i, unit := range p.Units {
		results[i] = UnitResult{Unit: unit}
		if roomIdx[i] >= 0 {
			room := p.Rooms[roomIdx[i]]
			results[i].Room = &room
		}
		if slotIdx[i] >= 0 {
			slot := p.Slots[slotIdx[i]]
			results[i].Slot = &slot
		}
	}
	return results
}

func TestEvaluateUnassignedUnitsCountHard(t *testing.T) {
	p := testProblem()

	score := Evaluate(p, placement(p, []int{-1, -1}, []int{-1, -1}))

	assert.Equal(t, -2, score.Hard)
	assert.False(t, score.Feasible())
}

func TestEvaluateDisjointPlacementIsFeasible(t *testing.T) {
	p := testProblem()

	score := Evaluate(p, placement(p, []int{0, 1}, []int{0, 1}))

	assert.Equal(t, 0, score.Hard)
	assert.True(t, score.Feasible())
}

func TestEvaluateSharedDimensionsEachCount(t *testing.T) {
	p := testProblem()

	// Same room, same slot, distinct teachers and cohorts.
	score := Evaluate(p, placement(p, []int{0, 0}, []int{0, 0}))
	assert.Equal(t, -1, score.Hard)

	// Same teacher adds a second violation on the same overlap.
	p.Units[1].TeacherID = "t1"
	score = Evaluate(p, placement(p, []int{0, 0}, []int{0, 0}))
	assert.Equal(t, -2, score.Hard)

	// Same cohort too; all three dimensions now collide.
	p.Units[1].CohortID = "c1"
	score = Evaluate(p, placement(p, []int{0, 0}, []int{0, 0}))
	assert.Equal(t, -3, score.Hard)
}

func TestEvaluateBackToBackSlotsDoNotOverlap(t *testing.T) {
	p := testProblem()
	p.Units[1].TeacherID = "t1"
	p.Slots[1] = Slot{Date: testDate(7), Start: 590, End: 700}

	score := Evaluate(p, placement(p, []int{0, 0}, []int{0, 1}))

	assert.Equal(t, 0, score.Hard)
}

func TestEvaluateSameClockDifferentDates(t *testing.T) {
	p := testProblem()
	p.Units[1].TeacherID = "t1"
	p.Slots[1] = Slot{Date: testDate(8), Start: 480, End: 590}

	score := Evaluate(p, placement(p, []int{0, 0}, []int{0, 1}))

	assert.Equal(t, 0, score.Hard)
}

func TestEvaluateRoomCapacity(t *testing.T) {
	p := testProblem()
	p.Units[0].CohortSize = 35

	score := Evaluate(p, placement(p, []int{0, 1}, []int{0, 1}))

	assert.Equal(t, -1, score.Hard)
}

func TestEvaluateTeacherGapSoftPenalty(t *testing.T) {
	p := testProblem()
	p.Units[1].TeacherID = "t1"
	p.Slots[1] = Slot{Date: testDate(7), Start: 640, End: 750}

	// 50 idle minutes between 09:50 and 10:40 for the same teacher.
	score := Evaluate(p, placement(p, []int{0, 1}, []int{0, 1}))

	assert.Equal(t, 0, score.Hard)
	assert.Equal(t, -5, score.Soft)
}

func TestEvaluateRoomImbalanceSoftPenalty(t *testing.T) {
	p := testProblem()

	// Both lessons crowd room r1 while r2 stays empty.
	score := Evaluate(p, placement(p, []int{0, 0}, []int{0, 1}))

	assert.Equal(t, 0, score.Hard)
	assert.Equal(t, -1, score.Soft)
}

func TestScoreOrdering(t *testing.T) {
	assert.True(t, Score{Hard: 0, Soft: -9}.Better(Score{Hard: -1, Soft: 0}))
	assert.True(t, Score{Hard: -1, Soft: -2}.Better(Score{Hard: -1, Soft: -3}))
	assert.False(t, Score{Hard: -1, Soft: 0}.Better(Score{Hard: -1, Soft: 0}))
	assert.True(t, Score{}.Feasible())
}
