package solver

import (
	"fmt"
	"time"

	"github.com/edusched/timetable-api/internal/models"
)

// SearchUnit is one weekly lesson occurrence awaiting a room and slot. A
// lesson assignment with lessons-per-week N expands into N units.
type SearchUnit struct {
	ID           string `json:"id"`
	AssignmentID string `json:"assignment_id"`
	SubjectID    string `json:"subject_id"`
	TeacherID    string `json:"teacher_id"`
	CohortID     string `json:"cohort_id"`
	CohortSize   int    `json:"cohort_size"`
	Occurrence   int    `json:"occurrence"`
}

// Room is a candidate value for the room planning variable.
type Room struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// Slot is a candidate (date, start, end) value. Start and End are minutes
// since midnight; the range is half-open.
type Slot struct {
	Date  time.Time `json:"date"`
	Start int       `json:"start"`
	End   int       `json:"end"`
}

// Overlaps reports whether two slots intersect in time on the same date.
func (s Slot) Overlaps(o Slot) bool {
	if !sameDate(s.Date, o.Date) {
		return false
	}
	return models.Overlaps(s.Start, s.End, o.Start, o.End)
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Date.Format("2006-01-02"), models.ClockString(s.Start), models.ClockString(s.End))
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Problem is a self-contained solving request. Runs never share state, so a
// Problem can be solved concurrently with others. A non-zero Seed overrides
// the engine's default seed for this run.
type Problem struct {
	Units []SearchUnit `json:"units"`
	Rooms []Room       `json:"rooms"`
	Slots []Slot       `json:"slots"`
	Seed  int64        `json:"seed,omitempty"`
}

// ExpandUnits turns lesson assignments into search units, one per weekly
// occurrence.
func ExpandUnits(assignments []models.LessonAssignment, cohortSizes map[string]int) []SearchUnit {
	var units []SearchUnit
	for _, a := range assignments {
		count := a.LessonsPerWeek
		if count < 1 {
			count = 1
		}
		for i := 1; i <= count; i++ {
			units = append(units, SearchUnit{
				ID:           fmt.Sprintf("%s#%d", a.ID, i),
				AssignmentID: a.ID,
				SubjectID:    a.SubjectID,
				TeacherID:    a.TeacherID,
				CohortID:     a.CohortID,
				CohortSize:   cohortSizes[a.CohortID],
				Occurrence:   i,
			})
		}
	}
	return units
}

// Score is a hard/soft violation pair. Both components are zero or negative;
// zero hard means the assignment is admissible.
type Score struct {
	Hard int `json:"hard"`
	Soft int `json:"soft"`
}

// Better reports whether s outranks o: fewer hard violations always wins,
// soft score only breaks hard ties.
func (s Score) Better(o Score) bool {
	if s.Hard != o.Hard {
		return s.Hard > o.Hard
	}
	return s.Soft > o.Soft
}

// Feasible reports whether the hard component reached zero.
func (s Score) Feasible() bool { return s.Hard == 0 }

func (s Score) String() string { return fmt.Sprintf("%dhard/%dsoft", s.Hard, s.Soft) }

// Phase names the solver state machine stages.
type Phase string

const (
	PhaseConstructing Phase = "CONSTRUCTING"
	PhaseImproving    Phase = "IMPROVING"
	PhaseTerminated   Phase = "TERMINATED"
)

// UnitResult is the placement decided for one search unit. Room and Slot are
// nil when the unit ended the run unassigned.
type UnitResult struct {
	Unit SearchUnit `json:"unit"`
	Room *Room      `json:"room,omitempty"`
	Slot *Slot      `json:"slot,omitempty"`
}

// Assigned reports whether the unit received both a room and a slot.
func (r UnitResult) Assigned() bool { return r.Room != nil && r.Slot != nil }

// Solution is the outcome of a terminated run. A non-zero hard score or
// unassigned units make the solution incomplete; callers must check Complete
// instead of assuming success.
type Solution struct {
	Units             []UnitResult `json:"units"`
	Score             Score        `json:"score"`
	Unassigned        int          `json:"unassigned"`
	Complete          bool         `json:"complete"`
	Iterations        int          `json:"iterations"`
	ConstructionScore Score        `json:"construction_score"`
	Cancelled         bool         `json:"cancelled"`
	Elapsed           time.Duration `json:"elapsed"`
}
