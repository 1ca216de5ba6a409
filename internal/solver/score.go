package solver

import "sort"

// Evaluate scores a set of unit results against the problem's constraints.
// It is pure: same input, same score. Hard violations are pairwise
// teacher/room/cohort overlaps, insufficient room capacity, and one violation
// per unassigned unit. Soft violations are teacher idle gaps and uneven room
// load; they never affect admissibility.
func Evaluate(p Problem, results []UnitResult) Score {
	ev := newEvaluator(p)
	roomIdx, slotIdx := ev.index(results)
	return ev.evaluate(roomIdx, slotIdx)
}

// evaluator computes scores over index-based placements. roomIdx/slotIdx hold
// a value index per unit, -1 meaning unassigned.
type evaluator struct {
	units []SearchUnit
	rooms []Room
	slots []Slot

	roomPos map[string]int
	slotPos map[string]int
}

func newEvaluator(p Problem) *evaluator {
	ev := &evaluator{
		units:   p.Units,
		rooms:   p.Rooms,
		slots:   p.Slots,
		roomPos: make(map[string]int, len(p.Rooms)),
		slotPos: make(map[string]int, len(p.Slots)),
	}
	for i, room := range p.Rooms {
		ev.roomPos[room.ID] = i
	}
	for i, slot := range p.Slots {
		ev.slotPos[slot.String()] = i
	}
	return ev
}

func (e *evaluator) index(results []UnitResult) ([]int, []int) {
	roomIdx := make([]int, len(e.units))
	slotIdx := make([]int, len(e.units))
	for i := range roomIdx {
		roomIdx[i] = -1
		slotIdx[i] = -1
	}
	pos := make(map[string]int, len(e.units))
	for i, unit := range e.units {
		pos[unit.ID] = i
	}
	for _, result := range results {
		i, ok := pos[result.Unit.ID]
		if !ok || !result.Assigned() {
			continue
		}
		if ri, ok := e.roomPos[result.Room.ID]; ok {
			roomIdx[i] = ri
		}
		if si, ok := e.slotPos[result.Slot.String()]; ok {
			slotIdx[i] = si
		}
	}
	return roomIdx, slotIdx
}

// evaluate computes the full score for a placement state.
func (e *evaluator) evaluate(roomIdx, slotIdx []int) Score {
	hard := 0
	for i := range e.units {
		if roomIdx[i] < 0 || slotIdx[i] < 0 {
			hard--
			continue
		}
		hard -= e.capacityViolation(i, roomIdx[i])
		for j := i + 1; j < len(e.units); j++ {
			if roomIdx[j] < 0 || slotIdx[j] < 0 {
				continue
			}
			hard -= e.pairViolations(i, j, roomIdx[i], slotIdx[i], roomIdx[j], slotIdx[j])
		}
	}
	return Score{Hard: hard, Soft: e.soft(roomIdx, slotIdx)}
}

// unitHard returns the hard violations a single placement contributes:
// capacity plus every conflict against the other placed units. It is the
// decomposable piece move deltas are built from.
func (e *evaluator) unitHard(i, ri, si int, roomIdx, slotIdx []int) int {
	if ri < 0 || si < 0 {
		return 1
	}
	violations := e.capacityViolation(i, ri)
	for j := range e.units {
		if j == i || roomIdx[j] < 0 || slotIdx[j] < 0 {
			continue
		}
		violations += e.pairViolations(i, j, ri, si, roomIdx[j], slotIdx[j])
	}
	return violations
}

// pairViolations counts overlapping-time conflicts between two placed units.
// Sharing a teacher, room, or cohort each count separately.
func (e *evaluator) pairViolations(i, j, ri, si, rj, sj int) int {
	if !e.slots[si].Overlaps(e.slots[sj]) {
		return 0
	}
	violations := 0
	if e.units[i].TeacherID == e.units[j].TeacherID {
		violations++
	}
	if ri == rj {
		violations++
	}
	if e.units[i].CohortID == e.units[j].CohortID {
		violations++
	}
	return violations
}

func (e *evaluator) capacityViolation(i, ri int) int {
	if e.rooms[ri].Capacity < e.units[i].CohortSize {
		return 1
	}
	return 0
}

// soft penalises teacher idle gaps within a day and uneven room utilisation.
func (e *evaluator) soft(roomIdx, slotIdx []int) int {
	type dayKey struct {
		teacher string
		date    string
	}
	byTeacherDay := make(map[dayKey][]int)
	roomLoad := make([]int, len(e.rooms))
	placed := 0

	for i := range e.units {
		if roomIdx[i] < 0 || slotIdx[i] < 0 {
			continue
		}
		placed++
		roomLoad[roomIdx[i]]++
		slot := e.slots[slotIdx[i]]
		key := dayKey{teacher: e.units[i].TeacherID, date: slot.Date.Format("2006-01-02")}
		byTeacherDay[key] = append(byTeacherDay[key], slotIdx[i])
	}

	soft := 0
	for _, indexes := range byTeacherDay {
		if len(indexes) < 2 {
			continue
		}
		sort.Slice(indexes, func(a, b int) bool {
			return e.slots[indexes[a]].Start < e.slots[indexes[b]].Start
		})
		for k := 0; k < len(indexes)-1; k++ {
			gap := e.slots[indexes[k+1]].Start - e.slots[indexes[k]].End
			if gap > 0 {
				soft -= gap / 10
			}
		}
	}

	if len(e.rooms) > 0 && placed > 0 {
		fair := (placed + len(e.rooms) - 1) / len(e.rooms)
		for _, load := range roomLoad {
			if load > fair {
				soft -= load - fair
			}
		}
	}
	return soft
}
