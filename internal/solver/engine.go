package solver

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Config bounds a solving run. A zero TimeBudget disables the wall-clock
// limit; runs bounded only by IterationBudget are reproducible for a fixed
// seed, wall-clock runs are best effort.
type Config struct {
	TimeBudget      time.Duration
	IterationBudget int
	Seed            int64
	SoftTolerance   int
	Logger          *zap.Logger
}

// Engine runs the construction and improvement phases over a Problem. Engines
// are stateless between runs and safe for concurrent Solve calls.
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine builds an engine with defaults applied.
func NewEngine(cfg Config) *Engine {
	if cfg.IterationBudget <= 0 {
		cfg.IterationBudget = 20000
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: cfg.Logger}
}

// Solve places every search unit into a room and slot, minimising hard then
// soft violations. It always returns the best assignment seen; cancellation
// and budget exhaustion terminate the run without discarding progress.
func (e *Engine) Solve(ctx context.Context, p Problem) *Solution {
	start := time.Now()
	ev := newEvaluator(p)

	roomIdx := make([]int, len(p.Units))
	slotIdx := make([]int, len(p.Units))
	for i := range roomIdx {
		roomIdx[i] = -1
		slotIdx[i] = -1
	}

	e.construct(ev, roomIdx, slotIdx)
	constructionScore := ev.evaluate(roomIdx, slotIdx)
	e.logger.Debug("construction finished",
		zap.Int("units", len(p.Units)),
		zap.String("score", constructionScore.String()),
	)

	bestRoom := append([]int(nil), roomIdx...)
	bestSlot := append([]int(nil), slotIdx...)
	bestScore := constructionScore

	seed := e.cfg.Seed
	if p.Seed != 0 {
		seed = p.Seed
	}
	iterations, cancelled := e.improve(ctx, ev, seed, roomIdx, slotIdx, constructionScore, &bestRoom, &bestSlot, &bestScore)

	solution := e.buildSolution(ev, bestRoom, bestSlot)
	solution.ConstructionScore = constructionScore
	solution.Iterations = iterations
	solution.Cancelled = cancelled
	solution.Elapsed = time.Since(start)

	e.logger.Info("solver run terminated",
		zap.String("score", solution.Score.String()),
		zap.Int("unassigned", solution.Unassigned),
		zap.Int("iterations", iterations),
		zap.Bool("cancelled", cancelled),
		zap.Duration("elapsed", solution.Elapsed),
	)
	return solution
}

// construct greedily assigns each unit the first zero-violation placement,
// falling back to the least violating one. Larger cohorts are placed first.
func (e *Engine) construct(ev *evaluator, roomIdx, slotIdx []int) {
	if len(ev.rooms) == 0 || len(ev.slots) == 0 {
		return
	}

	order := make([]int, len(ev.units))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ua, ub := ev.units[order[a]], ev.units[order[b]]
		if ua.CohortSize != ub.CohortSize {
			return ua.CohortSize > ub.CohortSize
		}
		return ua.ID < ub.ID
	})

	for _, i := range order {
		bestRi, bestSi, bestViol := -1, -1, math.MaxInt
		for si := range ev.slots {
			for ri := range ev.rooms {
				viol := ev.unitHard(i, ri, si, roomIdx, slotIdx)
				if viol < bestViol {
					bestRi, bestSi, bestViol = ri, si, viol
				}
				if viol == 0 {
					break
				}
			}
			if bestViol == 0 {
				break
			}
		}
		roomIdx[i] = bestRi
		slotIdx[i] = bestSi
	}
}

// improve runs seeded local search: single-unit reassignments, pairwise
// swaps, and retractions. Moves never worsen the hard score; hard-neutral
// moves may trade soft score within the configured tolerance.
func (e *Engine) improve(
	ctx context.Context,
	ev *evaluator,
	seed int64,
	roomIdx, slotIdx []int,
	current Score,
	bestRoom, bestSlot *[]int,
	bestScore *Score,
) (int, bool) {
	if len(ev.units) == 0 || len(ev.rooms) == 0 || len(ev.slots) == 0 {
		return 0, ctx.Err() != nil
	}
	if current.Hard == 0 && current.Soft == 0 {
		return 0, false
	}

	rng := rand.New(rand.NewSource(seed))
	var deadline time.Time
	if e.cfg.TimeBudget > 0 {
		deadline = time.Now().Add(e.cfg.TimeBudget)
	}

	curHard := current.Hard
	curSoft := current.Soft

	iter := 0
	for ; iter < e.cfg.IterationBudget; iter++ {
		if ctx.Err() != nil {
			return iter, true
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}

		i := rng.Intn(len(ev.units))
		oldRi, oldSi := roomIdx[i], slotIdx[i]

		var newRi, newSi int
		j := -1
		switch rng.Intn(5) {
		case 0:
			newRi, newSi = rng.Intn(len(ev.rooms)), oldSi
			if newSi < 0 {
				newSi = rng.Intn(len(ev.slots))
			}
		case 1:
			newRi, newSi = oldRi, rng.Intn(len(ev.slots))
			if newRi < 0 {
				newRi = rng.Intn(len(ev.rooms))
			}
		case 2:
			newRi, newSi = rng.Intn(len(ev.rooms)), rng.Intn(len(ev.slots))
		case 3:
			if len(ev.units) < 2 {
				continue
			}
			j = rng.Intn(len(ev.units))
			if j == i {
				continue
			}
		case 4:
			// retract: trading a badly conflicting placement for one
			// unassigned violation keeps the unit visible in the result.
			newRi, newSi = -1, -1
		}

		var delta int
		if j >= 0 {
			delta = e.swapDelta(ev, roomIdx, slotIdx, i, j)
		} else {
			if newRi == oldRi && newSi == oldSi {
				continue
			}
			before := ev.unitHard(i, oldRi, oldSi, roomIdx, slotIdx)
			after := ev.unitHard(i, newRi, newSi, roomIdx, slotIdx)
			delta = before - after
		}
		if delta < 0 {
			continue
		}

		apply := func() {
			if j >= 0 {
				roomIdx[i], roomIdx[j] = roomIdx[j], roomIdx[i]
				slotIdx[i], slotIdx[j] = slotIdx[j], slotIdx[i]
			} else {
				roomIdx[i], slotIdx[i] = newRi, newSi
			}
		}
		revert := func() {
			if j >= 0 {
				roomIdx[i], roomIdx[j] = roomIdx[j], roomIdx[i]
				slotIdx[i], slotIdx[j] = slotIdx[j], slotIdx[i]
			} else {
				roomIdx[i], slotIdx[i] = oldRi, oldSi
			}
		}

		apply()
		newSoft := ev.soft(roomIdx, slotIdx)
		if delta == 0 && newSoft < curSoft-e.cfg.SoftTolerance {
			revert()
			continue
		}

		curHard += delta
		curSoft = newSoft
		score := Score{Hard: curHard, Soft: curSoft}
		if score.Better(*bestScore) {
			copy(*bestRoom, roomIdx)
			copy(*bestSlot, slotIdx)
			*bestScore = score
		}
		if curHard == 0 && curSoft == 0 {
			break
		}
	}
	return iter, false
}

// swapDelta computes the hard-score change of exchanging two units'
// placements. The shared pair violation is removed from both sides so it is
// not counted twice.
func (e *Engine) swapDelta(ev *evaluator, roomIdx, slotIdx []int, i, j int) int {
	ri, si := roomIdx[i], slotIdx[i]
	rj, sj := roomIdx[j], slotIdx[j]

	before := ev.unitHard(i, ri, si, roomIdx, slotIdx) + ev.unitHard(j, rj, sj, roomIdx, slotIdx)
	if ri >= 0 && si >= 0 && rj >= 0 && sj >= 0 {
		before -= ev.pairViolations(i, j, ri, si, rj, sj)
	}

	roomIdx[i], roomIdx[j] = rj, ri
	slotIdx[i], slotIdx[j] = sj, si
	after := ev.unitHard(i, rj, sj, roomIdx, slotIdx) + ev.unitHard(j, ri, si, roomIdx, slotIdx)
	if ri >= 0 && si >= 0 && rj >= 0 && sj >= 0 {
		after -= ev.pairViolations(i, j, rj, sj, ri, si)
	}
	roomIdx[i], roomIdx[j] = ri, rj
	slotIdx[i], slotIdx[j] = si, sj

	return before - after
}

func (e *Engine) buildSolution(ev *evaluator, roomIdx, slotIdx []int) *Solution {
	solution := &Solution{
		Units: make([]UnitResult, len(ev.units)),
		Score: ev.evaluate(roomIdx, slotIdx),
	}
	for i, unit := range ev.units {
		result := UnitResult{Unit: unit}
		if roomIdx[i] >= 0 && slotIdx[i] >= 0 {
			room := ev.rooms[roomIdx[i]]
			slot := ev.slots[slotIdx[i]]
			result.Room = &room
			result.Slot = &slot
		} else {
			solution.Unassigned++
		}
		solution.Units[i] = result
	}
	solution.Complete = solution.Score.Feasible() && solution.Unassigned == 0
	return solution
}
