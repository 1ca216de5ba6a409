package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusched/timetable-api/internal/dto"
	"github.com/edusched/timetable-api/internal/models"
	"github.com/edusched/timetable-api/internal/solver"
	"github.com/edusched/timetable-api/pkg/config"
	appErrors "github.com/edusched/timetable-api/pkg/errors"
)

type solverAssignments interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.LessonAssignment, error)
	ListActiveByTerm(ctx context.Context, academicYear, semester int) ([]models.LessonAssignment, error)
}

type solverCohorts interface {
	StudentCounts(ctx context.Context, ids []string) (map[string]int, error)
}

type solverRooms interface {
	List(ctx context.Context, courseID string, minCapacity int) ([]models.Room, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Room, error)
}

type solverManager interface {
	Submit(problem solver.Problem) (string, error)
	Status(id string) solver.JobStatus
	Result(id string) (*solver.Solution, error)
	Cancel(id string) error
	SolveAndWait(ctx context.Context, problem solver.Problem, timeout time.Duration) (*solver.Solution, error)
}

// SolverService assembles solving problems from stored assignments and
// brokers jobs between the HTTP surface and the solver manager. Committing a
// result to a timetable is a separate, explicit step.
type SolverService struct {
	assignments solverAssignments
	cohorts     solverCohorts
	rooms       solverRooms
	manager     solverManager
	solverCfg   config.SolverConfig
	policy      config.PolicyConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSolverService instantiates SolverService.
func NewSolverService(
	assignments solverAssignments,
	cohorts solverCohorts,
	rooms solverRooms,
	manager solverManager,
	solverCfg config.SolverConfig,
	policy config.PolicyConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *SolverService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SolverService{
		assignments: assignments,
		cohorts:     cohorts,
		rooms:       rooms,
		manager:     manager,
		solverCfg:   solverCfg,
		policy:      policy,
		validator:   validate,
		logger:      logger,
	}
}

// Submit assembles the problem and starts an asynchronous run.
func (s *SolverService) Submit(ctx context.Context, req dto.SolveRequest) (*dto.JobResponse, error) {
	problem, err := s.buildProblem(ctx, req)
	if err != nil {
		return nil, err
	}
	id, err := s.manager.Submit(problem)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit solver job")
	}
	return &dto.JobResponse{JobID: id, Status: string(solver.JobRunning)}, nil
}

// Solve runs synchronously within the configured time budget.
func (s *SolverService) Solve(ctx context.Context, req dto.SolveRequest) (*dto.SolveResponse, error) {
	problem, err := s.buildProblem(ctx, req)
	if err != nil {
		return nil, err
	}
	timeout := s.solverCfg.TimeBudget
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	solution, err := s.manager.SolveAndWait(ctx, problem, timeout)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "solver run failed")
	}
	return solutionResponse(solution), nil
}

// Status reports a job without consuming its result.
func (s *SolverService) Status(id string) (*dto.JobResponse, error) {
	status := s.manager.Status(id)
	if status == solver.JobNotFound {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "solver job not found")
	}
	return &dto.JobResponse{JobID: id, Status: string(status)}, nil
}

// Result hands out a finished solution exactly once.
func (s *SolverService) Result(id string) (*dto.SolveResponse, error) {
	solution, err := s.manager.Result(id)
	if err != nil {
		switch {
		case errors.Is(err, solver.ErrJobNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "solver job not found")
		case errors.Is(err, solver.ErrJobNotReady):
			return nil, appErrors.Clone(appErrors.ErrJobNotReady, "")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch solver result")
		}
	}
	return solutionResponse(solution), nil
}

// Cancel asks a running job to stop at its next checkpoint.
func (s *SolverService) Cancel(id string) error {
	if err := s.manager.Cancel(id); err != nil {
		if errors.Is(err, solver.ErrJobNotFound) {
			return appErrors.Clone(appErrors.ErrNotFound, "solver job not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel solver job")
	}
	return nil
}

// buildProblem loads the requested assignments, cohort sizes, candidate
// rooms and the slot domain. Inactive or term-mismatched assignments are
// rejected before any solving starts.
func (s *SolverService) buildProblem(ctx context.Context, req dto.SolveRequest) (solver.Problem, error) {
	if err := s.validator.Struct(req); err != nil {
		return solver.Problem{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid solve request")
	}

	from, err := time.Parse("2006-01-02", req.DateFrom)
	if err != nil {
		return solver.Problem{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "dateFrom must be YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", req.DateTo)
	if err != nil {
		return solver.Problem{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "dateTo must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return solver.Problem{}, appErrors.Clone(appErrors.ErrValidation, "dateTo must not precede dateFrom")
	}
	holidays := make([]time.Time, 0, len(req.Holidays))
	for _, raw := range req.Holidays {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return solver.Problem{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "holidays must be YYYY-MM-DD")
		}
		holidays = append(holidays, day)
	}

	assignments, err := s.loadAssignments(ctx, req)
	if err != nil {
		return solver.Problem{}, err
	}

	cohortIDs := make([]string, 0, len(assignments))
	seen := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		if !seen[a.CohortID] {
			seen[a.CohortID] = true
			cohortIDs = append(cohortIDs, a.CohortID)
		}
	}
	sizes, err := s.cohorts.StudentCounts(ctx, cohortIDs)
	if err != nil {
		return solver.Problem{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort sizes")
	}

	rooms, err := s.loadRooms(ctx, req.RoomIDs)
	if err != nil {
		return solver.Problem{}, err
	}

	problem := solver.Problem{
		Units: solver.ExpandUnits(assignments, sizes),
		Rooms: make([]solver.Room, 0, len(rooms)),
		Slots: solver.GenerateSlots(from, to, holidays, s.policy),
		Seed:  req.Seed,
	}
	for _, room := range rooms {
		problem.Rooms = append(problem.Rooms, solver.Room{ID: room.ID, Name: room.Name, Capacity: room.Capacity})
	}

	s.logger.Info("solver problem assembled",
		zap.Int("units", len(problem.Units)),
		zap.Int("rooms", len(problem.Rooms)),
		zap.Int("slots", len(problem.Slots)),
	)
	return problem, nil
}

func (s *SolverService) loadAssignments(ctx context.Context, req dto.SolveRequest) ([]models.LessonAssignment, error) {
	if len(req.AssignmentIDs) == 0 {
		assignments, err := s.assignments.ListActiveByTerm(ctx, req.AcademicYear, req.Semester)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active assignments")
		}
		if len(assignments) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "no active lesson assignments in the requested term")
		}
		return assignments, nil
	}

	assignments, err := s.assignments.FindByIDs(ctx, req.AssignmentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requested assignments")
	}
	if len(assignments) != len(req.AssignmentIDs) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more requested assignments do not exist")
	}
	for _, a := range assignments {
		if !a.Active {
			return nil, appErrors.Clone(appErrors.ErrInfeasibleAssignment, "assignment "+a.ID+" is inactive")
		}
		if a.AcademicYear != req.AcademicYear || a.Semester != req.Semester {
			return nil, appErrors.Clone(appErrors.ErrInfeasibleAssignment, "assignment "+a.ID+" belongs to a different term")
		}
	}
	return assignments, nil
}

func (s *SolverService) loadRooms(ctx context.Context, ids []string) ([]models.Room, error) {
	if len(ids) == 0 {
		rooms, err := s.rooms.List(ctx, "", 0)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
		}
		if len(rooms) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "no rooms available for scheduling")
		}
		return rooms, nil
	}
	rooms, err := s.rooms.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requested rooms")
	}
	if len(rooms) != len(ids) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "one or more requested rooms do not exist")
	}
	return rooms, nil
}

func solutionResponse(solution *solver.Solution) *dto.SolveResponse {
	resp := &dto.SolveResponse{
		HardScore:  solution.Score.Hard,
		SoftScore:  solution.Score.Soft,
		Complete:   solution.Complete,
		Cancelled:  solution.Cancelled,
		Unassigned: solution.Unassigned,
		Iterations: solution.Iterations,
		ElapsedMs:  solution.Elapsed.Milliseconds(),
		Placements: make([]dto.LessonPlacement, 0, len(solution.Units)),
	}
	for _, result := range solution.Units {
		placement := dto.LessonPlacement{
			UnitID:       result.Unit.ID,
			AssignmentID: result.Unit.AssignmentID,
			Occurrence:   result.Unit.Occurrence,
			Unassigned:   !result.Assigned(),
		}
		if result.Assigned() {
			placement.RoomID = result.Room.ID
			placement.Date = result.Slot.Date.Format("2006-01-02")
			placement.StartTime = models.ClockString(result.Slot.Start)
			placement.EndTime = models.ClockString(result.Slot.End)
		}
		resp.Placements = append(resp.Placements, placement)
	}
	return resp
}
