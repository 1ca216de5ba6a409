package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/edusched/timetable-api/internal/models"
	"github.com/edusched/timetable-api/internal/repository"
	"github.com/edusched/timetable-api/pkg/config"
	appErrors "github.com/edusched/timetable-api/pkg/errors"
)

type scheduledLessonRepository interface {
	List(ctx context.Context, filter models.ScheduledLessonFilter) ([]models.ScheduledLessonDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ScheduledLessonDetail, error)
	TeacherConflictsTx(ctx context.Context, tx *sqlx.Tx, teacherID string, q repository.OverlapQuery) ([]models.ScheduledLessonDetail, error)
	RoomConflictsTx(ctx context.Context, tx *sqlx.Tx, roomID string, q repository.OverlapQuery) ([]models.ScheduledLessonDetail, error)
	CohortConflictsTx(ctx context.Context, tx *sqlx.Tx, cohortID string, q repository.OverlapQuery) ([]models.ScheduledLessonDetail, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, lesson *models.ScheduledLesson) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, lesson *models.ScheduledLesson) error
	Delete(ctx context.Context, id string) error
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type assignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.LessonAssignment, error)
}

type roomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type timetableReader interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
}

// CreateScheduledLessonRequest describes payload for scheduling a lesson.
type CreateScheduledLessonRequest struct {
	AssignmentID string  `json:"assignment_id" validate:"required"`
	TimetableID  *string `json:"timetable_id"`
	RoomID       string  `json:"room_id" validate:"required"`
	Date         string  `json:"date" validate:"required"`
	StartTime    string  `json:"start_time" validate:"required"`
	EndTime      string  `json:"end_time" validate:"required"`
}

// UpdateScheduledLessonRequest moves an existing lesson.
type UpdateScheduledLessonRequest struct {
	RoomID    string `json:"room_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// ScheduledLessonService guards every direct write to scheduled lessons with
// conflict detection. Checks and the write they protect run in one
// transaction.
type ScheduledLessonService struct {
	lessons     scheduledLessonRepository
	assignments assignmentReader
	rooms       roomReader
	timetables  timetableReader
	policy      config.PolicyConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScheduledLessonService instantiates ScheduledLessonService.
func NewScheduledLessonService(
	lessons scheduledLessonRepository,
	assignments assignmentReader,
	rooms roomReader,
	timetables timetableReader,
	policy config.PolicyConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *ScheduledLessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduledLessonService{
		lessons:     lessons,
		assignments: assignments,
		rooms:       rooms,
		timetables:  timetables,
		policy:      policy,
		validator:   validate,
		logger:      logger,
	}
}

// List returns lessons with pagination metadata.
func (s *ScheduledLessonService) List(ctx context.Context, filter models.ScheduledLessonFilter) ([]models.ScheduledLessonDetail, *models.Pagination, error) {
	lessons, total, err := s.lessons.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scheduled lessons")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return lessons, pagination, nil
}

// Get loads one lesson with its assignment linkage.
func (s *ScheduledLessonService) Get(ctx context.Context, id string) (*models.ScheduledLessonDetail, error) {
	lesson, err := s.lessons.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scheduled lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scheduled lesson")
	}
	return lesson, nil
}

// Create schedules a lesson after validating its time range, linkage and
// conflicts.
func (s *ScheduledLessonService) Create(ctx context.Context, req CreateScheduledLessonRequest) (*models.ScheduledLesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduled lesson payload")
	}

	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.checkTimeRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	assignment, err := s.loadActiveAssignment(ctx, req.AssignmentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}
	if req.TimetableID != nil {
		if err := s.checkTimetableEditable(ctx, *req.TimetableID); err != nil {
			return nil, err
		}
	}

	lesson := models.ScheduledLesson{
		AssignmentID: assignment.ID,
		TimetableID:  req.TimetableID,
		RoomID:       req.RoomID,
		Date:         date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	}

	err = s.lessons.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.checkConflictsTx(ctx, tx, assignment.TeacherID, lesson.RoomID, assignment.CohortID, repository.OverlapQuery{
			Date:      lesson.Date,
			StartTime: lesson.StartTime,
			EndTime:   lesson.EndTime,
		}); err != nil {
			return err
		}
		if err := s.lessons.CreateTx(ctx, tx, &lesson); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create scheduled lesson")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("scheduled lesson created",
		zap.String("lesson_id", lesson.ID),
		zap.String("assignment_id", lesson.AssignmentID),
		zap.String("date", req.Date),
	)
	return &lesson, nil
}

// Update moves a lesson, excluding its own row from conflict detection.
func (s *ScheduledLessonService) Update(ctx context.Context, id string, req UpdateScheduledLessonRequest) (*models.ScheduledLesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scheduled lesson payload")
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.TimetableID != nil {
		if err := s.checkTimetableEditable(ctx, *existing.TimetableID); err != nil {
			return nil, err
		}
	}

	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.checkTimeRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if err := s.checkRoom(ctx, req.RoomID); err != nil {
		return nil, err
	}

	updated := models.ScheduledLesson{
		ID:           existing.ID,
		AssignmentID: existing.AssignmentID,
		TimetableID:  existing.TimetableID,
		RoomID:       req.RoomID,
		Date:         date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		CreatedAt:    existing.CreatedAt,
	}

	err = s.lessons.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.checkConflictsTx(ctx, tx, existing.TeacherID, updated.RoomID, existing.CohortID, repository.OverlapQuery{
			Date:      updated.Date,
			StartTime: updated.StartTime,
			EndTime:   updated.EndTime,
			ExcludeID: existing.ID,
		}); err != nil {
			return err
		}
		if err := s.lessons.UpdateTx(ctx, tx, &updated); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update scheduled lesson")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a lesson unless its timetable is no longer editable.
func (s *ScheduledLessonService) Delete(ctx context.Context, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.TimetableID != nil {
		if err := s.checkTimetableEditable(ctx, *existing.TimetableID); err != nil {
			return err
		}
	}
	if err := s.lessons.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete scheduled lesson")
	}
	return nil
}

// checkConflictsTx runs the three overlap lookups in dimension order and
// reports the first hit.
func (s *ScheduledLessonService) checkConflictsTx(ctx context.Context, tx *sqlx.Tx, teacherID, roomID, cohortID string, q repository.OverlapQuery) error {
	conflicts, err := s.lessons.TeacherConflictsTx(ctx, tx, teacherID, q)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher conflicts")
	}
	if len(conflicts) > 0 {
		return conflictError(appErrors.ErrTeacherConflict, models.ConflictTeacher, conflicts[0])
	}

	conflicts, err = s.lessons.RoomConflictsTx(ctx, tx, roomID, q)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room conflicts")
	}
	if len(conflicts) > 0 {
		return conflictError(appErrors.ErrRoomConflict, models.ConflictRoom, conflicts[0])
	}

	conflicts, err = s.lessons.CohortConflictsTx(ctx, tx, cohortID, q)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check cohort conflicts")
	}
	if len(conflicts) > 0 {
		return conflictError(appErrors.ErrCohortConflict, models.ConflictCohort, conflicts[0])
	}
	return nil
}

// conflictError wraps the base conflict error with the hit lesson as a
// structured payload so clients can resolve the collision without parsing
// the message.
func conflictError(base *appErrors.Error, dimension models.ConflictDimension, hit models.ScheduledLessonDetail) error {
	err := appErrors.Clone(base, fmt.Sprintf("%s, conflicting lesson %s at %s-%s", base.Message, hit.ID, hit.StartTime, hit.EndTime))
	return err.WithDetails(models.LessonConflict{
		Dimension: dimension,
		LessonID:  hit.ID,
		TeacherID: hit.TeacherID,
		RoomID:    hit.RoomID,
		CohortID:  hit.CohortID,
		Date:      hit.Date,
		StartTime: hit.StartTime,
		EndTime:   hit.EndTime,
	})
}

func (s *ScheduledLessonService) checkTimeRange(start, end string) error {
	startMin := models.MinuteOfDay(start)
	endMin := models.MinuteOfDay(end)
	if startMin < 0 || endMin < 0 {
		return appErrors.Clone(appErrors.ErrInvalidTimeRange, "start and end must be HH:MM clock times")
	}
	if startMin >= endMin {
		return appErrors.Clone(appErrors.ErrInvalidTimeRange, "lesson must start before it ends")
	}
	duration := endMin - startMin
	if duration < s.policy.MinLessonMinutes || duration > s.policy.MaxLessonMinutes {
		return appErrors.Clone(appErrors.ErrInvalidTimeRange,
			fmt.Sprintf("lesson duration must be between %d and %d minutes", s.policy.MinLessonMinutes, s.policy.MaxLessonMinutes))
	}
	return nil
}

func (s *ScheduledLessonService) parseDate(value string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be YYYY-MM-DD")
	}
	return date, nil
}

func (s *ScheduledLessonService) loadActiveAssignment(ctx context.Context, id string) (*models.LessonAssignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson assignment")
	}
	if !assignment.Active {
		return nil, appErrors.Clone(appErrors.ErrInfeasibleAssignment, "lesson assignment is no longer active")
	}
	return assignment, nil
}

func (s *ScheduledLessonService) checkRoom(ctx context.Context, id string) error {
	if _, err := s.rooms.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return nil
}

func (s *ScheduledLessonService) checkTimetableEditable(ctx context.Context, id string) error {
	timetable, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if timetable.Status != models.TimetableStatusDraft {
		return appErrors.Clone(appErrors.ErrTimetableNotEditable, fmt.Sprintf("timetable is %s, only drafts accept lesson changes", timetable.Status))
	}
	return nil
}
