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

	"github.com/edusched/timetable-api/internal/dto"
	"github.com/edusched/timetable-api/internal/models"
	"github.com/edusched/timetable-api/internal/repository"
	"github.com/edusched/timetable-api/internal/solver"
	"github.com/edusched/timetable-api/pkg/config"
	appErrors "github.com/edusched/timetable-api/pkg/errors"
	"github.com/edusched/timetable-api/pkg/export"
)

type timetableRepository interface {
	List(ctx context.Context, status models.TimetableStatus) ([]models.Timetable, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	FindByTerm(ctx context.Context, academicYear, semester int) (*models.Timetable, error)
	Create(ctx context.Context, timetable *models.Timetable) error
	UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error
	Delete(ctx context.Context, id string) error
}

type timetableLessonRepository interface {
	ListByTimetable(ctx context.Context, timetableID string) ([]models.ScheduledLessonDetail, error)
	CountByTimetable(ctx context.Context, timetableID string) (int, error)
	DeleteByTimetableTx(ctx context.Context, tx *sqlx.Tx, timetableID string) error
	CreateTx(ctx context.Context, tx *sqlx.Tx, lesson *models.ScheduledLesson) error
	TeacherConflictsTx(ctx context.Context, tx *sqlx.Tx, teacherID string, q repository.OverlapQuery) ([]models.ScheduledLessonDetail, error)
	RoomConflictsTx(ctx context.Context, tx *sqlx.Tx, roomID string, q repository.OverlapQuery) ([]models.ScheduledLessonDetail, error)
	CohortConflictsTx(ctx context.Context, tx *sqlx.Tx, cohortID string, q repository.OverlapQuery) ([]models.ScheduledLessonDetail, error)
	WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type solutionSource interface {
	Result(id string) (*solver.Solution, error)
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateTimetableRequest describes payload for opening a timetable.
type CreateTimetableRequest struct {
	Name         string `json:"name" validate:"required"`
	AcademicYear int    `json:"academic_year" validate:"required,min=2000"`
	Semester     int    `json:"semester" validate:"required,min=1,max=2"`
}

// TimetableDetail bundles a timetable with its lessons.
type TimetableDetail struct {
	Timetable models.Timetable               `json:"timetable"`
	Lessons   []models.ScheduledLessonDetail `json:"lessons"`
}

// TimetableService owns the timetable lifecycle and the explicit commit of
// solver results into stored lessons.
type TimetableService struct {
	timetables timetableRepository
	lessons    timetableLessonRepository
	solutions  solutionSource
	cache      timetableCache
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	cacheCfg   config.CacheConfig
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewTimetableService instantiates TimetableService.
func NewTimetableService(
	timetables timetableRepository,
	lessons timetableLessonRepository,
	solutions solutionSource,
	cache timetableCache,
	cacheCfg config.CacheConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		timetables: timetables,
		lessons:    lessons,
		solutions:  solutions,
		cache:      cache,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		cacheCfg:   cacheCfg,
		validator:  validate,
		logger:     logger,
	}
}

// Create opens a draft timetable; each term holds at most one.
func (s *TimetableService) Create(ctx context.Context, req CreateTimetableRequest) (*models.Timetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	existing, err := s.timetables.FindByTerm(ctx, req.AcademicYear, req.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing timetables")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("timetable %s already covers this academic year and semester", existing.ID))
	}

	timetable := models.Timetable{
		Name:         req.Name,
		AcademicYear: req.AcademicYear,
		Semester:     req.Semester,
		Status:       models.TimetableStatusDraft,
	}
	if err := s.timetables.Create(ctx, &timetable); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
	}
	return &timetable, nil
}

// List returns timetables, optionally restricted to one status.
func (s *TimetableService) List(ctx context.Context, status models.TimetableStatus) ([]models.Timetable, error) {
	timetables, err := s.timetables.List(ctx, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
	}
	return timetables, nil
}

// Get returns a timetable with its lessons. Published timetables are served
// from cache whenever possible.
func (s *TimetableService) Get(ctx context.Context, id string) (*TimetableDetail, error) {
	var cached TimetableDetail
	if s.cache != nil && s.cache.Get(ctx, timetableCacheKey(id), &cached) == nil {
		return &cached, nil
	}

	timetable, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessons.ListByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable lessons")
	}

	detail := &TimetableDetail{Timetable: *timetable, Lessons: lessons}
	if s.cache != nil && timetable.Status == models.TimetableStatusPublished {
		if err := s.cache.Set(ctx, timetableCacheKey(id), detail, s.cacheCfg.TTL); err != nil {
			s.logger.Warn("timetable cache write failed", zap.String("timetable_id", id), zap.Error(err))
		}
	}
	return detail, nil
}

// Publish promotes a draft with at least one lesson.
func (s *TimetableService) Publish(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if timetable.Status != models.TimetableStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrTimetableNotEditable, "only draft timetables can be published")
	}
	count, err := s.lessons.CountByTimetable(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count timetable lessons")
	}
	if count == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable has no scheduled lessons to publish")
	}
	return s.transition(ctx, timetable, models.TimetableStatusPublished)
}

// Archive retires a timetable. Archival is terminal.
func (s *TimetableService) Archive(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if timetable.Status == models.TimetableStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrTimetableNotEditable, "timetable is already archived")
	}
	return s.transition(ctx, timetable, models.TimetableStatusArchived)
}

// Revert returns a published timetable to draft. Archived timetables never
// come back.
func (s *TimetableService) Revert(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if timetable.Status != models.TimetableStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrTimetableNotEditable, "only published timetables can revert to draft")
	}
	return s.transition(ctx, timetable, models.TimetableStatusDraft)
}

// Delete removes a timetable; published ones must be archived first.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	timetable, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if timetable.Status == models.TimetableStatusPublished {
		return appErrors.Clone(appErrors.ErrTimetableNotEditable, "published timetables must be archived before deletion")
	}
	if err := s.timetables.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	s.invalidate(ctx, id)
	return nil
}

// ApplySolution commits a finished solver job into a draft timetable,
// replacing its lessons in one transaction. Conflicts are re-checked row by
// row inside that transaction; incomplete solutions are rejected outright.
func (s *TimetableService) ApplySolution(ctx context.Context, id string, req dto.ApplySolutionRequest) (*TimetableDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid apply payload")
	}

	timetable, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if timetable.Status != models.TimetableStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrTimetableNotEditable, "solutions can only be applied to draft timetables")
	}

	solution, err := s.solutions.Result(req.JobID)
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
	if !solution.Complete {
		return nil, appErrors.Clone(appErrors.ErrSolutionIncomplete,
			fmt.Sprintf("solution has %d hard violations and %d unassigned lessons", -solution.Score.Hard, solution.Unassigned))
	}

	err = s.lessons.WithinTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.lessons.DeleteByTimetableTx(ctx, tx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear timetable lessons")
		}
		for _, result := range solution.Units {
			lesson := models.ScheduledLesson{
				AssignmentID: result.Unit.AssignmentID,
				TimetableID:  &id,
				RoomID:       result.Room.ID,
				Date:         result.Slot.Date,
				StartTime:    models.ClockString(result.Slot.Start),
				EndTime:      models.ClockString(result.Slot.End),
			}
			query := repository.OverlapQuery{Date: lesson.Date, StartTime: lesson.StartTime, EndTime: lesson.EndTime}
			if err := s.checkConflictsTx(ctx, tx, result.Unit, lesson.RoomID, query); err != nil {
				return err
			}
			if err := s.lessons.CreateTx(ctx, tx, &lesson); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist solved lesson")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)
	s.logger.Info("solver solution applied",
		zap.String("timetable_id", id),
		zap.String("job_id", req.JobID),
		zap.Int("lessons", len(solution.Units)),
	)
	return s.Get(ctx, id)
}

// ExportCSV renders the timetable's lessons as CSV.
func (s *TimetableService) ExportCSV(ctx context.Context, id string) ([]byte, string, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.csv.Render(timetableDataset(detail))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render CSV export")
	}
	return payload, fmt.Sprintf("timetable-%s.csv", detail.Timetable.ID), nil
}

// ExportPDF renders the timetable's lessons as a tabular PDF.
func (s *TimetableService) ExportPDF(ctx context.Context, id string) ([]byte, string, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.pdf.Render(timetableDataset(detail), detail.Timetable.Name)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render PDF export")
	}
	return payload, fmt.Sprintf("timetable-%s.pdf", detail.Timetable.ID), nil
}

func (s *TimetableService) checkConflictsTx(ctx context.Context, tx *sqlx.Tx, unit solver.SearchUnit, roomID string, q repository.OverlapQuery) error {
	conflicts, err := s.lessons.TeacherConflictsTx(ctx, tx, unit.TeacherID, q)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher conflicts")
	}
	if len(conflicts) > 0 {
		return appErrors.Clone(appErrors.ErrTeacherConflict, "")
	}
	conflicts, err = s.lessons.RoomConflictsTx(ctx, tx, roomID, q)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room conflicts")
	}
	if len(conflicts) > 0 {
		return appErrors.Clone(appErrors.ErrRoomConflict, "")
	}
	conflicts, err = s.lessons.CohortConflictsTx(ctx, tx, unit.CohortID, q)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check cohort conflicts")
	}
	if len(conflicts) > 0 {
		return appErrors.Clone(appErrors.ErrCohortConflict, "")
	}
	return nil
}

func (s *TimetableService) load(ctx context.Context, id string) (*models.Timetable, error) {
	timetable, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return timetable, nil
}

func (s *TimetableService) transition(ctx context.Context, timetable *models.Timetable, status models.TimetableStatus) (*models.Timetable, error) {
	if err := s.timetables.UpdateStatus(ctx, timetable.ID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable status")
	}
	timetable.Status = status
	s.invalidate(ctx, timetable.ID)
	s.logger.Info("timetable status changed",
		zap.String("timetable_id", timetable.ID),
		zap.String("status", string(status)),
	)
	return timetable, nil
}

func (s *TimetableService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, timetableCacheKey(id)); err != nil {
		s.logger.Warn("timetable cache invalidation failed", zap.String("timetable_id", id), zap.Error(err))
	}
}

func timetableCacheKey(id string) string {
	return "timetable:detail:" + id
}

func timetableDataset(detail *TimetableDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(detail.Lessons))
	for _, lesson := range detail.Lessons {
		rows = append(rows, map[string]string{
			"Date":    lesson.Date.Format("2006-01-02"),
			"Start":   lesson.StartTime,
			"End":     lesson.EndTime,
			"Cohort":  lesson.CohortID,
			"Subject": lesson.SubjectID,
			"Teacher": lesson.TeacherID,
			"Room":    lesson.RoomID,
		})
	}
	return export.Dataset{
		Headers: []string{"Date", "Start", "End", "Cohort", "Subject", "Teacher", "Room"},
		Rows:    rows,
	}
}
