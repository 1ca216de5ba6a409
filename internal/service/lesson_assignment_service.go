package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edusched/timetable-api/internal/models"
	"github.com/edusched/timetable-api/pkg/config"
	appErrors "github.com/edusched/timetable-api/pkg/errors"
)

type lessonAssignmentRepository interface {
	List(ctx context.Context, filter models.LessonAssignmentFilter) ([]models.LessonAssignment, int, error)
	FindByID(ctx context.Context, id string) (*models.LessonAssignment, error)
	FindDuplicate(ctx context.Context, cohortID, subjectID string, academicYear, semester int) (*models.LessonAssignment, error)
	Create(ctx context.Context, assignment *models.LessonAssignment) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type cohortReader interface {
	FindByID(ctx context.Context, id string) (*models.Cohort, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	IsTeacherEligible(ctx context.Context, subjectID, teacherID string) (bool, error)
}

type lessonCounter interface {
	CountByAssignment(ctx context.Context, assignmentID string) (int, error)
}

// CreateLessonAssignmentRequest describes payload for committing a teacher to
// a cohort/subject pairing.
type CreateLessonAssignmentRequest struct {
	CohortID       string `json:"cohort_id" validate:"required"`
	SubjectID      string `json:"subject_id" validate:"required"`
	TeacherID      string `json:"teacher_id" validate:"required"`
	AcademicYear   int    `json:"academic_year" validate:"required,min=2000"`
	Semester       int    `json:"semester" validate:"required,min=1,max=2"`
	WeeklyHours    int    `json:"weekly_hours" validate:"required,min=1"`
	LessonsPerWeek int    `json:"lessons_per_week" validate:"required,min=1"`
}

// LessonAssignmentService validates and persists teaching commitments. All
// compatibility violations are hard errors, nothing is accepted provisionally.
type LessonAssignmentService struct {
	assignments lessonAssignmentRepository
	cohorts     cohortReader
	subjects    subjectReader
	lessons     lessonCounter
	policy      config.PolicyConfig
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewLessonAssignmentService instantiates LessonAssignmentService.
func NewLessonAssignmentService(
	assignments lessonAssignmentRepository,
	cohorts cohortReader,
	subjects subjectReader,
	lessons lessonCounter,
	policy config.PolicyConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *LessonAssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LessonAssignmentService{
		assignments: assignments,
		cohorts:     cohorts,
		subjects:    subjects,
		lessons:     lessons,
		policy:      policy,
		validator:   validate,
		logger:      logger,
	}
}

// List returns assignments with pagination metadata.
func (s *LessonAssignmentService) List(ctx context.Context, filter models.LessonAssignmentFilter) ([]models.LessonAssignment, *models.Pagination, error) {
	assignments, total, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lesson assignments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return assignments, pagination, nil
}

// Get loads one assignment.
func (s *LessonAssignmentService) Get(ctx context.Context, id string) (*models.LessonAssignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson assignment")
	}
	return assignment, nil
}

// Create validates eligibility and compatibility before persisting the
// assignment as active.
func (s *LessonAssignmentService) Create(ctx context.Context, req CreateLessonAssignmentRequest) (*models.LessonAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson assignment payload")
	}
	if req.WeeklyHours > s.policy.WeeklyHoursLimit {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("weekly hours exceed the policy limit of %d", s.policy.WeeklyHoursLimit))
	}

	cohort, err := s.cohorts.FindByID(ctx, req.CohortID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cohort not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cohort")
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if cohort.CourseID != subject.CourseID {
		return nil, appErrors.Clone(appErrors.ErrInfeasibleAssignment, "cohort and subject belong to different courses")
	}
	if cohort.AcademicYear != req.AcademicYear || cohort.Semester != req.Semester {
		return nil, appErrors.Clone(appErrors.ErrInfeasibleAssignment, "cohort is not in the requested academic year and semester")
	}
	if subject.TargetYear != req.AcademicYear || subject.TargetSemester != req.Semester {
		return nil, appErrors.Clone(appErrors.ErrInfeasibleAssignment, "subject does not target the requested academic year and semester")
	}

	eligible, err := s.subjects.IsTeacherEligible(ctx, req.SubjectID, req.TeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher eligibility")
	}
	if !eligible {
		return nil, appErrors.Clone(appErrors.ErrInfeasibleAssignment, "teacher is not eligible to teach this subject")
	}

	duplicate, err := s.assignments.FindDuplicate(ctx, req.CohortID, req.SubjectID, req.AcademicYear, req.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check duplicate assignments")
	}
	if duplicate != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("an active assignment %s already covers this cohort and subject", duplicate.ID))
	}

	assignment := models.LessonAssignment{
		CohortID:       req.CohortID,
		SubjectID:      req.SubjectID,
		TeacherID:      req.TeacherID,
		AcademicYear:   req.AcademicYear,
		Semester:       req.Semester,
		WeeklyHours:    req.WeeklyHours,
		LessonsPerWeek: req.LessonsPerWeek,
		Active:         true,
	}
	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson assignment")
	}

	s.logger.Info("lesson assignment created",
		zap.String("assignment_id", assignment.ID),
		zap.String("cohort_id", assignment.CohortID),
		zap.String("subject_id", assignment.SubjectID),
		zap.String("teacher_id", assignment.TeacherID),
	)
	return &assignment, nil
}

// Deactivate retires an assignment while keeping its scheduled history.
func (s *LessonAssignmentService) Deactivate(ctx context.Context, id string) (*models.LessonAssignment, error) {
	assignment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !assignment.Active {
		return assignment, nil
	}
	if err := s.assignments.SetActive(ctx, id, false); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate lesson assignment")
	}
	assignment.Active = false
	return assignment, nil
}

// Delete removes an assignment, refused while scheduled lessons reference it.
func (s *LessonAssignmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.lessons.CountByAssignment(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count scheduled lessons")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrAssignmentReferenced,
			fmt.Sprintf("%d scheduled lessons still reference this assignment", count))
	}
	if err := s.assignments.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson assignment")
	}
	return nil
}
