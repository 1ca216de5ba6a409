package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusched/timetable-api/internal/models"
)

// LessonAssignmentRepository provides persistence for lesson assignments.
type LessonAssignmentRepository struct {
	db *sqlx.DB
}

// NewLessonAssignmentRepository creates a new lesson assignment repository.
func NewLessonAssignmentRepository(db *sqlx.DB) *LessonAssignmentRepository {
	return &LessonAssignmentRepository{db: db}
}

const lessonAssignmentColumns = "id, cohort_id, subject_id, teacher_id, academic_year, semester, weekly_hours, lessons_per_week, active, created_at, updated_at"

// List returns assignments with optional filtering and pagination.
func (r *LessonAssignmentRepository) List(ctx context.Context, filter models.LessonAssignmentFilter) ([]models.LessonAssignment, int, error) {
	base := "FROM lesson_assignments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.CohortID != "" {
		conditions = append(conditions, fmt.Sprintf("cohort_id = $%d", len(args)+1))
		args = append(args, filter.CohortID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", lessonAssignmentColumns, base, size, offset)
	var assignments []models.LessonAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lesson assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count lesson assignments: %w", err)
	}

	return assignments, total, nil
}

// FindByID loads an assignment by id.
func (r *LessonAssignmentRepository) FindByID(ctx context.Context, id string) (*models.LessonAssignment, error) {
	query := fmt.Sprintf("SELECT %s FROM lesson_assignments WHERE id = $1", lessonAssignmentColumns)
	var assignment models.LessonAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindByIDs loads the given assignments.
func (r *LessonAssignmentRepository) FindByIDs(ctx context.Context, ids []string) ([]models.LessonAssignment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM lesson_assignments WHERE id IN (?)", lessonAssignmentColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build assignments query: %w", err)
	}
	query = r.db.Rebind(query)

	var assignments []models.LessonAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("find assignments by ids: %w", err)
	}
	return assignments, nil
}

// ListActiveByTerm returns active assignments for one academic year/semester.
func (r *LessonAssignmentRepository) ListActiveByTerm(ctx context.Context, academicYear, semester int) ([]models.LessonAssignment, error) {
	query := fmt.Sprintf("SELECT %s FROM lesson_assignments WHERE active = TRUE AND academic_year = $1 AND semester = $2 ORDER BY created_at ASC", lessonAssignmentColumns)
	var assignments []models.LessonAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, academicYear, semester); err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return assignments, nil
}

// FindDuplicate returns an active assignment covering the same cohort and
// subject in the same term, or nil.
func (r *LessonAssignmentRepository) FindDuplicate(ctx context.Context, cohortID, subjectID string, academicYear, semester int) (*models.LessonAssignment, error) {
	query := fmt.Sprintf("SELECT %s FROM lesson_assignments WHERE active = TRUE AND cohort_id = $1 AND subject_id = $2 AND academic_year = $3 AND semester = $4 LIMIT 1", lessonAssignmentColumns)
	var assignments []models.LessonAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, cohortID, subjectID, academicYear, semester); err != nil {
		return nil, fmt.Errorf("find duplicate assignment: %w", err)
	}
	if len(assignments) == 0 {
		return nil, nil
	}
	return &assignments[0], nil
}

// Create stores a new assignment record.
func (r *LessonAssignmentRepository) Create(ctx context.Context, assignment *models.LessonAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO lesson_assignments (id, cohort_id, subject_id, teacher_id, academic_year, semester, weekly_hours, lessons_per_week, active, created_at, updated_at) VALUES (:id, :cohort_id, :subject_id, :teacher_id, :academic_year, :semester, :weekly_hours, :lessons_per_week, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create lesson assignment: %w", err)
	}
	return nil
}

// SetActive flips an assignment's active flag.
func (r *LessonAssignmentRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE lesson_assignments SET active = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, active, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set assignment active: %w", err)
	}
	return nil
}

// Delete removes an assignment record.
func (r *LessonAssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM lesson_assignments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete lesson assignment: %w", err)
	}
	return nil
}
