package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edusched/timetable-api/internal/models"
)

// SubjectRepository provides read access to subjects and their eligible
// teacher sets.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID loads a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, name, course_id, target_year, target_semester, credits, created_at FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// IsTeacherEligible reports whether the teacher belongs to the subject's
// eligible teacher set.
func (r *SubjectRepository) IsTeacherEligible(ctx context.Context, subjectID, teacherID string) (bool, error) {
	const query = `SELECT COUNT(1) FROM subject_teachers WHERE subject_id = $1 AND teacher_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, subjectID, teacherID); err != nil {
		return false, fmt.Errorf("check teacher eligibility: %w", err)
	}
	return count > 0, nil
}

// ListEligibleTeachers returns teacher ids allowed to teach the subject.
func (r *SubjectRepository) ListEligibleTeachers(ctx context.Context, subjectID string) ([]string, error) {
	const query = `SELECT teacher_id FROM subject_teachers WHERE subject_id = $1 ORDER BY teacher_id ASC`
	var teacherIDs []string
	if err := r.db.SelectContext(ctx, &teacherIDs, query, subjectID); err != nil {
		return nil, fmt.Errorf("list eligible teachers: %w", err)
	}
	return teacherIDs, nil
}
