package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edusched/timetable-api/internal/models"
)

// CohortRepository provides read access to student cohorts.
type CohortRepository struct {
	db *sqlx.DB
}

// NewCohortRepository creates a new cohort repository.
func NewCohortRepository(db *sqlx.DB) *CohortRepository {
	return &CohortRepository{db: db}
}

// FindByID loads a cohort by id.
func (r *CohortRepository) FindByID(ctx context.Context, id string) (*models.Cohort, error) {
	const query = `SELECT id, name, course_id, academic_year, semester, student_count, created_at FROM cohorts WHERE id = $1`
	var cohort models.Cohort
	if err := r.db.GetContext(ctx, &cohort, query, id); err != nil {
		return nil, err
	}
	return &cohort, nil
}

// StudentCounts returns cohort sizes keyed by cohort id.
func (r *CohortRepository) StudentCounts(ctx context.Context, ids []string) (map[string]int, error) {
	if len(ids) == 0 {
		return map[string]int{}, nil
	}
	query, args, err := sqlx.In("SELECT id, student_count FROM cohorts WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("build cohort counts query: %w", err)
	}
	query = r.db.Rebind(query)

	rows := []struct {
		ID           string `db:"id"`
		StudentCount int    `db:"student_count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fetch cohort counts: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ID] = row.StudentCount
	}
	return counts, nil
}
