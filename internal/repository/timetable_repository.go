package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edusched/timetable-api/internal/models"
)

// TimetableRepository provides persistence for timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

const timetableColumns = "id, name, academic_year, semester, status, created_at, updated_at"

// List returns timetables, optionally restricted to a status.
func (r *TimetableRepository) List(ctx context.Context, status models.TimetableStatus) ([]models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables", timetableColumns)
	var args []interface{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY academic_year DESC, semester DESC, created_at DESC"

	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	return timetables, nil
}

// FindByID loads a timetable by id.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE id = $1", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// FindByTerm loads the timetable covering one academic year/semester, or nil
// when none exists.
func (r *TimetableRepository) FindByTerm(ctx context.Context, academicYear, semester int) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE academic_year = $1 AND semester = $2", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, academicYear, semester); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find timetable by term: %w", err)
	}
	return &timetable, nil
}

// Create stores a new timetable record.
func (r *TimetableRepository) Create(ctx context.Context, timetable *models.Timetable) error {
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusDraft
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	const query = `INSERT INTO timetables (id, name, academic_year, semester, status, created_at, updated_at) VALUES (:id, :name, :academic_year, :semester, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, timetable); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// UpdateStatus transitions a timetable to the given lifecycle status.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error {
	const query = `UPDATE timetables SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update timetable status: %w", err)
	}
	return nil
}

// Delete removes a timetable record; its lessons cascade at the schema level.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM timetables WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	return nil
}
