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

// ScheduledLessonRepository provides persistence for scheduled lessons. The
// conflict lookups have transaction-scoped variants so callers can check and
// write atomically.
type ScheduledLessonRepository struct {
	db *sqlx.DB
}

// NewScheduledLessonRepository creates a new scheduled lesson repository.
func NewScheduledLessonRepository(db *sqlx.DB) *ScheduledLessonRepository {
	return &ScheduledLessonRepository{db: db}
}

const scheduledLessonDetailColumns = "sl.id, sl.assignment_id, sl.timetable_id, sl.room_id, sl.date, sl.start_time, sl.end_time, sl.created_at, sl.updated_at, la.teacher_id, la.cohort_id, la.subject_id"

// OverlapQuery bounds a conflict lookup to one date and clock range. The
// range is half-open, lessons only touching at a boundary do not match.
// ExcludeID removes the candidate's own row on updates.
type OverlapQuery struct {
	Date      time.Time
	StartTime string
	EndTime   string
	ExcludeID string
}

// List returns lesson details with optional filtering and pagination.
func (r *ScheduledLessonRepository) List(ctx context.Context, filter models.ScheduledLessonFilter) ([]models.ScheduledLessonDetail, int, error) {
	base := "FROM scheduled_lessons sl JOIN lesson_assignments la ON la.id = sl.assignment_id WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TimetableID != "" {
		conditions = append(conditions, fmt.Sprintf("sl.timetable_id = $%d", len(args)+1))
		args = append(args, filter.TimetableID)
	}
	if filter.CohortID != "" {
		conditions = append(conditions, fmt.Sprintf("la.cohort_id = $%d", len(args)+1))
		args = append(args, filter.CohortID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("la.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("sl.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("sl.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("sl.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY sl.date ASC, sl.start_time ASC LIMIT %d OFFSET %d", scheduledLessonDetailColumns, base, size, offset)
	var lessons []models.ScheduledLessonDetail
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list scheduled lessons: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count scheduled lessons: %w", err)
	}

	return lessons, total, nil
}

// FindByID loads a lesson with its assignment linkage.
func (r *ScheduledLessonRepository) FindByID(ctx context.Context, id string) (*models.ScheduledLessonDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM scheduled_lessons sl JOIN lesson_assignments la ON la.id = sl.assignment_id WHERE sl.id = $1", scheduledLessonDetailColumns)
	var lesson models.ScheduledLessonDetail
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		return nil, err
	}
	return &lesson, nil
}

// ListByTimetable returns every lesson of a timetable ordered by date/time.
func (r *ScheduledLessonRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.ScheduledLessonDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM scheduled_lessons sl JOIN lesson_assignments la ON la.id = sl.assignment_id WHERE sl.timetable_id = $1 ORDER BY sl.date ASC, sl.start_time ASC", scheduledLessonDetailColumns)
	var lessons []models.ScheduledLessonDetail
	if err := r.db.SelectContext(ctx, &lessons, query, timetableID); err != nil {
		return nil, fmt.Errorf("list lessons by timetable: %w", err)
	}
	return lessons, nil
}

// CountByAssignment returns how many lessons reference an assignment.
func (r *ScheduledLessonRepository) CountByAssignment(ctx context.Context, assignmentID string) (int, error) {
	const query = `SELECT COUNT(*) FROM scheduled_lessons WHERE assignment_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, assignmentID); err != nil {
		return 0, fmt.Errorf("count lessons by assignment: %w", err)
	}
	return count, nil
}

// CountByTimetable returns how many lessons a timetable holds.
func (r *ScheduledLessonRepository) CountByTimetable(ctx context.Context, timetableID string) (int, error) {
	const query = `SELECT COUNT(*) FROM scheduled_lessons WHERE timetable_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, timetableID); err != nil {
		return 0, fmt.Errorf("count lessons by timetable: %w", err)
	}
	return count, nil
}

// TeacherConflictsTx returns lessons of the same teacher overlapping the
// queried range, using the caller's transaction.
func (r *ScheduledLessonRepository) TeacherConflictsTx(ctx context.Context, tx *sqlx.Tx, teacherID string, q OverlapQuery) ([]models.ScheduledLessonDetail, error) {
	return r.findOverlaps(ctx, tx, "la.teacher_id", teacherID, q)
}

// RoomConflictsTx returns lessons in the same room overlapping the queried
// range, using the caller's transaction.
func (r *ScheduledLessonRepository) RoomConflictsTx(ctx context.Context, tx *sqlx.Tx, roomID string, q OverlapQuery) ([]models.ScheduledLessonDetail, error) {
	return r.findOverlaps(ctx, tx, "sl.room_id", roomID, q)
}

// CohortConflictsTx returns lessons of the same cohort overlapping the
// queried range, using the caller's transaction.
func (r *ScheduledLessonRepository) CohortConflictsTx(ctx context.Context, tx *sqlx.Tx, cohortID string, q OverlapQuery) ([]models.ScheduledLessonDetail, error) {
	return r.findOverlaps(ctx, tx, "la.cohort_id", cohortID, q)
}

// TeacherConflicts is the non-transactional variant for read-only checks.
func (r *ScheduledLessonRepository) TeacherConflicts(ctx context.Context, teacherID string, q OverlapQuery) ([]models.ScheduledLessonDetail, error) {
	return r.findOverlaps(ctx, r.db, "la.teacher_id", teacherID, q)
}

// RoomConflicts is the non-transactional variant for read-only checks.
func (r *ScheduledLessonRepository) RoomConflicts(ctx context.Context, roomID string, q OverlapQuery) ([]models.ScheduledLessonDetail, error) {
	return r.findOverlaps(ctx, r.db, "sl.room_id", roomID, q)
}

// CohortConflicts is the non-transactional variant for read-only checks.
func (r *ScheduledLessonRepository) CohortConflicts(ctx context.Context, cohortID string, q OverlapQuery) ([]models.ScheduledLessonDetail, error) {
	return r.findOverlaps(ctx, r.db, "la.cohort_id", cohortID, q)
}

func (r *ScheduledLessonRepository) findOverlaps(ctx context.Context, exec sqlx.ExtContext, column, value string, q OverlapQuery) ([]models.ScheduledLessonDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM scheduled_lessons sl JOIN lesson_assignments la ON la.id = sl.assignment_id WHERE %s = $1 AND sl.date = $2 AND sl.start_time < $3 AND $4 < sl.end_time AND sl.id <> $5 ORDER BY sl.start_time ASC", scheduledLessonDetailColumns, column)
	var lessons []models.ScheduledLessonDetail
	if err := sqlx.SelectContext(ctx, exec, &lessons, query, value, q.Date, q.EndTime, q.StartTime, q.ExcludeID); err != nil {
		return nil, fmt.Errorf("find overlapping lessons: %w", err)
	}
	return lessons, nil
}

// Create stores a new lesson record.
func (r *ScheduledLessonRepository) Create(ctx context.Context, lesson *models.ScheduledLesson) error {
	return r.insertLesson(ctx, r.db, lesson)
}

// CreateTx stores a new lesson using an existing transaction.
func (r *ScheduledLessonRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, lesson *models.ScheduledLesson) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	return r.insertLesson(ctx, tx, lesson)
}

func (r *ScheduledLessonRepository) insertLesson(ctx context.Context, exec sqlx.ExtContext, lesson *models.ScheduledLesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now

	const query = `INSERT INTO scheduled_lessons (id, assignment_id, timetable_id, room_id, date, start_time, end_time, created_at, updated_at) VALUES (:id, :assignment_id, :timetable_id, :room_id, :date, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, lesson); err != nil {
		return fmt.Errorf("create scheduled lesson: %w", err)
	}
	return nil
}

// UpdateTx modifies a lesson record using an existing transaction.
func (r *ScheduledLessonRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, lesson *models.ScheduledLesson) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE scheduled_lessons SET assignment_id = :assignment_id, timetable_id = :timetable_id, room_id = :room_id, date = :date, start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, lesson); err != nil {
		return fmt.Errorf("update scheduled lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson record.
func (r *ScheduledLessonRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM scheduled_lessons WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete scheduled lesson: %w", err)
	}
	return nil
}

// DeleteByTimetableTx clears a timetable's lessons inside a transaction, used
// when a solution is re-applied to a draft.
func (r *ScheduledLessonRepository) DeleteByTimetableTx(ctx context.Context, tx *sqlx.Tx, timetableID string) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	const query = `DELETE FROM scheduled_lessons WHERE timetable_id = $1`
	if _, err := tx.ExecContext(ctx, query, timetableID); err != nil {
		return fmt.Errorf("clear timetable lessons: %w", err)
	}
	return nil
}

// BeginTx opens a transaction for callers that combine conflict checks with
// writes.
func (r *ScheduledLessonRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin scheduled lesson tx: %w", err)
	}
	return tx, nil
}

// WithinTx runs fn inside one transaction, committing on success and rolling
// back on error. Conflict checks and the write they guard share the
// transaction so no lesson can slip in between.
func (r *ScheduledLessonRepository) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scheduled lesson tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scheduled lesson tx: %w", err)
	}
	return nil
}
