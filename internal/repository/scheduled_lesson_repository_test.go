package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusched/timetable-api/internal/models"
)

func newLessonRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func lessonDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "assignment_id", "timetable_id", "room_id", "date", "start_time", "end_time",
		"created_at", "updated_at", "teacher_id", "cohort_id", "subject_id",
	})
}

func TestScheduledLessonRepositoryTeacherConflicts(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewScheduledLessonRepository(db)

	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	rows := lessonDetailRows().
		AddRow("sl-1", "la-1", nil, "room-1", date, "08:00", "09:50", time.Now(), time.Now(), "t-1", "c-1", "sub-1")

	mock.ExpectQuery("SELECT .+ FROM scheduled_lessons sl JOIN lesson_assignments la ON la.id = sl.assignment_id WHERE la.teacher_id = \\$1 AND sl.date = \\$2 AND sl.start_time < \\$3 AND \\$4 < sl.end_time AND sl.id <> \\$5").
		WithArgs("t-1", date, "10:00", "09:00", "").
		WillReturnRows(rows)

	conflicts, err := repo.TeacherConflicts(context.Background(), "t-1", OverlapQuery{
		Date:      date,
		StartTime: "09:00",
		EndTime:   "10:00",
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "sl-1", conflicts[0].ID)
	assert.Equal(t, "t-1", conflicts[0].TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledLessonRepositoryRoomConflictsExcludesSelf(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewScheduledLessonRepository(db)

	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .+ WHERE sl.room_id = \\$1 .+ sl.id <> \\$5").
		WithArgs("room-1", date, "10:00", "09:00", "sl-self").
		WillReturnRows(lessonDetailRows())

	conflicts, err := repo.RoomConflicts(context.Background(), "room-1", OverlapQuery{
		Date:      date,
		StartTime: "09:00",
		EndTime:   "10:00",
		ExcludeID: "sl-self",
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledLessonRepositoryCohortConflictsTx(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewScheduledLessonRepository(db)

	date := time.Date(2026, time.September, 8, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ WHERE la.cohort_id = \\$1").
		WithArgs("c-1", date, "12:00", "10:10", "").
		WillReturnRows(lessonDetailRows())
	mock.ExpectCommit()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)

	conflicts, err := repo.CohortConflictsTx(context.Background(), tx, "c-1", OverlapQuery{
		Date:      date,
		StartTime: "10:10",
		EndTime:   "12:00",
	})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledLessonRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewScheduledLessonRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scheduled_lessons")).
		WithArgs(sqlmock.AnyArg(), "la-1", nil, "room-1", sqlmock.AnyArg(), "08:00", "09:50", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	lesson := &models.ScheduledLesson{
		AssignmentID: "la-1",
		RoomID:       "room-1",
		Date:         time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC),
		StartTime:    "08:00",
		EndTime:      "09:50",
	}
	require.NoError(t, repo.Create(context.Background(), lesson))
	assert.NotEmpty(t, lesson.ID)
	assert.False(t, lesson.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledLessonRepositoryCreateTxRequiresTx(t *testing.T) {
	db, _, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewScheduledLessonRepository(db)

	err := repo.CreateTx(context.Background(), nil, &models.ScheduledLesson{})
	assert.Error(t, err)
}

func TestScheduledLessonRepositoryCountByAssignment(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewScheduledLessonRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM scheduled_lessons WHERE assignment_id = $1")).
		WithArgs("la-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByAssignment(context.Background(), "la-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledLessonRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewScheduledLessonRepository(db)

	date := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	rows := lessonDetailRows().
		AddRow("sl-1", "la-1", "tt-1", "room-1", date, "08:00", "09:50", time.Now(), time.Now(), "t-1", "c-1", "sub-1")

	mock.ExpectQuery("SELECT .+ WHERE 1=1 AND sl.timetable_id = \\$1 AND la.teacher_id = \\$2 ORDER BY sl.date ASC, sl.start_time ASC LIMIT 50 OFFSET 0").
		WithArgs("tt-1", "t-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM scheduled_lessons sl JOIN lesson_assignments la").
		WithArgs("tt-1", "t-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	lessons, total, err := repo.List(context.Background(), models.ScheduledLessonFilter{
		TimetableID: "tt-1",
		TeacherID:   "t-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, lessons, 1)
	assert.Equal(t, "c-1", lessons[0].CohortID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledLessonRepositoryDeleteByTimetableTx(t *testing.T) {
	db, mock, cleanup := newLessonRepoMock(t)
	defer cleanup()
	repo := NewScheduledLessonRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM scheduled_lessons WHERE timetable_id = $1")).
		WithArgs("tt-1").
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit()

	tx, err := repo.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, repo.DeleteByTimetableTx(context.Background(), tx, "tt-1"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
