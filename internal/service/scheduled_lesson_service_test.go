package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edusched/timetable-api/internal/models"
	"github.com/edusched/timetable-api/internal/repository"
	"github.com/edusched/timetable-api/pkg/config"
	appErrors "github.com/edusched/timetable-api/pkg/errors"
)

type mockLessonRepo struct {
	existing []models.ScheduledLessonDetail
	created  *models.ScheduledLesson
	updated  *models.ScheduledLesson
	deleted  []string
}

func (m *mockLessonRepo) List(ctx context.Context, filter models.ScheduledLessonFilter) ([]models.ScheduledLessonDetail, int, error) {
	return m.existing, len(m.existing), nil
}

func (m *mockLessonRepo) FindByID(ctx context.Context, id string) (*models.ScheduledLessonDetail, error) {
	for _, d := range m.existing {
		if d.ID == id {
			detail := d
			return &detail, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockLessonRepo) overlaps(q repository.OverlapQuery, d models.ScheduledLessonDetail) bool {
	if !d.Date.Equal(q.Date) || d.ID == q.ExcludeID {
		return false
	}
	return models.Overlaps(models.MinuteOfDay(q.StartTime), models.MinuteOfDay(q.EndTime),
		models.MinuteOfDay(d.StartTime), models.MinuteOfDay(d.EndTime))
}

func (m *mockLessonRepo) TeacherConflictsTx(ctx context.Context, tx *sqlx.Tx, teacherID string, q repository.OverlapQuery) ([]models.ScheduledLessonDetail, error) {
	var hits []models.ScheduledLessonDetail
	for _, d := range m.existing {
		if d.TeacherID == teacherID && m.overlaps(q, d) {
			hits = append(hits, d)
		}
	}
	return hits, nil
}

func (m *mockLessonRepo) RoomConflictsTx(ctx context.Context, tx *sqlx.Tx, roomID string, q repository.OverlapQuery) ([]models.ScheduledLessonDetail, error) {
	var hits []models.ScheduledLessonDetail
	for _, d := range m.existing {
		if d.RoomID == roomID && m.overlaps(q, d) {
			hits = append(hits, d)
		}
	}
	return hits, nil
}

func (m *mockLessonRepo) CohortConflictsTx(ctx context.Context, tx *sqlx.Tx, cohortID string, q repository.OverlapQuery) ([]models.ScheduledLessonDetail, error) {
	var hits []models.ScheduledLessonDetail
	for _, d := range m.existing {
		if d.CohortID == cohortID && m.overlaps(q, d) {
			hits = append(hits, d)
		}
	}
	return hits, nil
}

func (m *mockLessonRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, lesson *models.ScheduledLesson) error {
	if lesson.ID == "" {
		lesson.ID = "new-lesson"
	}
	m.created = lesson
	return nil
}

func (m *mockLessonRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, lesson *models.ScheduledLesson) error {
	m.updated = lesson
	return nil
}

func (m *mockLessonRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockLessonRepo) WithinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type mockAssignmentReader struct {
	assignments map[string]models.LessonAssignment
}

func (m *mockAssignmentReader) FindByID(ctx context.Context, id string) (*models.LessonAssignment, error) {
	if a, ok := m.assignments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

type mockRoomReader struct{}

func (m *mockRoomReader) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.Room{ID: id, Capacity: 30}, nil
}

type mockTimetableReader struct {
	timetables map[string]models.Timetable
}

func (m *mockTimetableReader) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	if tt, ok := m.timetables[id]; ok {
		return &tt, nil
	}
	return nil, sql.ErrNoRows
}

func lessonPolicy() config.PolicyConfig {
	return config.PolicyConfig{MinLessonMinutes: 30, MaxLessonMinutes: 240}
}

func activeAssignments() *mockAssignmentReader {
	return &mockAssignmentReader{assignments: map[string]models.LessonAssignment{
		"la-1": {ID: "la-1", TeacherID: "t1", CohortID: "c1", SubjectID: "sub-1", Active: true},
		"la-2": {ID: "la-2", TeacherID: "t2", CohortID: "c2", SubjectID: "sub-2", Active: true},
		"la-3": {ID: "la-3", TeacherID: "t3", CohortID: "c3", SubjectID: "sub-3", Active: false},
	}}
}

func newLessonService(repo *mockLessonRepo) *ScheduledLessonService {
	timetables := &mockTimetableReader{timetables: map[string]models.Timetable{
		"tt-draft":     {ID: "tt-draft", Status: models.TimetableStatusDraft},
		"tt-published": {ID: "tt-published", Status: models.TimetableStatusPublished},
	}}
	return NewScheduledLessonService(repo, activeAssignments(), &mockRoomReader{}, timetables, lessonPolicy(), validator.New(), zap.NewNop())
}

func existingLesson(id, teacherID, roomID, cohortID, start, end string) models.ScheduledLessonDetail {
	return models.ScheduledLessonDetail{
		ScheduledLesson: models.ScheduledLesson{
			ID:        id,
			RoomID:    roomID,
			Date:      time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC),
			StartTime: start,
			EndTime:   end,
		},
		TeacherID: teacherID,
		CohortID:  cohortID,
	}
}

func TestScheduledLessonServiceCreate(t *testing.T) {
	repo := &mockLessonRepo{}
	svc := newLessonService(repo)

	lesson, err := svc.Create(context.Background(), CreateScheduledLessonRequest{
		AssignmentID: "la-1",
		RoomID:       "r1",
		Date:         "2026-09-07",
		StartTime:    "08:00",
		EndTime:      "09:50",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-lesson", lesson.ID)
	require.NotNil(t, repo.created)
	assert.Equal(t, "la-1", repo.created.AssignmentID)
}

func TestScheduledLessonServiceCreateTeacherConflict(t *testing.T) {
	repo := &mockLessonRepo{existing: []models.ScheduledLessonDetail{
		existingLesson("sl-1", "t1", "r2", "c2", "08:00", "09:50"),
	}}
	svc := newLessonService(repo)

	_, err := svc.Create(context.Background(), CreateScheduledLessonRequest{
		AssignmentID: "la-1",
		RoomID:       "r1",
		Date:         "2026-09-07",
		StartTime:    "09:00",
		EndTime:      "10:50",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTeacherConflict.Code, appErr.Code)
	assert.Nil(t, repo.created)

	details, ok := appErr.Details.(models.LessonConflict)
	require.True(t, ok)
	assert.Equal(t, models.ConflictTeacher, details.Dimension)
	assert.Equal(t, "sl-1", details.LessonID)
	assert.Equal(t, "t1", details.TeacherID)
	assert.Equal(t, "08:00", details.StartTime)
	assert.Equal(t, "09:50", details.EndTime)
}

func TestScheduledLessonServiceCreateRoomConflict(t *testing.T) {
	repo := &mockLessonRepo{existing: []models.ScheduledLessonDetail{
		existingLesson("sl-1", "t2", "r1", "c2", "08:00", "09:50"),
	}}
	svc := newLessonService(repo)

	_, err := svc.Create(context.Background(), CreateScheduledLessonRequest{
		AssignmentID: "la-1",
		RoomID:       "r1",
		Date:         "2026-09-07",
		StartTime:    "09:00",
		EndTime:      "10:50",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRoomConflict.Code, appErr.Code)
	details, ok := appErr.Details.(models.LessonConflict)
	require.True(t, ok)
	assert.Equal(t, models.ConflictRoom, details.Dimension)
}

func TestScheduledLessonServiceCreateCohortConflict(t *testing.T) {
	repo := &mockLessonRepo{existing: []models.ScheduledLessonDetail{
		existingLesson("sl-1", "t2", "r2", "c1", "08:00", "09:50"),
	}}
	svc := newLessonService(repo)

	_, err := svc.Create(context.Background(), CreateScheduledLessonRequest{
		AssignmentID: "la-1",
		RoomID:       "r1",
		Date:         "2026-09-07",
		StartTime:    "09:00",
		EndTime:      "10:50",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCohortConflict.Code, appErr.Code)
	details, ok := appErr.Details.(models.LessonConflict)
	require.True(t, ok)
	assert.Equal(t, models.ConflictCohort, details.Dimension)
}

func TestScheduledLessonServiceCreateBackToBackAccepted(t *testing.T) {
	repo := &mockLessonRepo{existing: []models.ScheduledLessonDetail{
		existingLesson("sl-1", "t1", "r1", "c1", "08:00", "09:50"),
	}}
	svc := newLessonService(repo)

	_, err := svc.Create(context.Background(), CreateScheduledLessonRequest{
		AssignmentID: "la-1",
		RoomID:       "r1",
		Date:         "2026-09-07",
		StartTime:    "09:50",
		EndTime:      "11:40",
	})
	require.NoError(t, err)
	assert.NotNil(t, repo.created)
}

func TestScheduledLessonServiceCreateConflictOnAnotherDayIgnored(t *testing.T) {
	repo := &mockLessonRepo{existing: []models.ScheduledLessonDetail{
		existingLesson("sl-1", "t1", "r1", "c1", "08:00", "09:50"),
	}}
	svc := newLessonService(repo)

	_, err := svc.Create(context.Background(), CreateScheduledLessonRequest{
		AssignmentID: "la-1",
		RoomID:       "r1",
		Date:         "2026-09-08",
		StartTime:    "08:00",
		EndTime:      "09:50",
	})
	require.NoError(t, err)
}

func TestScheduledLessonServiceCreateRejectsBadTimeRange(t *testing.T) {
	svc := newLessonService(&mockLessonRepo{})

	cases := []struct {
		name  string
		start string
		end   string
	}{
		{"inverted", "10:00", "09:00"},
		{"zero length", "10:00", "10:00"},
		{"too short", "10:00", "10:20"},
		{"too long", "08:00", "13:00"},
		{"malformed", "25:99", "26:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), CreateScheduledLessonRequest{
				AssignmentID: "la-1",
				RoomID:       "r1",
				Date:         "2026-09-07",
				StartTime:    tc.start,
				EndTime:      tc.end,
			})
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrInvalidTimeRange.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestScheduledLessonServiceCreateInactiveAssignment(t *testing.T) {
	svc := newLessonService(&mockLessonRepo{})

	_, err := svc.Create(context.Background(), CreateScheduledLessonRequest{
		AssignmentID: "la-3",
		RoomID:       "r1",
		Date:         "2026-09-07",
		StartTime:    "08:00",
		EndTime:      "09:50",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInfeasibleAssignment.Code, appErrors.FromError(err).Code)
}

func TestScheduledLessonServiceCreateIntoPublishedTimetable(t *testing.T) {
	svc := newLessonService(&mockLessonRepo{})
	timetableID := "tt-published"

	_, err := svc.Create(context.Background(), CreateScheduledLessonRequest{
		AssignmentID: "la-1",
		TimetableID:  &timetableID,
		RoomID:       "r1",
		Date:         "2026-09-07",
		StartTime:    "08:00",
		EndTime:      "09:50",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTimetableNotEditable.Code, appErrors.FromError(err).Code)
}

func TestScheduledLessonServiceUpdateExcludesSelf(t *testing.T) {
	repo := &mockLessonRepo{existing: []models.ScheduledLessonDetail{
		existingLesson("sl-1", "t1", "r1", "c1", "08:00", "09:50"),
	}}
	svc := newLessonService(repo)

	updated, err := svc.Update(context.Background(), "sl-1", UpdateScheduledLessonRequest{
		RoomID:    "r1",
		Date:      "2026-09-07",
		StartTime: "08:30",
		EndTime:   "10:20",
	})
	require.NoError(t, err)
	assert.Equal(t, "08:30", updated.StartTime)
	require.NotNil(t, repo.updated)
	assert.Equal(t, "sl-1", repo.updated.ID)
}

func TestScheduledLessonServiceUpdateDetectsConflictWithOthers(t *testing.T) {
	repo := &mockLessonRepo{existing: []models.ScheduledLessonDetail{
		existingLesson("sl-1", "t1", "r1", "c1", "08:00", "09:50"),
		existingLesson("sl-2", "t1", "r2", "c2", "10:00", "11:50"),
	}}
	svc := newLessonService(repo)

	_, err := svc.Update(context.Background(), "sl-1", UpdateScheduledLessonRequest{
		RoomID:    "r1",
		Date:      "2026-09-07",
		StartTime: "10:00",
		EndTime:   "11:50",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTeacherConflict.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.updated)
}

func TestScheduledLessonServiceDelete(t *testing.T) {
	repo := &mockLessonRepo{existing: []models.ScheduledLessonDetail{
		existingLesson("sl-1", "t1", "r1", "c1", "08:00", "09:50"),
	}}
	svc := newLessonService(repo)

	require.NoError(t, svc.Delete(context.Background(), "sl-1"))
	assert.Contains(t, repo.deleted, "sl-1")

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduledLessonServiceDeleteFromPublishedTimetable(t *testing.T) {
	timetableID := "tt-published"
	lesson := existingLesson("sl-1", "t1", "r1", "c1", "08:00", "09:50")
	lesson.TimetableID = &timetableID
	repo := &mockLessonRepo{existing: []models.ScheduledLessonDetail{lesson}}
	svc := newLessonService(repo)

	err := svc.Delete(context.Background(), "sl-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTimetableNotEditable.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}
