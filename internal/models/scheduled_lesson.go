package models

import "time"

// ScheduledLesson is one dated occurrence of a lesson assignment, bound to a
// room and a half-open [StartTime, EndTime) clock range.
type ScheduledLesson struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	TimetableID  *string   `db:"timetable_id" json:"timetable_id,omitempty"`
	RoomID       string    `db:"room_id" json:"room_id"`
	Date         time.Time `db:"date" json:"date"`
	StartTime    string    `db:"start_time" json:"start_time"`
	EndTime      string    `db:"end_time" json:"end_time"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DurationMinutes returns the lesson length, or -1 when either clock string
// is malformed.
func (l ScheduledLesson) DurationMinutes() int {
	start := MinuteOfDay(l.StartTime)
	end := MinuteOfDay(l.EndTime)
	if start < 0 || end < 0 {
		return -1
	}
	return end - start
}

// ScheduledLessonDetail joins a lesson with its assignment linkage so the
// conflict validator can query per teacher/room/cohort without extra lookups.
type ScheduledLessonDetail struct {
	ScheduledLesson
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	CohortID  string `db:"cohort_id" json:"cohort_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
}

// ScheduledLessonFilter describes query params for listing lessons.
type ScheduledLessonFilter struct {
	TimetableID string
	CohortID    string
	TeacherID   string
	RoomID      string
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
}

// ConflictDimension identifies which entity a scheduling conflict is about.
type ConflictDimension string

const (
	ConflictTeacher ConflictDimension = "TEACHER"
	ConflictRoom    ConflictDimension = "ROOM"
	ConflictCohort  ConflictDimension = "COHORT"
)

// LessonConflict describes an existing lesson that collides with a candidate.
type LessonConflict struct {
	Dimension ConflictDimension `json:"dimension"`
	LessonID  string            `json:"lesson_id"`
	TeacherID string            `json:"teacher_id"`
	RoomID    string            `json:"room_id"`
	CohortID  string            `json:"cohort_id"`
	Date      time.Time         `json:"date"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
}
