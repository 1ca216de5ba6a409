package models

import "time"

// LessonAssignment records that a subject is taught to a cohort by a specific
// teacher during one academic year and semester. It is the recurring weekly
// commitment the solver expands into concrete lessons.
type LessonAssignment struct {
	ID             string    `db:"id" json:"id"`
	CohortID       string    `db:"cohort_id" json:"cohort_id"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	AcademicYear   int       `db:"academic_year" json:"academic_year"`
	Semester       int       `db:"semester" json:"semester"`
	WeeklyHours    int       `db:"weekly_hours" json:"weekly_hours"`
	LessonsPerWeek int       `db:"lessons_per_week" json:"lessons_per_week"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// LessonAssignmentFilter describes query params for listing assignments.
type LessonAssignmentFilter struct {
	CohortID  string
	SubjectID string
	TeacherID string
	Active    *bool
	Page      int
	PageSize  int
}
