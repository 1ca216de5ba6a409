package models

import "time"

// Cohort is a group of students progressing through a course together.
type Cohort struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	CourseID     string    `db:"course_id" json:"course_id"`
	AcademicYear int       `db:"academic_year" json:"academic_year"`
	Semester     int       `db:"semester" json:"semester"`
	StudentCount int       `db:"student_count" json:"student_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Subject is a unit of teaching targeted at one course year/semester.
type Subject struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	CourseID       string    `db:"course_id" json:"course_id"`
	TargetYear     int       `db:"target_year" json:"target_year"`
	TargetSemester int       `db:"target_semester" json:"target_semester"`
	Credits        int       `db:"credits" json:"credits"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
