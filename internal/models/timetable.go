package models

import "time"

// TimetableStatus represents lifecycle phases for timetables.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// Timetable is a named container of scheduled lessons for one academic
// year/semester pair.
type Timetable struct {
	ID           string          `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	AcademicYear int             `db:"academic_year" json:"academic_year"`
	Semester     int             `db:"semester" json:"semester"`
	Status       TimetableStatus `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}
