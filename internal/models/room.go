package models

import "time"

// Room is a bookable teaching space. CourseID, when set, restricts the room
// to lessons of that course.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CourseID  *string   `db:"course_id" json:"course_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
