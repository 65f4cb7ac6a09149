package models

import "time"

// Classroom is a group of children for one academic year.
type Classroom struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Level          string    `db:"level" json:"level"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	TeacherID      *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	TeacherName    *string   `db:"teacher_name" json:"teacher_name,omitempty"`
	StudentCount   int       `db:"student_count" json:"student_count"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
