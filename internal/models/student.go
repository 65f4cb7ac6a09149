package models

import "time"

// Gender is the normalised sex of a student.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// StudentStatus tracks enrolment state.
type StudentStatus string

const (
	StudentStatusActive      StudentStatus = "active"
	StudentStatusGraduated   StudentStatus = "graduated"
	StudentStatusTransferred StudentStatus = "transferred"
	StudentStatusWithdrawn   StudentStatus = "withdrawn"
)

// Valid reports whether s is a known status.
func (s StudentStatus) Valid() bool {
	switch s {
	case StudentStatusActive, StudentStatusGraduated, StudentStatusTransferred, StudentStatusWithdrawn:
		return true
	}
	return false
}

// Student represents a child registered in the institution.
type Student struct {
	ID             string        `db:"id" json:"id"`
	NISN           *string       `db:"nisn" json:"nisn,omitempty"`
	FullName       string        `db:"full_name" json:"full_name"`
	Nickname       *string       `db:"nickname" json:"nickname,omitempty"`
	Gender         Gender        `db:"gender" json:"gender"`
	DateOfBirth    time.Time     `db:"date_of_birth" json:"date_of_birth"`
	PlaceOfBirth   *string       `db:"place_of_birth" json:"place_of_birth,omitempty"`
	Address        *string       `db:"address" json:"address,omitempty"`
	PhotoURL       *string       `db:"photo_url" json:"photo_url,omitempty"`
	ClassroomID    *string       `db:"classroom_id" json:"classroom_id,omitempty"`
	EnrollmentDate time.Time     `db:"enrollment_date" json:"enrollment_date"`
	Status         StudentStatus `db:"status" json:"status"`
	Notes          *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time    `db:"deleted_at" json:"-"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search      string
	ClassroomID string
	Status      StudentStatus
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// StudentDetail contains student information with classroom context.
type StudentDetail struct {
	Student
	ClassroomName *string `db:"classroom_name" json:"classroom_name,omitempty"`
}
