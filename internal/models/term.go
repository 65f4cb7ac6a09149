package models

import "time"

// AcademicYear groups two semesters, e.g. "2024/2025".
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AcademicTerm is one semester of an academic year.
type AcademicTerm struct {
	ID             string    `db:"id" json:"id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	YearName       string    `db:"year_name" json:"year_name"`
	Semester       int       `db:"semester" json:"semester"`
	StartDate      time.Time `db:"start_date" json:"start_date"`
	EndDate        time.Time `db:"end_date" json:"end_date"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Label renders the term the way it is printed on report cards.
func (t AcademicTerm) Label() string {
	if t.Semester == 1 {
		return "Semester 1 (Ganjil) " + t.YearName
	}
	return "Semester 2 (Genap) " + t.YearName
}
