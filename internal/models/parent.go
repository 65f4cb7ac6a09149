package models

import "time"

// RelationshipType describes how a parent account relates to a child.
type RelationshipType string

const (
	RelationshipFather   RelationshipType = "father"
	RelationshipMother   RelationshipType = "mother"
	RelationshipGuardian RelationshipType = "guardian"
)

// ParentStudent links a parent user to a student.
type ParentStudent struct {
	ID               string           `db:"id" json:"id"`
	UserID           string           `db:"user_id" json:"user_id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	RelationshipType RelationshipType `db:"relationship_type" json:"relationship_type"`
	IsPrimaryContact bool             `db:"is_primary_contact" json:"is_primary_contact"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// ParentContact is a parent account as seen from a student.
type ParentContact struct {
	UserID           string           `db:"user_id" json:"user_id"`
	FullName         string           `db:"full_name" json:"full_name"`
	PhoneNumber      string           `db:"phone_number" json:"phone_number"`
	RelationshipType RelationshipType `db:"relationship_type" json:"relationship_type"`
	IsPrimaryContact bool             `db:"is_primary_contact" json:"is_primary_contact"`
}
