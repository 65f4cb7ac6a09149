package models

import "time"

// ReportCardStatus is the lifecycle state of a report card.
type ReportCardStatus string

const (
	ReportCardDraft     ReportCardStatus = "draft"
	ReportCardPublished ReportCardStatus = "published"
)

// ReportCard is the per-student, per-term assessment record.
type ReportCard struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	AcademicTermID string           `db:"academic_term_id" json:"academic_term_id"`
	ClassroomID    *string          `db:"classroom_id" json:"classroom_id,omitempty"`
	Status         ReportCardStatus `db:"status" json:"status"`
	PublishedAt    *time.Time       `db:"published_at" json:"published_at,omitempty"`
	CreatedBy      string           `db:"created_by" json:"created_by"`
	ReviewedBy     *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// IsPublished reports whether the card is frozen.
func (r ReportCard) IsPublished() bool {
	return r.Status == ReportCardPublished
}

// ReportDetail is the score and narrative of one aspect on a report card.
type ReportDetail struct {
	ID                 string    `db:"id" json:"id"`
	ReportCardID       string    `db:"report_card_id" json:"report_card_id"`
	AssessmentAspectID string    `db:"assessment_aspect_id" json:"assessment_aspect_id"`
	AspectName         string    `db:"aspect_name" json:"aspect_name"`
	AspectCategory     string    `db:"aspect_category" json:"aspect_category"`
	Score              Score     `db:"score" json:"score"`
	Keywords           *string   `db:"keywords" json:"keywords,omitempty"`
	Narrative          *string   `db:"narrative" json:"narrative,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// DetailInput is a teacher's entry for one aspect.
type DetailInput struct {
	AspectID  string  `json:"aspect_id" validate:"required"`
	Score     Score   `json:"score" validate:"required,oneof=BB MB BSH BSB"`
	Keywords  *string `json:"keywords,omitempty" validate:"omitempty,max=500"`
	Narrative *string `json:"narrative,omitempty"`
}

// SaveAssessmentRequest saves scores for a student in a term.
type SaveAssessmentRequest struct {
	StudentID string        `json:"student_id" validate:"required"`
	TermID    string        `json:"term_id" validate:"required"`
	Details   []DetailInput `json:"details" validate:"required,min=1,dive"`
}

// NarrativeRequest asks for a single aspect narrative.
type NarrativeRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	AspectID  string `json:"aspect_id" validate:"required"`
	Score     Score  `json:"score" validate:"required,oneof=BB MB BSH BSB"`
	Keywords  string `json:"keywords"`
}

// BulkNarrativeItem is one aspect in a bulk generation request.
type BulkNarrativeItem struct {
	AspectID string `json:"aspect_id" validate:"required"`
	Score    Score  `json:"score" validate:"required,oneof=BB MB BSH BSB"`
	Keywords string `json:"keywords"`
}

// BulkNarrativeRequest asks for narratives for several aspects of one student.
type BulkNarrativeRequest struct {
	StudentID string              `json:"student_id" validate:"required"`
	Items     []BulkNarrativeItem `json:"items" validate:"required,min=1,dive"`
}

// BulkNarrativeResult maps aspect id to generated narrative; failed and unknown aspects are listed under Failures.
type BulkNarrativeResult struct {
	Narratives map[string]string `json:"narratives"`
	Failures   map[string]string `json:"failures,omitempty"`
}

// AttendanceSummary counts presence logs by status.
type AttendanceSummary struct {
	Hadir int `json:"hadir"`
	Sakit int `json:"sakit"`
	Izin  int `json:"izin"`
	Alpha int `json:"alpha"`
}

// ReportCardView is a report card with everything needed to render it.
type ReportCardView struct {
	ReportCard
	Student      Student            `json:"student"`
	Term         AcademicTerm       `json:"term"`
	Classroom    *Classroom         `json:"classroom,omitempty"`
	Details      []ReportDetail     `json:"details"`
	Attendance   *AttendanceSummary `json:"attendance,omitempty"`
	LatestGrowth *GrowthRecord      `json:"latest_growth,omitempty"`
	AverageScore float64            `json:"average_score"`
}

// AspectPerformance aggregates the scores of one aspect across a class.
type AspectPerformance struct {
	AspectID     string        `json:"aspect_id"`
	AspectName   string        `json:"aspect_name"`
	Distribution map[Score]int `json:"distribution"`
	Average      float64       `json:"average"`
}

// ClassStatistics summarises report card progress and scores for a class and term.
type ClassStatistics struct {
	ClassroomID       string              `json:"classroom_id"`
	TermID            string              `json:"term_id"`
	TotalStudents     int                 `json:"total_students"`
	Published         int                 `json:"published"`
	Draft             int                 `json:"draft"`
	NotStarted        int                 `json:"not_started"`
	ScoreDistribution map[Score]int       `json:"score_distribution"`
	AspectPerformance []AspectPerformance `json:"aspect_performance"`
	AverageScore      float64             `json:"average_score"`
}

// ScoredDetail is a flat row used for statistics aggregation.
type ScoredDetail struct {
	ReportCardID string           `db:"report_card_id"`
	Status       ReportCardStatus `db:"status"`
	AspectID     string           `db:"assessment_aspect_id"`
	AspectName   string           `db:"aspect_name"`
	Score        Score            `db:"score"`
}
