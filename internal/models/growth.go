package models

import "time"

// GrowthStatus is the nutritional classification of a measurement.
type GrowthStatus string

const (
	GrowthNormal      GrowthStatus = "normal"
	GrowthStunting    GrowthStatus = "stunting"
	GrowthUnderweight GrowthStatus = "underweight"
	GrowthOverweight  GrowthStatus = "overweight"
)

// GrowthRecord is a dated height/weight measurement.
type GrowthRecord struct {
	ID                  string       `db:"id" json:"id"`
	StudentID           string       `db:"student_id" json:"student_id"`
	MeasurementDate     time.Time    `db:"measurement_date" json:"measurement_date"`
	HeightCM            float64      `db:"height_cm" json:"height_cm"`
	WeightKG            float64      `db:"weight_kg" json:"weight_kg"`
	HeadCircumferenceCM *float64     `db:"head_circumference_cm" json:"head_circumference_cm,omitempty"`
	Status              GrowthStatus `db:"status" json:"status"`
	Notes               *string      `db:"notes" json:"notes,omitempty"`
	RecordedBy          string       `db:"recorded_by" json:"recorded_by"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
}

// GrowthRecordRequest is the API payload for a new measurement.
type GrowthRecordRequest struct {
	StudentID           string       `json:"student_id" validate:"required"`
	MeasurementDate     string       `json:"measurement_date" validate:"required,datetime=2006-01-02"`
	HeightCM            float64      `json:"height_cm" validate:"required,gt=0,lt=200"`
	WeightKG            float64      `json:"weight_kg" validate:"required,gt=0,lt=100"`
	HeadCircumferenceCM *float64     `json:"head_circumference_cm,omitempty" validate:"omitempty,gt=0,lt=80"`
	Status              GrowthStatus `json:"status" validate:"omitempty,oneof=normal stunting underweight overweight"`
	Notes               *string      `json:"notes,omitempty"`
}
