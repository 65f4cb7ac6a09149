package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/paud-api/internal/models"
)

const growthColumns = `id, student_id, measurement_date, height_cm, weight_kg, head_circumference_cm, status, notes, recorded_by, created_at`

// GrowthRepository persists growth measurements.
type GrowthRepository struct {
	db *sqlx.DB
}

// NewGrowthRepository constructs a GrowthRepository.
func NewGrowthRepository(db *sqlx.DB) *GrowthRepository {
	return &GrowthRepository{db: db}
}

// Create inserts a measurement.
func (r *GrowthRepository) Create(ctx context.Context, record *models.GrowthRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO growth_records (` + growthColumns + `)
        VALUES (:id, :student_id, :measurement_date, :height_cm, :weight_kg, :head_circumference_cm, :status, :notes, :recorded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create growth record: %w", err)
	}
	return nil
}

// ListByStudent returns measurements newest first.
func (r *GrowthRepository) ListByStudent(ctx context.Context, studentID string) ([]models.GrowthRecord, error) {
	var records []models.GrowthRecord
	query := `SELECT ` + growthColumns + ` FROM growth_records WHERE student_id = $1 ORDER BY measurement_date DESC`
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list growth records: %w", err)
	}
	return records, nil
}

// LatestInRange returns the newest measurement taken in [from, to].
func (r *GrowthRepository) LatestInRange(ctx context.Context, studentID string, from, to time.Time) (*models.GrowthRecord, error) {
	var record models.GrowthRecord
	query := `SELECT ` + growthColumns + ` FROM growth_records
        WHERE student_id = $1 AND measurement_date BETWEEN $2 AND $3
        ORDER BY measurement_date DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &record, query, studentID, from, to); err != nil {
		return nil, err
	}
	return &record, nil
}
