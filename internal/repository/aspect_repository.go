package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/paud-api/internal/models"
)

const aspectColumns = `id, category, name, description, sort_order, is_active, created_at, updated_at`

// AspectRepository persists the assessment aspect catalog.
type AspectRepository struct {
	db *sqlx.DB
}

// NewAspectRepository constructs an AspectRepository.
func NewAspectRepository(db *sqlx.DB) *AspectRepository {
	return &AspectRepository{db: db}
}

func (r *AspectRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns aspects in display order; activeOnly hides retired aspects.
func (r *AspectRepository) List(ctx context.Context, activeOnly bool) ([]models.AssessmentAspect, error) {
	query := `SELECT ` + aspectColumns + ` FROM assessment_aspects`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY sort_order ASC, name ASC`
	var aspects []models.AssessmentAspect
	if err := r.db.SelectContext(ctx, &aspects, query); err != nil {
		return nil, fmt.Errorf("list assessment aspects: %w", err)
	}
	return aspects, nil
}

// FindByID fetches an aspect.
func (r *AspectRepository) FindByID(ctx context.Context, id string) (*models.AssessmentAspect, error) {
	var aspect models.AssessmentAspect
	if err := r.db.GetContext(ctx, &aspect, `SELECT `+aspectColumns+` FROM assessment_aspects WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &aspect, nil
}

// FindByIDs returns the aspects that exist among ids, keyed by id.
func (r *AspectRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.AssessmentAspect, error) {
	result := make(map[string]models.AssessmentAspect, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT `+aspectColumns+` FROM assessment_aspects WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build aspect lookup: %w", err)
	}
	var aspects []models.AssessmentAspect
	if err := r.db.SelectContext(ctx, &aspects, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find aspects: %w", err)
	}
	for _, aspect := range aspects {
		result[aspect.ID] = aspect
	}
	return result, nil
}

// CountActive returns the number of active aspects.
func (r *AspectRepository) CountActive(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, `SELECT COUNT(*) FROM assessment_aspects WHERE is_active = TRUE`); err != nil {
		return 0, fmt.Errorf("count active aspects: %w", err)
	}
	return count, nil
}

// Create inserts an aspect.
func (r *AspectRepository) Create(ctx context.Context, aspect *models.AssessmentAspect) error {
	if aspect.ID == "" {
		aspect.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	aspect.CreatedAt, aspect.UpdatedAt = now, now
	const query = `INSERT INTO assessment_aspects (id, category, name, description, sort_order, is_active, created_at, updated_at)
        VALUES (:id, :category, :name, :description, :sort_order, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, aspect); err != nil {
		return fmt.Errorf("create assessment aspect: %w", err)
	}
	return nil
}

// Update modifies an aspect including its active flag.
func (r *AspectRepository) Update(ctx context.Context, aspect *models.AssessmentAspect) error {
	aspect.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assessment_aspects SET category = :category, name = :name, description = :description,
        sort_order = :sort_order, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, aspect); err != nil {
		return fmt.Errorf("update assessment aspect: %w", err)
	}
	return nil
}
