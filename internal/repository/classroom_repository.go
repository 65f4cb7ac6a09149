package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/paud-api/internal/models"
)

const classroomSelect = `SELECT c.id, c.name, c.level, c.academic_year_id, c.teacher_id, u.full_name AS teacher_name,
        (SELECT COUNT(*) FROM students s WHERE s.classroom_id = c.id AND s.deleted_at IS NULL) AS student_count,
        c.created_at, c.updated_at
        FROM classrooms c LEFT JOIN users u ON u.id = c.teacher_id`

// ClassroomRepository persists classrooms.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs a ClassroomRepository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// List returns classrooms, optionally limited to one academic year.
func (r *ClassroomRepository) List(ctx context.Context, yearID string) ([]models.Classroom, error) {
	query := classroomSelect
	args := []interface{}{}
	if yearID != "" {
		query += ` WHERE c.academic_year_id = $1`
		args = append(args, yearID)
	}
	query += ` ORDER BY c.level ASC, c.name ASC`
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query, args...); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return classrooms, nil
}

// FindByID fetches a classroom.
func (r *ClassroomRepository) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	var classroom models.Classroom
	if err := r.db.GetContext(ctx, &classroom, classroomSelect+` WHERE c.id = $1`, id); err != nil {
		return nil, err
	}
	return &classroom, nil
}

// Create inserts a classroom.
func (r *ClassroomRepository) Create(ctx context.Context, classroom *models.Classroom) error {
	if classroom.ID == "" {
		classroom.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	classroom.CreatedAt, classroom.UpdatedAt = now, now
	const query = `INSERT INTO classrooms (id, name, level, academic_year_id, teacher_id, created_at, updated_at)
        VALUES (:id, :name, :level, :academic_year_id, :teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, classroom); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}
