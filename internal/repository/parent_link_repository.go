package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/paud-api/internal/models"
)

// ParentLinkRepository manages parent_student rows.
type ParentLinkRepository struct {
	db *sqlx.DB
}

// NewParentLinkRepository constructs a ParentLinkRepository.
func NewParentLinkRepository(db *sqlx.DB) *ParentLinkRepository {
	return &ParentLinkRepository{db: db}
}

func (r *ParentLinkRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// LinkIfAbsent creates the link unless the pair already exists and reports whether a row was inserted.
func (r *ParentLinkRepository) LinkIfAbsent(ctx context.Context, exec sqlx.ExtContext, link *models.ParentStudent) (bool, error) {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO parent_student (id, user_id, student_id, relationship_type, is_primary_contact, created_at)
        VALUES (:id, :user_id, :student_id, :relationship_type, :is_primary_contact, :created_at)
        ON CONFLICT (user_id, student_id) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, link)
	if err != nil {
		return false, fmt.Errorf("link parent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("link parent rows affected: %w", err)
	}
	return affected == 1, nil
}

// IsLinked reports whether parentID is linked to studentID.
func (r *ParentLinkRepository) IsLinked(ctx context.Context, parentID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM parent_student WHERE user_id = $1 AND student_id = $2)`
	var linked bool
	if err := r.db.GetContext(ctx, &linked, query, parentID, studentID); err != nil {
		return false, fmt.Errorf("check parent link: %w", err)
	}
	return linked, nil
}

// ListChildren returns live students linked to a parent.
func (r *ParentLinkRepository) ListChildren(ctx context.Context, parentID string) ([]models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, c.name AS classroom_name
        FROM parent_student ps
        JOIN students s ON s.id = ps.student_id AND s.deleted_at IS NULL
        LEFT JOIN classrooms c ON c.id = s.classroom_id
        WHERE ps.user_id = $1
        ORDER BY s.full_name ASC`, studentColumns)
	var children []models.StudentDetail
	if err := r.db.SelectContext(ctx, &children, query, parentID); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return children, nil
}

// ListParents returns the parent contacts of a student, primary contact first.
func (r *ParentLinkRepository) ListParents(ctx context.Context, studentID string) ([]models.ParentContact, error) {
	const query = `SELECT u.id AS user_id, u.full_name, u.phone_number, ps.relationship_type, ps.is_primary_contact
        FROM parent_student ps
        JOIN users u ON u.id = ps.user_id
        WHERE ps.student_id = $1
        ORDER BY ps.is_primary_contact DESC, u.full_name ASC`
	var parents []models.ParentContact
	if err := r.db.SelectContext(ctx, &parents, query, studentID); err != nil {
		return nil, fmt.Errorf("list parents: %w", err)
	}
	return parents, nil
}
