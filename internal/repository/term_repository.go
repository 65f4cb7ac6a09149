package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/paud-api/internal/models"
)

const termColumns = `t.id, t.academic_year_id, y.name AS year_name, t.semester, t.start_date, t.end_date, t.is_active, t.created_at, t.updated_at`

// TermRepository persists academic years and their semesters.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates the repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// ListYears returns academic years newest first.
func (r *TermRepository) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, end_date, is_active, created_at, updated_at FROM academic_years ORDER BY start_date DESC`
	var years []models.AcademicYear
	if err := r.db.SelectContext(ctx, &years, query); err != nil {
		return nil, fmt.Errorf("list academic years: %w", err)
	}
	return years, nil
}

// FindYear fetches an academic year by ID.
func (r *TermRepository) FindYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, end_date, is_active, created_at, updated_at FROM academic_years WHERE id = $1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		return nil, err
	}
	return &year, nil
}

// CreateYear inserts an academic year.
func (r *TermRepository) CreateYear(ctx context.Context, year *models.AcademicYear) error {
	if year.ID == "" {
		year.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	year.CreatedAt, year.UpdatedAt = now, now
	const query = `INSERT INTO academic_years (id, name, start_date, end_date, is_active, created_at, updated_at)
        VALUES (:id, :name, :start_date, :end_date, FALSE, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, year); err != nil {
		return fmt.Errorf("create academic year: %w", err)
	}
	year.IsActive = false
	return nil
}

// ListTerms returns the semesters of a year, or all terms when yearID is empty.
func (r *TermRepository) ListTerms(ctx context.Context, yearID string) ([]models.AcademicTerm, error) {
	query := `SELECT ` + termColumns + ` FROM academic_terms t JOIN academic_years y ON y.id = t.academic_year_id`
	args := []interface{}{}
	if yearID != "" {
		query += ` WHERE t.academic_year_id = $1`
		args = append(args, yearID)
	}
	query += ` ORDER BY t.start_date DESC`
	var terms []models.AcademicTerm
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, fmt.Errorf("list academic terms: %w", err)
	}
	return terms, nil
}

// FindTerm fetches a term by ID.
func (r *TermRepository) FindTerm(ctx context.Context, id string) (*models.AcademicTerm, error) {
	query := `SELECT ` + termColumns + ` FROM academic_terms t JOIN academic_years y ON y.id = t.academic_year_id WHERE t.id = $1`
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindActiveTerm returns the active term.
func (r *TermRepository) FindActiveTerm(ctx context.Context) (*models.AcademicTerm, error) {
	query := `SELECT ` + termColumns + ` FROM academic_terms t JOIN academic_years y ON y.id = t.academic_year_id WHERE t.is_active = TRUE LIMIT 1`
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, query); err != nil {
		return nil, err
	}
	return &term, nil
}

// CreateTerm inserts a semester for a year.
func (r *TermRepository) CreateTerm(ctx context.Context, term *models.AcademicTerm) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	term.CreatedAt, term.UpdatedAt = now, now
	const query = `INSERT INTO academic_terms (id, academic_year_id, semester, start_date, end_date, is_active, created_at, updated_at)
        VALUES (:id, :academic_year_id, :semester, :start_date, :end_date, FALSE, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create academic term: %w", err)
	}
	term.IsActive = false
	return nil
}

// ActivateYear deactivates every other year then activates id, in one transaction.
func (r *TermRepository) ActivateYear(ctx context.Context, id string) error {
	return r.activate(ctx, "academic_years", id)
}

// ActivateTerm deactivates every other term then activates id, in one transaction.
func (r *TermRepository) ActivateTerm(ctx context.Context, id string) error {
	return r.activate(ctx, "academic_terms", id)
}

func (r *TermRepository) activate(ctx context.Context, table, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND id <> $2`, table), now, id); err != nil {
		return fmt.Errorf("deactivate %s: %w", table, err)
	}

	var res sql.Result
	if res, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET is_active = TRUE, updated_at = $2 WHERE id = $1`, table), id, now); err != nil {
		return fmt.Errorf("activate %s: %w", table, err)
	}
	var affected int64
	if affected, err = res.RowsAffected(); err != nil {
		return fmt.Errorf("activate %s rows affected: %w", table, err)
	}
	if affected == 0 {
		err = ErrNoRowsAffected
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit activate tx: %w", err)
	}
	return nil
}
