package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/paud-api/internal/models"
)

const reportCardColumns = `rc.id, rc.student_id, rc.academic_term_id, rc.classroom_id, rc.status, rc.published_at,
        rc.created_by, rc.reviewed_by, rc.notes, rc.created_at, rc.updated_at`

// ReportCardRepository persists report cards and their per-aspect details.
type ReportCardRepository struct {
	db *sqlx.DB
}

// NewReportCardRepository constructs a ReportCardRepository.
func NewReportCardRepository(db *sqlx.DB) *ReportCardRepository {
	return &ReportCardRepository{db: db}
}

func (r *ReportCardRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByStudentTerm returns the card for (student, term).
func (r *ReportCardRepository) FindByStudentTerm(ctx context.Context, exec sqlx.ExtContext, studentID, termID string) (*models.ReportCard, error) {
	query := `SELECT ` + reportCardColumns + ` FROM report_cards rc WHERE rc.student_id = $1 AND rc.academic_term_id = $2`
	var card models.ReportCard
	if err := sqlx.GetContext(ctx, r.exec(exec), &card, query, studentID, termID); err != nil {
		return nil, err
	}
	return &card, nil
}

// GetOrCreate inserts a draft card unless one exists for (student, term) and returns the stored card.
func (r *ReportCardRepository) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, card *models.ReportCard) (*models.ReportCard, bool, error) {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	card.CreatedAt, card.UpdatedAt = now, now
	card.Status = models.ReportCardDraft
	card.PublishedAt = nil

	target := r.exec(exec)
	const query = `INSERT INTO report_cards (id, student_id, academic_term_id, classroom_id, status, created_by, notes, created_at, updated_at)
        VALUES (:id, :student_id, :academic_term_id, :classroom_id, :status, :created_by, :notes, :created_at, :updated_at)
        ON CONFLICT (student_id, academic_term_id) DO NOTHING`
	res, err := sqlx.NamedExecContext(ctx, target, query, card)
	if err != nil {
		return nil, false, fmt.Errorf("create report card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("create report card rows affected: %w", err)
	}
	if affected == 1 {
		return card, true, nil
	}
	existing, err := r.FindByStudentTerm(ctx, target, card.StudentID, card.AcademicTermID)
	if err != nil {
		return nil, false, fmt.Errorf("load existing report card: %w", err)
	}
	return existing, false, nil
}

// LockForUpdate reads the card with a row lock held until the surrounding transaction ends.
func (r *ReportCardRepository) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ReportCard, error) {
	query := `SELECT ` + reportCardColumns + ` FROM report_cards rc WHERE rc.id = $1 FOR UPDATE`
	var card models.ReportCard
	if err := sqlx.GetContext(ctx, r.exec(exec), &card, query, id); err != nil {
		return nil, err
	}
	return &card, nil
}

// UpsertDetail writes the score for (card, aspect); a nil narrative keeps the stored one.
func (r *ReportCardRepository) UpsertDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.ReportDetail) error {
	if detail.ID == "" {
		detail.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	detail.CreatedAt, detail.UpdatedAt = now, now
	const query = `INSERT INTO report_details (id, report_card_id, assessment_aspect_id, score, keywords, narrative, created_at, updated_at)
        VALUES (:id, :report_card_id, :assessment_aspect_id, :score, :keywords, :narrative, :created_at, :updated_at)
        ON CONFLICT (report_card_id, assessment_aspect_id) DO UPDATE
        SET score = EXCLUDED.score,
            keywords = EXCLUDED.keywords,
            narrative = COALESCE(EXCLUDED.narrative, report_details.narrative),
            updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, detail); err != nil {
		return fmt.Errorf("upsert report detail: %w", err)
	}
	return nil
}

// ListDetails returns the details of a card in aspect display order.
func (r *ReportCardRepository) ListDetails(ctx context.Context, exec sqlx.ExtContext, cardID string) ([]models.ReportDetail, error) {
	const query = `SELECT d.id, d.report_card_id, d.assessment_aspect_id, a.name AS aspect_name, a.category AS aspect_category,
        d.score, d.keywords, d.narrative, d.created_at, d.updated_at
        FROM report_details d
        JOIN assessment_aspects a ON a.id = d.assessment_aspect_id
        WHERE d.report_card_id = $1
        ORDER BY a.sort_order ASC, a.name ASC`
	var details []models.ReportDetail
	if err := sqlx.SelectContext(ctx, r.exec(exec), &details, query, cardID); err != nil {
		return nil, fmt.Errorf("list report details: %w", err)
	}
	return details, nil
}

// CountScoredActive counts details of the card that belong to active aspects.
func (r *ReportCardRepository) CountScoredActive(ctx context.Context, exec sqlx.ExtContext, cardID string) (int, error) {
	const query = `SELECT COUNT(*) FROM report_details d
        JOIN assessment_aspects a ON a.id = d.assessment_aspect_id AND a.is_active = TRUE
        WHERE d.report_card_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, cardID); err != nil {
		return 0, fmt.Errorf("count scored aspects: %w", err)
	}
	return count, nil
}

// ListMissingNarratives names the aspects of every detail on the card whose narrative is blank,
// including details of aspects deactivated since they were scored.
func (r *ReportCardRepository) ListMissingNarratives(ctx context.Context, exec sqlx.ExtContext, cardID string) ([]string, error) {
	const query = `SELECT a.name FROM report_details d
        JOIN assessment_aspects a ON a.id = d.assessment_aspect_id
        WHERE d.report_card_id = $1 AND (d.narrative IS NULL OR TRIM(d.narrative) = '')
        ORDER BY a.sort_order ASC, a.name ASC`
	var names []string
	if err := sqlx.SelectContext(ctx, r.exec(exec), &names, query, cardID); err != nil {
		return nil, fmt.Errorf("list missing narratives: %w", err)
	}
	return names, nil
}

// PublishIfDraft flips a draft card to published and reports whether this call did it.
func (r *ReportCardRepository) PublishIfDraft(ctx context.Context, exec sqlx.ExtContext, id, reviewerID string, at time.Time) (bool, error) {
	const query = `UPDATE report_cards SET status = 'published', published_at = $2, reviewed_by = $3, updated_at = $2
        WHERE id = $1 AND status = 'draft'`
	res, err := r.exec(exec).ExecContext(ctx, query, id, at, reviewerID)
	if err != nil {
		return false, fmt.Errorf("publish report card: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("publish report card rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListByClassroomTerm returns the cards of a classroom's live students for a term.
func (r *ReportCardRepository) ListByClassroomTerm(ctx context.Context, classroomID, termID string) ([]models.ReportCard, error) {
	query := `SELECT ` + reportCardColumns + ` FROM report_cards rc
        JOIN students s ON s.id = rc.student_id AND s.deleted_at IS NULL
        WHERE s.classroom_id = $1 AND rc.academic_term_id = $2`
	var cards []models.ReportCard
	if err := r.db.SelectContext(ctx, &cards, query, classroomID, termID); err != nil {
		return nil, fmt.Errorf("list classroom report cards: %w", err)
	}
	return cards, nil
}

// ListScoredDetails returns one row per scored aspect across a classroom's cards for a term.
func (r *ReportCardRepository) ListScoredDetails(ctx context.Context, classroomID, termID string) ([]models.ScoredDetail, error) {
	const query = `SELECT rc.id AS report_card_id, rc.status, d.assessment_aspect_id, a.name AS aspect_name, d.score
        FROM report_cards rc
        JOIN students s ON s.id = rc.student_id AND s.deleted_at IS NULL
        JOIN report_details d ON d.report_card_id = rc.id
        JOIN assessment_aspects a ON a.id = d.assessment_aspect_id
        WHERE s.classroom_id = $1 AND rc.academic_term_id = $2
        ORDER BY a.sort_order ASC`
	var rows []models.ScoredDetail
	if err := r.db.SelectContext(ctx, &rows, query, classroomID, termID); err != nil {
		return nil, fmt.Errorf("list scored details: %w", err)
	}
	return rows, nil
}

// CountPublishedForStudent counts published cards owned by a student.
func (r *ReportCardRepository) CountPublishedForStudent(ctx context.Context, studentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM report_cards WHERE student_id = $1 AND status = 'published'`, studentID); err != nil {
		return 0, fmt.Errorf("count published report cards: %w", err)
	}
	return count, nil
}
