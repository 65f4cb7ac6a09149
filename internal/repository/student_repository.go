package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/paud-api/internal/models"
)

const studentColumns = `s.id, s.nisn, s.full_name, s.nickname, s.gender, s.date_of_birth, s.place_of_birth, s.address, s.photo_url,
        s.classroom_id, s.enrollment_date, s.status, s.notes, s.created_at, s.updated_at, s.deleted_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func (r *StudentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s LEFT JOIN classrooms c ON c.id = s.classroom_id"
	args := []interface{}{}
	conditions := []string{"s.deleted_at IS NULL"}

	if filter.ClassroomID != "" {
		conditions = append(conditions, fmt.Sprintf("s.classroom_id = $%d", len(args)+1))
		args = append(args, filter.ClassroomID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR s.nisn LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"full_name":       "s.full_name",
		"nisn":            "s.nisn",
		"date_of_birth":   "s.date_of_birth",
		"enrollment_date": "s.enrollment_date",
		"created_at":      "s.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "s.full_name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, c.name AS classroom_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, studentColumns, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a live student with classroom context.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, c.name AS classroom_name
        FROM students s
        LEFT JOIN classrooms c ON c.id = s.classroom_id
        WHERE s.id = $1 AND s.deleted_at IS NULL`, studentColumns)
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByNISN returns the student holding nisn, including soft-deleted rows since the column is unique.
func (r *StudentRepository) FindByNISN(ctx context.Context, exec sqlx.ExtContext, nisn string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s WHERE s.nisn = $1`, studentColumns)
	var student models.Student
	if err := sqlx.GetContext(ctx, r.exec(exec), &student, query, nisn); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListByClassroom returns live students of a classroom ordered by name.
func (r *StudentRepository) ListByClassroom(ctx context.Context, classroomID string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students s
        WHERE s.classroom_id = $1 AND s.deleted_at IS NULL AND s.status = 'active'
        ORDER BY s.full_name ASC`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classroomID); err != nil {
		return nil, fmt.Errorf("list classroom students: %w", err)
	}
	return students, nil
}

// ExistsByNISN checks if a student with given NISN exists optionally excluding an ID.
func (r *StudentRepository) ExistsByNISN(ctx context.Context, nisn string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE nisn = $1"
	args := []interface{}{nisn}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check nisn: %w", err)
	}
	return true, nil
}

const insertStudent = `INSERT INTO students (id, nisn, full_name, nickname, gender, date_of_birth, place_of_birth, address, photo_url,
        classroom_id, enrollment_date, status, notes, created_at, updated_at)
        VALUES (:id, :nisn, :full_name, :nickname, :gender, :date_of_birth, :place_of_birth, :address, :photo_url,
        :classroom_id, :enrollment_date, :status, :notes, :created_at, :updated_at)`

func prepareStudent(student *models.Student) {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	prepareStudent(student)
	if _, err := r.db.NamedExecContext(ctx, insertStudent, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// CreateOrGetByNISN inserts student unless its NISN already exists; the stored row is returned either way.
func (r *StudentRepository) CreateOrGetByNISN(ctx context.Context, exec sqlx.ExtContext, student *models.Student) (*models.Student, bool, error) {
	prepareStudent(student)
	target := r.exec(exec)
	res, err := sqlx.NamedExecContext(ctx, target, insertStudent+" ON CONFLICT (nisn) DO NOTHING", student)
	if err != nil {
		return nil, false, fmt.Errorf("create student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("create student rows affected: %w", err)
	}
	if affected == 1 {
		return student, true, nil
	}
	existing, err := r.FindByNISN(ctx, target, *student.NISN)
	if err != nil {
		return nil, false, fmt.Errorf("load existing student: %w", err)
	}
	return existing, false, nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET nisn = :nisn, full_name = :full_name, nickname = :nickname, gender = :gender,
        date_of_birth = :date_of_birth, place_of_birth = :place_of_birth, address = :address, photo_url = :photo_url,
        classroom_id = :classroom_id, status = :status, notes = :notes, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// AssignClassroom moves a student to a classroom; empty classroomID clears it.
func (r *StudentRepository) AssignClassroom(ctx context.Context, id string, classroomID *string) error {
	const query = `UPDATE students SET classroom_id = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, classroomID, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign classroom: %w", err)
	}
	return nil
}

// SoftDelete marks a student as deleted.
func (r *StudentRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE students SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}
