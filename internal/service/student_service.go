package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ExistsByNISN(ctx context.Context, nisn string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	AssignClassroom(ctx context.Context, id string, classroomID *string) error
	SoftDelete(ctx context.Context, id string) error
}

type studentParentLister interface {
	ListParents(ctx context.Context, studentID string) ([]models.ParentContact, error)
}

type publishedCardCounter interface {
	CountPublishedForStudent(ctx context.Context, studentID string) (int, error)
}

type classroomFinder interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

// StudentRequest holds the payload for creating or updating students.
type StudentRequest struct {
	NISN         *string              `json:"nisn,omitempty" validate:"omitempty,max=20"`
	FullName     string               `json:"full_name" validate:"required,max=255"`
	Nickname     *string              `json:"nickname,omitempty" validate:"omitempty,max=100"`
	Gender       models.Gender        `json:"gender" validate:"required,oneof=male female"`
	DateOfBirth  string               `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	PlaceOfBirth *string              `json:"place_of_birth,omitempty"`
	Address      *string              `json:"address,omitempty"`
	ClassroomID  *string              `json:"classroom_id,omitempty"`
	Status       models.StudentStatus `json:"status,omitempty" validate:"omitempty,oneof=active graduated transferred withdrawn"`
	Notes        *string              `json:"notes,omitempty"`
}

// AssignClassroomRequest moves a student between classrooms; nil clears the assignment.
type AssignClassroomRequest struct {
	ClassroomID *string `json:"classroom_id"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo       studentRepository
	parents    studentParentLister
	cards      publishedCardCounter
	classrooms classroomFinder
	audit      auditLogger
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, parents studentParentLister, cards publishedCardCounter, classrooms classroomFinder, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, parents: parents, cards: cards, classrooms: classrooms, audit: audit, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown student status")
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns detailed student information.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, asStudentLookupError(err)
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	student := &models.Student{EnrollmentDate: time.Now().UTC()}
	if err := s.apply(ctx, student, req, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.Student, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student := detail.Student
	if err := s.apply(ctx, &student, req, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return &student, nil
}

func (s *StudentService) apply(ctx context.Context, student *models.Student, req StudentRequest, excludeID string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "date_of_birth must be YYYY-MM-DD")
	}
	nisn := trimmedOrNil(req.NISN)
	if nisn != nil {
		exists, err := s.repo.ExistsByNISN(ctx, *nisn, excludeID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate nisn")
		}
		if exists {
			return appErrors.Clone(appErrors.ErrConflict, "nisn already used")
		}
	}
	classroomID := trimmedOrNil(req.ClassroomID)
	if classroomID != nil {
		if err := s.ensureClassroom(ctx, *classroomID); err != nil {
			return err
		}
	}

	student.NISN = nisn
	student.FullName = cleanName(req.FullName)
	student.Nickname = trimmedOrNil(req.Nickname)
	student.Gender = req.Gender
	student.DateOfBirth = dob
	student.PlaceOfBirth = trimmedOrNil(req.PlaceOfBirth)
	student.Address = trimmedOrNil(req.Address)
	student.ClassroomID = classroomID
	student.Notes = trimmedOrNil(req.Notes)
	if req.Status != "" {
		student.Status = req.Status
	}
	return nil
}

func (s *StudentService) ensureClassroom(ctx context.Context, id string) error {
	if s.classrooms == nil {
		return nil
	}
	if _, err := s.classrooms.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "classroom not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return nil
}

// AssignClassroom moves a student to another classroom.
func (s *StudentService) AssignClassroom(ctx context.Context, id string, req AssignClassroomRequest) (*models.StudentDetail, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	classroomID := trimmedOrNil(req.ClassroomID)
	if classroomID != nil {
		if err := s.ensureClassroom(ctx, *classroomID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.AssignClassroom(ctx, id, classroomID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign classroom")
	}
	return s.Get(ctx, id)
}

// Delete soft-deletes a student. Students with published report cards are kept.
func (s *StudentService) Delete(ctx context.Context, actorID, id string) error {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	published, err := s.cards.CountPublishedForStudent(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check report cards")
	}
	if published > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "student has published report cards")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}

	if s.audit != nil {
		old, _ := json.Marshal(map[string]string{"full_name": detail.FullName})
		entry := &models.AuditLog{Action: models.AuditActionStudentDelete, Resource: "students", ResourceID: &id, OldValues: old}
		if actorID != "" {
			entry.UserID = &actorID
		}
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("failed to record student delete audit log", zap.Error(err))
		}
	}
	return nil
}

// Parents lists the parent accounts linked to a student.
func (s *StudentService) Parents(ctx context.Context, id string) ([]models.ParentContact, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	parents, err := s.parents.ListParents(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list parents")
	}
	return parents, nil
}

func asStudentLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
}
