package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
)

type classroomRepository interface {
	List(ctx context.Context, yearID string) ([]models.Classroom, error)
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
	Create(ctx context.Context, classroom *models.Classroom) error
}

type classroomYearFinder interface {
	FindYear(ctx context.Context, id string) (*models.AcademicYear, error)
}

type classroomTeacherFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateClassroomRequest captures creation payload.
type CreateClassroomRequest struct {
	Name           string  `json:"name" validate:"required,max=100"`
	Level          string  `json:"level" validate:"required,max=32"`
	AcademicYearID string  `json:"academic_year_id" validate:"required"`
	TeacherID      *string `json:"teacher_id"`
}

// ClassroomService coordinates classroom operations.
type ClassroomService struct {
	repo      classroomRepository
	years     classroomYearFinder
	users     classroomTeacherFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassroomService constructs the service.
func NewClassroomService(repo classroomRepository, years classroomYearFinder, users classroomTeacherFinder, validate *validator.Validate, logger *zap.Logger) *ClassroomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassroomService{repo: repo, years: years, users: users, validator: validate, logger: logger}
}

// List returns classrooms of a year, or all when yearID is empty.
func (s *ClassroomService) List(ctx context.Context, yearID string) ([]models.Classroom, error) {
	classrooms, err := s.repo.List(ctx, yearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classrooms")
	}
	return classrooms, nil
}

// Get returns a classroom by ID.
func (s *ClassroomService) Get(ctx context.Context, id string) (*models.Classroom, error) {
	classroom, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	return classroom, nil
}

// Create registers a classroom. The homeroom teacher, when given, must hold the teacher role.
func (s *ClassroomService) Create(ctx context.Context, req CreateClassroomRequest) (*models.Classroom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid classroom payload")
	}
	if _, err := s.years.FindYear(ctx, req.AcademicYearID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	teacherID := trimmedOrNil(req.TeacherID)
	if teacherID != nil {
		teacher, err := s.users.FindByID(ctx, *teacherID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
		if teacher == nil || teacher.Role != models.RoleTeacher {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher not found")
		}
	}
	classroom := &models.Classroom{
		Name:           strings.TrimSpace(req.Name),
		Level:          req.Level,
		AcademicYearID: req.AcademicYearID,
		TeacherID:      teacherID,
	}
	if err := s.repo.Create(ctx, classroom); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create classroom")
	}
	return classroom, nil
}
