package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/internal/models"
	"github.com/noah-isme/paud-api/internal/repository"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
)

type termRepository interface {
	ListYears(ctx context.Context) ([]models.AcademicYear, error)
	FindYear(ctx context.Context, id string) (*models.AcademicYear, error)
	CreateYear(ctx context.Context, year *models.AcademicYear) error
	ListTerms(ctx context.Context, yearID string) ([]models.AcademicTerm, error)
	FindTerm(ctx context.Context, id string) (*models.AcademicTerm, error)
	FindActiveTerm(ctx context.Context) (*models.AcademicTerm, error)
	CreateTerm(ctx context.Context, term *models.AcademicTerm) error
	ActivateYear(ctx context.Context, id string) error
	ActivateTerm(ctx context.Context, id string) error
}

// CreateYearRequest describes payload for creating academic years.
type CreateYearRequest struct {
	Name      string `json:"name" validate:"required,max=20"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// CreateTermRequest describes payload for creating a semester.
type CreateTermRequest struct {
	AcademicYearID string `json:"academic_year_id" validate:"required"`
	Semester       int    `json:"semester" validate:"required,oneof=1 2"`
	StartDate      string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// TermService orchestrates academic year and semester workflows.
type TermService struct {
	repo      termRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// ListYears returns every academic year.
func (s *TermService) ListYears(ctx context.Context) ([]models.AcademicYear, error) {
	years, err := s.repo.ListYears(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list academic years")
	}
	return years, nil
}

// CreateYear registers an inactive academic year.
func (s *TermService) CreateYear(ctx context.Context, req CreateYearRequest) (*models.AcademicYear, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid academic year payload")
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	year := &models.AcademicYear{Name: strings.TrimSpace(req.Name), StartDate: start, EndDate: end}
	if err := s.repo.CreateYear(ctx, year); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create academic year")
	}
	return year, nil
}

// ListTerms returns semesters, optionally restricted to one year.
func (s *TermService) ListTerms(ctx context.Context, yearID string) ([]models.AcademicTerm, error) {
	terms, err := s.repo.ListTerms(ctx, yearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	return terms, nil
}

// CreateTerm adds an inactive semester inside an existing year.
func (s *TermService) CreateTerm(ctx context.Context, req CreateTermRequest) (*models.AcademicTerm, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	start, end, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	year, err := s.repo.FindYear(ctx, req.AcademicYearID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "academic year not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	if start.Before(year.StartDate) || end.After(year.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term must fall inside its academic year")
	}
	term := &models.AcademicTerm{AcademicYearID: year.ID, YearName: year.Name, Semester: req.Semester, StartDate: start, EndDate: end}
	if err := s.repo.CreateTerm(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// Active returns the currently active semester.
func (s *TermService) Active(ctx context.Context) (*models.AcademicTerm, error) {
	term, err := s.repo.FindActiveTerm(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active term")
	}
	return term, nil
}

// ActivateYear makes id the only active academic year.
func (s *TermService) ActivateYear(ctx context.Context, actorID, id string) error {
	if err := s.repo.ActivateYear(ctx, id); err != nil {
		return s.activationError(err, "academic year")
	}
	s.recordActivation(ctx, actorID, "academic_years", id)
	return nil
}

// ActivateTerm makes id the only active semester.
func (s *TermService) ActivateTerm(ctx context.Context, actorID, id string) (*models.AcademicTerm, error) {
	if err := s.repo.ActivateTerm(ctx, id); err != nil {
		return nil, s.activationError(err, "term")
	}
	s.recordActivation(ctx, actorID, "academic_terms", id)
	term, err := s.repo.FindTerm(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

func (s *TermService) activationError(err error, what string) error {
	if errors.Is(err, repository.ErrNoRowsAffected) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to activate "+what)
}

func (s *TermService) recordActivation(ctx context.Context, actorID, resource, id string) {
	s.logger.Info("activated", zap.String("resource", resource), zap.String("id", id))
	if s.audit == nil {
		return
	}
	values, _ := json.Marshal(map[string]bool{"is_active": true})
	entry := &models.AuditLog{Action: models.AuditActionTermActivate, Resource: resource, ResourceID: &id, NewValues: values}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record activation audit log", zap.Error(err))
	}
}

func parseRange(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}
	return start, end, nil
}
