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

type aspectRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.AssessmentAspect, error)
	FindByID(ctx context.Context, id string) (*models.AssessmentAspect, error)
	Create(ctx context.Context, aspect *models.AssessmentAspect) error
	Update(ctx context.Context, aspect *models.AssessmentAspect) error
}

// AspectRequest describes an assessment aspect.
type AspectRequest struct {
	Category    string  `json:"category" validate:"required,max=100"`
	Name        string  `json:"name" validate:"required,max=255"`
	Description *string `json:"description"`
	Order       int     `json:"order" validate:"min=0"`
}

// AspectService manages the catalog of scored developmental aspects.
// Deactivating an aspect removes it from the publish gate but keeps existing scores.
type AspectService struct {
	repo      aspectRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAspectService constructs the service; cache may be nil.
func NewAspectService(repo aspectRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AspectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AspectService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns aspects in display order.
func (s *AspectService) List(ctx context.Context, activeOnly bool) ([]models.AssessmentAspect, error) {
	aspects, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list aspects")
	}
	return aspects, nil
}

// Create adds an active aspect.
func (s *AspectService) Create(ctx context.Context, req AspectRequest) (*models.AssessmentAspect, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid aspect payload")
	}
	aspect := &models.AssessmentAspect{
		Category:    strings.TrimSpace(req.Category),
		Name:        strings.TrimSpace(req.Name),
		Description: trimmedOrNil(req.Description),
		SortOrder:   req.Order,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, aspect); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create aspect")
	}
	s.invalidate(ctx)
	return aspect, nil
}

// Update changes the descriptive fields of an aspect.
func (s *AspectService) Update(ctx context.Context, id string, req AspectRequest) (*models.AssessmentAspect, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid aspect payload")
	}
	aspect, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	aspect.Category = strings.TrimSpace(req.Category)
	aspect.Name = strings.TrimSpace(req.Name)
	aspect.Description = trimmedOrNil(req.Description)
	aspect.SortOrder = req.Order
	if err := s.repo.Update(ctx, aspect); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update aspect")
	}
	s.invalidate(ctx)
	return aspect, nil
}

// SetActive toggles whether the aspect is required on new report cards.
func (s *AspectService) SetActive(ctx context.Context, id string, active bool) (*models.AssessmentAspect, error) {
	aspect, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if aspect.IsActive == active {
		return aspect, nil
	}
	aspect.IsActive = active
	if err := s.repo.Update(ctx, aspect); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update aspect")
	}
	s.logger.Info("assessment aspect toggled", zap.String("aspect_id", id), zap.Bool("active", active))
	s.invalidate(ctx)
	return aspect, nil
}

func (s *AspectService) load(ctx context.Context, id string) (*models.AssessmentAspect, error) {
	aspect, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "aspect not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load aspect")
	}
	return aspect, nil
}

// invalidate drops class statistics, whose per-aspect breakdown depends on the catalog.
func (s *AspectService) invalidate(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, ClassStatisticsPattern("*")); err != nil {
		s.logger.Warn("failed to invalidate statistics cache", zap.Error(err))
	}
}
