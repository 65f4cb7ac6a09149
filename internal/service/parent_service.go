package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
)

type parentChildrenRepository interface {
	ListChildren(ctx context.Context, parentID string) ([]models.StudentDetail, error)
	IsLinked(ctx context.Context, parentID, studentID string) (bool, error)
}

// ParentService serves the parent-facing views of linked children.
type ParentService struct {
	links  parentChildrenRepository
	logs   *DailyLogService
	growth *GrowthService
	logger *zap.Logger
}

// NewParentService constructs the service.
func NewParentService(links parentChildrenRepository, logs *DailyLogService, growth *GrowthService, logger *zap.Logger) *ParentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParentService{links: links, logs: logs, growth: growth, logger: logger}
}

// Children lists the students linked to parentID.
func (s *ParentService) Children(ctx context.Context, parentID string) ([]models.StudentDetail, error) {
	children, err := s.links.ListChildren(ctx, parentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list children")
	}
	return children, nil
}

// ChildDailyLogs returns the daily logs of a linked child.
func (s *ParentService) ChildDailyLogs(ctx context.Context, parentID string, filter models.DailyLogFilter) ([]models.StudentDailyLog, error) {
	if err := s.ensureLinked(ctx, parentID, filter.StudentID); err != nil {
		return nil, err
	}
	return s.logs.List(ctx, filter)
}

// ChildGrowth returns the growth records of a linked child.
func (s *ParentService) ChildGrowth(ctx context.Context, parentID, studentID string) ([]models.GrowthRecord, error) {
	if err := s.ensureLinked(ctx, parentID, studentID); err != nil {
		return nil, err
	}
	return s.growth.List(ctx, studentID)
}

func (s *ParentService) ensureLinked(ctx context.Context, parentID, studentID string) error {
	linked, err := s.links.IsLinked(ctx, parentID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check parent link")
	}
	if !linked {
		s.logger.Warn("parent requested unlinked student", zap.String("parent_id", parentID), zap.String("student_id", studentID))
		return appErrors.Clone(appErrors.ErrForbidden, "student is not linked to this account")
	}
	return nil
}
