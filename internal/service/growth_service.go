package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
)

type growthRepository interface {
	Create(ctx context.Context, record *models.GrowthRecord) error
	ListByStudent(ctx context.Context, studentID string) ([]models.GrowthRecord, error)
}

// GrowthService stores height and weight measurements.
type GrowthService struct {
	repo      growthRepository
	students  studentExistence
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewGrowthService constructs the service.
func NewGrowthService(repo growthRepository, students studentExistence, validate *validator.Validate, logger *zap.Logger) *GrowthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrowthService{repo: repo, students: students, validator: validate, logger: logger, now: time.Now}
}

// Record stores a measurement. Status defaults to normal when the caller does not classify it.
func (s *GrowthService) Record(ctx context.Context, actorID string, req models.GrowthRecordRequest) (*models.GrowthRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid growth record payload")
	}
	measured, err := time.Parse("2006-01-02", req.MeasurementDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "measurement_date must be YYYY-MM-DD")
	}
	if measured.After(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "measurement_date is in the future")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		return nil, asStudentLookupError(err)
	}

	status := req.Status
	if status == "" {
		status = models.GrowthNormal
	}
	record := &models.GrowthRecord{
		StudentID:           req.StudentID,
		MeasurementDate:     measured,
		HeightCM:            req.HeightCM,
		WeightKG:            req.WeightKG,
		HeadCircumferenceCM: req.HeadCircumferenceCM,
		Status:              status,
		Notes:               trimmedOrNil(req.Notes),
		RecordedBy:          actorID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store growth record")
	}
	if status != models.GrowthNormal {
		s.logger.Info("growth concern recorded", zap.String("student_id", req.StudentID), zap.String("status", string(status)))
	}
	return record, nil
}

// List returns a student's measurements, newest first.
func (s *GrowthService) List(ctx context.Context, studentID string) ([]models.GrowthRecord, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		return nil, asStudentLookupError(err)
	}
	records, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list growth records")
	}
	return records, nil
}
