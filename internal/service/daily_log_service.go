package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
)

type dailyLogRepository interface {
	Upsert(ctx context.Context, log *models.StudentDailyLog) error
	List(ctx context.Context, filter models.DailyLogFilter) ([]models.StudentDailyLog, error)
}

type studentExistence interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

// DailyLogService records presence, worship and Quran logs per student and day.
type DailyLogService struct {
	repo      dailyLogRepository
	students  studentExistence
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDailyLogService constructs the service.
func NewDailyLogService(repo dailyLogRepository, students studentExistence, validate *validator.Validate, logger *zap.Logger) *DailyLogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyLogService{repo: repo, students: students, validator: validate, logger: logger}
}

// Record stores the log for (student, date, type), replacing an earlier one.
func (s *DailyLogService) Record(ctx context.Context, actorID string, req models.DailyLogRequest) (*models.StudentDailyLog, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid daily log payload")
	}
	payload, err := models.DecodeDailyLogPayload(req.LogType, req.Data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid daily log data")
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid "+string(req.LogType)+" data")
	}
	logDate, err := time.Parse("2006-01-02", req.LogDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "log_date must be YYYY-MM-DD")
	}
	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	log := &models.StudentDailyLog{
		StudentID:  req.StudentID,
		LogDate:    logDate,
		Data:       payload,
		RecordedBy: actorID,
		Notes:      trimmedOrNil(req.Notes),
	}
	if err := s.repo.Upsert(ctx, log); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store daily log")
	}
	return log, nil
}

// List returns a student's logs, newest first.
func (s *DailyLogService) List(ctx context.Context, filter models.DailyLogFilter) ([]models.StudentDailyLog, error) {
	if filter.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	if filter.LogType != "" {
		switch filter.LogType {
		case models.DailyLogPresence, models.DailyLogWorship, models.DailyLogQuran:
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown log type")
		}
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list daily logs")
	}
	return logs, nil
}

func (s *DailyLogService) ensureStudent(ctx context.Context, id string) error {
	if _, err := s.students.FindByID(ctx, id); err != nil {
		return asStudentLookupError(err)
	}
	return nil
}
