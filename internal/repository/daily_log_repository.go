package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/paud-api/internal/models"
)

type dailyLogRow struct {
	ID         string              `db:"id"`
	StudentID  string              `db:"student_id"`
	LogDate    time.Time           `db:"log_date"`
	LogType    models.DailyLogType `db:"log_type"`
	Data       []byte              `db:"data"`
	RecordedBy string              `db:"recorded_by"`
	Notes      *string             `db:"notes"`
	CreatedAt  time.Time           `db:"created_at"`
	UpdatedAt  time.Time           `db:"updated_at"`
}

func (row dailyLogRow) toModel() (models.StudentDailyLog, error) {
	payload, err := models.DecodeDailyLogPayload(row.LogType, row.Data)
	if err != nil {
		return models.StudentDailyLog{}, err
	}
	return models.StudentDailyLog{
		ID:         row.ID,
		StudentID:  row.StudentID,
		LogDate:    row.LogDate,
		LogType:    row.LogType,
		Data:       payload,
		RecordedBy: row.RecordedBy,
		Notes:      row.Notes,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

// DailyLogRepository persists typed daily logs.
type DailyLogRepository struct {
	db *sqlx.DB
}

// NewDailyLogRepository constructs a DailyLogRepository.
func NewDailyLogRepository(db *sqlx.DB) *DailyLogRepository {
	return &DailyLogRepository{db: db}
}

// Upsert stores the log, replacing any existing log of the same type for that student and date.
func (r *DailyLogRepository) Upsert(ctx context.Context, log *models.StudentDailyLog) error {
	logType, data, err := models.EncodeDailyLogPayload(log.Data)
	if err != nil {
		return err
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	log.LogType = logType
	log.CreatedAt, log.UpdatedAt = now, now

	const query = `INSERT INTO student_daily_logs (id, student_id, log_date, log_type, data, recorded_by, notes, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (student_id, log_date, log_type) DO UPDATE
        SET data = EXCLUDED.data, recorded_by = EXCLUDED.recorded_by, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, log.ID, log.StudentID, log.LogDate, string(logType), data, log.RecordedBy, log.Notes, now, now)
	if err := row.Scan(&log.ID, &log.CreatedAt); err != nil {
		return fmt.Errorf("upsert daily log: %w", err)
	}
	return nil
}

// List returns logs matching filter ordered by date.
func (r *DailyLogRepository) List(ctx context.Context, filter models.DailyLogFilter) ([]models.StudentDailyLog, error) {
	conditions := []string{"student_id = $1"}
	args := []interface{}{filter.StudentID}
	if filter.LogType != "" {
		args = append(args, filter.LogType)
		conditions = append(conditions, fmt.Sprintf("log_type = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("log_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("log_date <= $%d", len(args)))
	}
	query := `SELECT id, student_id, log_date, log_type, data, recorded_by, notes, created_at, updated_at
        FROM student_daily_logs WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY log_date DESC, log_type ASC`

	var rows []dailyLogRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list daily logs: %w", err)
	}
	logs := make([]models.StudentDailyLog, 0, len(rows))
	for _, row := range rows {
		log, err := row.toModel()
		if err != nil {
			return nil, fmt.Errorf("daily log %s: %w", row.ID, err)
		}
		logs = append(logs, log)
	}
	return logs, nil
}

// AttendanceSummary counts presence logs by status in [from, to].
func (r *DailyLogRepository) AttendanceSummary(ctx context.Context, studentID string, from, to time.Time) (*models.AttendanceSummary, error) {
	const query = `SELECT data->>'status' AS status, COUNT(*) AS total
        FROM student_daily_logs
        WHERE student_id = $1 AND log_type = 'presence' AND log_date BETWEEN $2 AND $3
        GROUP BY data->>'status'`
	var rows []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("summarise attendance: %w", err)
	}
	summary := &models.AttendanceSummary{}
	for _, row := range rows {
		switch models.AttendanceStatus(row.Status) {
		case models.AttendanceHadir:
			summary.Hadir = row.Total
		case models.AttendanceSakit:
			summary.Sakit = row.Total
		case models.AttendanceIzin:
			summary.Izin = row.Total
		case models.AttendanceAlpha:
			summary.Alpha = row.Total
		}
	}
	return summary, nil
}
