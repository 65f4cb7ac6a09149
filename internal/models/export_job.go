package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportType enumerates class-wide exports produced in the background.
type ExportType string

const (
	ExportTypeReportCards ExportType = "report_cards"
	ExportTypeStatistics  ExportType = "statistics"
)

// ExportFormat enumerates supported export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob persisted background job metadata.
type ExportJob struct {
	ID           string       `db:"id" json:"id"`
	Type         ExportType   `db:"type" json:"type"`
	Params       ExportParams `db:"params" json:"params"`
	Status       ExportStatus `db:"status" json:"status"`
	Progress     int          `db:"progress" json:"progress"`
	ResultURL    *string      `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
}

// ExportParams stores request options persisted as JSONB.
type ExportParams struct {
	TermID      string       `json:"termId"`
	ClassroomID string       `json:"classroomId"`
	Format      ExportFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p ExportParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ExportParams) Scan(value interface{}) error {
	if value == nil {
		*p = ExportParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExportParams", value)
	}
	if len(data) == 0 {
		*p = ExportParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal export params: %w", err)
	}
	return nil
}

// ExportRequest is the API payload for queuing an export.
type ExportRequest struct {
	Type        ExportType   `json:"type" validate:"required,oneof=report_cards statistics"`
	TermID      string       `json:"term_id" validate:"required"`
	ClassroomID string       `json:"classroom_id" validate:"required"`
	Format      ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobResponse is returned after queuing an export.
type ExportJobResponse struct {
	ID     string       `json:"id"`
	Status ExportStatus `json:"status"`
}

// ExportStatusResponse reports job progress and download link.
type ExportStatusResponse struct {
	ID           string       `json:"id"`
	Status       ExportStatus `json:"status"`
	Progress     int          `json:"progress"`
	DownloadURL  *string      `json:"download_url,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
}
