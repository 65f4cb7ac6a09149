package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DailyLogType discriminates the payload stored on a daily log.
type DailyLogType string

const (
	DailyLogPresence DailyLogType = "presence"
	DailyLogWorship  DailyLogType = "worship"
	DailyLogQuran    DailyLogType = "quran"
)

// AttendanceStatus is the presence outcome of a school day.
type AttendanceStatus string

const (
	AttendanceHadir AttendanceStatus = "hadir"
	AttendanceSakit AttendanceStatus = "sakit"
	AttendanceIzin  AttendanceStatus = "izin"
	AttendanceAlpha AttendanceStatus = "alpha"
)

// DailyLogPayload is implemented by each typed daily log body.
type DailyLogPayload interface {
	LogType() DailyLogType
}

// PresenceData records arrival and departure for a day.
type PresenceData struct {
	Status        AttendanceStatus `json:"status" validate:"required,oneof=hadir sakit izin alpha"`
	ArrivalTime   *string          `json:"arrival_time,omitempty" validate:"omitempty,datetime=15:04"`
	DepartureTime *string          `json:"departure_time,omitempty" validate:"omitempty,datetime=15:04"`
}

func (PresenceData) LogType() DailyLogType { return DailyLogPresence }

// WorshipData records the day's worship habits.
type WorshipData struct {
	SholatDhuha          bool     `json:"sholat_dhuha"`
	DoaHarian            bool     `json:"doa_harian"`
	HafalanSurat         *string  `json:"hafalan_surat,omitempty" validate:"omitempty,max=100"`
	AdditionalActivities []string `json:"additional_activities,omitempty" validate:"omitempty,dive,max=100"`
}

func (WorshipData) LogType() DailyLogType { return DailyLogWorship }

// QuranProgressData records Iqro reading progress.
type QuranProgressData struct {
	IqroLevel  int     `json:"iqro_level" validate:"required,min=1,max=6"`
	PageNumber int     `json:"page_number" validate:"required,min=1"`
	Quality    string  `json:"quality" validate:"required,oneof=lancar kurang_lancar belum_lancar"`
	Notes      *string `json:"notes,omitempty"`
}

func (QuranProgressData) LogType() DailyLogType { return DailyLogQuran }

// DecodeDailyLogPayload parses raw JSON according to the discriminator.
func DecodeDailyLogPayload(logType DailyLogType, raw []byte) (DailyLogPayload, error) {
	switch logType {
	case DailyLogPresence:
		var p PresenceData
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode presence log: %w", err)
		}
		return p, nil
	case DailyLogWorship:
		var p WorshipData
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode worship log: %w", err)
		}
		return p, nil
	case DailyLogQuran:
		var p QuranProgressData
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode quran log: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown daily log type %q", logType)
}

// EncodeDailyLogPayload serialises a payload and returns its discriminator.
func EncodeDailyLogPayload(p DailyLogPayload) (DailyLogType, []byte, error) {
	if p == nil {
		return "", nil, fmt.Errorf("daily log payload is nil")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s log: %w", p.LogType(), err)
	}
	return p.LogType(), data, nil
}

// StudentDailyLog is one typed observation for a student on a date.
type StudentDailyLog struct {
	ID         string          `json:"id"`
	StudentID  string          `json:"student_id"`
	LogDate    time.Time       `json:"log_date"`
	LogType    DailyLogType    `json:"log_type"`
	Data       DailyLogPayload `json:"data"`
	RecordedBy string          `json:"recorded_by"`
	Notes      *string         `json:"notes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// DailyLogRequest is the API payload for recording a daily log.
type DailyLogRequest struct {
	StudentID string          `json:"student_id" validate:"required"`
	LogDate   string          `json:"log_date" validate:"required,datetime=2006-01-02"`
	LogType   DailyLogType    `json:"log_type" validate:"required,oneof=presence worship quran"`
	Data      json.RawMessage `json:"data" validate:"required"`
	Notes     *string         `json:"notes,omitempty"`
}

// DailyLogFilter narrows daily log listings.
type DailyLogFilter struct {
	StudentID string
	LogType   DailyLogType
	From      *time.Time
	To        *time.Time
}
