package service

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
	"github.com/noah-isme/paud-api/pkg/middleware/requestid"
)

// rosterColumns is the positional layout of a roster row:
// id, full name, nickname, gender, date of birth, place of birth, address, parent name, parent phone, relationship.
const rosterColumns = 10

const (
	colNISN = iota
	colName
	colNickname
	colGender
	colBirthDate
	colBirthPlace
	colAddress
	colParentName
	colParentPhone
	colRelationship
)

type transactor interface {
	WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

type rosterStudentRepository interface {
	CreateOrGetByNISN(ctx context.Context, exec sqlx.ExtContext, student *models.Student) (*models.Student, bool, error)
}

type rosterParentRepository interface {
	FindByPhone(ctx context.Context, exec sqlx.ExtContext, phone string) (*models.User, error)
	CreateOrGetByPhone(ctx context.Context, exec sqlx.ExtContext, user *models.User) (*models.User, bool, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type rosterLinkRepository interface {
	LinkIfAbsent(ctx context.Context, exec sqlx.ExtContext, link *models.ParentStudent) (bool, error)
}

type uploadStore interface {
	SaveUpload(relPath string, r io.Reader, maxBytes int64) (string, error)
}

// RosterImportService loads students and parent contacts from a roster CSV export.
type RosterImportService struct {
	tx        transactor
	students  rosterStudentRepository
	parents   rosterParentRepository
	links     rosterLinkRepository
	uploads   uploadStore
	maxUpload int64
	metrics   *MetricsService
	logger    *zap.Logger

	now          func() time.Time
	hashPassword func(string) (string, error)
}

// NewRosterImportService wires the importer; uploads may be nil when only file imports are used.
func NewRosterImportService(tx transactor, students rosterStudentRepository, parents rosterParentRepository, links rosterLinkRepository, uploads uploadStore, maxUpload int64, metrics *MetricsService, logger *zap.Logger) *RosterImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterImportService{
		tx:        tx,
		students:  students,
		parents:   parents,
		links:     links,
		uploads:   uploads,
		maxUpload: maxUpload,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		hashPassword: func(plain string) (string, error) {
			hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
			return string(hash), err
		},
	}
}

// ImportFile imports the roster at path. A missing or unreadable file yields a report with one error.
func (s *RosterImportService) ImportFile(ctx context.Context, path string) *models.ImportReport {
	return s.importFile(ctx, path, "")
}

// ImportUpload stores an uploaded roster and imports it on behalf of actorID.
func (s *RosterImportService) ImportUpload(ctx context.Context, actorID, filename string, r io.Reader) (*models.ImportReport, error) {
	if s.uploads == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "roster uploads are not configured")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster must be a .csv file")
	}
	rel := fmt.Sprintf("rosters/%s_%s.csv", s.now().Format("20060102T150405"), uuid.NewString()[:8])
	path, err := s.uploads.SaveUpload(rel, r, s.maxUpload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to store roster upload")
	}
	return s.importFile(ctx, path, actorID), nil
}

func (s *RosterImportService) importFile(ctx context.Context, path, actorID string) *models.ImportReport {
	f, err := os.Open(path)
	if err != nil {
		report := models.NewImportReport()
		if errors.Is(err, os.ErrNotExist) {
			report.Errors = append(report.Errors, "file not found: "+path)
		} else {
			report.Errors = append(report.Errors, "cannot open file: "+err.Error())
		}
		s.logger.Error("roster import aborted", zap.String("path", path), zap.Error(err))
		return report
	}
	defer f.Close()
	return s.run(ctx, f, actorID)
}

// Import reads roster rows from r. Each data row commits or rolls back on its own.
func (s *RosterImportService) Import(ctx context.Context, r io.Reader) *models.ImportReport {
	return s.run(ctx, r, "")
}

func (s *RosterImportService) run(ctx context.Context, r io.Reader, actorID string) *models.ImportReport {
	report := models.NewImportReport()
	started := s.now()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		if !errors.Is(err, io.EOF) {
			report.Errors = append(report.Errors, "cannot read header: "+err.Error())
		}
		return report
	}

	// Row numbers are physical file lines where the record starts, header on line 1.
	rowNumber := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				report.Errors = append(report.Errors, fmt.Sprintf("row %d: %v", rowNumber+1, err))
				break
			}
			rowNumber = parseErr.StartLine
			s.rowFailed(report, rowNumber, fmt.Errorf("malformed row: %w", parseErr.Err))
			continue
		}
		rowNumber, _ = reader.FieldPos(0)

		var result rowResult
		if err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
			var rowErr error
			result, rowErr = s.importRow(ctx, exec, padRow(record))
			return rowErr
		}); err != nil {
			s.rowFailed(report, rowNumber, err)
			continue
		}
		report.SuccessCount++
		result.mergeInto(report)
	}

	if s.metrics != nil {
		s.metrics.ObserveImport(report.SuccessCount, len(report.Errors))
	}
	s.logger.Info("roster import finished",
		zap.Int("rows_ok", report.SuccessCount),
		zap.Int("rows_failed", len(report.Errors)),
		zap.Int("students_created", len(report.CreatedStudents)),
		zap.Int("parents_created", len(report.CreatedParents)),
		zap.Duration("took", s.now().Sub(started)),
		zap.String("request_id", requestid.FromContext(ctx)),
	)
	s.recordAudit(ctx, actorID, report)
	return report
}

func (s *RosterImportService) rowFailed(report *models.ImportReport, rowNumber int, err error) {
	msg := fmt.Sprintf("row %d: %s", rowNumber, err.Error())
	report.Errors = append(report.Errors, msg)
	s.logger.Warn("roster row rejected", zap.Int("row", rowNumber), zap.Error(err))
}

type rowResult struct {
	student *models.CreatedStudent
	parent  *models.CreatedParent
	link    *models.LinkedPair
}

func (r rowResult) mergeInto(report *models.ImportReport) {
	if r.student != nil {
		report.CreatedStudents = append(report.CreatedStudents, *r.student)
	}
	if r.parent != nil {
		report.CreatedParents = append(report.CreatedParents, *r.parent)
	}
	if r.link != nil {
		report.LinkedPairs = append(report.LinkedPairs, *r.link)
	}
}

func padRow(record []string) []string {
	row := make([]string, rosterColumns)
	for i := 0; i < rosterColumns && i < len(record); i++ {
		row[i] = strings.TrimSpace(record[i])
	}
	return row
}

func (s *RosterImportService) importRow(ctx context.Context, exec sqlx.ExtContext, row []string) (rowResult, error) {
	var result rowResult

	nisn, name, rawDOB := row[colNISN], cleanName(row[colName]), row[colBirthDate]
	if nisn == "" || name == "" || rawDOB == "" {
		return result, errors.New("id, name and date of birth are required")
	}
	gender, err := normalizeGender(row[colGender])
	if err != nil {
		return result, err
	}
	dob, err := parseBirthDate(rawDOB)
	if err != nil {
		return result, err
	}

	now := s.now()
	student, created, err := s.students.CreateOrGetByNISN(ctx, exec, &models.Student{
		NISN:           &nisn,
		FullName:       name,
		Nickname:       blankToNil(cleanName(row[colNickname])),
		Gender:         gender,
		DateOfBirth:    dob,
		PlaceOfBirth:   blankToNil(row[colBirthPlace]),
		Address:        blankToNil(row[colAddress]),
		EnrollmentDate: now,
		Status:         models.StudentStatusActive,
	})
	if err != nil {
		return result, err
	}
	if student.DeletedAt != nil {
		return result, errors.New("student with this id was removed")
	}
	if created {
		result.student = &models.CreatedStudent{ID: student.ID, Name: student.FullName}
	}

	parentName, rawPhone := cleanName(row[colParentName]), row[colParentPhone]
	if parentName == "" || rawPhone == "" {
		return result, nil
	}
	phone := normalizePhone(rawPhone)
	if phone == "" {
		return result, fmt.Errorf("parent phone %q has no digits", rawPhone)
	}

	parent, err := s.parents.FindByPhone(ctx, exec, phone)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return result, err
	}
	if parent == nil {
		hash, err := s.hashPassword(bootstrapPassword(dob))
		if err != nil {
			return result, fmt.Errorf("hash parent password: %w", err)
		}
		var parentCreated bool
		parent, parentCreated, err = s.parents.CreateOrGetByPhone(ctx, exec, &models.User{
			FullName:     parentName,
			PhoneNumber:  phone,
			PasswordHash: hash,
			Role:         models.RoleParent,
			Active:       true,
		})
		if err != nil {
			return result, err
		}
		if parentCreated {
			result.parent = &models.CreatedParent{Name: parentName, Phone: rawPhone}
		}
	}

	linked, err := s.links.LinkIfAbsent(ctx, exec, &models.ParentStudent{
		UserID:           parent.ID,
		StudentID:        student.ID,
		RelationshipType: normalizeRelationship(row[colRelationship]),
		IsPrimaryContact: true,
	})
	if err != nil {
		return result, err
	}
	if linked {
		result.link = &models.LinkedPair{Student: student.FullName, Parent: parent.FullName}
	}
	return result, nil
}

func (s *RosterImportService) recordAudit(ctx context.Context, actorID string, report *models.ImportReport) {
	summary, _ := json.Marshal(map[string]int{
		"success":          report.SuccessCount,
		"errors":           len(report.Errors),
		"students_created": len(report.CreatedStudents),
		"parents_created":  len(report.CreatedParents),
		"links_created":    len(report.LinkedPairs),
	})
	entry := &models.AuditLog{
		Action:    models.AuditActionRosterImport,
		Resource:  "students",
		NewValues: summary,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if err := s.parents.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record roster import audit log", zap.Error(err))
	}
}
