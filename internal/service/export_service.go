package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/internal/models"
	"github.com/noah-isme/paud-api/pkg/export"
	"github.com/noah-isme/paud-api/pkg/jobs"
	"github.com/noah-isme/paud-api/pkg/storage"
)

type classExportSource interface {
	Statistics(ctx context.Context, classroomID, termID string) (*models.ClassStatistics, error)
	ClassDocuments(ctx context.Context, classroomID, termID string, publishedOnly bool) ([]export.ReportCardDocument, error)
}

type exportTermFinder interface {
	FindTerm(ctx context.Context, id string) (*models.AcademicTerm, error)
}

type fileStorage interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type documentRenderer interface {
	RenderMany(docs []export.ReportCardDocument) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService builds class exports and persists rendered files.
type ExportService struct {
	source     classExportSource
	classrooms classroomFinder
	terms      exportTermFinder
	storage    fileStorage
	csv        datasetRenderer
	table      datasetRenderer
	cards      documentRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
	now        func() time.Time
}

// ExportRenderers groups the output encoders; nil members fall back to the pkg/export defaults.
type ExportRenderers struct {
	CSV   datasetRenderer
	Table datasetRenderer
	Cards documentRenderer
}

// NewExportService constructs an ExportService.
func NewExportService(source classExportSource, classrooms classroomFinder, terms exportTermFinder, files fileStorage, signer *storage.SignedURLSigner, renderers ExportRenderers, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if renderers.CSV == nil {
		renderers.CSV = export.NewCSVExporter()
	}
	if renderers.Table == nil {
		renderers.Table = export.NewTablePDFExporter()
	}
	if renderers.Cards == nil {
		renderers.Cards = export.NewReportCardPDF("")
	}
	return &ExportService{
		source:     source,
		classrooms: classrooms,
		terms:      terms,
		storage:    files,
		csv:        renderers.CSV,
		table:      renderers.Table,
		cards:      renderers.Cards,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Generate renders the export described by job, stores it and signs a download URL.
// Errors caused by the job definition itself are marked permanent so the queue does not retry them.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, jobs.Permanent(fmt.Errorf("job nil"))
	}
	classroom, err := s.classrooms.FindByID(ctx, job.Params.ClassroomID)
	if err != nil {
		return nil, lookupFailure(err, "classroom")
	}
	term, err := s.terms.FindTerm(ctx, job.Params.TermID)
	if err != nil {
		return nil, lookupFailure(err, "term")
	}

	var payload []byte
	switch job.Type {
	case models.ExportTypeStatistics:
		payload, err = s.renderStatistics(ctx, job.Params, classroom, term)
	case models.ExportTypeReportCards:
		payload, err = s.renderReportCards(ctx, job.Params, classroom, term)
	default:
		err = jobs.Permanent(fmt.Errorf("unsupported export type %s", job.Type))
	}
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job, classroom, term), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export generated", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("bytes", len(payload)))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

func lookupFailure(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return jobs.Permanent(fmt.Errorf("%s not found", what))
	}
	return fmt.Errorf("load %s: %w", what, err)
}

func (s *ExportService) render(format models.ExportFormat, data export.Dataset) ([]byte, error) {
	switch format {
	case models.ExportFormatCSV:
		return s.csv.Render(data)
	case models.ExportFormatPDF:
		return s.table.Render(data)
	default:
		return nil, jobs.Permanent(fmt.Errorf("unsupported format %s", format))
	}
}

func (s *ExportService) renderStatistics(ctx context.Context, params models.ExportParams, classroom *models.Classroom, term *models.AcademicTerm) ([]byte, error) {
	stats, err := s.source.Statistics(ctx, params.ClassroomID, params.TermID)
	if err != nil {
		return nil, err
	}
	return s.render(params.Format, statisticsDataset(stats, classroom, term))
}

func statisticsDataset(stats *models.ClassStatistics, classroom *models.Classroom, term *models.AcademicTerm) export.Dataset {
	headers := []string{"Metrik", "Nilai"}
	rows := []map[string]string{
		{"Metrik": "Jumlah siswa", "Nilai": fmt.Sprintf("%d", stats.TotalStudents)},
		{"Metrik": "Rapor terbit", "Nilai": fmt.Sprintf("%d", stats.Published)},
		{"Metrik": "Rapor draf", "Nilai": fmt.Sprintf("%d", stats.Draft)},
		{"Metrik": "Belum dinilai", "Nilai": fmt.Sprintf("%d", stats.NotStarted)},
		{"Metrik": "Rata-rata nilai", "Nilai": fmt.Sprintf("%.2f", stats.AverageScore)},
	}
	for _, score := range models.Scores {
		rows = append(rows, map[string]string{
			"Metrik": fmt.Sprintf("Jumlah %s (%s)", score, score.Label()),
			"Nilai":  fmt.Sprintf("%d", stats.ScoreDistribution[score]),
		})
	}
	for _, aspect := range stats.AspectPerformance {
		rows = append(rows, map[string]string{
			"Metrik": "Rata-rata " + aspect.AspectName,
			"Nilai":  fmt.Sprintf("%.2f", aspect.Average),
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Statistik Rapor %s - %s", classroom.Name, termLabel(term)),
		Headers: headers,
		Rows:    rows,
	}
}

func (s *ExportService) renderReportCards(ctx context.Context, params models.ExportParams, classroom *models.Classroom, term *models.AcademicTerm) ([]byte, error) {
	docs, err := s.source.ClassDocuments(ctx, params.ClassroomID, params.TermID, false)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, jobs.Permanent(fmt.Errorf("no report cards for this classroom and term"))
	}
	if params.Format == models.ExportFormatPDF {
		return s.cards.RenderMany(docs)
	}
	return s.render(params.Format, reportCardDataset(docs, classroom, term))
}

// reportCardDataset flattens documents into one row per student with a column per aspect.
func reportCardDataset(docs []export.ReportCardDocument, classroom *models.Classroom, term *models.AcademicTerm) export.Dataset {
	seen := map[string]bool{}
	var aspects []string
	for _, doc := range docs {
		for _, a := range doc.Aspects {
			if !seen[a.Name] {
				seen[a.Name] = true
				aspects = append(aspects, a.Name)
			}
		}
	}
	sort.Strings(aspects)

	headers := append([]string{"Nama", "NISN", "Status", "Rata-rata"}, aspects...)
	rows := make([]map[string]string, 0, len(docs))
	for _, doc := range docs {
		status := "Terbit"
		if doc.Draft {
			status = "Draf"
		}
		row := map[string]string{
			"Nama":      doc.StudentName,
			"NISN":      doc.NISN,
			"Status":    status,
			"Rata-rata": fmt.Sprintf("%.2f", doc.AverageScore),
		}
		for _, a := range doc.Aspects {
			row[a.Name] = a.Score
		}
		rows = append(rows, row)
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Rekap Rapor %s - %s", classroom.Name, termLabel(term)),
		Headers: headers,
		Rows:    rows,
	}
}

func termLabel(term *models.AcademicTerm) string {
	return fmt.Sprintf("Semester %d %s", term.Semester, term.YearName)
}

func (s *ExportService) buildFilename(job *models.ExportJob, classroom *models.Classroom, term *models.AcademicTerm) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%d_%s_%s.%s",
		job.Type,
		export.Slug(classroom.Name, "-"),
		term.Semester,
		export.Slug(term.YearName, "-"),
		timestamp,
		job.Params.Format,
	)
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.SignedToken, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}
