package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
	"github.com/noah-isme/paud-api/pkg/export"
	"github.com/noah-isme/paud-api/pkg/narrative"
)

type reportCardRepository interface {
	FindByStudentTerm(ctx context.Context, exec sqlx.ExtContext, studentID, termID string) (*models.ReportCard, error)
	GetOrCreate(ctx context.Context, exec sqlx.ExtContext, card *models.ReportCard) (*models.ReportCard, bool, error)
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ReportCard, error)
	UpsertDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.ReportDetail) error
	ListDetails(ctx context.Context, exec sqlx.ExtContext, cardID string) ([]models.ReportDetail, error)
	CountScoredActive(ctx context.Context, exec sqlx.ExtContext, cardID string) (int, error)
	ListMissingNarratives(ctx context.Context, exec sqlx.ExtContext, cardID string) ([]string, error)
	PublishIfDraft(ctx context.Context, exec sqlx.ExtContext, id, reviewerID string, at time.Time) (bool, error)
	ListByClassroomTerm(ctx context.Context, classroomID, termID string) ([]models.ReportCard, error)
	ListScoredDetails(ctx context.Context, classroomID, termID string) ([]models.ScoredDetail, error)
}

type aspectCatalog interface {
	FindByID(ctx context.Context, id string) (*models.AssessmentAspect, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.AssessmentAspect, error)
	CountActive(ctx context.Context, exec sqlx.ExtContext) (int, error)
}

type reportStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	ListByClassroom(ctx context.Context, classroomID string) ([]models.Student, error)
}

type reportTermReader interface {
	FindTerm(ctx context.Context, id string) (*models.AcademicTerm, error)
}

type reportClassroomReader interface {
	FindByID(ctx context.Context, id string) (*models.Classroom, error)
}

type parentLinkChecker interface {
	IsLinked(ctx context.Context, parentID, studentID string) (bool, error)
}

type attendanceSummarizer interface {
	AttendanceSummary(ctx context.Context, studentID string, from, to time.Time) (*models.AttendanceSummary, error)
}

type growthLookup interface {
	LatestInRange(ctx context.Context, studentID string, from, to time.Time) (*models.GrowthRecord, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type reportCardRenderer interface {
	Render(doc export.ReportCardDocument) ([]byte, error)
}

// ReportCardServiceConfig tunes narrative and cache behaviour.
type ReportCardServiceConfig struct {
	SchoolName       string
	NarrativeTimeout time.Duration
	BulkConcurrency  int
	ReportCardTTL    time.Duration
	StatisticsTTL    time.Duration
}

// ReportCardServiceParams groups constructor dependencies.
type ReportCardServiceParams struct {
	Tx         transactor
	Cards      reportCardRepository
	Aspects    aspectCatalog
	Students   reportStudentReader
	Terms      reportTermReader
	Classrooms reportClassroomReader
	Links      parentLinkChecker
	DailyLogs  attendanceSummarizer
	Growth     growthLookup
	Audit      auditLogger
	Generator  narrative.Generator
	Renderer   reportCardRenderer
	Cache      *CacheService
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
	Config     ReportCardServiceConfig
}

// ReportCardService drives a report card from draft to published.
type ReportCardService struct {
	tx         transactor
	cards      reportCardRepository
	aspects    aspectCatalog
	students   reportStudentReader
	terms      reportTermReader
	classrooms reportClassroomReader
	links      parentLinkChecker
	dailyLogs  attendanceSummarizer
	growth     growthLookup
	audit      auditLogger
	generator  narrative.Generator
	renderer   reportCardRenderer
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ReportCardServiceConfig
	now        func() time.Time
}

// NewReportCardService constructs a ReportCardService with defaults for unset config.
func NewReportCardService(params ReportCardServiceParams) *ReportCardService {
	cfg := params.Config
	if cfg.NarrativeTimeout <= 0 {
		cfg.NarrativeTimeout = 30 * time.Second
	}
	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = 3
	}
	if cfg.ReportCardTTL <= 0 {
		cfg.ReportCardTTL = 10 * time.Minute
	}
	if cfg.StatisticsTTL <= 0 {
		cfg.StatisticsTTL = 5 * time.Minute
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	renderer := params.Renderer
	if renderer == nil {
		renderer = export.NewReportCardPDF(cfg.SchoolName)
	}
	return &ReportCardService{
		tx:         params.Tx,
		cards:      params.Cards,
		aspects:    params.Aspects,
		students:   params.Students,
		terms:      params.Terms,
		classrooms: params.Classrooms,
		links:      params.Links,
		dailyLogs:  params.DailyLogs,
		growth:     params.Growth,
		audit:      params.Audit,
		generator:  params.Generator,
		renderer:   renderer,
		cache:      params.Cache,
		metrics:    params.Metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate returns the card for (student, term), creating a draft owned by actorID when absent.
func (s *ReportCardService) GetOrCreate(ctx context.Context, studentID, termID, actorID string) (*models.ReportCard, error) {
	student, _, err := s.loadStudentTerm(ctx, studentID, termID)
	if err != nil {
		return nil, err
	}
	card, created, err := s.cards.GetOrCreate(ctx, nil, &models.ReportCard{
		StudentID:      studentID,
		AcademicTermID: termID,
		ClassroomID:    student.ClassroomID,
		CreatedBy:      actorID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
	}
	if created {
		s.logger.Info("report card created", zap.String("report_card_id", card.ID), zap.String("student_id", studentID), zap.String("term_id", termID))
	}
	return card, nil
}

// SaveAssessment upserts the given aspect scores on a draft card inside one transaction.
func (s *ReportCardService) SaveAssessment(ctx context.Context, actorID string, req models.SaveAssessmentRequest) (*models.ReportCardView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	ids := make([]string, 0, len(req.Details))
	seen := make(map[string]struct{}, len(req.Details))
	for _, d := range req.Details {
		if _, dup := seen[d.AspectID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("aspect %s listed twice", d.AspectID))
		}
		seen[d.AspectID] = struct{}{}
		ids = append(ids, d.AspectID)
	}
	catalog, err := s.aspects.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load aspects")
	}
	for _, id := range ids {
		aspect, ok := catalog[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown aspect %s", id))
		}
		if !aspect.IsActive {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("aspect %q is inactive", aspect.Name))
		}
	}

	student, _, err := s.loadStudentTerm(ctx, req.StudentID, req.TermID)
	if err != nil {
		return nil, err
	}

	var (
		card    *models.ReportCard
		details []models.ReportDetail
	)
	err = s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		existing, _, err := s.cards.GetOrCreate(ctx, exec, &models.ReportCard{
			StudentID:      req.StudentID,
			AcademicTermID: req.TermID,
			ClassroomID:    student.ClassroomID,
			CreatedBy:      actorID,
		})
		if err != nil {
			return err
		}
		card, err = s.cards.LockForUpdate(ctx, exec, existing.ID)
		if err != nil {
			return err
		}
		if card.IsPublished() {
			return appErrors.ErrReportLocked
		}
		for _, d := range req.Details {
			detail := &models.ReportDetail{
				ReportCardID:       card.ID,
				AssessmentAspectID: d.AspectID,
				Score:              d.Score,
				Keywords:           trimmedOrNil(d.Keywords),
				Narrative:          trimmedPtr(d.Narrative),
			}
			if err := s.cards.UpsertDetail(ctx, exec, detail); err != nil {
				return err
			}
		}
		details, err = s.cards.ListDetails(ctx, exec, card.ID)
		return err
	})
	if err != nil {
		return nil, asAppError(err, "failed to save assessment")
	}

	s.recordAudit(ctx, actorID, models.AuditActionReportCardSave, card.ID, map[string]interface{}{"aspects": ids})
	s.evictCardCaches(ctx, card)

	return &models.ReportCardView{
		ReportCard:   *card,
		Student:      student.Student,
		Details:      details,
		AverageScore: averageOfDetails(details),
	}, nil
}

// GenerateNarrative asks the generator for one aspect's text. The result is not persisted.
func (s *ReportCardService) GenerateNarrative(ctx context.Context, req models.NarrativeRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid narrative payload")
	}
	student, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return "", err
	}
	aspect, err := s.aspects.FindByID(ctx, req.AspectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "aspect not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load aspect")
	}
	text, err := s.generate(ctx, student.FullName, *aspect, req.Score, req.Keywords)
	if err != nil {
		return "", mapNarrativeError(err)
	}
	return text, nil
}

// GenerateBulkNarratives generates narratives for several aspects of one student concurrently.
// Unknown aspects and failed items are reported in Failures; only an unconfigured generator fails the call.
func (s *ReportCardService) GenerateBulkNarratives(ctx context.Context, req models.BulkNarrativeRequest) (*models.BulkNarrativeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk narrative payload")
	}
	student, err := s.loadStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.AspectID)
	}
	catalog, err := s.aspects.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load aspects")
	}

	result := &models.BulkNarrativeResult{
		Narratives: make(map[string]string, len(req.Items)),
		Failures:   make(map[string]string),
	}
	type bulkJob struct {
		item   models.BulkNarrativeItem
		aspect models.AssessmentAspect
	}
	// Unknown aspects are settled before any worker starts; workers only touch the maps under mu.
	work := make([]bulkJob, 0, len(req.Items))
	for _, item := range req.Items {
		aspect, ok := catalog[item.AspectID]
		if !ok {
			s.logger.Warn("bulk narrative skipped unknown aspect", zap.String("aspect_id", item.AspectID))
			result.Failures[item.AspectID] = "aspect not found"
			continue
		}
		work = append(work, bulkJob{item: item, aspect: aspect})
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BulkConcurrency)
	for _, job := range work {
		item, aspect := job.item, job.aspect
		g.Go(func() error {
			text, err := s.generate(gctx, student.FullName, aspect, item.Score, item.Keywords)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if narrative.KindOf(err) == narrative.KindUnconfigured {
					return err
				}
				result.Failures[item.AspectID] = appErrors.FromError(mapNarrativeError(err)).Message
				return nil
			}
			result.Narratives[item.AspectID] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, mapNarrativeError(err)
	}
	if len(result.Failures) == 0 {
		result.Failures = nil
	}
	return result, nil
}

func (s *ReportCardService) generate(ctx context.Context, studentName string, aspect models.AssessmentAspect, score models.Score, keywords string) (string, error) {
	if s.generator == nil {
		return "", &narrative.Error{Kind: narrative.KindUnconfigured}
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NarrativeTimeout)
	defer cancel()

	started := time.Now()
	text, err := s.generator.Generate(ctx, narrative.Request{
		StudentName:    studentName,
		AspectName:     aspect.Name,
		AspectCategory: aspect.Category,
		Score:          string(score),
		ScoreLabel:     score.Label(),
		Keywords:       strings.TrimSpace(keywords),
	})
	if err == nil && strings.TrimSpace(text) == "" {
		err = &narrative.Error{Kind: narrative.KindMalformedResponse, Err: errors.New("empty narrative")}
	}
	outcome := "ok"
	if err != nil {
		outcome = string(narrative.KindOf(err))
		if outcome == "" {
			outcome = string(narrative.KindTransport)
		}
		s.logger.Warn("narrative generation failed", zap.String("aspect_id", aspect.ID), zap.String("kind", outcome), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.ObserveNarrative(outcome, time.Since(started))
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Publish freezes a complete draft card. Concurrent calls publish at most once; the loser gets ErrAlreadyPublished.
func (s *ReportCardService) Publish(ctx context.Context, actorID, studentID, termID string) (*models.ReportCard, error) {
	var card *models.ReportCard
	err := s.tx.WithinTx(ctx, func(exec sqlx.ExtContext) error {
		existing, err := s.cards.FindByStudentTerm(ctx, exec, studentID, termID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "report card not found")
			}
			return err
		}
		locked, err := s.cards.LockForUpdate(ctx, exec, existing.ID)
		if err != nil {
			return err
		}
		if locked.IsPublished() {
			return appErrors.ErrAlreadyPublished
		}

		active, err := s.aspects.CountActive(ctx, exec)
		if err != nil {
			return err
		}
		scored, err := s.cards.CountScoredActive(ctx, exec, locked.ID)
		if err != nil {
			return err
		}
		if scored < active {
			return appErrors.Clone(appErrors.ErrIncompleteScoring, fmt.Sprintf("scoring incomplete: %d of %d active aspects scored", scored, active))
		}

		missing, err := s.cards.ListMissingNarratives(ctx, exec, locked.ID)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return appErrors.Clone(appErrors.ErrMissingNarratives, "narrative missing for: "+strings.Join(missing, ", "))
		}

		published, err := s.cards.PublishIfDraft(ctx, exec, locked.ID, actorID, s.now())
		if err != nil {
			return err
		}
		if !published {
			return appErrors.ErrAlreadyPublished
		}
		card, err = s.cards.FindByStudentTerm(ctx, exec, studentID, termID)
		return err
	})
	if err != nil {
		return nil, asAppError(err, "failed to publish report card")
	}

	if s.metrics != nil {
		s.metrics.RecordPublish()
	}
	s.logger.Info("report card published", zap.String("report_card_id", card.ID), zap.String("reviewer_id", actorID))
	s.recordAudit(ctx, actorID, models.AuditActionReportCardPublish, card.ID, map[string]interface{}{"status": card.Status})
	s.evictCardCaches(ctx, card)
	return card, nil
}

// GetForParent returns a published card of a child linked to parentID; drafts are reported as not found.
func (s *ReportCardService) GetForParent(ctx context.Context, parentID, studentID, termID string) (*models.ReportCardView, error) {
	if err := s.ensureParentLink(ctx, parentID, studentID); err != nil {
		return nil, err
	}
	key := ReportCardViewKey(studentID, termID)
	var cached models.ReportCardView
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	view, err := s.buildView(ctx, studentID, termID, true)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, view, s.cfg.ReportCardTTL)
	return view, nil
}

// Preview returns the card in any status together with attendance and growth context.
func (s *ReportCardService) Preview(ctx context.Context, studentID, termID string) (*models.ReportCardView, error) {
	return s.buildView(ctx, studentID, termID, false)
}

// RenderPDF renders a card as PDF and returns the bytes with a download file name.
func (s *ReportCardService) RenderPDF(ctx context.Context, studentID, termID string, requirePublished bool) ([]byte, string, error) {
	view, err := s.buildView(ctx, studentID, termID, requirePublished)
	if err != nil {
		return nil, "", err
	}
	data, err := s.renderer.Render(s.documentFromView(view))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report card")
	}
	return data, export.ReportCardFilename(view.Student.FullName, view.Term.Semester, view.Term.YearName), nil
}

// RenderPDFForParent renders a published card after checking the parent link.
func (s *ReportCardService) RenderPDFForParent(ctx context.Context, parentID, studentID, termID string) ([]byte, string, error) {
	if err := s.ensureParentLink(ctx, parentID, studentID); err != nil {
		return nil, "", err
	}
	return s.RenderPDF(ctx, studentID, termID, true)
}

// ClassDocuments builds printable documents for every card of a classroom in a term.
func (s *ReportCardService) ClassDocuments(ctx context.Context, classroomID, termID string, publishedOnly bool) ([]export.ReportCardDocument, error) {
	cards, err := s.cards.ListByClassroomTerm(ctx, classroomID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report cards")
	}
	docs := make([]export.ReportCardDocument, 0, len(cards))
	for _, card := range cards {
		if publishedOnly && !card.IsPublished() {
			continue
		}
		view, err := s.buildView(ctx, card.StudentID, termID, publishedOnly)
		if err != nil {
			return nil, err
		}
		docs = append(docs, s.documentFromView(view))
	}
	return docs, nil
}

// Statistics aggregates report card progress and scores for a classroom in a term.
func (s *ReportCardService) Statistics(ctx context.Context, classroomID, termID string) (*models.ClassStatistics, error) {
	key := ClassStatisticsKey(classroomID, termID)
	var cached models.ClassStatistics
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	if _, err := s.classrooms.FindByID(ctx, classroomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "classroom not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
	}
	if _, err := s.loadTerm(ctx, termID); err != nil {
		return nil, err
	}

	students, err := s.students.ListByClassroom(ctx, classroomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	cards, err := s.cards.ListByClassroomTerm(ctx, classroomID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report cards")
	}
	rows, err := s.cards.ListScoredDetails(ctx, classroomID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scores")
	}

	stats := buildClassStatistics(classroomID, termID, len(students), cards, rows)
	_ = s.cache.Set(ctx, key, stats, s.cfg.StatisticsTTL)
	return stats, nil
}

func buildClassStatistics(classroomID, termID string, totalStudents int, cards []models.ReportCard, rows []models.ScoredDetail) *models.ClassStatistics {
	stats := &models.ClassStatistics{
		ClassroomID:       classroomID,
		TermID:            termID,
		TotalStudents:     totalStudents,
		ScoreDistribution: emptyDistribution(),
		AspectPerformance: []models.AspectPerformance{},
	}
	for _, card := range cards {
		switch card.Status {
		case models.ReportCardPublished:
			stats.Published++
		case models.ReportCardDraft:
			stats.Draft++
		}
	}
	if started := len(cards); totalStudents > started {
		stats.NotStarted = totalStudents - started
	}

	all := make([]models.Score, 0, len(rows))
	perAspect := map[string][]models.Score{}
	index := map[string]int{}
	for _, row := range rows {
		if _, ok := index[row.AspectID]; !ok {
			index[row.AspectID] = len(stats.AspectPerformance)
			stats.AspectPerformance = append(stats.AspectPerformance, models.AspectPerformance{
				AspectID:     row.AspectID,
				AspectName:   row.AspectName,
				Distribution: emptyDistribution(),
			})
		}
		perf := &stats.AspectPerformance[index[row.AspectID]]
		perf.Distribution[row.Score]++
		stats.ScoreDistribution[row.Score]++
		perAspect[row.AspectID] = append(perAspect[row.AspectID], row.Score)
		all = append(all, row.Score)
	}
	for i := range stats.AspectPerformance {
		perf := &stats.AspectPerformance[i]
		perf.Average = models.AverageScore(perAspect[perf.AspectID])
	}
	stats.AverageScore = models.AverageScore(all)
	return stats
}

func emptyDistribution() map[models.Score]int {
	dist := make(map[models.Score]int, len(models.Scores))
	for _, score := range models.Scores {
		dist[score] = 0
	}
	return dist
}

func (s *ReportCardService) buildView(ctx context.Context, studentID, termID string, requirePublished bool) (*models.ReportCardView, error) {
	student, term, err := s.loadStudentTerm(ctx, studentID, termID)
	if err != nil {
		return nil, err
	}
	card, err := s.cards.FindByStudentTerm(ctx, nil, studentID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report card")
	}
	if requirePublished && !card.IsPublished() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
	}
	details, err := s.cards.ListDetails(ctx, nil, card.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report details")
	}

	view := &models.ReportCardView{
		ReportCard:   *card,
		Student:      student.Student,
		Term:         *term,
		Details:      details,
		AverageScore: averageOfDetails(details),
	}
	if card.ClassroomID != nil {
		classroom, err := s.classrooms.FindByID(ctx, *card.ClassroomID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classroom")
		}
		view.Classroom = classroom
	}
	if s.dailyLogs != nil {
		attendance, err := s.dailyLogs.AttendanceSummary(ctx, studentID, term.StartDate, term.EndDate)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
		}
		view.Attendance = attendance
	}
	if s.growth != nil {
		growth, err := s.growth.LatestInRange(ctx, studentID, term.StartDate, term.EndDate)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load growth record")
		}
		view.LatestGrowth = growth
	}
	return view, nil
}

func (s *ReportCardService) documentFromView(view *models.ReportCardView) export.ReportCardDocument {
	doc := export.ReportCardDocument{
		SchoolName:   s.cfg.SchoolName,
		StudentName:  view.Student.FullName,
		TermLabel:    view.Term.Label(),
		AverageScore: view.AverageScore,
		PublishedAt:  view.PublishedAt,
		Draft:        !view.IsPublished(),
	}
	if view.Student.NISN != nil {
		doc.NISN = *view.Student.NISN
	}
	if view.Classroom != nil {
		doc.ClassroomName = view.Classroom.Name
	}
	for _, d := range view.Details {
		entry := export.AspectEntry{
			Category:   d.AspectCategory,
			Name:       d.AspectName,
			Score:      string(d.Score),
			ScoreLabel: d.Score.Label(),
		}
		if d.Narrative != nil {
			entry.Narrative = *d.Narrative
		}
		doc.Aspects = append(doc.Aspects, entry)
	}
	if a := view.Attendance; a != nil {
		doc.Attendance = map[string]int{
			string(models.AttendanceHadir): a.Hadir,
			string(models.AttendanceSakit): a.Sakit,
			string(models.AttendanceIzin):  a.Izin,
			string(models.AttendanceAlpha): a.Alpha,
		}
	}
	if g := view.LatestGrowth; g != nil {
		height, weight := g.HeightCM, g.WeightKG
		doc.HeightCM, doc.WeightKG = &height, &weight
		doc.GrowthStatus = string(g.Status)
	}
	return doc
}

func (s *ReportCardService) ensureParentLink(ctx context.Context, parentID, studentID string) error {
	linked, err := s.links.IsLinked(ctx, parentID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify parent link")
	}
	if !linked {
		return appErrors.Clone(appErrors.ErrForbidden, "student is not linked to this parent")
	}
	return nil
}

func (s *ReportCardService) loadStudent(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *ReportCardService) loadTerm(ctx context.Context, id string) (*models.AcademicTerm, error) {
	term, err := s.terms.FindTerm(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

func (s *ReportCardService) loadStudentTerm(ctx context.Context, studentID, termID string) (*models.StudentDetail, *models.AcademicTerm, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	term, err := s.loadTerm(ctx, termID)
	if err != nil {
		return nil, nil, err
	}
	return student, term, nil
}

func (s *ReportCardService) evictCardCaches(ctx context.Context, card *models.ReportCard) {
	keys := []string{ReportCardViewKey(card.StudentID, card.AcademicTermID)}
	if card.ClassroomID != nil {
		keys = append(keys, ClassStatisticsKey(*card.ClassroomID, card.AcademicTermID))
	}
	_ = s.cache.Evict(ctx, keys...)
}

func (s *ReportCardService) recordAudit(ctx context.Context, actorID, action, cardID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	entry := &models.AuditLog{
		Action:     action,
		Resource:   "report_cards",
		ResourceID: &cardID,
		NewValues:  payload,
	}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record report card audit log", zap.String("action", action), zap.Error(err))
	}
}

func averageOfDetails(details []models.ReportDetail) float64 {
	scores := make([]models.Score, 0, len(details))
	for _, d := range details {
		scores = append(scores, d.Score)
	}
	return models.AverageScore(scores)
}

// mapNarrativeError converts generator failures to API errors by kind.
func mapNarrativeError(err error) error {
	var tmpl *appErrors.Error
	switch narrative.KindOf(err) {
	case narrative.KindUnconfigured:
		tmpl = appErrors.ErrNarrativeUnconfigured
	case narrative.KindUnauthorized:
		tmpl = appErrors.ErrNarrativeUnauthorized
	case narrative.KindRateLimited:
		tmpl = appErrors.ErrNarrativeRateLimited
	default:
		tmpl = appErrors.ErrNarrativeUnavailable
	}
	return appErrors.Wrap(err, tmpl.Code, tmpl.Status, tmpl.Message)
}

// asAppError keeps domain errors raised inside a transaction and wraps everything else as internal.
func asAppError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
