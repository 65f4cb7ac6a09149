package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
	"github.com/noah-isme/paud-api/pkg/narrative"
)

type inlineTx struct{}

func (inlineTx) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	return fn(nil)
}

type aspectCatalogStub struct {
	aspects []models.AssessmentAspect
}

func newAspectCatalog(n int) *aspectCatalogStub {
	stub := &aspectCatalogStub{}
	for i := 1; i <= n; i++ {
		stub.aspects = append(stub.aspects, models.AssessmentAspect{
			ID:        fmt.Sprintf("aspect-%d", i),
			Name:      fmt.Sprintf("Aspek %d", i),
			Category:  "Perkembangan",
			SortOrder: i,
			IsActive:  true,
		})
	}
	return stub
}

func (s *aspectCatalogStub) find(id string) (models.AssessmentAspect, bool) {
	for _, a := range s.aspects {
		if a.ID == id {
			return a, true
		}
	}
	return models.AssessmentAspect{}, false
}

func (s *aspectCatalogStub) FindByID(ctx context.Context, id string) (*models.AssessmentAspect, error) {
	if a, ok := s.find(id); ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (s *aspectCatalogStub) FindByIDs(ctx context.Context, ids []string) (map[string]models.AssessmentAspect, error) {
	out := map[string]models.AssessmentAspect{}
	for _, id := range ids {
		if a, ok := s.find(id); ok {
			out[id] = a
		}
	}
	return out, nil
}

func (s *aspectCatalogStub) CountActive(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	count := 0
	for _, a := range s.aspects {
		if a.IsActive {
			count++
		}
	}
	return count, nil
}

// cardRepoStub keeps report cards in memory; publishWrites counts successful status flips.
type cardRepoStub struct {
	mu            sync.Mutex
	aspects       *aspectCatalogStub
	cards         map[string]*models.ReportCard
	details       map[string]map[string]models.ReportDetail
	scored        []models.ScoredDetail
	publishWrites int32
}

func newCardRepoStub(aspects *aspectCatalogStub) *cardRepoStub {
	return &cardRepoStub{aspects: aspects, cards: map[string]*models.ReportCard{}, details: map[string]map[string]models.ReportDetail{}}
}

func (r *cardRepoStub) FindByStudentTerm(ctx context.Context, exec sqlx.ExtContext, studentID, termID string) (*models.ReportCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cards {
		if c.StudentID == studentID && c.AcademicTermID == termID {
			copy := *c
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *cardRepoStub) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, card *models.ReportCard) (*models.ReportCard, bool, error) {
	if existing, err := r.FindByStudentTerm(ctx, exec, card.StudentID, card.AcademicTermID); err == nil {
		return existing, false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	card.ID = fmt.Sprintf("card-%d", len(r.cards)+1)
	card.Status = models.ReportCardDraft
	stored := *card
	r.cards[card.ID] = &stored
	return card, true, nil
}

func (r *cardRepoStub) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ReportCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *c
	return &copy, nil
}

func (r *cardRepoStub) UpsertDetail(ctx context.Context, exec sqlx.ExtContext, detail *models.ReportDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.details[detail.ReportCardID] == nil {
		r.details[detail.ReportCardID] = map[string]models.ReportDetail{}
	}
	if prev, ok := r.details[detail.ReportCardID][detail.AssessmentAspectID]; ok && detail.Narrative == nil {
		detail.Narrative = prev.Narrative
	}
	r.details[detail.ReportCardID][detail.AssessmentAspectID] = *detail
	return nil
}

func (r *cardRepoStub) ListDetails(ctx context.Context, exec sqlx.ExtContext, cardID string) ([]models.ReportDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReportDetail
	for aspectID, d := range r.details[cardID] {
		a, _ := r.aspects.find(aspectID)
		d.AspectName, d.AspectCategory = a.Name, a.Category
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AspectName < out[j].AspectName })
	return out, nil
}

func (r *cardRepoStub) CountScoredActive(ctx context.Context, exec sqlx.ExtContext, cardID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for aspectID := range r.details[cardID] {
		if a, ok := r.aspects.find(aspectID); ok && a.IsActive {
			count++
		}
	}
	return count, nil
}

func (r *cardRepoStub) ListMissingNarratives(ctx context.Context, exec sqlx.ExtContext, cardID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for aspectID, d := range r.details[cardID] {
		a, ok := r.aspects.find(aspectID)
		if ok && (d.Narrative == nil || strings.TrimSpace(*d.Narrative) == "") {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *cardRepoStub) PublishIfDraft(ctx context.Context, exec sqlx.ExtContext, id, reviewerID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.cards[id]
	if c.Status != models.ReportCardDraft {
		return false, nil
	}
	c.Status = models.ReportCardPublished
	c.PublishedAt = &at
	c.ReviewedBy = &reviewerID
	atomic.AddInt32(&r.publishWrites, 1)
	return true, nil
}

func (r *cardRepoStub) ListByClassroomTerm(ctx context.Context, classroomID, termID string) ([]models.ReportCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReportCard
	for _, c := range r.cards {
		if c.AcademicTermID == termID && c.ClassroomID != nil && *c.ClassroomID == classroomID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *cardRepoStub) ListScoredDetails(ctx context.Context, classroomID, termID string) ([]models.ScoredDetail, error) {
	return r.scored, nil
}

type reportLookupStub struct {
	students   map[string]models.StudentDetail
	classrooms map[string]models.Classroom
	links      map[string]bool
	audits     []models.AuditLog
}

func (s *reportLookupStub) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if st, ok := s.students[id]; ok {
		return &st, nil
	}
	return nil, sql.ErrNoRows
}

func (s *reportLookupStub) ListByClassroom(ctx context.Context, classroomID string) ([]models.Student, error) {
	var out []models.Student
	for _, st := range s.students {
		if st.ClassroomID != nil && *st.ClassroomID == classroomID {
			out = append(out, st.Student)
		}
	}
	return out, nil
}

func (s *reportLookupStub) FindTerm(ctx context.Context, id string) (*models.AcademicTerm, error) {
	if id != "term-1" {
		return nil, sql.ErrNoRows
	}
	return &models.AcademicTerm{
		ID:        "term-1",
		YearName:  "2024/2025",
		Semester:  1,
		StartDate: time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (s *reportLookupStub) IsLinked(ctx context.Context, parentID, studentID string) (bool, error) {
	return s.links[parentID+"|"+studentID], nil
}

func (s *reportLookupStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.audits = append(s.audits, *log)
	return nil
}

type classroomLookupStub map[string]models.Classroom

func (s classroomLookupStub) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	if c, ok := s[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

type generatorStub struct {
	calls int32
	fail  map[string]error
	text  string
	delay time.Duration
}

func (g *generatorStub) Generate(ctx context.Context, req narrative.Request) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if err, ok := g.fail[req.AspectName]; ok {
		return "", err
	}
	if g.text != "" {
		return g.text, nil
	}
	return fmt.Sprintf("Ananda %s %s pada %s.", req.StudentName, strings.ToLower(req.ScoreLabel), req.AspectName), nil
}

type reportCardFixture struct {
	svc       *ReportCardService
	cards     *cardRepoStub
	aspects   *aspectCatalogStub
	lookup    *reportLookupStub
	generator *generatorStub
}

func newReportCardFixture(t *testing.T, aspectCount int) *reportCardFixture {
	t.Helper()
	aspects := newAspectCatalog(aspectCount)
	cards := newCardRepoStub(aspects)
	classroomID := "class-a"
	lookup := &reportLookupStub{
		students: map[string]models.StudentDetail{
			"student-1": {Student: models.Student{ID: "student-1", FullName: "Budi Santoso", ClassroomID: &classroomID}},
		},
		links: map[string]bool{"parent-1|student-1": true},
	}
	gen := &generatorStub{}
	svc := NewReportCardService(ReportCardServiceParams{
		Tx:         inlineTx{},
		Cards:      cards,
		Aspects:    aspects,
		Students:   lookup,
		Terms:      lookup,
		Classrooms: classroomLookupStub{classroomID: {ID: classroomID, Name: "Kelompok A"}},
		Links:      lookup,
		Audit:      lookup,
		Generator:  gen,
		Config:     ReportCardServiceConfig{SchoolName: "PAUD Test", BulkConcurrency: 2},
	})
	return &reportCardFixture{svc: svc, cards: cards, aspects: aspects, lookup: lookup, generator: gen}
}

func (f *reportCardFixture) score(t *testing.T, n int, withNarrative bool) {
	t.Helper()
	req := models.SaveAssessmentRequest{StudentID: "student-1", TermID: "term-1"}
	for i := 0; i < n; i++ {
		d := models.DetailInput{AspectID: f.aspects.aspects[i].ID, Score: models.ScoreBSH}
		if withNarrative {
			text := "Ananda berkembang sesuai harapan."
			d.Narrative = &text
		}
		req.Details = append(req.Details, d)
	}
	_, err := f.svc.SaveAssessment(context.Background(), "teacher-1", req)
	require.NoError(t, err)
}

func TestReportCardGetOrCreateIsIdempotent(t *testing.T) {
	f := newReportCardFixture(t, 6)

	first, err := f.svc.GetOrCreate(context.Background(), "student-1", "term-1", "teacher-1")
	require.NoError(t, err)
	second, err := f.svc.GetOrCreate(context.Background(), "student-1", "term-1", "teacher-2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "teacher-1", second.CreatedBy)
	assert.Equal(t, models.ReportCardDraft, second.Status)
	assert.Len(t, f.cards.cards, 1)
}

func TestReportCardGetOrCreateUnknownStudent(t *testing.T) {
	f := newReportCardFixture(t, 6)

	_, err := f.svc.GetOrCreate(context.Background(), "missing", "term-1", "teacher-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSaveAssessmentRejectsUnknownAspect(t *testing.T) {
	f := newReportCardFixture(t, 6)

	_, err := f.svc.SaveAssessment(context.Background(), "teacher-1", models.SaveAssessmentRequest{
		StudentID: "student-1",
		TermID:    "term-1",
		Details:   []models.DetailInput{{AspectID: "nope", Score: models.ScoreBB}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.cards.cards)
}

func TestSaveAssessmentReturnsAverage(t *testing.T) {
	f := newReportCardFixture(t, 4)
	req := models.SaveAssessmentRequest{StudentID: "student-1", TermID: "term-1"}
	for i, score := range []models.Score{models.ScoreBSB, models.ScoreBSH, models.ScoreMB, models.ScoreBB} {
		req.Details = append(req.Details, models.DetailInput{AspectID: f.aspects.aspects[i].ID, Score: score})
	}

	view, err := f.svc.SaveAssessment(context.Background(), "teacher-1", req)
	require.NoError(t, err)
	assert.Len(t, view.Details, 4)
	assert.Equal(t, 2.50, view.AverageScore)
	require.Len(t, f.lookup.audits, 1)
	assert.Equal(t, models.AuditActionReportCardSave, f.lookup.audits[0].Action)
}

func TestPublishRefusesIncompleteScoring(t *testing.T) {
	f := newReportCardFixture(t, 6)
	f.score(t, 5, true)

	_, err := f.svc.Publish(context.Background(), "admin-1", "student-1", "term-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrIncompleteScoring))
	assert.Contains(t, err.Error(), "5 of 6")

	card, _ := f.cards.FindByStudentTerm(context.Background(), nil, "student-1", "term-1")
	assert.Equal(t, models.ReportCardDraft, card.Status)
	assert.Nil(t, card.PublishedAt)
}

func TestPublishRefusesMissingNarratives(t *testing.T) {
	f := newReportCardFixture(t, 6)
	f.score(t, 6, false)
	text := "Sudah mampu."
	_, err := f.svc.SaveAssessment(context.Background(), "teacher-1", models.SaveAssessmentRequest{
		StudentID: "student-1",
		TermID:    "term-1",
		Details: []models.DetailInput{
			{AspectID: "aspect-1", Score: models.ScoreBSB, Narrative: &text},
			{AspectID: "aspect-2", Score: models.ScoreBSB, Narrative: &text},
			{AspectID: "aspect-3", Score: models.ScoreBSB, Narrative: &text},
			{AspectID: "aspect-4", Score: models.ScoreBSB, Narrative: &text},
		},
	})
	require.NoError(t, err)

	_, err = f.svc.Publish(context.Background(), "admin-1", "student-1", "term-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMissingNarratives))
	assert.Contains(t, err.Error(), "Aspek 5, Aspek 6")
}

func TestPublishRefusesBlankNarrativeOnDeactivatedAspect(t *testing.T) {
	f := newReportCardFixture(t, 7)
	f.score(t, 6, true)
	_, err := f.svc.SaveAssessment(context.Background(), "teacher-1", models.SaveAssessmentRequest{
		StudentID: "student-1",
		TermID:    "term-1",
		Details:   []models.DetailInput{{AspectID: "aspect-7", Score: models.ScoreMB}},
	})
	require.NoError(t, err)
	f.aspects.aspects[6].IsActive = false

	_, err = f.svc.Publish(context.Background(), "admin-1", "student-1", "term-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMissingNarratives))
	assert.Contains(t, err.Error(), "Aspek 7")

	card, _ := f.cards.FindByStudentTerm(context.Background(), nil, "student-1", "term-1")
	assert.Equal(t, models.ReportCardDraft, card.Status)
}

func TestPublishConcurrentCallsStampOnce(t *testing.T) {
	f := newReportCardFixture(t, 6)
	f.score(t, 6, true)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Publish(context.Background(), "admin-1", "student-1", "term-1")
		}(i)
	}
	wg.Wait()

	succeeded, already := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, appErrors.ErrAlreadyPublished):
			already++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, already)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.cards.publishWrites))

	card, _ := f.cards.FindByStudentTerm(context.Background(), nil, "student-1", "term-1")
	assert.Equal(t, models.ReportCardPublished, card.Status)
	assert.NotNil(t, card.PublishedAt)
}

func TestSaveAssessmentLockedAfterPublish(t *testing.T) {
	f := newReportCardFixture(t, 1)
	f.score(t, 1, true)
	_, err := f.svc.Publish(context.Background(), "admin-1", "student-1", "term-1")
	require.NoError(t, err)

	_, err = f.svc.SaveAssessment(context.Background(), "teacher-1", models.SaveAssessmentRequest{
		StudentID: "student-1",
		TermID:    "term-1",
		Details:   []models.DetailInput{{AspectID: "aspect-1", Score: models.ScoreBB}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrReportLocked))
}

func TestGenerateNarrativeDoesNotPersist(t *testing.T) {
	f := newReportCardFixture(t, 6)

	text, err := f.svc.GenerateNarrative(context.Background(), models.NarrativeRequest{
		StudentID: "student-1",
		AspectID:  "aspect-1",
		Score:     models.ScoreBSB,
		Keywords:  "berani bercerita",
	})
	require.NoError(t, err)
	assert.Contains(t, text, "Budi Santoso")
	assert.Empty(t, f.cards.cards)
}

func TestGenerateNarrativeMapsProviderErrors(t *testing.T) {
	cases := []struct {
		kind narrative.Kind
		want *appErrors.Error
	}{
		{narrative.KindUnconfigured, appErrors.ErrNarrativeUnconfigured},
		{narrative.KindUnauthorized, appErrors.ErrNarrativeUnauthorized},
		{narrative.KindRateLimited, appErrors.ErrNarrativeRateLimited},
		{narrative.KindTransport, appErrors.ErrNarrativeUnavailable},
		{narrative.KindMalformedResponse, appErrors.ErrNarrativeUnavailable},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			f := newReportCardFixture(t, 1)
			f.generator.fail = map[string]error{"Aspek 1": &narrative.Error{Kind: tc.kind}}

			_, err := f.svc.GenerateNarrative(context.Background(), models.NarrativeRequest{StudentID: "student-1", AspectID: "aspect-1", Score: models.ScoreMB})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), err.Error())
		})
	}
}

func TestGenerateNarrativeRejectsBlankText(t *testing.T) {
	f := newReportCardFixture(t, 1)
	f.generator.text = "   "

	_, err := f.svc.GenerateNarrative(context.Background(), models.NarrativeRequest{StudentID: "student-1", AspectID: "aspect-1", Score: models.ScoreMB})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNarrativeUnavailable))
}

func TestGenerateBulkNarrativesSkipsUnknownAspect(t *testing.T) {
	f := newReportCardFixture(t, 6)

	result, err := f.svc.GenerateBulkNarratives(context.Background(), models.BulkNarrativeRequest{
		StudentID: "student-1",
		Items: []models.BulkNarrativeItem{
			{AspectID: "aspect-1", Score: models.ScoreBSB},
			{AspectID: "ghost", Score: models.ScoreBSH},
			{AspectID: "aspect-2", Score: models.ScoreMB, Keywords: "suka menggambar"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Narratives, 2)
	assert.Contains(t, result.Narratives, "aspect-1")
	assert.Contains(t, result.Narratives, "aspect-2")
	assert.NotContains(t, result.Narratives, "ghost")
	assert.Equal(t, "aspect not found", result.Failures["ghost"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.generator.calls))
}

func TestGenerateBulkNarrativesUnknownAspectsAmongConcurrentWorkers(t *testing.T) {
	f := newReportCardFixture(t, 20)
	f.svc.cfg.BulkConcurrency = 8
	f.generator.delay = time.Millisecond

	req := models.BulkNarrativeRequest{StudentID: "student-1"}
	for i := 1; i <= 20; i++ {
		req.Items = append(req.Items,
			models.BulkNarrativeItem{AspectID: fmt.Sprintf("aspect-%d", i), Score: models.ScoreBSH},
			models.BulkNarrativeItem{AspectID: fmt.Sprintf("ghost-%d", i), Score: models.ScoreBSH},
		)
	}

	result, err := f.svc.GenerateBulkNarratives(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, result.Narratives, 20)
	assert.Len(t, result.Failures, 20)
	for i := 1; i <= 20; i++ {
		assert.Contains(t, result.Narratives, fmt.Sprintf("aspect-%d", i))
		assert.Equal(t, "aspect not found", result.Failures[fmt.Sprintf("ghost-%d", i)])
	}
	assert.Equal(t, int32(20), atomic.LoadInt32(&f.generator.calls))
}

func TestGenerateBulkNarrativesCollectsItemFailures(t *testing.T) {
	f := newReportCardFixture(t, 3)
	f.generator.fail = map[string]error{"Aspek 2": &narrative.Error{Kind: narrative.KindRateLimited}}

	result, err := f.svc.GenerateBulkNarratives(context.Background(), models.BulkNarrativeRequest{
		StudentID: "student-1",
		Items: []models.BulkNarrativeItem{
			{AspectID: "aspect-1", Score: models.ScoreBSB},
			{AspectID: "aspect-2", Score: models.ScoreBSB},
			{AspectID: "aspect-3", Score: models.ScoreBSB},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Narratives, 2)
	assert.Equal(t, appErrors.ErrNarrativeRateLimited.Message, result.Failures["aspect-2"])
}

func TestGenerateBulkNarrativesAbortsWhenUnconfigured(t *testing.T) {
	f := newReportCardFixture(t, 2)
	f.svc.generator = nil

	_, err := f.svc.GenerateBulkNarratives(context.Background(), models.BulkNarrativeRequest{
		StudentID: "student-1",
		Items:     []models.BulkNarrativeItem{{AspectID: "aspect-1", Score: models.ScoreBB}, {AspectID: "aspect-2", Score: models.ScoreBB}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNarrativeUnconfigured))
}

func TestGetForParentOnlySeesPublished(t *testing.T) {
	f := newReportCardFixture(t, 1)
	f.score(t, 1, true)

	_, err := f.svc.GetForParent(context.Background(), "parent-1", "student-1", "term-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.GetForParent(context.Background(), "parent-2", "student-1", "term-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.Publish(context.Background(), "admin-1", "student-1", "term-1")
	require.NoError(t, err)

	view, err := f.svc.GetForParent(context.Background(), "parent-1", "student-1", "term-1")
	require.NoError(t, err)
	assert.True(t, view.IsPublished())
	require.NotNil(t, view.Classroom)
	assert.Equal(t, "Kelompok A", view.Classroom.Name)
	assert.Len(t, view.Details, 1)
}

func TestRenderPDFUsesReportCardFilename(t *testing.T) {
	f := newReportCardFixture(t, 1)
	f.score(t, 1, true)

	data, name, err := f.svc.RenderPDF(context.Background(), "student-1", "term-1", false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
	assert.Equal(t, "Raport_Budi_Santoso_1_2024-2025.pdf", name)

	_, _, err = f.svc.RenderPDF(context.Background(), "student-1", "term-1", true)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStatisticsAggregatesScores(t *testing.T) {
	f := newReportCardFixture(t, 4)
	f.score(t, 4, true)
	f.cards.scored = []models.ScoredDetail{
		{ReportCardID: "card-1", AspectID: "aspect-1", AspectName: "Aspek 1", Score: models.ScoreBSB},
		{ReportCardID: "card-1", AspectID: "aspect-2", AspectName: "Aspek 2", Score: models.ScoreBSH},
		{ReportCardID: "card-1", AspectID: "aspect-3", AspectName: "Aspek 3", Score: models.ScoreMB},
		{ReportCardID: "card-1", AspectID: "aspect-4", AspectName: "Aspek 4", Score: models.ScoreBB},
	}
	classroomID := "class-a"
	f.lookup.students["student-2"] = models.StudentDetail{Student: models.Student{ID: "student-2", FullName: "Citra", ClassroomID: &classroomID}}

	stats, err := f.svc.Statistics(context.Background(), "class-a", "term-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalStudents)
	assert.Equal(t, 1, stats.Draft)
	assert.Equal(t, 0, stats.Published)
	assert.Equal(t, 1, stats.NotStarted)
	assert.Equal(t, 2.50, stats.AverageScore)
	assert.Equal(t, 1, stats.ScoreDistribution[models.ScoreBB])
	require.Len(t, stats.AspectPerformance, 4)
	assert.Equal(t, 4.0, stats.AspectPerformance[0].Average)
}

func TestStatisticsUnknownClassroom(t *testing.T) {
	f := newReportCardFixture(t, 1)

	_, err := f.svc.Statistics(context.Background(), "nope", "term-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
