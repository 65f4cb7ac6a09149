package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
	"github.com/noah-isme/paud-api/pkg/response"
)

type reportCardService interface {
	SaveAssessment(ctx context.Context, actorID string, req models.SaveAssessmentRequest) (*models.ReportCardView, error)
	GenerateNarrative(ctx context.Context, req models.NarrativeRequest) (string, error)
	GenerateBulkNarratives(ctx context.Context, req models.BulkNarrativeRequest) (*models.BulkNarrativeResult, error)
	Publish(ctx context.Context, actorID, studentID, termID string) (*models.ReportCard, error)
	Preview(ctx context.Context, studentID, termID string) (*models.ReportCardView, error)
	RenderPDF(ctx context.Context, studentID, termID string, requirePublished bool) ([]byte, string, error)
	Statistics(ctx context.Context, classroomID, termID string) (*models.ClassStatistics, error)
}

// ReportCardHandler exposes the teacher side of the report card lifecycle.
type ReportCardHandler struct {
	cards reportCardService
}

// NewReportCardHandler constructs the handler.
func NewReportCardHandler(cards reportCardService) *ReportCardHandler {
	return &ReportCardHandler{cards: cards}
}

// SaveAssessment godoc
// @Summary Save aspect scores
// @Description Creates the draft report card if needed and upserts one detail per aspect. Published cards are locked.
// @Tags ReportCards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.SaveAssessmentRequest true "Assessment payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /report-cards/assessments [post]
func (h *ReportCardHandler) SaveAssessment(c *gin.Context) {
	var req models.SaveAssessmentRequest
	if !bindJSON(c, &req, "invalid assessment payload") {
		return
	}
	view, err := h.cards.SaveAssessment(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// GenerateNarrative godoc
// @Summary Generate a narrative for one aspect
// @Description The text is returned for review and is not saved.
// @Tags ReportCards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.NarrativeRequest true "Narrative payload"
// @Success 200 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /report-cards/narratives [post]
func (h *ReportCardHandler) GenerateNarrative(c *gin.Context) {
	var req models.NarrativeRequest
	if !bindJSON(c, &req, "invalid narrative payload") {
		return
	}
	text, err := h.cards.GenerateNarrative(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"narrative": text}, nil)
}

// GenerateBulkNarratives godoc
// @Summary Generate narratives for several aspects
// @Description Unknown aspects and per-aspect failures are reported under failures.
// @Tags ReportCards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.BulkNarrativeRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /report-cards/narratives/bulk [post]
func (h *ReportCardHandler) GenerateBulkNarratives(c *gin.Context) {
	var req models.BulkNarrativeRequest
	if !bindJSON(c, &req, "invalid bulk narrative payload") {
		return
	}
	result, err := h.cards.GenerateBulkNarratives(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Preview godoc
// @Summary Preview a report card
// @Tags ReportCards
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /report-cards/students/{studentId}/terms/{termId} [get]
func (h *ReportCardHandler) Preview(c *gin.Context) {
	view, err := h.cards.Preview(c.Request.Context(), c.Param("studentId"), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Publish godoc
// @Summary Publish a report card
// @Description Requires every active aspect to be scored and narrated. Publishing happens once.
// @Tags ReportCards
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /report-cards/students/{studentId}/terms/{termId}/publish [post]
func (h *ReportCardHandler) Publish(c *gin.Context) {
	card, err := h.cards.Publish(c.Request.Context(), actorID(c), c.Param("studentId"), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, card, nil)
}

// PDF godoc
// @Summary Download a report card PDF
// @Tags ReportCards
// @Produce application/pdf
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param termId path string true "Term ID"
// @Success 200 {file} binary
// @Router /report-cards/students/{studentId}/terms/{termId}/pdf [get]
func (h *ReportCardHandler) PDF(c *gin.Context) {
	data, filename, err := h.cards.RenderPDF(c.Request.Context(), c.Param("studentId"), c.Param("termId"), false)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", data)
}

// Statistics godoc
// @Summary Class report card statistics
// @Tags ReportCards
// @Produce json
// @Security BearerAuth
// @Param classroomId query string true "Classroom ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /report-cards/statistics [get]
func (h *ReportCardHandler) Statistics(c *gin.Context) {
	classroomID := c.Query("classroomId")
	termID := c.Query("termId")
	if classroomID == "" || termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "classroomId and termId required"))
		return
	}
	stats, err := h.cards.Statistics(c.Request.Context(), classroomID, termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
