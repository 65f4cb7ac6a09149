package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/paud-api/internal/models"
	"github.com/noah-isme/paud-api/pkg/response"
)

type parentPortal interface {
	Children(ctx context.Context, parentID string) ([]models.StudentDetail, error)
	ChildDailyLogs(ctx context.Context, parentID string, filter models.DailyLogFilter) ([]models.StudentDailyLog, error)
	ChildGrowth(ctx context.Context, parentID, studentID string) ([]models.GrowthRecord, error)
}

type parentReportCards interface {
	GetForParent(ctx context.Context, parentID, studentID, termID string) (*models.ReportCardView, error)
	RenderPDFForParent(ctx context.Context, parentID, studentID, termID string) ([]byte, string, error)
}

// ParentHandler serves the parent-facing endpoints. Every route is scoped to the caller's linked children.
type ParentHandler struct {
	portal parentPortal
	cards  parentReportCards
}

// NewParentHandler constructs ParentHandler.
func NewParentHandler(portal parentPortal, cards parentReportCards) *ParentHandler {
	return &ParentHandler{portal: portal, cards: cards}
}

// Children godoc
// @Summary List my children
// @Tags Parents
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /parent/children [get]
func (h *ParentHandler) Children(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	children, err := h.portal.Children(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, children, nil)
}

// ReportCard godoc
// @Summary View a child's published report card
// @Description Draft report cards are reported as not found.
// @Tags Parents
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /parent/children/{studentId}/report-cards/{termId} [get]
func (h *ParentHandler) ReportCard(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	view, err := h.cards.GetForParent(c.Request.Context(), claims.UserID, c.Param("studentId"), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ReportCardPDF godoc
// @Summary Download a child's published report card
// @Tags Parents
// @Produce application/pdf
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param termId path string true "Term ID"
// @Success 200 {file} binary
// @Router /parent/children/{studentId}/report-cards/{termId}/pdf [get]
func (h *ParentHandler) ReportCardPDF(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	data, filename, err := h.cards.RenderPDFForParent(c.Request.Context(), claims.UserID, c.Param("studentId"), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", data)
}

// DailyLogs godoc
// @Summary A child's daily logs
// @Tags Parents
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param type query string false "presence, worship or quran"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /parent/children/{studentId}/daily-logs [get]
func (h *ParentHandler) DailyLogs(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	filter, err := dailyLogFilter(c, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	logs, err := h.portal.ChildDailyLogs(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// Growth godoc
// @Summary A child's growth records
// @Tags Parents
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /parent/children/{studentId}/growth [get]
func (h *ParentHandler) Growth(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	records, err := h.portal.ChildGrowth(c.Request.Context(), claims.UserID, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
