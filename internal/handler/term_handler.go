package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/paud-api/internal/service"
	"github.com/noah-isme/paud-api/pkg/response"
)

// TermHandler exposes academic year and semester endpoints.
type TermHandler struct {
	service *service.TermService
}

// NewTermHandler constructs a term handler.
func NewTermHandler(svc *service.TermService) *TermHandler {
	return &TermHandler{service: svc}
}

// ListYears godoc
// @Summary List academic years
// @Tags Terms
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /academic-years [get]
func (h *TermHandler) ListYears(c *gin.Context) {
	years, err := h.service.ListYears(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, years, nil)
}

// CreateYear godoc
// @Summary Create academic year
// @Tags Terms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateYearRequest true "Academic year payload"
// @Success 201 {object} response.Envelope
// @Router /academic-years [post]
func (h *TermHandler) CreateYear(c *gin.Context) {
	var req service.CreateYearRequest
	if !bindJSON(c, &req, "invalid academic year payload") {
		return
	}
	year, err := h.service.CreateYear(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, year)
}

// ActivateYear godoc
// @Summary Activate academic year
// @Description Makes the year the only active one.
// @Tags Terms
// @Security BearerAuth
// @Param id path string true "Academic year ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /academic-years/{id}/activate [post]
func (h *TermHandler) ActivateYear(c *gin.Context) {
	if err := h.service.ActivateYear(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTerms godoc
// @Summary List semesters
// @Tags Terms
// @Produce json
// @Security BearerAuth
// @Param yearId query string false "Filter by academic year"
// @Success 200 {object} response.Envelope
// @Router /terms [get]
func (h *TermHandler) ListTerms(c *gin.Context) {
	terms, err := h.service.ListTerms(c.Request.Context(), c.Query("yearId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, terms, nil)
}

// CreateTerm godoc
// @Summary Create semester
// @Tags Terms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateTermRequest true "Term payload"
// @Success 201 {object} response.Envelope
// @Router /terms [post]
func (h *TermHandler) CreateTerm(c *gin.Context) {
	var req service.CreateTermRequest
	if !bindJSON(c, &req, "invalid term payload") {
		return
	}
	term, err := h.service.CreateTerm(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, term)
}

// Active godoc
// @Summary Active semester
// @Tags Terms
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /terms/active [get]
func (h *TermHandler) Active(c *gin.Context) {
	term, err := h.service.Active(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}

// ActivateTerm godoc
// @Summary Activate semester
// @Tags Terms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /terms/{id}/activate [post]
func (h *TermHandler) ActivateTerm(c *gin.Context) {
	term, err := h.service.ActivateTerm(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, term, nil)
}
