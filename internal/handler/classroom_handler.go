package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/paud-api/internal/service"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
	"github.com/noah-isme/paud-api/pkg/response"
)

// ClassroomHandler exposes classroom and aspect catalog endpoints.
type ClassroomHandler struct {
	classrooms *service.ClassroomService
	aspects    *service.AspectService
}

// NewClassroomHandler constructs ClassroomHandler.
func NewClassroomHandler(classrooms *service.ClassroomService, aspects *service.AspectService) *ClassroomHandler {
	return &ClassroomHandler{classrooms: classrooms, aspects: aspects}
}

// List godoc
// @Summary List classrooms
// @Tags Classrooms
// @Produce json
// @Security BearerAuth
// @Param yearId query string false "Filter by academic year"
// @Success 200 {object} response.Envelope
// @Router /classrooms [get]
func (h *ClassroomHandler) List(c *gin.Context) {
	rooms, err := h.classrooms.List(c.Request.Context(), c.Query("yearId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// Get godoc
// @Summary Get classroom
// @Tags Classrooms
// @Produce json
// @Security BearerAuth
// @Param id path string true "Classroom ID"
// @Success 200 {object} response.Envelope
// @Router /classrooms/{id} [get]
func (h *ClassroomHandler) Get(c *gin.Context) {
	room, err := h.classrooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}

// Create godoc
// @Summary Create classroom
// @Tags Classrooms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateClassroomRequest true "Classroom payload"
// @Success 201 {object} response.Envelope
// @Router /classrooms [post]
func (h *ClassroomHandler) Create(c *gin.Context) {
	var req service.CreateClassroomRequest
	if !bindJSON(c, &req, "invalid classroom payload") {
		return
	}
	room, err := h.classrooms.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, room)
}

// ListAspects godoc
// @Summary List assessment aspects
// @Tags Aspects
// @Produce json
// @Security BearerAuth
// @Param active query bool false "Only active aspects"
// @Success 200 {object} response.Envelope
// @Router /aspects [get]
func (h *ClassroomHandler) ListAspects(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))
	aspects, err := h.aspects.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aspects, nil)
}

// CreateAspect godoc
// @Summary Create assessment aspect
// @Tags Aspects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.AspectRequest true "Aspect payload"
// @Success 201 {object} response.Envelope
// @Router /aspects [post]
func (h *ClassroomHandler) CreateAspect(c *gin.Context) {
	var req service.AspectRequest
	if !bindJSON(c, &req, "invalid aspect payload") {
		return
	}
	aspect, err := h.aspects.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, aspect)
}

// UpdateAspect godoc
// @Summary Update assessment aspect
// @Tags Aspects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Aspect ID"
// @Param payload body service.AspectRequest true "Aspect payload"
// @Success 200 {object} response.Envelope
// @Router /aspects/{id} [put]
func (h *ClassroomHandler) UpdateAspect(c *gin.Context) {
	var req service.AspectRequest
	if !bindJSON(c, &req, "invalid aspect payload") {
		return
	}
	aspect, err := h.aspects.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aspect, nil)
}

// SetAspectActive godoc
// @Summary Toggle an aspect
// @Description Inactive aspects no longer count toward the publish gate.
// @Tags Aspects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Aspect ID"
// @Param payload body object true "{\"active\": false}"
// @Success 200 {object} response.Envelope
// @Router /aspects/{id}/active [patch]
func (h *ClassroomHandler) SetAspectActive(c *gin.Context) {
	var payload struct {
		Active *bool `json:"active"`
	}
	if !bindJSON(c, &payload, "invalid aspect payload") {
		return
	}
	if payload.Active == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "active is required"))
		return
	}
	aspect, err := h.aspects.SetActive(c.Request.Context(), c.Param("id"), *payload.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aspect, nil)
}
