package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/paud-api/internal/models"
	"github.com/noah-isme/paud-api/internal/service"
	"github.com/noah-isme/paud-api/pkg/response"
)

// DailyLogHandler exposes daily log and growth record endpoints for staff.
type DailyLogHandler struct {
	logs   *service.DailyLogService
	growth *service.GrowthService
}

// NewDailyLogHandler constructs DailyLogHandler.
func NewDailyLogHandler(logs *service.DailyLogService, growth *service.GrowthService) *DailyLogHandler {
	return &DailyLogHandler{logs: logs, growth: growth}
}

func dailyLogFilter(c *gin.Context, studentID string) (models.DailyLogFilter, error) {
	filter := models.DailyLogFilter{StudentID: studentID, LogType: models.DailyLogType(c.Query("type"))}
	var err error
	if filter.From, err = queryDate(c, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryDate(c, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

// Record godoc
// @Summary Record a daily log
// @Description One entry per student, date and type; recording again replaces it.
// @Tags DailyLogs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.DailyLogRequest true "Daily log payload"
// @Success 200 {object} response.Envelope
// @Router /daily-logs [post]
func (h *DailyLogHandler) Record(c *gin.Context) {
	var req models.DailyLogRequest
	if !bindJSON(c, &req, "invalid daily log payload") {
		return
	}
	log, err := h.logs.Record(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, log, nil)
}

// List godoc
// @Summary List a student's daily logs
// @Tags DailyLogs
// @Produce json
// @Security BearerAuth
// @Param studentId query string true "Student ID"
// @Param type query string false "presence, worship or quran"
// @Param from query string false "YYYY-MM-DD"
// @Param to query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Router /daily-logs [get]
func (h *DailyLogHandler) List(c *gin.Context) {
	filter, err := dailyLogFilter(c, c.Query("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	logs, err := h.logs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// RecordGrowth godoc
// @Summary Record a growth measurement
// @Tags Growth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.GrowthRecordRequest true "Growth payload"
// @Success 201 {object} response.Envelope
// @Router /growth-records [post]
func (h *DailyLogHandler) RecordGrowth(c *gin.Context) {
	var req models.GrowthRecordRequest
	if !bindJSON(c, &req, "invalid growth payload") {
		return
	}
	record, err := h.growth.Record(c.Request.Context(), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ListGrowth godoc
// @Summary List a student's growth records
// @Tags Growth
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/growth [get]
func (h *DailyLogHandler) ListGrowth(c *gin.Context) {
	records, err := h.growth.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
