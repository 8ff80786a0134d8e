package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/task-scheduler-api/internal/dto"
	"github.com/noah-isme/task-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/task-scheduler-api/pkg/errors"
	"github.com/noah-isme/task-scheduler-api/pkg/response"
)

type taskScheduler interface {
	Schedule(ctx context.Context, req dto.ScheduleRequest) (*dto.ScheduleResult, error)
	Export(ctx context.Context, req dto.ScheduleRequest, format string) (*service.ScheduleExport, error)
}

// TaskSchedulerHandler exposes the scheduling endpoints.
type TaskSchedulerHandler struct {
	service taskScheduler
}

// NewTaskSchedulerHandler constructs the handler.
func NewTaskSchedulerHandler(svc *service.TaskSchedulerService) *TaskSchedulerHandler {
	return &TaskSchedulerHandler{service: svc}
}

// Legacy godoc
// @Summary Schedule tasks (legacy contract)
// @Description Accepts the original request body and answers with the bare {found, tasks} object.
// @Tags Scheduler
// @Accept json
// @Accept x-yaml
// @Produce json
// @Param payload body dto.ScheduleRequest true "Schedule request"
// @Success 200 {object} dto.ScheduleResponse
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router / [post]
func (h *TaskSchedulerHandler) Legacy(c *gin.Context) {
	req, ok := bindScheduleRequest(c)
	if !ok {
		return
	}
	result, err := h.service.Schedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	setScheduleHeaders(c, result.Meta)
	c.JSON(http.StatusOK, result.Response)
}

// Schedule godoc
// @Summary Schedule tasks
// @Description Solves the request and wraps the schedule in the standard envelope with solver diagnostics.
// @Tags Scheduler
// @Accept json
// @Accept x-yaml
// @Produce json
// @Param payload body dto.ScheduleRequest true "Schedule request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /schedules [post]
func (h *TaskSchedulerHandler) Schedule(c *gin.Context) {
	req, ok := bindScheduleRequest(c)
	if !ok {
		return
	}
	result, err := h.service.Schedule(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	setScheduleHeaders(c, result.Meta)
	response.JSON(c, http.StatusOK, result.Response, scheduleMeta(result.Meta))
}

// Export godoc
// @Summary Export a schedule
// @Description Solves the request and renders the assignment table as CSV or PDF.
// @Tags Scheduler
// @Accept json
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param payload body dto.ScheduleRequest true "Schedule request"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /schedules/export [post]
func (h *TaskSchedulerHandler) Export(c *gin.Context) {
	req, ok := bindScheduleRequest(c)
	if !ok {
		return
	}
	doc, err := h.service.Export(c.Request.Context(), req, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	setScheduleHeaders(c, doc.Meta)
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Body)
}

// setScheduleHeaders tags a solved response. The metrics middleware reads
// X-Schedule-Status back as the request outcome.
func setScheduleHeaders(c *gin.Context, meta dto.ScheduleMeta) {
	c.Header(dto.HeaderScheduleStatus, meta.Status)
	c.Header(dto.HeaderScheduleRunID, meta.RunID)
}

func bindScheduleRequest(c *gin.Context) (dto.ScheduleRequest, bool) {
	var req dto.ScheduleRequest
	var err error
	if strings.Contains(c.ContentType(), "yaml") {
		err = c.ShouldBindYAML(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return req, false
	}
	return req, true
}

func scheduleMeta(meta dto.ScheduleMeta) map[string]interface{} {
	return map[string]interface{}{
		"run_id":             meta.RunID,
		"status":             meta.Status,
		"objective":          meta.Objective,
		"horizon":            meta.Horizon,
		"solver":             meta.Solver,
		"branches":           meta.Branches,
		"conflicts":          meta.Conflicts,
		"processing_time_ms": meta.WallTimeMs,
		"cache_hit":          meta.CacheHit,
	}
}
