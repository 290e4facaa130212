package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/sales-reports/internal/application/port"
	"github.com/garyjia/sales-reports/internal/application/service"
	"github.com/garyjia/sales-reports/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	reportService service.ReportService
	exporter      ReportExporter
	health        HealthFunc
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	reportService service.ReportService,
	exporter ReportExporter,
	health HealthFunc,
	logger Logger,
) *Handlers {
	return &Handlers{
		reportService: reportService,
		exporter:      exporter,
		health:        health,
		logger:        logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Kind    string            `json:"kind,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Version    string      `json:"version"`
	Components interface{} `json:"components,omitempty"`
}

// ReportView is a report together with the actions its viewer may take
type ReportView struct {
	*entity.Report
	Actions []string `json:"actions"`
}

// ListReportsRequest represents query parameters for listing reports
type ListReportsRequest struct {
	Status   string `form:"status"`
	Period   string `form:"period"`
	BranchID int64  `form:"branch_id"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

func (r ListReportsRequest) filter() port.ReportFilter {
	return port.ReportFilter{
		Status:   r.Status,
		Period:   r.Period,
		BranchID: r.BranchID,
		Limit:    r.Limit,
		Offset:   r.Offset,
	}
}

// RejectRequest is the body of POST /api/reports/:id/reject
type RejectRequest struct {
	Reason string `json:"reason"`
}

// CommentRequest is the body of POST /api/reports/:id/comments
type CommentRequest struct {
	Body string `json:"body"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	status := http.StatusOK
	if h.health != nil {
		components, err := h.health(c.Request.Context())
		response.Components = components
		if err != nil {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{
		Success: status == http.StatusOK,
		Data:    response,
	})
}

// Me handles GET /api/me
func (h *Handlers) Me(c *gin.Context) {
	actor, _ := actorFrom(c)
	c.JSON(http.StatusOK, Response{Success: true, Data: actor})
}

// ListReports handles GET /api/reports
func (h *Handlers) ListReports(c *gin.Context) {
	var req ListReportsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	actor, _ := actorFrom(c)
	reports, err := h.reportService.ListVisible(c.Request.Context(), actor, req.filter())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: reports})
}

// ExportReports handles GET /api/reports/export. It accepts the listing
// filters but always exports the whole matching set.
func (h *Handlers) ExportReports(c *gin.Context) {
	var req ListReportsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}

	actor, _ := actorFrom(c)
	reports, err := h.reportService.ExportVisible(c.Request.Context(), actor, req.filter())
	if err != nil {
		respondError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Write(&buf, reports); err != nil {
		h.logger.Error("Failed to export reports", "actor_id", actor.ID, "error", err)
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("reports-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// CreateReport handles POST /api/reports
func (h *Handlers) CreateReport(c *gin.Context) {
	var in service.ReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	actor, _ := actorFrom(c)
	report, err := h.reportService.Create(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: report})
}

// GetReport handles GET /api/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	actor, _ := actorFrom(c)
	report, err := h.reportService.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: ReportView{
		Report:  report,
		Actions: h.reportService.Actions(actor, report),
	}})
}

// EditReport handles PUT /api/reports/:id
func (h *Handlers) EditReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	var in service.ReportInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	actor, _ := actorFrom(c)
	report, err := h.reportService.Edit(c.Request.Context(), actor, id, in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// DeleteReport handles DELETE /api/reports/:id
func (h *Handlers) DeleteReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	actor, _ := actorFrom(c)
	if err := h.reportService.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"id": id, "deleted": true}})
}

// SubmitReport handles POST /api/reports/:id/submit
func (h *Handlers) SubmitReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	actor, _ := actorFrom(c)
	report, err := h.reportService.Submit(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// ApproveReport handles POST /api/reports/:id/approve
func (h *Handlers) ApproveReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	actor, _ := actorFrom(c)
	report, err := h.reportService.Approve(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// RejectReport handles POST /api/reports/:id/reject
func (h *Handlers) RejectReport(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	actor, _ := actorFrom(c)
	report, err := h.reportService.Reject(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: report})
}

// AddComment handles POST /api/reports/:id/comments
func (h *Handlers) AddComment(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	actor, _ := actorFrom(c)
	comment, err := h.reportService.AddComment(c.Request.Context(), actor, id, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: comment})
}

// GetHistory handles GET /api/reports/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, ok := reportID(c)
	if !ok {
		return
	}

	actor, _ := actorFrom(c)
	history, err := h.reportService.History(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

func reportID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid report ID")
		return 0, false
	}
	return id, true
}
