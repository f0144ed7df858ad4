package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/middleware"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/service"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
	"github.com/noah-isme/clinic-portal-api/pkg/response"
)

type dashboardService interface {
	BuildQuery(req dto.DashboardQuery, claims *models.PortalClaims) (service.Query, error)
	Dashboard(ctx context.Context, q service.Query) (*dto.DashboardResponse, bool, error)
	WeeklySummary(ctx context.Context, q service.Query) (*dto.WeeklySummaryResponse, bool, error)
	StudentProgress(ctx context.Context, q service.Query) (*dto.StudentProgress, error)
	Audit(ctx context.Context) (*dto.AuditResults, error)
	Invalidate(ctx context.Context) error
}

type exportService interface {
	Export(ctx context.Context, q service.Query, format, table string) (*service.ExportFile, error)
}

// DashboardHandler wires the dashboard read models to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
	exports exportService
}

// NewDashboardHandler constructs the handler. exports may be nil when exports
// are disabled.
func NewDashboardHandler(service dashboardService, exports exportService) *DashboardHandler {
	return &DashboardHandler{service: service, exports: exports}
}

// Dashboard godoc
// @Summary Program dashboard
// @Description Quick stats, clinic and client tables, attendance and missing debriefs for the caller's scope.
// @Tags Dashboard
// @Produce json
// @Param weeks query []string false "Week start dates (YYYY-MM-DD)" collectionFormat(multi)
// @Param directorId query string false "Director scope, or all"
// @Param clinic query string false "Clinic filter"
// @Param client query string false "Client name filter"
// @Param sortBy query string false "hours, name, students, clients or completion"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	resp, cacheHit, err := h.service.Dashboard(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetDegraded(c, resp.Degraded)
	response.JSON(c, http.StatusOK, resp, nil, metaWith(c, nil))
}

// WeeklySummary godoc
// @Summary Weekly work summary grouped by client
// @Tags Dashboard
// @Produce json
// @Param weeks query []string false "Week start dates (YYYY-MM-DD)" collectionFormat(multi)
// @Success 200 {object} response.Envelope
// @Router /dashboard/weekly-summary [get]
func (h *DashboardHandler) WeeklySummary(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	resp, cacheHit, err := h.service.WeeklySummary(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, resp, nil, metaWith(c, nil))
}

// StudentProgress godoc
// @Summary Student portal overview
// @Description Students always receive their own progress; staff pass studentId.
// @Tags Student
// @Produce json
// @Param studentId query string false "Student ID (staff only)"
// @Success 200 {object} response.Envelope
// @Router /student/progress [get]
func (h *DashboardHandler) StudentProgress(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	resp, err := h.service.StudentProgress(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Audit godoc
// @Summary Stakeholder roster audit
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /admin/audit [get]
func (h *DashboardHandler) Audit(c *gin.Context) {
	resp, err := h.service.Audit(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// InvalidateCache godoc
// @Summary Drop cached dashboard views
// @Tags Admin
// @Success 204
// @Router /admin/cache/invalidate [post]
func (h *DashboardHandler) InvalidateCache(c *gin.Context) {
	if err := h.service.Invalidate(c.Request.Context()); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalidate cache"))
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export a dashboard table
// @Tags Dashboard
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "csv or pdf"
// @Param table query string false "clinics, clients, students or missing"
// @Success 200 {file} file
// @Router /dashboard/export [get]
func (h *DashboardHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrFeatureDisabled)
		return
	}
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request"))
		return
	}
	if req.Format == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format is required"))
		return
	}
	q, err := h.service.BuildQuery(req.DashboardQuery, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.Export(c.Request.Context(), q, req.Format, req.Table)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Header("Cache-Control", "no-store")
	c.Header("X-Export-ID", file.ID)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

func (h *DashboardHandler) query(c *gin.Context) (service.Query, bool) {
	var req dto.DashboardQuery
	if err := bindDashboardQuery(c, &req); err != nil {
		response.Error(c, err)
		return service.Query{}, false
	}
	q, err := h.service.BuildQuery(req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return service.Query{}, false
	}
	return q, true
}
