package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/pkg/response"
)

type debriefService interface {
	Submit(ctx context.Context, req dto.CreateDebriefRequest, claims *models.PortalClaims) (*models.Debrief, error)
	List(ctx context.Context, studentID, semesterID string, claims *models.PortalClaims) ([]models.Debrief, error)
	Review(ctx context.Context, id string, req dto.ReviewDebriefRequest, claims *models.PortalClaims) error
}

// DebriefHandler serves weekly debrief submission and review.
type DebriefHandler struct {
	service debriefService
}

// NewDebriefHandler constructs the handler.
func NewDebriefHandler(service debriefService) *DebriefHandler {
	return &DebriefHandler{service: service}
}

// Submit godoc
// @Summary Submit a weekly debrief
// @Tags Debriefs
// @Accept json
// @Produce json
// @Param payload body dto.CreateDebriefRequest true "Debrief"
// @Success 201 {object} response.Envelope
// @Router /debriefs [post]
func (h *DebriefHandler) Submit(c *gin.Context) {
	var req dto.CreateDebriefRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	debrief, err := h.service.Submit(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, debrief)
}

// List godoc
// @Summary List a student's debriefs
// @Tags Debriefs
// @Produce json
// @Param studentId query string false "Student ID (staff only)"
// @Param semesterId query string false "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /debriefs [get]
func (h *DebriefHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), c.Query("studentId"), c.Query("semesterId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"count": len(items)})
}

// Review godoc
// @Summary Set a debrief's review status
// @Tags Debriefs
// @Accept json
// @Param id path string true "Debrief ID"
// @Param payload body dto.ReviewDebriefRequest true "Review"
// @Success 204
// @Router /debriefs/{id}/review [patch]
func (h *DebriefHandler) Review(c *gin.Context) {
	var req dto.ReviewDebriefRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Review(c.Request.Context(), c.Param("id"), req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
