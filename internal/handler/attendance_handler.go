package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/pkg/response"
)

type attendanceService interface {
	SetPassword(ctx context.Context, req dto.CreateAttendancePasswordRequest, claims *models.PortalClaims) (*dto.AttendancePasswordView, error)
	ListPasswords(ctx context.Context, semesterID string, claims *models.PortalClaims) ([]dto.AttendancePasswordView, error)
	CheckIn(ctx context.Context, req dto.AttendanceCheckInRequest, claims *models.PortalClaims) (*dto.AttendanceCheckInResponse, error)
}

// AttendanceHandler serves the password-gated class check-in.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// SetPassword godoc
// @Summary Set the check-in password for a class week
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.CreateAttendancePasswordRequest true "Password"
// @Success 201 {object} response.Envelope
// @Router /attendance/passwords [post]
func (h *AttendanceHandler) SetPassword(c *gin.Context) {
	var req dto.CreateAttendancePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.SetPassword(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// ListPasswords godoc
// @Summary List configured check-in weeks
// @Tags Attendance
// @Produce json
// @Param semesterId query string false "Semester ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/passwords [get]
func (h *AttendanceHandler) ListPasswords(c *gin.Context) {
	views, err := h.service.ListPasswords(c.Request.Context(), c.Query("semesterId"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// CheckIn godoc
// @Summary Check in to class
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.AttendanceCheckInRequest true "Check-in"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /attendance/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	var req dto.AttendanceCheckInRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	resp, err := h.service.CheckIn(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}
