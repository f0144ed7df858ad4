package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	"github.com/noah-isme/clinic-portal-api/internal/service"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
	"github.com/noah-isme/clinic-portal-api/pkg/response"
)

type queryBuilder interface {
	BuildQuery(req dto.DashboardQuery, claims *models.PortalClaims) (service.Query, error)
}

type sessionService interface {
	Update(ctx context.Context, id string, q service.Query) dto.DashboardSession
	Get(id string) (dto.DashboardSession, error)
	Delete(id string)
}

// DashboardSessionHandler exposes live dashboard sessions. Session ids are
// private to the caller who created them.
type DashboardSessionHandler struct {
	queries  queryBuilder
	sessions sessionService
}

// NewDashboardSessionHandler constructs the handler.
func NewDashboardSessionHandler(queries queryBuilder, sessions sessionService) *DashboardSessionHandler {
	return &DashboardSessionHandler{queries: queries, sessions: sessions}
}

// UpdateSelection godoc
// @Summary Change a dashboard session's selection
// @Description Starts a rebuild and returns at once. Poll the session to read the result; only the newest selection is ever committed.
// @Tags Dashboard
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.DashboardQuery true "Selection"
// @Success 202 {object} response.Envelope
// @Router /dashboard/sessions/{id}/selection [put]
func (h *DashboardSessionHandler) UpdateSelection(c *gin.Context) {
	claims := claimsFromContext(c)
	key, ok := sessionKey(c, claims)
	if !ok {
		return
	}
	var req dto.DashboardQuery
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	q, err := h.queries.BuildQuery(req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	state := h.sessions.Update(c.Request.Context(), key, q)
	state.SessionID = c.Param("id")
	response.JSON(c, http.StatusAccepted, state, nil)
}

// Get godoc
// @Summary Read a dashboard session
// @Tags Dashboard
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/sessions/{id} [get]
func (h *DashboardSessionHandler) Get(c *gin.Context) {
	key, ok := sessionKey(c, claimsFromContext(c))
	if !ok {
		return
	}
	state, err := h.sessions.Get(key)
	if err != nil {
		response.Error(c, err)
		return
	}
	state.SessionID = c.Param("id")
	response.JSON(c, http.StatusOK, state, nil)
}

// Delete godoc
// @Summary Close a dashboard session
// @Tags Dashboard
// @Param id path string true "Session ID"
// @Success 204
// @Router /dashboard/sessions/{id} [delete]
func (h *DashboardSessionHandler) Delete(c *gin.Context) {
	key, ok := sessionKey(c, claimsFromContext(c))
	if !ok {
		return
	}
	h.sessions.Delete(key)
	response.NoContent(c)
}

func sessionKey(c *gin.Context, claims *models.PortalClaims) (string, bool) {
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" || len(id) > 64 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid session id"))
		return "", false
	}
	return claims.UserID + "/" + id, true
}
