package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-portal-api/internal/dto"
	"github.com/noah-isme/clinic-portal-api/internal/middleware"
	"github.com/noah-isme/clinic-portal-api/internal/models"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.PortalClaims {
	return middleware.Claims(c)
}

// bindDashboardQuery reads the selection from the query string. The weeks
// parameter may repeat or carry a comma separated list.
func bindDashboardQuery(c *gin.Context, req *dto.DashboardQuery) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters")
	}
	if len(req.Weeks) == 0 {
		if raw := strings.TrimSpace(c.Query("week")); raw != "" {
			req.Weeks = []string{raw}
		}
	}
	return nil
}

func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body")
	}
	return nil
}

func metaWith(c *gin.Context, extra map[string]interface{}) map[string]interface{} {
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}
