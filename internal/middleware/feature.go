package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
	"github.com/noah-isme/clinic-portal-api/pkg/response"
)

// FeatureHeader names the feature that refused a request.
const FeatureHeader = "X-Portal-Feature"

// RequireFeature answers 404 for routes whose feature is switched off.
func RequireFeature(name string, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Header(FeatureHeader, name)
			response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, name+" is disabled"))
			c.Abort()
			return
		}
		c.Next()
	}
}
