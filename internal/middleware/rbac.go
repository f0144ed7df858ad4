package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-portal-api/internal/models"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
	"github.com/noah-isme/clinic-portal-api/pkg/response"
)

// RequireRoles admits only callers whose portal role is listed. Other callers
// get a permission error carrying their own portal as the redirect.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Staff admits directors and admins.
func Staff() gin.HandlerFunc {
	return RequireRoles(models.RoleDirector, models.RoleAdmin)
}
