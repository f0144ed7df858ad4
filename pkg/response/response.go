package response

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-portal-api/internal/models"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
)

// ContextRoleKey is the gin context key holding the caller's portal role.
const ContextRoleKey = "portal_role"

// SignInPath is where unauthenticated callers are sent.
const SignInPath = "/sign-in"

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
// Authentication failures carry a sign-in redirect; permission failures carry
// the caller's default portal.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	envelope := Envelope{Error: appErr}
	switch {
	case appErrors.IsAuthentication(err):
		envelope.Meta = map[string]interface{}{
			"redirect":     SignInPath,
			"user_message": appErrors.UserMessage(appErr),
		}
	case appErrors.IsPermission(err):
		role, _ := c.Get(ContextRoleKey)
		roleStr, _ := role.(string)
		envelope.Meta = map[string]interface{}{
			"redirect":     DefaultPortal(roleStr),
			"user_message": appErrors.UserMessage(appErr),
		}
	}
	c.JSON(appErr.Status, envelope)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// DefaultPortal returns the landing path for role.
func DefaultPortal(role string) string {
	switch strings.ToLower(role) {
	case string(models.RoleAdmin):
		return "/admin"
	case string(models.RoleDirector):
		return "/director"
	case string(models.RoleStudent):
		return "/student"
	default:
		return SignInPath
	}
}
