package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinic-portal-api/internal/models"
	appErrors "github.com/noah-isme/clinic-portal-api/pkg/errors"
	"github.com/noah-isme/clinic-portal-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// SessionCookie carries the access token for browser clients that do not
// send an Authorization header.
const SessionCookie = "portal_session"

type tokenVerifier interface {
	ValidateToken(token string) (*models.PortalClaims, error)
}

// JWT protects routes by requiring a valid portal session token.
func JWT(verifier tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		claims, err := verifier.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalJWT attaches claims when a valid token is present but does not block.
func OptionalJWT(verifier tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := bearerToken(c); err == nil {
			if claims, err := verifier.ValidateToken(token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// Claims returns the verified caller, or nil for anonymous requests.
func Claims(c *gin.Context) *models.PortalClaims {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*models.PortalClaims)
	return claims
}

func setClaims(c *gin.Context, claims *models.PortalClaims) {
	c.Set(ContextUserKey, claims)
	c.Set(response.ContextRoleKey, string(claims.Role))
}

func bearerToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
			return cookie, nil
		}
		return "", appErrors.ErrUnauthorized
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(token), nil
}
