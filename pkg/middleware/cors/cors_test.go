package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func router(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/dashboard", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestKnownOriginGetsCredentials(t *testing.T) {
	r := router("https://portal.example.edu/")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Origin", "https://portal.example.edu")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://portal.example.edu", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Export-ID")
}

func TestUnknownOriginPreflightRejected(t *testing.T) {
	r := router("https://portal.example.edu")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/dashboard", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightAllowed(t *testing.T) {
	r := router("https://portal.example.edu")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/dashboard", nil)
	req.Header.Set("Origin", "https://portal.example.edu")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestWildcardWithoutCredentials(t *testing.T) {
	r := router()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	r.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}
